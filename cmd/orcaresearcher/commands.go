package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/app"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/config"
)

type cli struct {
	cfg         config.Config
	logger      *slog.Logger
	metricsAddr string
}

func newRootCmd(cfg config.Config, logger *slog.Logger) *cobra.Command {
	c := &cli{cfg: cfg, logger: logger}

	root := &cobra.Command{
		Use:   "orcaresearcher",
		Short: "Generate cited research papers from a topic",
		Long: `orcaresearcher plans, researches and writes a Markdown research paper
for a topic, collecting web, Wikipedia, arXiv and Crossref sources.

Example usage:
  orcaresearcher run --topic "grid scale batteries"
  orcaresearcher status --session <id>
  orcaresearcher articles --type pdf --limit 10
  orcaresearcher cleanup --days 30`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.metricsAddr, "metrics-addr", cfg.Metrics.Addr, "serve Prometheus metrics on this address while running")

	root.AddCommand(c.runCmd(), c.statusCmd(), c.articlesCmd(), c.cleanupCmd())
	return root
}

func (c *cli) runCmd() *cobra.Command {
	var topic string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Research a topic and write the paper",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				res, err := a.Research(ctx, topic)
				if encErr := writeJSON(cmd.OutOrStdout(), res); encErr != nil {
					return encErr
				}
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&topic, "topic", "t", "", "research topic")
	_ = cmd.MarkFlagRequired("topic")
	return cmd
}

func (c *cli) statusCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of a stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				report, err := a.Status(ctx, id)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().StringVarP(&id, "session", "s", "", "session id")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func (c *cli) articlesCmd() *cobra.Command {
	var (
		sourceType string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "articles",
		Short: "List cached articles, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(_ context.Context, a *app.Application) error {
				return writeJSON(cmd.OutOrStdout(), a.Articles(sourceType, limit))
			})
		},
	}
	cmd.Flags().StringVar(&sourceType, "type", "", "only list this source type (pdf, news, web, ...)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of articles")
	return cmd
}

func (c *cli) cleanupCmd() *cobra.Command {
	var (
		days  int
		every time.Duration
	)
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Prune cached articles older than --days",
		Long: `Prune cached articles once, or keep pruning on an interval when --every
is set until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				if every > 0 {
					return a.RunJanitor(ctx, days, every)
				}
				removed, err := a.Cleanup(ctx, days)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d cached articles\n", removed)
				return err
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", c.cfg.Research.ArticleMaxAge, "maximum article age in days")
	cmd.Flags().DurationVar(&every, "every", 0, "repeat the cleanup on this interval")
	return cmd
}

// withApp builds the application for one command and serves metrics
// alongside it when --metrics-addr is set.
func (c *cli) withApp(cmd *cobra.Command, fn func(context.Context, *app.Application) error) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := app.New(ctx, c.cfg, c.logger)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			c.logger.Warn("close application", "error", err)
		}
	}()

	var wg sync.WaitGroup
	if c.metricsAddr != "" {
		wg.Go(func() {
			if err := a.ServeMetrics(ctx, c.metricsAddr); err != nil {
				c.logger.Error("metrics listener stopped", "error", err)
			}
		})
	}

	err = fn(ctx, a)
	cancel()
	wg.Wait()
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

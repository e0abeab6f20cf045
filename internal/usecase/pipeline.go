package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/document"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/metrics"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/optimizer"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/ports"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/research"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/session"
)

const (
	defaultMaxSubtopics  = 5
	defaultSubtopicBatch = 2
	limitedSection       = "Limited information available on this subtopic."
)

// ErrNoToolkit is returned by NewPipeline when no research toolkit is wired.
var ErrNoToolkit = errors.New("pipeline needs a research toolkit")

// PipelineDeps wires all driven adapters into the research pipeline.
type PipelineDeps struct {
	Toolkit  *research.Toolkit
	Units    *research.Registry
	Sessions ports.SessionStore
	Renderer ports.Renderer
	Notifier ports.Notifier
	Session  session.Deps
	Logger   *slog.Logger

	MaxSubtopics  int
	SubtopicBatch int
}

// Pipeline runs the ten-step research workflow for one topic at a time per
// call; concurrent calls get independent sessions.
type Pipeline struct {
	units      *research.Registry
	topics     *research.TopicAnalyzer
	subtopics  *research.SubtopicResearcher
	writer     *document.Writer
	sessions   ports.SessionStore
	renderer   ports.Renderer
	notifier   ports.Notifier
	sessionCfg session.Deps
	logger     *slog.Logger

	maxSubtopics  int
	subtopicBatch int

	mu     sync.RWMutex
	active map[string]*session.Context
}

// NewPipeline constructs the orchestration component. Optional adapters
// default to no-ops; a nil unit registry gets the four academic units.
func NewPipeline(deps PipelineDeps) (*Pipeline, error) {
	if deps.Toolkit == nil {
		return nil, ErrNoToolkit
	}
	kit := deps.Toolkit
	topics := research.NewTopicAnalyzer(kit)

	units := deps.Units
	if units == nil {
		units = research.NewRegistry()
		units.Register(research.NewArxivUnit(kit))
		units.Register(research.NewDOIUnit(kit))
		units.Register(research.NewAcademicUnit(kit, topics))
		units.Register(research.NewStatisticsUnit(kit))
	}

	p := &Pipeline{
		units:         units,
		topics:        topics,
		subtopics:     research.NewSubtopicResearcher(kit),
		writer:        document.NewWriter(kit.Querier),
		sessions:      deps.Sessions,
		renderer:      deps.Renderer,
		notifier:      deps.Notifier,
		sessionCfg:    deps.Session,
		logger:        deps.Logger,
		maxSubtopics:  deps.MaxSubtopics,
		subtopicBatch: deps.SubtopicBatch,
		active:        map[string]*session.Context{},
	}
	if p.sessions == nil {
		p.sessions = ports.NopSessionStore{}
	}
	if p.renderer == nil {
		p.renderer = ports.NopRenderer{}
	}
	if p.notifier == nil {
		p.notifier = ports.NopNotifier{}
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.sessionCfg.Logger == nil {
		p.sessionCfg.Logger = p.logger
	}
	if p.maxSubtopics <= 0 {
		p.maxSubtopics = defaultMaxSubtopics
	}
	if p.subtopicBatch <= 0 {
		p.subtopicBatch = defaultSubtopicBatch
	}
	return p, nil
}

// Start registers a fresh session for topic without running it.
func (p *Pipeline) Start(topic string) *session.Context {
	sc := session.New(topic, p.sessionCfg)
	p.mu.Lock()
	p.active[sc.ID()] = sc
	p.mu.Unlock()
	return sc
}

// Run creates a session for topic and drives it to a terminal status.
func (p *Pipeline) Run(ctx context.Context, topic string) (*session.Context, error) {
	sc := p.Start(topic)
	return sc, p.Execute(ctx, sc)
}

// Status reports a running session, or the last persisted snapshot of one
// that has finished.
func (p *Pipeline) Status(ctx context.Context, id string) (domain.StatusReport, error) {
	p.mu.RLock()
	sc, ok := p.active[id]
	p.mu.RUnlock()
	if ok {
		return sc.Status(), nil
	}

	snap, err := p.sessions.Load(ctx, id)
	if err != nil {
		return domain.StatusReport{}, fmt.Errorf("load session %s: %w", id, err)
	}
	return domain.StatusReport{
		Status:      snap.Status,
		Logs:        []domain.LogEntry{},
		Progress:    snap.Progress,
		URLTracking: snap.URLTracking,
		WordCount:   session.WordCount(snap),
	}, nil
}

// Execute runs every step against sc. Panics and step errors are recorded
// into the session and turn its status into error; they never escape as
// panics.
func (p *Pipeline) Execute(ctx context.Context, sc *session.Context) (err error) {
	topic := sc.Topic()
	log := sc.Logger.With("component", "usecase.pipeline")

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("research pipeline panic: %v", r)
		}
		if err != nil {
			sc.RecordError(ctx, "Error in research paper generation", err)
			if tErr := sc.Transition(domain.StatusError); tErr != nil {
				log.WarnContext(ctx, "status transition failed", "error", tErr)
			}
			metrics.RecordSession(string(domain.StatusError))
			p.persist(context.WithoutCancel(ctx), sc)
		}
		p.mu.Lock()
		delete(p.active, sc.ID())
		p.mu.Unlock()
	}()

	if err := sc.Transition(domain.StatusResearching); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	log.InfoContext(ctx, "Starting research on: "+topic, "high_level", true)
	p.persist(ctx, sc)

	var (
		analysis  domain.TopicAnalysis
		planned   *future[domain.Result[[]domain.Subtopic]]
		drafts    *future[draftSet]
		subtopics []domain.Subtopic
	)

	if err := p.step(ctx, sc, 1, nil, func() error {
		titled := goFuture(func() (string, error) {
			return p.topics.GenerateTitle(ctx, sc, topic), nil
		})
		res := p.topics.Analyze(ctx, sc, topic)
		title, err := titled.wait()
		if err != nil {
			return fmt.Errorf("generate title: %w", err)
		}
		if res.IsFatal() {
			return res.Err
		}

		analysis = res.Value
		if title == "" {
			title = analysis.Title
		}
		if title == "" {
			title = "Research Paper on " + topic
		}
		sc.Update(func(s *domain.ResearchSession) {
			s.Analysis = analysis
			s.Title = title
		})
		log.InfoContext(ctx, "Generated title: "+title, "high_level", true)
		return nil
	}); err != nil {
		return err
	}

	if err := p.step(ctx, sc, 2, nil, func() error {
		planned = goFuture(func() (domain.Result[[]domain.Subtopic], error) {
			return p.topics.IdentifySubtopics(ctx, sc, topic, analysis), nil
		})
		components := p.topics.BreakDown(ctx, sc, topic, analysis)
		sc.Update(func(s *domain.ResearchSession) { s.SearchComponents = components })
		log.InfoContext(ctx, fmt.Sprintf("Created %d search components", len(components)), "high_level", true)
		return nil
	}); err != nil {
		return err
	}

	if err := p.step(ctx, sc, 3, nil, func() error {
		res, err := planned.wait()
		if err != nil {
			return fmt.Errorf("identify subtopics: %w", err)
		}
		if res.IsFatal() {
			return res.Err
		}
		subtopics = res.Value
		sc.Update(func(s *domain.ResearchSession) { s.Subtopics = subtopics })
		log.InfoContext(ctx, fmt.Sprintf("Identified %d subtopics", len(subtopics)), "high_level", true)
		return nil
	}); err != nil {
		return err
	}

	if err := p.step(ctx, sc, 4, nil, func() error {
		return p.academicResearch(ctx, sc, topic)
	}); err != nil {
		return err
	}

	selected := SelectSubtopics(subtopics, topic, p.maxSubtopics)
	if len(subtopics) > len(selected) {
		log.InfoContext(ctx, fmt.Sprintf("Focusing on the %d most important subtopics out of %d", len(selected), len(subtopics)), "high_level", true)
	}
	if err := p.step(ctx, sc, 5, deepSubtasks(selected), func() error {
		return p.deepResearch(ctx, sc, topic, selected)
	}); err != nil {
		return err
	}

	if err := p.step(ctx, sc, 6, nil, func() error {
		snap := sc.Snapshot()
		sections := snap.OrderedSections()
		drafts = goFuture(func() (draftSet, error) {
			return p.draft(ctx, sc, topic, sections, snap.Insights)
		})
		tables := p.writer.Tables(ctx, sc, sections, snap.AcademicSources.StatisticsSources)
		sc.Update(func(s *domain.ResearchSession) { s.Tables = tables })
		return nil
	}); err != nil {
		return err
	}

	if err := p.step(ctx, sc, 7, nil, func() error {
		d, err := drafts.wait()
		if err != nil {
			return fmt.Errorf("draft document: %w", err)
		}
		sc.Update(func(s *domain.ResearchSession) {
			s.Abstract = d.abstract
			s.Conclusion = d.conclusion
		})
		return nil
	}); err != nil {
		return err
	}

	if err := p.step(ctx, sc, 8, nil, func() error {
		p.assemble(ctx, sc)
		return nil
	}); err != nil {
		return err
	}

	if err := p.step(ctx, sc, 9, nil, func() error {
		p.enhanceCitations(ctx, sc, topic)
		p.assemble(ctx, sc)
		return nil
	}); err != nil {
		return err
	}

	if err := p.step(ctx, sc, 10, nil, func() error {
		p.finish(ctx, sc)
		return nil
	}); err != nil {
		return err
	}

	if err := sc.Transition(domain.StatusCompleted); err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	metrics.RecordSession(string(domain.StatusCompleted))
	p.persist(ctx, sc)

	snap := sc.Snapshot()
	sc.Events.MarkComplete(ctx, map[string]any{
		"markdown_file": snap.MarkdownFile,
		"word_count":    session.WordCount(snap),
	})
	log.InfoContext(ctx, "Research paper generation completed", "high_level", true)

	if err := p.notifier.PublishDigest(ctx, buildDigestMessage(snap)); err != nil {
		log.WarnContext(ctx, "publish digest failed", "error", err)
	}
	return nil
}

// academicResearch runs every registered unit concurrently and merges what
// they found. A failing unit only loses its own contribution.
func (p *Pipeline) academicResearch(ctx context.Context, sc *session.Context, topic string) error {
	log := sc.Logger.With("component", "usecase.academic")
	units := p.units.Units()
	results := make(map[string]research.Findings, len(units))

	var (
		mu   sync.Mutex
		done int
		g    errgroup.Group
	)
	for _, u := range units {
		g.Go(func() error {
			res := research.Guard(ctx, sc, u, topic)
			mu.Lock()
			results[u.Name()] = res.Value
			done++
			sc.Progress.SetCompleted(float64(done))
			mu.Unlock()

			switch res.Outcome {
			case domain.OutcomeFatal:
				return fmt.Errorf("%s research: %w", u.Name(), res.Err)
			case domain.OutcomeProviderFailed:
				log.WarnContext(ctx, "research unit degraded", "unit", u.Name(), "error", res.Err)
			case domain.OutcomeNoData:
				log.InfoContext(ctx, "research unit found nothing", "unit", u.Name())
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	sources, insights := research.CombineInsights(results)
	sc.Update(func(s *domain.ResearchSession) {
		s.AcademicSources = sources
		s.Insights = insights
	})
	log.InfoContext(ctx, fmt.Sprintf("Collected %d arXiv papers, %d DOI papers, %d academic PDFs and %d statistics sources",
		len(sources.ArxivPapers), len(sources.DOIPapers), len(sources.AcademicPDFs), len(sources.StatisticsSources)), "high_level", true)
	return nil
}

// deepResearch researches the selected subtopics in fixed batches. Every
// task of a batch is awaited before the sufficiency gate is checked.
func (p *Pipeline) deepResearch(ctx context.Context, sc *session.Context, topic string, selected []domain.Subtopic) error {
	log := sc.Logger.With("component", "usecase.deep_research")
	academic := sc.Snapshot().AcademicSources
	n := len(selected)
	batches := (n + p.subtopicBatch - 1) / p.subtopicBatch

	for start := 0; start < n; start += p.subtopicBatch {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("deep research: %w", err)
		}
		end := min(start+p.subtopicBatch, n)
		log.InfoContext(ctx, fmt.Sprintf("Processing subtopic batch %d/%d", start/p.subtopicBatch+1, batches), "high_level", true)

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			log.InfoContext(ctx, fmt.Sprintf("Starting research for subtopic %d/%d: %s", i+1, n, selected[i].Name), "high_level", true)
			wg.Go(func() {
				p.researchSubtopic(ctx, sc, topic, selected[i], academic)
				sc.Progress.SetCompleted(deepCompletion(i, n))
			})
		}
		wg.Wait()
		p.persist(ctx, sc)

		snap := sc.Snapshot()
		if optimizer.HasSufficientResearch(snap) {
			log.InfoContext(ctx, "Sufficient research gathered for quality paper. Proceeding to content generation.", "high_level", true)
			break
		}
	}
	return nil
}

func (p *Pipeline) researchSubtopic(ctx context.Context, sc *session.Context, topic string, sub domain.Subtopic, academic domain.AcademicSources) {
	defer func() {
		if r := recover(); r != nil {
			sc.RecordError(ctx, "Error researching subtopic "+sub.Name, fmt.Errorf("panic: %v", r))
			sc.Update(func(s *domain.ResearchSession) {
				s.PutSection(domain.Section{
					Subtopic:   sub.Name,
					Content:    limitedSection,
					Sources:    []string{},
					ArticleIDs: []string{},
				})
			})
		}
	}()

	res := p.subtopics.Research(ctx, sc, topic, sub, academic)
	if res.Outcome == domain.OutcomeProviderFailed {
		sc.Logger.WarnContext(ctx, "subtopic research degraded", "subtopic", sub.Name, "error", res.Err)
	}
	sc.Update(func(s *domain.ResearchSession) { s.PutSection(res.Value) })
}

type draftSet struct {
	abstract   string
	conclusion string
}

// draft writes the abstract and the conclusion concurrently.
func (p *Pipeline) draft(ctx context.Context, sc *session.Context, topic string, sections []domain.Section, insights domain.Insights) (draftSet, error) {
	conclusion := goFuture(func() (string, error) {
		return p.writer.Conclusion(ctx, sc, topic, sections, insights).Value, nil
	})
	d := draftSet{abstract: p.writer.Abstract(ctx, sc, topic, sections, insights).Value}
	var err error
	d.conclusion, err = conclusion.wait()
	return d, err
}

// assemble composes the markdown from the current snapshot. A failing
// composition degrades to the minimal layout.
func (p *Pipeline) assemble(ctx context.Context, sc *session.Context) {
	doc := p.documentOf(sc)
	markdown := func() (md string) {
		defer func() {
			if r := recover(); r != nil {
				sc.RecordError(ctx, "Error generating markdown", fmt.Errorf("panic: %v", r))
				md = document.Fallback(doc)
			}
		}()
		return document.Compose(doc)
	}()
	sc.Update(func(s *domain.ResearchSession) { s.Markdown = markdown })
	sc.Logger.InfoContext(ctx, "Generating final markdown document", "high_level", true)
}

// finish hands the document to the renderer. A renderer failure keeps the
// in-memory markdown and is recorded, not fatal.
func (p *Pipeline) finish(ctx context.Context, sc *session.Context) {
	doc := p.documentOf(sc)
	path, err := p.renderer.Render(ctx, sc.ID(), doc)
	if err != nil {
		sc.RecordError(ctx, "Error rendering final document", err)
		return
	}
	sc.Update(func(s *domain.ResearchSession) { s.MarkdownFile = path })
	if path != "" {
		sc.Logger.InfoContext(ctx, "Research paper saved to: "+path, "high_level", true)
	}
}

func (p *Pipeline) documentOf(sc *session.Context) domain.Document {
	snap := sc.Snapshot()
	return domain.Document{
		Topic:      snap.Topic,
		Title:      snap.Title,
		Abstract:   snap.Abstract,
		Sections:   snap.OrderedSections(),
		Conclusion: snap.Conclusion,
		Insights:   snap.Insights,
		Tables:     snap.Tables,
		Papers:     snap.AcademicSources.ArxivPapers,
		References: snap.ReferencesSection,
		Markdown:   snap.Markdown,
		Date:       sc.Now(),
	}
}

// step moves progress to step n, runs fn and persists the snapshot on both
// edges. subtasks overrides the step's default subtask list when non-nil.
func (p *Pipeline) step(ctx context.Context, sc *session.Context, n int, subtasks []string, fn func() error) error {
	spec := steps[n-1]
	if subtasks == nil {
		subtasks = spec.subtasks
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", spec.name, err)
	}

	started := time.Now()
	sc.Progress.UpdateStep(n, spec.name, spec.details, subtasks, 0)
	p.logProgress(ctx, sc)
	p.persist(ctx, sc)

	if err := fn(); err != nil {
		return fmt.Errorf("%s: %w", spec.name, err)
	}

	sc.Progress.CompleteCurrentStep()
	metrics.RecordStep(spec.name, time.Since(started).Seconds())
	p.logProgress(ctx, sc)
	p.persist(ctx, sc)
	return nil
}

func (p *Pipeline) logProgress(ctx context.Context, sc *session.Context) {
	pr := sc.Progress.Snapshot()
	pct := 0
	if pr.MaxSteps > 0 {
		pct = pr.CurrentStep * 100 / pr.MaxSteps
	}
	msg := fmt.Sprintf("Progress update: Step %d/%d - %s - %d%%", pr.CurrentStep, pr.MaxSteps, pr.StepName, pct)
	if n := len(pr.Subtasks); n > 0 {
		msg += fmt.Sprintf(" (Subtasks: %g/%d)", min(pr.CompletedSubtasks, float64(n)), n)
	}
	sc.Logger.InfoContext(ctx, msg, "high_level", true)
}

// persist writes the full snapshot through to the session store.
func (p *Pipeline) persist(ctx context.Context, sc *session.Context) {
	if err := p.sessions.Save(ctx, sc.Snapshot()); err != nil {
		sc.Logger.WarnContext(ctx, "persist session failed", "error", err)
	}
}

func buildDigestMessage(s domain.ResearchSession) string {
	u := s.URLTracking
	return fmt.Sprintf("Research completed: %s\nTopic: %s\nStatus: %s\nWords: %d\nSections: %d\n"+
		"Sources: %d web, %d arXiv, %d DOI, %d academic PDF, %d statistics, %d Wikipedia\n%s\n",
		s.Title, s.Topic, s.Status, session.WordCount(s), len(s.Sections),
		u.WebPage, u.Arxiv, u.DOI, u.AcademicPDF, u.Statistics, u.Wikipedia, s.MarkdownFile)
}

package document

import (
	"context"
	"fmt"
	"strings"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/session"
)

const (
	insightsPromptLimit = 300
	sectionDigestLimit  = 250
)

// Abstract drafts the paper abstract from the section titles and the
// literature review.
func (w *Writer) Abstract(ctx context.Context, sc *session.Context, topic string, sections []domain.Section, insights domain.Insights) domain.Result[string] {
	titles := make([]string, 0, len(sections))
	for _, sec := range sections {
		titles = append(titles, sec.Subtopic)
	}

	prompt := fmt.Sprintf(`You are writing an abstract for a research paper on "%s".
The paper covers these sections: %s.

Academic insights from published papers:
%s

Write a natural, engaging abstract (250-300 words) that introduces the topic and its significance,
mentions the main aspects covered, highlights key findings and ends with the implications of the research.`,
		topic, strings.Join(titles, ", "), clip(insights.LiteratureReview, insightsPromptLimit))

	sc.Logger.InfoContext(ctx, "Generating abstract for the research paper", "high_level", true)
	abstract, err := w.ask(ctx, sc, prompt)
	if err != nil || abstract == "" {
		if err == nil {
			err = fmt.Errorf("abstract: empty answer")
		}
		sc.Logger.WarnContext(ctx, "abstract generation failed, using fallback", "error", err)
		return domain.ProviderFailed(fallbackAbstract(topic, titles), err)
	}
	sc.Logger.InfoContext(ctx, fmt.Sprintf("Abstract generated successfully (%d characters)", len(abstract)), "high_level", true)
	return domain.OK(abstract)
}

// Conclusion drafts the closing section from a digest of every section.
func (w *Writer) Conclusion(ctx context.Context, sc *session.Context, topic string, sections []domain.Section, insights domain.Insights) domain.Result[string] {
	digests := make([]string, 0, len(sections))
	for _, sec := range sections {
		summary := sec.Content
		if len(summary) > sectionDigestLimit {
			summary = summary[:sectionDigestLimit] + "..."
		}
		digests = append(digests, fmt.Sprintf("Section '%s': %s", sec.Subtopic, summary))
	}

	prompt := fmt.Sprintf(`You are writing the conclusion for a research paper on "%s".
The paper includes these sections with the following key points:

%s

Academic insights from published papers:
%s

Write a thoughtful conclusion (600-800 words) that summarizes and synthesizes the findings,
relates them to the literature, discusses limitations and suggests directions for future research.`,
		topic, strings.Join(digests, "\n"), clip(insights.LiteratureReview, insightsPromptLimit))

	sc.Logger.InfoContext(ctx, "Generating conclusion for the research paper", "high_level", true)
	conclusion, err := w.ask(ctx, sc, prompt)
	if err != nil || conclusion == "" {
		if err == nil {
			err = fmt.Errorf("conclusion: empty answer")
		}
		sc.Logger.WarnContext(ctx, "conclusion generation failed, using fallback", "error", err)
		return domain.ProviderFailed(fallbackConclusion(topic), err)
	}
	sc.Logger.InfoContext(ctx, fmt.Sprintf("Conclusion generated successfully (%d characters)", len(conclusion)), "high_level", true)
	return domain.OK(conclusion)
}

func fallbackAbstract(topic string, titles []string) string {
	if len(titles) == 0 {
		return fmt.Sprintf("This paper examines %s based on the available research.", topic)
	}
	return fmt.Sprintf("This paper examines %s, covering %s.", topic, strings.Join(titles, ", "))
}

func fallbackConclusion(topic string) string {
	return fmt.Sprintf("The sections above summarise the current state of knowledge on %s. Further research is needed to address the open questions they raise.", topic)
}

package document

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
)

const genericIntroduction = "This research paper examines %s from multiple perspectives, analyzing various aspects and implications. " +
	"The following sections explore different dimensions of this topic based on current research and available information."

var (
	introMarkers    = []string{"introduction", "overview", "background"}
	informalMarkers = []string{"wikipedia", "blog", "medium"}
	sourceURL       = regexp.MustCompile(`https?://\S+`)
)

// Compose assembles the full markdown document.
func Compose(doc domain.Document) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", doc.Title)
	if !doc.Date.IsZero() {
		fmt.Fprintf(&b, "*%s*\n\n", doc.Date.Format("January 2, 2006"))
	}

	intro := -1
	for i, sec := range doc.Sections {
		if containsAny(strings.ToLower(sec.Subtopic), introMarkers) {
			intro = i
			break
		}
	}

	b.WriteString("## Table of Contents\n\n")
	b.WriteString("1. Abstract\n2. Introduction\n")
	n := 3
	for i, sec := range doc.Sections {
		if i == intro {
			continue
		}
		fmt.Fprintf(&b, "%d. %s\n", n, sec.Subtopic)
		n++
	}
	fmt.Fprintf(&b, "%d. Conclusion\n%d. References\n\n", n, n+1)

	fmt.Fprintf(&b, "## Abstract\n\n%s\n\n", doc.Abstract)

	b.WriteString("## Introduction\n\n")
	if intro >= 0 {
		fmt.Fprintf(&b, "%s\n\n", doc.Sections[intro].Content)
	} else {
		fmt.Fprintf(&b, genericIntroduction+"\n\n", doc.Topic)
	}

	if doc.Insights.LiteratureReview != "" {
		fmt.Fprintf(&b, "## Literature Review\n\n%s\n\n", doc.Insights.LiteratureReview)
	}
	if len(doc.Papers) > 0 {
		for _, p := range doc.Papers {
			fmt.Fprintf(&b, "* %s (%s)\n", p.Title, p.Published)
		}
		b.WriteString("\n")
	}

	for i, sec := range doc.Sections {
		if i == intro {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", sec.Subtopic, sec.Content)
	}

	if len(doc.Tables) > 0 {
		b.WriteString("## Data Analysis\n\n")
		for _, t := range doc.Tables {
			fmt.Fprintf(&b, "%s\n\n", t.Markdown)
		}
	}

	fmt.Fprintf(&b, "## Conclusion\n\n%s\n\n", doc.Conclusion)

	b.WriteString("## References\n\n")
	if len(doc.Insights.Citations) > 0 {
		b.WriteString("### Academic Sources\n\n")
		for _, c := range doc.Insights.Citations {
			fmt.Fprintf(&b, "* %s\n", c)
		}
		b.WriteString("\n")
	}
	if doc.References != "" {
		fmt.Fprintf(&b, "%s\n\n", strings.TrimSpace(doc.References))
	}

	if informal := informalSources(doc.Sections); len(informal) > 0 {
		b.WriteString("## Learned From Resources\n\n")
		b.WriteString("The following resources provided background that informed the analysis without being cited directly:\n\n")
		for _, s := range informal {
			fmt.Fprintf(&b, "* %s: %s\n", resourceKind(s), s)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Fallback is the minimal document written when Compose cannot be used.
func Fallback(doc domain.Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n## Abstract\n\n%s\n\n", doc.Title, doc.Abstract)
	for _, sec := range doc.Sections {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", sec.Subtopic, sec.Content)
	}
	fmt.Fprintf(&b, "## Conclusion\n\n%s\n\n", doc.Conclusion)
	return b.String()
}

func informalSources(sections []domain.Section) []string {
	seen := map[string]bool{}
	var out []string
	for _, sec := range sections {
		for _, s := range sec.Sources {
			if seen[s] {
				continue
			}
			seen[s] = true
			if containsAny(strings.ToLower(s), informalMarkers) {
				out = append(out, s)
			}
		}
	}
	return out
}

func resourceKind(source string) string {
	lower := strings.ToLower(source)
	switch {
	case strings.Contains(lower, "wikipedia"):
		return "Wikipedia"
	case strings.Contains(lower, "blog"), strings.Contains(lower, "medium"):
		return "Blog post"
	case sourceURL.MatchString(source):
		return "Web resource"
	default:
		return "Resource"
	}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

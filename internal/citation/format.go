package citation

import (
	"fmt"
	"strings"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
)

// Style selects a citation template.
type Style string

const (
	StyleAPA     Style = "apa"
	StyleMLA     Style = "mla"
	StyleIEEE    Style = "ieee"
	StyleChicago Style = "chicago"
	StyleHarvard Style = "harvard"
)

// ParseStyle maps a config value to a Style, defaulting to APA.
func ParseStyle(value string) Style {
	switch Style(strings.ToLower(strings.TrimSpace(value))) {
	case StyleMLA:
		return StyleMLA
	case StyleIEEE:
		return StyleIEEE
	case StyleChicago:
		return StyleChicago
	case StyleHarvard:
		return StyleHarvard
	default:
		return StyleAPA
	}
}

// Format renders ref in the given style. Chicago and Harvard use the APA template.
func Format(ref domain.SourceReference, style Style) string {
	switch style {
	case StyleMLA:
		return formatMLA(ref)
	case StyleIEEE:
		return formatIEEE(ref)
	default:
		return formatAPA(ref)
	}
}

func leadAuthors(authors []string, conjunction string) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return authors[0] + ". "
	case 2:
		return fmt.Sprintf("%s %s %s. ", authors[0], conjunction, authors[1])
	default:
		return authors[0] + " et al. "
	}
}

func arxivID(url string) string {
	url = strings.TrimRight(url, "/")
	if i := strings.LastIndex(url, "/"); i >= 0 {
		return url[i+1:]
	}
	return url
}

func formatAPA(ref domain.SourceReference) string {
	var b strings.Builder
	b.WriteString(leadAuthors(ref.Authors, "&"))
	if ref.PublicationDate != "" {
		fmt.Fprintf(&b, "(%s). ", ref.PublicationDate)
	}
	b.WriteString(ref.Title + ". ")

	switch {
	case ref.SourceType == domain.SourceJournal && ref.Journal != "":
		b.WriteString(ref.Journal)
		if ref.DOI != "" {
			b.WriteString(". https://doi.org/" + ref.DOI)
		}
	case ref.SourceType == domain.SourceArxiv:
		b.WriteString("arXiv preprint arXiv:" + arxivID(ref.URL))
	case ref.SourceType == domain.SourceBook && ref.Publisher != "":
		b.WriteString(ref.Publisher)
	default:
		b.WriteString("Retrieved from " + ref.URL)
	}
	return b.String()
}

func formatMLA(ref domain.SourceReference) string {
	var b strings.Builder
	b.WriteString(leadAuthors(ref.Authors, "and"))
	fmt.Fprintf(&b, "\"%s.\" ", ref.Title)

	switch {
	case ref.SourceType == domain.SourceJournal && ref.Journal != "":
		b.WriteString(ref.Journal)
	case ref.SourceType == domain.SourceArxiv:
		b.WriteString("arXiv")
	case ref.SourceType == domain.SourceBook && ref.Publisher != "":
		b.WriteString(ref.Publisher)
	default:
		b.WriteString(ref.URL)
	}
	if ref.PublicationDate != "" {
		b.WriteString(", " + ref.PublicationDate)
	}
	return b.String()
}

func formatIEEE(ref domain.SourceReference) string {
	if ref.CitationNumber > 0 {
		return fmt.Sprintf("[%d] ", ref.CitationNumber)
	}

	var b strings.Builder
	switch n := len(ref.Authors); {
	case n == 1:
		b.WriteString(ref.Authors[0] + ", ")
	case n > 1:
		for _, a := range ref.Authors[:n-1] {
			b.WriteString(a + ", ")
		}
		b.WriteString("and " + ref.Authors[n-1] + ", ")
	}
	fmt.Fprintf(&b, "\"%s,\" ", ref.Title)

	switch {
	case ref.SourceType == domain.SourceJournal && ref.Journal != "":
		b.WriteString(ref.Journal)
		if ref.PublicationDate != "" {
			b.WriteString(", " + ref.PublicationDate)
		}
	case ref.SourceType == domain.SourceArxiv:
		b.WriteString("arXiv preprint arXiv:" + arxivID(ref.URL))
	case ref.SourceType == domain.SourceBook && ref.Publisher != "":
		b.WriteString(ref.Publisher)
		if ref.PublicationDate != "" {
			b.WriteString(", " + ref.PublicationDate)
		}
	default:
		b.WriteString("Retrieved from " + ref.URL)
		if ref.PublicationDate != "" {
			b.WriteString(", " + ref.PublicationDate)
		}
	}
	return b.String()
}

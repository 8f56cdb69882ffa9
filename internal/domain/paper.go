package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// SourceType represents the external index that provided paper data.
type SourceType string

const (
	SourceTypeOpenAlex        SourceType = "openalex"
	SourceTypeSemanticScholar SourceType = "semantic_scholar"
)

// PaperIdentifiers holds the external identifiers a search source may report
// for a paper.
type PaperIdentifiers struct {
	DOI               string
	OpenAlexID        string
	SemanticScholarID string
}

// GenerateCanonicalID generates a canonical identifier from paper identifiers.
// Priority order: DOI > OpenAlex > SemanticScholar.
// Returns empty string if no identifiers are available.
func GenerateCanonicalID(ids PaperIdentifiers) string {
	if doi := strings.TrimSpace(ids.DOI); doi != "" {
		// Normalize DOI to lowercase
		return "doi:" + strings.ToLower(doi)
	}

	if openalex := strings.TrimSpace(ids.OpenAlexID); openalex != "" {
		return "openalex:" + openalex
	}

	if s2 := strings.TrimSpace(ids.SemanticScholarID); s2 != "" {
		return "s2:" + s2
	}

	return ""
}

// FingerprintTitle derives a stable paper identifier from the normalized
// title and publication year, used when no external identifier is available.
func FingerprintTitle(title string, year int) string {
	normalized := normalizeForFingerprint(title)
	return "title:" + contentHash(fmt.Sprintf("%s|%d", normalized, year))
}

// FingerprintPaper returns the paper identifier for a raw record: the
// canonical external ID when one exists, otherwise the title fingerprint.
// Repeated sightings of the same paper always collapse to the same ID.
func FingerprintPaper(ids PaperIdentifiers, title string, year int) string {
	if canonical := GenerateCanonicalID(ids); canonical != "" {
		return canonical
	}
	return FingerprintTitle(title, year)
}

// normalizeForFingerprint lowercases, strips non-alphanumeric runes and
// collapses whitespace so trivial formatting differences do not change the
// resulting identity.
func normalizeForFingerprint(s string) string {
	var sb strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				sb.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(sb.String())
}

func contentHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}

// Author represents a paper author with the institutions the source reported
// for them.
type Author struct {
	Name         string   `json:"name"`
	Institutions []string `json:"institutions,omitempty"`
	ORCID        string   `json:"orcid,omitempty"`
}

// String returns a formatted string representation of the author.
func (a Author) String() string {
	var sb strings.Builder
	sb.WriteString(a.Name)

	if len(a.Institutions) > 0 {
		sb.WriteString(" (")
		sb.WriteString(strings.Join(a.Institutions, "; "))
		sb.WriteString(")")
	}

	return sb.String()
}

// Paper represents an academic paper retrieved by the search stage.
// Papers are read-only once the search stage has produced them.
type Paper struct {
	ID        string   `json:"paper_id"`
	Title     string   `json:"title"`
	Year      int      `json:"year"`
	Abstract  string   `json:"abstract,omitempty"`
	Authors   []Author `json:"authors"`
	Topics    []string `json:"topics,omitempty"`
	Citations int      `json:"citations,omitempty"`
}

// HasAbstract returns true if the paper carries a non-empty abstract.
func (p *Paper) HasAbstract() bool {
	return strings.TrimSpace(p.Abstract) != ""
}

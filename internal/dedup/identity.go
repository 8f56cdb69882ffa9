// Package dedup provides name normalization and content-fingerprint identity
// for professors and institutions, so repeated sightings of the same entity
// collapse to a single stable identifier.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// ProfessorID derives the stable identifier for a professor from the
// normalized name and primary institution. Two raw author records with the
// same normalized name and primary institution always yield the same ID
// regardless of discovery order.
func ProfessorID(name, primaryInstitution string) string {
	key := NormalizeName(name) + "|" + NormalizeInstitution(primaryInstitution)
	return "prof:" + fingerprint(key)
}

// InstitutionID derives the stable identifier for an institution node.
func InstitutionID(name string) string {
	return "inst:" + fingerprint(NormalizeInstitution(name))
}

func fingerprint(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}

// NormalizeName normalizes an author name for identity comparison:
//   - Converts to lowercase
//   - Detects and reorders "Last, First" format to "First Last"
//   - Removes all non-letter, non-space characters (apostrophes, periods, hyphens, etc.)
//   - Collapses multiple spaces to a single space
//   - Trims leading and trailing whitespace
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	// Convert to lowercase first.
	name = strings.ToLower(name)

	// Handle "Last, First" format: split on comma, swap parts.
	if idx := strings.Index(name, ","); idx >= 0 {
		last := strings.TrimSpace(name[:idx])
		first := strings.TrimSpace(name[idx+1:])
		if first != "" {
			name = first + " " + last
		} else {
			name = last
		}
	}

	// Remove non-letter, non-space characters.
	var sb strings.Builder
	sb.Grow(len(name))
	prevSpace := false

	for _, r := range name {
		if unicode.IsLetter(r) {
			sb.WriteRune(r)
			prevSpace = false
		} else if unicode.IsSpace(r) {
			if !prevSpace && sb.Len() > 0 {
				sb.WriteRune(' ')
				prevSpace = true
			}
		}
		// All other characters (apostrophes, periods, hyphens) are dropped.
	}

	return strings.TrimRight(sb.String(), " ")
}

// NormalizeInstitution normalizes an institution name for identity
// comparison. Unlike author names, digits are kept (e.g. "ETH Zurich" vs
// research centers carrying numbers in their names).
func NormalizeInstitution(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}

	var sb strings.Builder
	sb.Grow(len(name))
	prevSpace := false

	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			prevSpace = false
		} else if unicode.IsSpace(r) || r == '-' || r == '/' {
			if !prevSpace && sb.Len() > 0 {
				sb.WriteRune(' ')
				prevSpace = true
			}
		}
	}

	return strings.TrimRight(sb.String(), " ")
}

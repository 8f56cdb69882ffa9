// Package cv handles uploaded CVs: concept extraction through the LLM and an
// in-memory registry of extracted documents keyed by CV id.
package cv

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deepscience/research-graph-service/internal/domain"
)

// textPreviewLimit bounds how much raw CV text is retained for later prompt
// building (outreach emails quote a short excerpt, never the full document).
const textPreviewLimit = 500

// Store is an in-memory registry of processed CVs. It is safe for concurrent
// use. Documents do not survive a restart; a CV must be re-uploaded after one.
type Store struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*storeEntry
}

type storeEntry struct {
	doc         domain.CVDocument
	textPreview string
}

// NewStore creates an empty CV store.
func NewStore() *Store {
	return &Store{
		entries: make(map[uuid.UUID]*storeEntry),
	}
}

// Add registers a processed CV and returns its document record. Only a short
// text preview is retained alongside the extracted concepts.
func (s *Store) Add(filename, text string, concepts []string) *domain.CVDocument {
	doc := domain.CVDocument{
		ID:         uuid.New(),
		Filename:   filename,
		Concepts:   append([]string(nil), concepts...),
		UploadedAt: time.Now().UTC(),
	}

	preview := strings.TrimSpace(text)
	if len(preview) > textPreviewLimit {
		preview = preview[:textPreviewLimit]
	}

	s.mu.Lock()
	s.entries[doc.ID] = &storeEntry{doc: doc, textPreview: preview}
	s.mu.Unlock()

	cp := doc
	cp.Concepts = append([]string(nil), doc.Concepts...)
	return &cp
}

// Get returns the document for the given CV id, or false when unknown.
func (s *Store) Get(id uuid.UUID) (*domain.CVDocument, bool) {
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	cp := entry.doc
	cp.Concepts = append([]string(nil), entry.doc.Concepts...)
	return &cp, true
}

// TextPreview returns the retained excerpt of the CV text, or false when the
// CV is unknown.
func (s *Store) TextPreview(id uuid.UUID) (string, bool) {
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	return entry.textPreview, true
}

// Concepts returns the concept list for the CV, or nil when unknown. This
// satisfies the pipeline's concept source dependency.
func (s *Store) Concepts(id uuid.UUID) []string {
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return append([]string(nil), entry.doc.Concepts...)
}

package searchindex

import (
	"context"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/flowershow/contentsync/internal/common/apperrors"
	"github.com/flowershow/contentsync/internal/common/uuid"
)

type MemoryIndex struct {
	mu   sync.RWMutex
	docs map[uuid.UUID]map[string]Document
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{docs: make(map[uuid.UUID]map[string]Document)}
}

func (m *MemoryIndex) Upsert(ctx context.Context, siteID uuid.UUID, docID string, doc Document) apperrors.Error {
	m.mu.Lock()
	defer m.mu.Unlock()
	site, ok := m.docs[siteID]
	if !ok {
		site = make(map[string]Document)
		m.docs[siteID] = site
	}
	doc.Authors = append([]string(nil), doc.Authors...)
	site[docID] = doc
	return nil
}

func (m *MemoryIndex) Delete(ctx context.Context, siteID uuid.UUID, docID string) apperrors.Error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs[siteID], docID)
	return nil
}

func (m *MemoryIndex) DeleteSite(ctx context.Context, siteID uuid.UUID) apperrors.Error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, siteID)
	return nil
}

// fold puts s in NFC and case folds it, so "Café" typed precomposed
// matches "cafe\u0301" stored decomposed.
func fold(caser cases.Caser, s string) string {
	return caser.String(norm.NFC.String(s))
}

// Search matches documents containing every query term in their title,
// description or content, ordered by path.
func (m *MemoryIndex) Search(ctx context.Context, siteID uuid.UUID, query string, limit int) ([]Document, apperrors.Error) {
	caser := cases.Fold()
	terms := strings.Fields(fold(caser, query))
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Document
	for _, doc := range m.docs[siteID] {
		text := fold(caser, doc.Title+" "+doc.Description+" "+doc.Content)
		match := true
		for _, term := range terms {
			if !strings.Contains(text, term) {
				match = false
				break
			}
		}
		if match {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Get returns a stored document.
func (m *MemoryIndex) Get(siteID uuid.UUID, docID string) (Document, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[siteID][docID]
	return doc, ok
}

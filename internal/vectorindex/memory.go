package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"intellidoc/internal/util"
)

// Memory is a map-backed Index using brute-force cosine similarity.
// It backs tests and index-free local runs.
type Memory struct {
	mu        sync.RWMutex
	dimension int
	entries   map[string]*memoryEntry
	seq       int64
}

type memoryEntry struct {
	entry Entry
	seq   int64 // insertion recency, used as the search tie-break
}

func NewMemory() *Memory {
	return &Memory{entries: map[string]*memoryEntry{}}
}

func (m *Memory) EnsureCollection(ctx context.Context, dimension int) error {
	_ = ctx
	if dimension <= 0 {
		return fmt.Errorf("%w: invalid vector dimension %d", util.ErrValidation, dimension)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dimension != 0 && m.dimension != dimension {
		return fmt.Errorf("%w: collection has dimension %d, want %d", util.ErrIntegrity, m.dimension, dimension)
	}
	m.dimension = dimension
	return nil
}

func (m *Memory) Upsert(ctx context.Context, entries []Entry) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		if m.dimension != 0 && len(e.Vector) != m.dimension {
			return fmt.Errorf("%w: vector %s has dimension %d, want %d", util.ErrIntegrity, e.ID, len(e.Vector), m.dimension)
		}
		m.seq++
		m.entries[e.ID] = &memoryEntry{entry: e, seq: m.seq}
	}
	return nil
}

func (m *Memory) Search(ctx context.Context, vector []float32, limit int, scoreThreshold float64) ([]Hit, error) {
	_ = ctx
	if limit <= 0 {
		limit = 5
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		hit Hit
		seq int64
	}
	candidates := make([]scored, 0, len(m.entries))
	for _, me := range m.entries {
		score := cosine(me.entry.Vector, vector)
		if score < scoreThreshold {
			continue
		}
		candidates = append(candidates, scored{
			hit: Hit{ID: me.entry.ID, Score: score, Payload: me.entry.Payload},
			seq: me.seq,
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].hit.Score != candidates[j].hit.Score {
			return candidates[i].hit.Score > candidates[j].hit.Score
		}
		return candidates[i].seq > candidates[j].seq
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	hits := make([]Hit, 0, len(candidates))
	for _, c := range candidates {
		hits = append(hits, c.hit)
	}
	return hits, nil
}

func (m *Memory) DeleteByIDs(ctx context.Context, ids []string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.entries, id)
	}
	return nil
}

func (m *Memory) DeleteByDocument(ctx context.Context, documentID string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, me := range m.entries {
		if me.entry.Payload.DocumentID == documentID {
			delete(m.entries, id)
		}
	}
	return nil
}

// Len reports the number of stored entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

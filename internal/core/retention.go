package core

import (
	"cmp"
	"fmt"
	"slices"
	"time"
)

// DefaultRetentionWindow is how many datasets are kept when not configured.
const DefaultRetentionWindow = 5

// RetentionPolicy keeps the newest K datasets and evicts the rest.
type RetentionPolicy struct {
	window int
}

// NewRetentionPolicy creates a policy that keeps window datasets.
func NewRetentionPolicy(window int) (*RetentionPolicy, error) {
	if window < 1 {
		return nil, fmt.Errorf("retention window must be at least 1, got %d", window)
	}
	return &RetentionPolicy{window: window}, nil
}

// Window returns K.
func (p *RetentionPolicy) Window() int { return p.window }

// RetentionDecision partitions a history into survivors and evictions.
type RetentionDecision struct {
	Keep  []int64
	Evict []int64
}

// Decide keeps the first K identities of a newest-first history and evicts
// the remainder. An identity listed in Keep is never also listed in Evict.
func (p *RetentionPolicy) Decide(ordered []int64) RetentionDecision {
	n := min(p.window, len(ordered))
	d := RetentionDecision{
		Keep:  make([]int64, 0, n),
		Evict: make([]int64, 0, len(ordered)-n),
	}
	kept := make(map[int64]struct{}, n)
	for _, id := range ordered[:n] {
		kept[id] = struct{}{}
		d.Keep = append(d.Keep, id)
	}
	for _, id := range ordered[n:] {
		if _, ok := kept[id]; ok {
			continue
		}
		d.Evict = append(d.Evict, id)
	}
	return d
}

// HistoryEntry is the part of a dataset record that orders it.
type HistoryEntry struct {
	ID        int64
	CreatedAt time.Time
}

// OrderHistory returns identities newest first. Equal timestamps fall back
// to the identity, higher first, since identities are issued in order.
func OrderHistory(entries []HistoryEntry) []int64 {
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b HistoryEntry) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	ids := make([]int64, len(sorted))
	for i, e := range sorted {
		ids[i] = e.ID
	}
	return ids
}

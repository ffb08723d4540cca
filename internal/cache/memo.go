package cache

import (
	"context"

	"github.com/ppiankov/qidlink/internal/model"
)

// MemoDetails decorates a DetailSource with a run-scoped memo.
// Only successful lookups are stored, so a transient failure for one
// candidate does not suppress the bonus for a later candidate with the same id.
type MemoDetails struct {
	next     DetailSource
	cache    *MemoryCache
	observer Observer
}

// NewMemoDetails wraps next with the given cache
func NewMemoDetails(next DetailSource, cache *MemoryCache, observer Observer) *MemoDetails {
	if observer == nil {
		observer = func(string) {}
	}
	return &MemoDetails{next: next, cache: cache, observer: observer}
}

// Entity returns the cached detail or looks it up
func (m *MemoDetails) Entity(ctx context.Context, id string) (*model.EntityDetail, error) {
	if detail, ok := m.cache.Get(id); ok {
		m.observer("hit")
		return detail, nil
	}

	detail, err := m.next.Entity(ctx, id)
	if err != nil {
		m.observer("error")
		return nil, err
	}

	m.observer("miss")
	m.cache.Set(id, detail)
	return detail, nil
}

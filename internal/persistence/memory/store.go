// Package memory provides an in-process activity store for local development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/torhovland/segmentor/internal/domain"
)

// Store keeps activities in a map keyed by activity ID.
type Store struct {
	mu         sync.RWMutex
	activities map[int64]domain.StoredActivity
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{activities: make(map[int64]domain.StoredActivity)}
}

// Upsert implements domain.ActivityStore.
func (s *Store) Upsert(ctx context.Context, activity domain.StoredActivity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	activity.Time = activity.Time.UTC()
	s.activities[activity.ID] = activity
	return nil
}

// ListAll implements domain.ActivityStore. Results are ordered by ID.
func (s *Store) ListAll(ctx context.Context) ([]domain.StoredActivity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.StoredActivity, 0, len(s.activities))
	for _, a := range s.activities {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Len returns the number of stored rows.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.activities)
}

// Package domain defines the activity model and the contracts of its collaborators.
package domain

import (
	"context"
	"sort"
)

// ActivityStore captures persistence operations for synchronised activities.
type ActivityStore interface {
	// Upsert inserts the activity or overwrites name and time of an existing row with the same ID.
	Upsert(ctx context.Context, activity StoredActivity) error
	ListAll(ctx context.Context) ([]StoredActivity, error)
}

// ActivitySource produces the full activity history of the user owning accessToken.
// Implementations enumerate every page before returning.
type ActivitySource interface {
	FetchActivities(ctx context.Context, accessToken string) ([]RawActivity, error)
}

// Service exposes read access to stored activities for the HTTP layer.
type Service struct {
	store ActivityStore
}

// NewService constructs a Service.
func NewService(store ActivityStore) *Service {
	return &Service{store: store}
}

// ListActivities returns every stored activity, newest first.
func (s *Service) ListActivities(ctx context.Context) ([]StoredActivity, error) {
	activities, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(activities, func(i, j int) bool {
		if activities[i].Time.Equal(activities[j].Time) {
			return activities[i].ID > activities[j].ID
		}
		return activities[i].Time.After(activities[j].Time)
	})
	return activities, nil
}

// Package snapshot assembles evaluation record sets from storage and
// keeps a short-lived copy so a burst of evaluations shares one load
// of the fleet.
package snapshot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/openfreight/milepost/internal/domain"
	"github.com/openfreight/milepost/internal/engine"
)

// Service loads record sets from the repository with a refresh window.
// Within the window every caller sees the same snapshot, which keeps
// evaluation cache keys stable between requests.
type Service struct {
	repo    domain.Repository
	refresh time.Duration

	mu       sync.Mutex
	current  *engine.RecordSet
	loadedAt time.Time
	since    time.Time
}

// NewService creates a snapshot service. refresh bounds how stale a
// shared snapshot may be; zero disables sharing entirely.
func NewService(repo domain.Repository, refresh time.Duration) *Service {
	return &Service{repo: repo, refresh: refresh}
}

// RecordSet returns the current snapshot of loads created at or after
// since, reloading from the repository when the shared copy is stale
// or scoped to a different window.
func (s *Service) RecordSet(ctx context.Context, since time.Time) (*engine.RecordSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.refresh > 0 && s.since.Equal(since) && time.Since(s.loadedAt) < s.refresh {
		return s.current, nil
	}

	loads, err := s.repo.ListLoads(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load record set: %w", err)
	}

	rs := engine.NewRecordSet(loads)
	s.current = rs
	s.loadedAt = time.Now()
	s.since = since
	return rs, nil
}

// Invalidate drops the shared snapshot so the next caller reloads.
// Called when loads are written through the API.
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}

// Version returns the fingerprint of the current snapshot, loading one
// if needed.
func (s *Service) Version(ctx context.Context, since time.Time) (string, error) {
	rs, err := s.RecordSet(ctx, since)
	if err != nil {
		return "", err
	}
	return rs.Version(), nil
}

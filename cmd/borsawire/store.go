package main

import (
	"context"

	"github.com/borsawire/borsawire/pkg/repository"
	"github.com/borsawire/borsawire/pkg/scheduler"
)

// sessionStore hands every source run its own database connection
type sessionStore struct {
	repo *repository.Repository
}

// Session opens a dedicated connection, nil interface on error
func (s sessionStore) Session(ctx context.Context) (scheduler.Session, error) {
	sess, err := s.repo.Session(ctx)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

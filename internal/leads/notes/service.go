// Package notes manages free-form commentary on leads.
package notes

import (
	"context"
	"errors"

	"leadpilot_backend/internal/leads/management"
	"leadpilot_backend/internal/leads/pipeline"
	"leadpilot_backend/internal/leads/repository"
	"leadpilot_backend/platform/apperr"

	"github.com/google/uuid"
)

// Store persists notes and resolves the parent lead for visibility checks.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	AddNote(ctx context.Context, leadID, authorID uuid.UUID, body string) (repository.Note, error)
	ListNotes(ctx context.Context, leadID uuid.UUID) ([]repository.Note, error)
	UpdateNote(ctx context.Context, noteID, authorID uuid.UUID, body string) (repository.Note, error)
	DeleteNote(ctx context.Context, noteID, authorID uuid.UUID) error
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) Add(ctx context.Context, actor pipeline.Actor, leadID uuid.UUID, body string) (repository.Note, error) {
	if err := s.checkLeadAccess(ctx, actor, leadID); err != nil {
		return repository.Note{}, err
	}
	return s.store.AddNote(ctx, leadID, actor.ID, body)
}

func (s *Service) List(ctx context.Context, actor pipeline.Actor, leadID uuid.UUID) ([]repository.Note, error) {
	if err := s.checkLeadAccess(ctx, actor, leadID); err != nil {
		return nil, err
	}
	return s.store.ListNotes(ctx, leadID)
}

func (s *Service) Update(ctx context.Context, actor pipeline.Actor, noteID uuid.UUID, body string) (repository.Note, error) {
	note, err := s.store.UpdateNote(ctx, noteID, actor.ID, body)
	if errors.Is(err, repository.ErrNoteNotFound) {
		return repository.Note{}, apperr.NotFound("note not found")
	}
	return note, err
}

func (s *Service) Delete(ctx context.Context, actor pipeline.Actor, noteID uuid.UUID) error {
	err := s.store.DeleteNote(ctx, noteID, actor.ID)
	if errors.Is(err, repository.ErrNoteNotFound) {
		return apperr.NotFound("note not found")
	}
	return err
}

func (s *Service) checkLeadAccess(ctx context.Context, actor pipeline.Actor, leadID uuid.UUID) error {
	lead, err := s.store.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("lead not found")
		}
		return err
	}
	if !management.CanView(actor, lead) {
		return apperr.NotFound("lead not found")
	}
	return nil
}

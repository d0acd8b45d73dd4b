// Package store persists tickets and their delivered copies.
//
// Error Contract:
//   - sentinel.ErrNotFound when the ticket does not exist
//   - sentinel.ErrConflict when a delivery for (ticket, moderator) exists
//   - sentinel.ErrConflict when a ticket with the same source ref exists
//   - wrapped driver errors for infrastructure failures
package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"relay/internal/ticket/models"
	"relay/pkg/platform/sentinel"
)

// InMemoryStore keeps tickets in process memory for tests and
// storage.driver=memory.
type InMemoryStore struct {
	mu         sync.Mutex
	nextID     models.ID
	tickets    map[models.ID]*models.Ticket
	deliveries map[models.ID][]models.DeliveredCopy
	sources    map[string]models.ID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		tickets:    make(map[models.ID]*models.Ticket),
		deliveries: make(map[models.ID][]models.DeliveredCopy),
		sources:    make(map[string]models.ID),
	}
}

func (s *InMemoryStore) CreateTicket(_ context.Context, t *models.Ticket) (models.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.SourceRef != "" {
		if existing, ok := s.sources[t.SourceRef]; ok {
			return 0, fmt.Errorf("source %s already submitted as ticket %d: %w", t.SourceRef, existing, sentinel.ErrConflict)
		}
	}
	s.nextID++
	stored := *t
	stored.ID = s.nextID
	s.tickets[stored.ID] = &stored
	if stored.SourceRef != "" {
		s.sources[stored.SourceRef] = stored.ID
	}
	t.ID = stored.ID
	return stored.ID, nil
}

func (s *InMemoryStore) RecordDelivery(_ context.Context, c models.DeliveredCopy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[c.TicketID]; !ok {
		return fmt.Errorf("ticket %d: %w", c.TicketID, sentinel.ErrNotFound)
	}
	for _, existing := range s.deliveries[c.TicketID] {
		if existing.ModeratorID == c.ModeratorID {
			return fmt.Errorf("delivery of ticket %d to %s already recorded: %w", c.TicketID, c.ModeratorID, sentinel.ErrConflict)
		}
	}
	s.deliveries[c.TicketID] = append(s.deliveries[c.TicketID], c)
	return nil
}

func (s *InMemoryStore) GetTicketForDecision(ctx context.Context, id models.ID) (*models.Ticket, error) {
	return s.FindTicket(ctx, id)
}

func (s *InMemoryStore) FindTicket(_ context.Context, id models.ID) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, fmt.Errorf("ticket %d: %w", id, sentinel.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

// CloseTicket closes a Pending ticket and returns the status it had before
// the call. Exactly one of any number of concurrent callers observes
// StatusPending.
func (s *InMemoryStore) CloseTicket(_ context.Context, id models.ID, c models.Closure) (models.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return "", fmt.Errorf("ticket %d: %w", id, sentinel.ErrNotFound)
	}
	previous := t.Status
	if previous != models.StatusPending {
		return previous, nil
	}
	if err := t.ApplyClosure(c); err != nil {
		return "", err
	}
	return previous, nil
}

func (s *InMemoryStore) ListDeliveries(_ context.Context, id models.ID) ([]models.DeliveredCopy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.deliveries[id]), nil
}

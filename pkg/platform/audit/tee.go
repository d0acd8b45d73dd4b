package audit

import (
	"context"
	"errors"
)

// Tee appends every event to each store in order. All stores are attempted;
// failures are joined.
type Tee []Store

func (t Tee) Append(ctx context.Context, event Event) error {
	var errs []error
	for _, s := range t {
		if s == nil {
			continue
		}
		if err := s.Append(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ListByTicket reads from the first store that can list.
func (t Tee) ListByTicket(ctx context.Context, ticketID int64) ([]Event, error) {
	for _, s := range t {
		if r, ok := s.(Reader); ok {
			return r.ListByTicket(ctx, ticketID)
		}
	}
	return nil, nil
}

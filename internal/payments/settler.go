package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/transpool/internal/models"
)

// PaymentIntents is the hold/capture/cancel surface of a card processor.
type PaymentIntents interface {
	Hold(ctx context.Context, amount int64, currency string, metadata map[string]string) (string, error)
	Capture(ctx context.Context, paymentIntentID string) error
	Cancel(ctx context.Context, paymentIntentID string) error
}

// Settler charges the rider for a committed match. The in-app credit
// ledger has already moved the amount; this mirrors it on the processor.
type Settler struct {
	intents  PaymentIntents
	currency string
}

func NewSettler(intents PaymentIntents, currency string) *Settler {
	return &Settler{intents: intents, currency: currency}
}

// Settle holds and immediately captures the match price. A failed capture
// releases the hold. Free matches are not sent to the processor.
func (s *Settler) Settle(ctx context.Context, m models.MatchDTO) (string, error) {
	if m.TotalPrice <= 0 {
		return "", nil
	}
	id, err := s.intents.Hold(ctx, int64(m.TotalPrice), s.currency, matchMetadata(m.ID, m.Request.RiderID))
	if err != nil {
		return "", fmt.Errorf("payments: hold for match %d: %w", m.ID, err)
	}
	if err := s.intents.Capture(ctx, id); err != nil {
		cerr := s.intents.Cancel(ctx, id)
		return "", errors.Join(fmt.Errorf("payments: capture %s for match %d: %w", id, m.ID, err), cerr)
	}
	return id, nil
}

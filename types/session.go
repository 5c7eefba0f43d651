package types

import (
	"fmt"

	"github.com/google/uuid"
)

// BatchBudget is the pair of limits governing batch packing.
//
// The row-count bound is a packing target every batch satisfies. The
// byte bound is best-effort: packing uses an estimated encoded size,
// and a single row whose estimate alone exceeds MaxBytes is still
// emitted as a singleton batch so the stream always makes progress.
type BatchBudget struct {
	// MaxRows is the maximum number of rows per batch. Must be positive.
	MaxRows int
	// MaxBytes is the advisory maximum estimated payload size per
	// batch, in bytes. Must be positive.
	MaxBytes int
}

// Validate checks that both bounds are positive.
func (b BatchBudget) Validate() error {
	if b.MaxRows <= 0 {
		return fmt.Errorf("budget max rows must be positive, got %d", b.MaxRows)
	}
	if b.MaxBytes <= 0 {
		return fmt.Errorf("budget max bytes must be positive, got %d", b.MaxBytes)
	}
	return nil
}

// StreamSession is the per-call session for one result-streaming call.
// It is created at the start of the call, immutable for its lifetime,
// and discarded after completion or failure. No cross-call state.
type StreamSession struct {
	// ClientID identifies the remote consumer; every emitted message
	// is tagged with it.
	ClientID string
	// StreamID uniquely identifies this streaming call, for log
	// correlation. Assigned at session creation.
	StreamID string
	// Budget bounds every batch emitted during the session.
	Budget BatchBudget
}

// NewSession creates a session for one streaming call, assigning a
// fresh stream id.
func NewSession(clientID string, budget BatchBudget) (*StreamSession, error) {
	if clientID == "" {
		return nil, fmt.Errorf("client id must not be empty")
	}
	if err := budget.Validate(); err != nil {
		return nil, fmt.Errorf("invalid budget: %w", err)
	}

	return &StreamSession{
		ClientID: clientID,
		StreamID: uuid.NewString(),
		Budget:   budget,
	}, nil
}

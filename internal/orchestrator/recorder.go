package orchestrator

import (
	"context"

	"github.com/google/uuid"

	"github.com/qynonyq/ton_transfer_signer/internal/transfer"
)

// Outcome is the terminal result of a confirmed flow.
type Outcome struct {
	FlowID uuid.UUID
	Intent transfer.Intent
	Wallet transfer.Wallet
	Hash   string
	// Fee is nil when emulation failed.
	Fee *int64
	Err error
}

type Recorder interface {
	Record(ctx context.Context, out Outcome) error
}

package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type Transfer struct {
	FlowID        uuid.UUID `gorm:"primaryKey;type:uuid;"`
	Intent        string
	WalletKind    string
	WalletAddress string `gorm:"index;"`
	Hash          string
	// in TON, null when emulation failed
	Fee    decimal.NullDecimal `gorm:"type:numeric;"`
	Status string
	Error  string
	Swap   *StonfiSwap `gorm:"foreignKey:FlowID;references:FlowID;"`
	// when the flow reached its terminal state
	ProcessedAt time.Time
}

package storage

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StonfiSwap keeps the legs of a confirmed swap next to its transfer record.
type StonfiSwap struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement:true;"`
	FlowID       uuid.UUID `gorm:"type:uuid;index;"`
	TokenIn      string
	AmountIn     decimal.Decimal `gorm:"type:numeric;"`
	TokenOut     string
	MinAmountOut decimal.Decimal `gorm:"type:numeric;"`
}

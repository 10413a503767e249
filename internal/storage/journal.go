package storage

import (
	"context"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/qynonyq/ton_transfer_signer/internal/orchestrator"
	"github.com/qynonyq/ton_transfer_signer/internal/transfer"
)

var _ orchestrator.Recorder = (*Journal)(nil)

// Journal persists the outcome of every confirmed flow.
type Journal struct {
	db  *gorm.DB
	now func() time.Time
}

func NewJournal(db *gorm.DB) *Journal {
	return &Journal{
		db:  db,
		now: time.Now,
	}
}

func (j *Journal) Record(ctx context.Context, out orchestrator.Outcome) error {
	rec := transferRecord(out, j.now())

	if err := j.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return err
	}

	logrus.Debugf("[JRN] flow %s saved as %s", rec.FlowID, rec.Status)

	return nil
}

func transferRecord(out orchestrator.Outcome, now time.Time) Transfer {
	rec := Transfer{
		FlowID:        out.FlowID,
		Intent:        out.Intent.Name(),
		WalletKind:    transfer.KindName(out.Wallet.Kind),
		WalletAddress: out.Wallet.Address.String(),
		Hash:          out.Hash,
		Status:        StatusCompleted,
		ProcessedAt:   now,
	}
	if out.Fee != nil {
		rec.Fee = decimal.NewNullDecimal(decimal.New(*out.Fee, -9))
	}
	if out.Err != nil {
		rec.Status = StatusFailed
		rec.Error = out.Err.Error()
	}
	if s, ok := out.Intent.(transfer.Swap); ok {
		rec.Swap = swapRecord(s)
	}

	return rec
}

func swapRecord(s transfer.Swap) *StonfiSwap {
	switch k := s.Kind.(type) {
	case transfer.JettonToJetton:
		return &StonfiSwap{
			TokenIn:      k.From.Master.String(),
			AmountIn:     units(k.Offer, k.From.Decimals),
			TokenOut:     k.To.Master.String(),
			MinAmountOut: units(k.MinAsk, k.To.Decimals),
		}
	case transfer.JettonToTon:
		return &StonfiSwap{
			TokenIn:      k.From.Master.String(),
			AmountIn:     units(k.Offer, k.From.Decimals),
			TokenOut:     transfer.TON.Symbol(),
			MinAmountOut: units(k.MinAsk, transfer.TON.Decimals()),
		}
	case transfer.TonToJetton:
		return &StonfiSwap{
			TokenIn:      transfer.TON.Symbol(),
			AmountIn:     units(k.Offer, transfer.TON.Decimals()),
			TokenOut:     k.To.Master.String(),
			MinAmountOut: units(k.MinAsk, k.To.Decimals),
		}
	default:
		return nil
	}
}

func units(v *big.Int, decimals int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -int32(decimals))
}

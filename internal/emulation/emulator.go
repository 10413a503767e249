package emulation

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qynonyq/ton_transfer_signer/internal/builder"
	"github.com/qynonyq/ton_transfer_signer/internal/chain"
	"github.com/qynonyq/ton_transfer_signer/internal/signer"
	"github.com/qynonyq/ton_transfer_signer/internal/transfer"
)

// Result of a dry run. Extra is negative when the wallet spends.
type Result struct {
	Fee   int64
	Risk  chain.Risk
	Event chain.Event
	Extra int64
}

type Emulator struct {
	builder *builder.Builder
	state   chain.ChainState
	loader  chain.TransactionInfoLoader
	ttl     time.Duration
	now     func() time.Time
}

func NewEmulator(b *builder.Builder, state chain.ChainState, loader chain.TransactionInfoLoader, ttl time.Duration) *Emulator {
	return &Emulator{
		builder: b,
		state:   state,
		loader:  loader,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Estimate builds the transfer with a placeholder signature and asks the
// emulation service what it would cost. Every failure is reported as
// ErrFeeCalculationFailed; callers keep going with an unknown fee.
func (e *Emulator) Estimate(ctx context.Context, w transfer.Wallet, intent transfer.Intent, isMax bool) (*Result, error) {
	res, err := e.estimate(ctx, w, intent, isMax)
	if err != nil {
		logrus.Warnf("[EMU] %s for %s: %s", intent.Name(), w.Address, err)
		return nil, fmt.Errorf("%w: %w", transfer.ErrFeeCalculationFailed, err)
	}

	logrus.Debugf("[EMU] %s for %s: fee %d, extra %d", intent.Name(), w.Address, res.Fee, res.Extra)

	return res, nil
}

func (e *Emulator) estimate(ctx context.Context, w transfer.Wallet, intent transfer.Intent, isMax bool) (*Result, error) {
	snap, err := chain.LoadSnapshot(ctx, e.state, w.Address, e.ttl)
	if err != nil {
		return nil, err
	}

	env, err := e.builder.Build(ctx, builder.Params{
		Wallet:     w,
		Seqno:      snap.Seqno,
		ValidUntil: snap.ValidUntil,
		QueryID:    builder.QueryIDAt(e.now()),
		IsMax:      isMax,
	}, intent, signer.Func(signer.Null))
	if err != nil {
		return nil, err
	}

	info, err := e.loader.TransactionInfo(ctx, env.BOC(), w)
	if err != nil {
		return nil, err
	}

	return &Result{
		Fee:   info.Fee,
		Risk:  info.Risk,
		Event: info.Event,
		Extra: info.Event.Extra,
	}, nil
}

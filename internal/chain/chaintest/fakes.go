// Package chaintest provides in-memory chain collaborators for tests.
package chaintest

import (
	"context"
	"math/big"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/xssnick/tonutils-go/address"

	"github.com/qynonyq/ton_transfer_signer/internal/chain"
	"github.com/qynonyq/ton_transfer_signer/internal/transfer"
)

type State struct {
	SeqnoValue uint32
	TimeValue  uint32
	SeqnoErr   error
	TimeErr    error
}

func (s *State) Seqno(context.Context, *address.Address) (uint32, error) {
	return s.SeqnoValue, s.SeqnoErr
}

func (s *State) Time(context.Context) (uint32, error) {
	return s.TimeValue, s.TimeErr
}

// Loader answers emulation requests. Block, when set, holds every call until
// it is closed or the context ends.
type Loader struct {
	mu    sync.Mutex
	Info  *chain.TransactionInfo
	Err   error
	Block chan struct{}
	bocs  [][]byte
}

func (l *Loader) TransactionInfo(ctx context.Context, boc []byte, _ transfer.Wallet) (*chain.TransactionInfo, error) {
	l.mu.Lock()
	l.bocs = append(l.bocs, boc)
	block := l.Block
	l.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return nil, l.Err
	}
	info := *l.Info
	return &info, nil
}

func (l *Loader) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.bocs)
}

func (l *Loader) Set(info *chain.TransactionInfo, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Info, l.Err = info, err
}

type Broadcaster struct {
	mu   sync.Mutex
	Err  error
	Sent [][]byte
}

func (b *Broadcaster) SendTransaction(_ context.Context, boc []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Sent = append(b.Sent, boc)
	return b.Err
}

func (b *Broadcaster) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Sent)
}

// Resolver maps jetton master to the resolved wallet, ignoring the owner.
type Resolver struct {
	mu      sync.Mutex
	Wallets map[string]*address.Address
	Err     error
	Calls   int
}

func (r *Resolver) JettonWalletAddress(_ context.Context, master, _ *address.Address, _ bool) (*address.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls++
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Wallets[master.String()], nil
}

type Rates struct {
	Price decimal.Decimal
	Err   error
}

func (r *Rates) Rate(context.Context, string) (decimal.Decimal, error) {
	return r.Price, r.Err
}

type Balances struct {
	Amount *big.Int
	Err    error
}

func (b *Balances) Balance(context.Context, transfer.Wallet, transfer.TokenRef) (*big.Int, error) {
	if b.Err != nil {
		return nil, b.Err
	}
	return new(big.Int).Set(b.Amount), nil
}

package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xssnick/tonutils-go/address"
	"golang.org/x/sync/errgroup"

	"github.com/qynonyq/ton_transfer_signer/internal/transfer"
)

type (
	// ChainState is read once per build; seqno races are resolved by the network.
	ChainState interface {
		Seqno(ctx context.Context, addr *address.Address) (uint32, error)
		Time(ctx context.Context) (uint32, error)
	}

	TransactionInfoLoader interface {
		TransactionInfo(ctx context.Context, boc []byte, wallet transfer.Wallet) (*TransactionInfo, error)
	}

	Broadcaster interface {
		SendTransaction(ctx context.Context, boc []byte) error
	}

	AddressResolver interface {
		JettonWalletAddress(ctx context.Context, master, owner *address.Address, testnet bool) (*address.Address, error)
	}

	RatesService interface {
		// Rate returns the price of one TON in currency.
		Rate(ctx context.Context, currency string) (decimal.Decimal, error)
	}

	BalanceProvider interface {
		Balance(ctx context.Context, wallet transfer.Wallet, token transfer.TokenRef) (*big.Int, error)
	}
)

type TransactionInfo struct {
	Fee   int64
	Risk  Risk
	Event Event
}

// Risk is what the wallet may lose if the emulated message is executed.
type Risk struct {
	TON     int64
	Jettons []JettonRisk
	NFTs    int
}

type JettonRisk struct {
	Master   string
	Quantity string
}

// Event is the predicted on-chain outcome of the emulated message.
type Event struct {
	ID         string
	Actions    []Action
	Extra      int64
	InProgress bool
}

type Action struct {
	Type        string
	Status      string
	Description string
}

// ValidUntil returns server time plus ttl, or local time plus ttl when the
// server clock cannot be read.
func ValidUntil(ctx context.Context, state ChainState, ttl time.Duration) uint32 {
	now, err := state.Time(ctx)
	if err != nil {
		logrus.Warnf("[CHN] failed to load server time, falling back to local clock: %s", err)
		now = uint32(time.Now().Unix())
	}

	return now + uint32(ttl.Seconds())
}

// Snapshot is the chain state a wallet body is built against.
type Snapshot struct {
	Seqno      uint32
	ValidUntil uint32
}

// LoadSnapshot reads seqno and the validity deadline concurrently.
func LoadSnapshot(ctx context.Context, state ChainState, addr *address.Address, ttl time.Duration) (Snapshot, error) {
	var s Snapshot

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		seqno, err := state.Seqno(ctx, addr)
		if err != nil {
			return fmt.Errorf("failed to load seqno of %s: %w", addr, err)
		}
		s.Seqno = seqno
		return nil
	})
	eg.Go(func() error {
		s.ValidUntil = ValidUntil(ctx, state, ttl)
		return nil
	})

	if err := eg.Wait(); err != nil {
		return Snapshot{}, err
	}

	return s, nil
}

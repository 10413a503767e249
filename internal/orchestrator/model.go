package orchestrator

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xssnick/tonutils-go/address"

	"github.com/qynonyq/ton_transfer_signer/internal/transfer"
)

type loadState uint8

const (
	loading loadState = iota
	loaded
	unknown
)

// Loadable is a value that is being computed, is known, or could not be computed.
type Loadable[T any] struct {
	state loadState
	value T
}

func Loading[T any]() Loadable[T] { return Loadable[T]{state: loading} }

func Value[T any](v T) Loadable[T] { return Loadable[T]{state: loaded, value: v} }

func Unknown[T any]() Loadable[T] { return Loadable[T]{state: unknown} }

func (l Loadable[T]) IsLoading() bool { return l.state == loading }

func (l Loadable[T]) IsUnknown() bool { return l.state == unknown }

func (l Loadable[T]) Get() (T, bool) { return l.value, l.state == loaded }

func (l Loadable[T]) String() string {
	switch l.state {
	case loading:
		return "..."
	case unknown:
		return "unknown"
	default:
		return fmt.Sprint(l.value)
	}
}

// Model is what the user confirms. It is replaced as a whole, never patched.
type Model struct {
	FlowID       uuid.UUID
	Title        string
	Recipient    string
	Amount       string
	Fee          Loadable[string]
	FeeConverted Loadable[string]
	Comment      string
}

func previewModel(flowID uuid.UUID, intent transfer.Intent) Model {
	m := Model{
		FlowID:       flowID,
		Title:        intent.Name(),
		Fee:          Loading[string](),
		FeeConverted: Loading[string](),
	}

	switch in := intent.(type) {
	case transfer.TokenTransfer:
		m.Recipient = displayAddr(in.Recipient.Address)
		m.Amount = formatAmount(in.Amount, in.Token.Decimals(), in.Token.Symbol())
		m.Comment = in.Comment
	case transfer.NFTTransfer:
		m.Recipient = displayAddr(in.Recipient.Address)
		m.Amount = in.NFT.Name
		if m.Amount == "" {
			m.Amount = displayAddr(in.NFT.Address)
		}
		m.Comment = in.Comment
	case transfer.Swap:
		m.Amount = swapAmount(in.Kind)
	case transfer.Staking:
		m.Recipient = displayAddr(in.Pool.Address)
		if in.Pool.Name != "" {
			m.Recipient = in.Pool.Name
		}
		m.Amount = formatAmount(in.Amount, in.Token.Decimals(), in.Token.Symbol())
	}

	return m
}

func displayAddr(addr *address.Address) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}

func swapAmount(k transfer.SwapKind) string {
	switch s := k.(type) {
	case transfer.JettonToJetton:
		return formatAmount(s.Offer, s.From.Decimals, s.From.Symbol) + " -> " + s.To.Symbol
	case transfer.JettonToTon:
		return formatAmount(s.Offer, s.From.Decimals, s.From.Symbol) + " -> " + transfer.TON.Symbol()
	case transfer.TonToJetton:
		return formatAmount(s.Offer, transfer.TON.Decimals(), transfer.TON.Symbol()) + " -> " + s.To.Symbol
	default:
		return ""
	}
}

// formatAmount renders "<amount> <symbol>" without trailing zeros.
func formatAmount(amount *big.Int, decimals int, symbol string) string {
	if amount == nil {
		amount = big.NewInt(0)
	}

	return strings.TrimSpace(decimal.NewFromBigInt(amount, -int32(decimals)).String() + " " + symbol)
}

func formatFee(nano int64) string {
	return formatAmount(big.NewInt(nano), transfer.TON.Decimals(), transfer.TON.Symbol())
}

func formatConverted(nano int64, rate decimal.Decimal, currency string) string {
	return decimal.New(nano, -9).Mul(rate).StringFixed(2) + " " + strings.ToUpper(currency)
}

type State uint8

const (
	StateInitial State = iota
	StateEmulating
	StateReady
	StateSigning
	StateSubmitting
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateEmulating:
		return "emulating"
	case StateReady:
		return "ready"
	case StateSigning:
		return "signing"
	case StateSubmitting:
		return "submitting"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", s)
	}
}

func (s State) terminal() bool { return s == StateCompleted || s == StateFailed }

// Event is delivered to the flow's Observer in the order it happened.
type Event interface {
	isEvent()
}

type (
	ModelUpdated struct {
		Model Model
	}

	// FeeCalculationFailed is informational: the flow stays confirmable.
	FeeCalculationFailed struct {
		Err error
	}

	StateChanged struct {
		From, To State
	}

	// Completed announces a broadcast transfer so balance observers can refresh.
	Completed struct {
		Wallet transfer.Wallet
		Hash   string
	}

	Failed struct {
		Err error
	}
)

func (ModelUpdated) isEvent()         {}
func (FeeCalculationFailed) isEvent() {}
func (StateChanged) isEvent()         {}
func (Completed) isEvent()            {}
func (Failed) isEvent()               {}

// Observer must be safe to call from any goroutine. It may call back into the
// orchestrator.
type Observer func(Event)

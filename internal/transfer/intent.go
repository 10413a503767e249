package transfer

import (
	"fmt"
	"math/big"

	"github.com/xssnick/tonutils-go/address"
)

// Intent is what the user asked for. Exactly one variant is active per flow.
type Intent interface {
	isIntent()
	Name() string
}

type (
	TokenTransfer struct {
		Token     TokenRef
		Recipient Recipient
		Amount    *big.Int
		Comment   string
	}

	NFTTransfer struct {
		NFT       NFTRef
		Recipient Recipient
		Comment   string
	}

	Swap struct {
		Kind SwapKind
	}

	Staking struct {
		Pool   PoolRef
		Token  TokenRef
		Amount *big.Int
	}
)

func (TokenTransfer) isIntent() {}
func (NFTTransfer) isIntent()   {}
func (Swap) isIntent()          {}
func (Staking) isIntent()       {}

func (t TokenTransfer) Name() string {
	if t.Token.IsTON() {
		return "ton_transfer"
	}
	return "jetton_transfer"
}
func (NFTTransfer) Name() string { return "nft_transfer" }
func (s Swap) Name() string      { return "swap_" + s.Kind.direction() }
func (Staking) Name() string     { return "staking" }

// SwapKind selects which side of a swap is native TON.
type SwapKind interface {
	direction() string
}

type (
	JettonToJetton struct {
		From   JettonRef
		To     JettonRef
		MinAsk *big.Int
		Offer  *big.Int
	}

	JettonToTon struct {
		From   JettonRef
		MinAsk *big.Int
		Offer  *big.Int
	}

	TonToJetton struct {
		To     JettonRef
		MinAsk *big.Int
		Offer  *big.Int
	}
)

func (JettonToJetton) direction() string { return "jetton_to_jetton" }
func (JettonToTon) direction() string    { return "jetton_to_ton" }
func (TonToJetton) direction() string    { return "ton_to_jetton" }

// TokenRef is either native TON (Jetton == nil) or a jetton.
type TokenRef struct {
	Jetton *JettonRef
}

var TON = TokenRef{}

func JettonToken(j JettonRef) TokenRef { return TokenRef{Jetton: &j} }

func (t TokenRef) IsTON() bool { return t.Jetton == nil }

func (t TokenRef) Symbol() string {
	if t.IsTON() {
		return "TON"
	}
	return t.Jetton.Symbol
}

func (t TokenRef) Decimals() int {
	if t.IsTON() {
		return 9
	}
	return t.Jetton.Decimals
}

type JettonRef struct {
	Master *address.Address
	// Wallet is the sender's jetton wallet contract, not the master.
	Wallet   *address.Address
	Symbol   string
	Decimals int
}

type NFTRef struct {
	Address *address.Address
	Name    string
}

type Recipient struct {
	Address *address.Address
}

// Bounceable follows the flag of the user-friendly address form.
func (r Recipient) Bounceable() bool {
	return r.Address.IsBounceable()
}

type PoolImplementation string

const (
	PoolWhales   PoolImplementation = "whales"
	PoolLiquidTF PoolImplementation = "liquidTF"
	PoolTF       PoolImplementation = "tf"
)

func ParsePoolImplementation(s string) (PoolImplementation, error) {
	switch p := PoolImplementation(s); p {
	case PoolWhales, PoolLiquidTF, PoolTF:
		return p, nil
	default:
		return "", fmt.Errorf("unknown pool implementation %q", s)
	}
}

type PoolRef struct {
	Address        *address.Address
	Name           string
	Implementation PoolImplementation
}

// RawAddress renders addr as workchain:hex, or "" when it is not set.
func RawAddress(addr *address.Address) string {
	if addr == nil {
		return ""
	}
	return fmt.Sprintf("%d:%x", addr.Workchain(), addr.Data())
}

// Validate checks that every address and amount an intent needs is set.
func Validate(intent Intent) error {
	var missing string

	switch in := intent.(type) {
	case TokenTransfer:
		switch {
		case in.Recipient.Address == nil:
			missing = "recipient"
		case in.Amount == nil || in.Amount.Sign() <= 0:
			missing = "amount"
		case !in.Token.IsTON() && in.Token.Jetton.Wallet == nil:
			missing = "jetton wallet"
		}
	case NFTTransfer:
		switch {
		case in.Recipient.Address == nil:
			missing = "recipient"
		case in.NFT.Address == nil:
			missing = "nft address"
		}
	case Swap:
		missing = validateSwap(in.Kind)
	case Staking:
		switch {
		case in.Pool.Address == nil:
			missing = "pool address"
		case in.Amount == nil || in.Amount.Sign() <= 0:
			missing = "amount"
		}
	case nil:
		missing = "intent"
	}

	if missing != "" {
		return fmt.Errorf("%w: %s is not set", ErrInvalidIntent, missing)
	}
	return nil
}

func validateSwap(k SwapKind) string {
	var offer, minAsk *big.Int
	switch s := k.(type) {
	case JettonToJetton:
		if s.From.Master == nil || s.To.Master == nil {
			return "jetton master"
		}
		offer, minAsk = s.Offer, s.MinAsk
	case JettonToTon:
		if s.From.Master == nil {
			return "jetton master"
		}
		offer, minAsk = s.Offer, s.MinAsk
	case TonToJetton:
		if s.To.Master == nil {
			return "jetton master"
		}
		offer, minAsk = s.Offer, s.MinAsk
	default:
		return "swap kind"
	}

	switch {
	case offer == nil || offer.Sign() <= 0:
		return "offer amount"
	case minAsk == nil || minAsk.Sign() < 0:
		return "min ask amount"
	}
	return ""
}

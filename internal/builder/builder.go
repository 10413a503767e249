package builder

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/qynonyq/ton_transfer_signer/internal/chain"
	"github.com/qynonyq/ton_transfer_signer/internal/transfer"
)

const (
	modePayFeesSeparately = 1
	modeIgnoreErrors      = 2
	modeCarryAllBalance   = 128

	modeDefault = modePayFeesSeparately | modeIgnoreErrors
)

// Config holds the empirically tuned amounts attached to contract calls.
type Config struct {
	JettonTransferValue   tlb.Coins
	NFTTransferFloor      tlb.Coins
	NFTTransferMargin     tlb.Coins
	LiquidTFWithdrawalFee tlb.Coins
	Stonfi                StonfiConfig
}

type StonfiConfig struct {
	Router *address.Address
	// ProxyTonWallet is the router's pTON wallet, standing in for the native leg.
	ProxyTonWallet *address.Address
}

func DefaultConfig() Config {
	return Config{
		JettonTransferValue:   tlb.MustFromTON("0.05"),
		NFTTransferFloor:      tlb.MustFromTON("0.05"),
		NFTTransferMargin:     tlb.MustFromTON("0.05"),
		LiquidTFWithdrawalFee: tlb.MustFromTON("1"),
		Stonfi: StonfiConfig{
			Router:         address.MustParseAddr("EQB3ncyBUTjZUA5EnFKR5_EnOMI9V1tTEAAPaiU71gc4TiUt"),
			ProxyTonWallet: address.MustParseAddr("EQARULUYsmJq1RiZ-YiH-IJLcAZUVkVff-KBPwEmmaQGH6aC"),
		},
	}
}

// Params are the per-build inputs. Equal params and intent give an equal envelope.
type Params struct {
	Wallet     transfer.Wallet
	Seqno      uint32
	ValidUntil uint32
	QueryID    uint64
	// IsMax is derived by the caller from the wallet balance.
	IsMax bool
	// EmulationExtra is only read by the NFT builder.
	EmulationExtra int64
}

// QueryIDAt is the time-derived query id used by default.
func QueryIDAt(t time.Time) uint64 {
	return uint64(t.Unix())
}

type Builder struct {
	cfg      Config
	resolver chain.AddressResolver
}

func New(cfg Config, resolver chain.AddressResolver) *Builder {
	return &Builder{
		cfg:      cfg,
		resolver: resolver,
	}
}

func (b *Builder) Config() Config {
	return b.cfg
}

// Build assembles the messages for intent and wraps them into a signed envelope.
func (b *Builder) Build(ctx context.Context, p Params, intent transfer.Intent, sign SignFunc) (*Envelope, error) {
	version, err := ContractVersion(p.Wallet.Kind)
	if err != nil {
		return nil, err
	}

	msgs, err := b.messages(ctx, p, intent)
	if err != nil {
		return nil, err
	}

	env, err := b.envelope(ctx, p, version, msgs, sign)
	if err != nil {
		return nil, err
	}

	logrus.Debugf("[BLD] built %s for %s, seqno %d, hash %s",
		intent.Name(), p.Wallet.Address, p.Seqno, env.Hash())

	return env, nil
}

func (b *Builder) messages(ctx context.Context, p Params, intent transfer.Intent) ([]OutMessage, error) {
	switch in := intent.(type) {
	case transfer.TokenTransfer:
		if in.Token.IsTON() {
			return b.nativeTransfer(p, in)
		}
		return b.jettonTransfer(p, in)
	case transfer.NFTTransfer:
		return b.nftTransfer(p, in)
	case transfer.Swap:
		return b.swap(ctx, p, in)
	case transfer.Staking:
		return b.stake(p, in)
	default:
		return nil, fmt.Errorf("unsupported intent %T", intent)
	}
}

// ContractVersion returns the body layout used by a wallet kind.
func ContractVersion(k transfer.Kind) (transfer.ContractVersion, error) {
	var v versionVisitor
	k.Accept(&v)
	return v.version, v.err
}

type versionVisitor struct {
	version transfer.ContractVersion
	err     error
}

func (v *versionVisitor) VisitRegular(k transfer.Regular) { v.version = k.Version }

// lockup wallets share the v3 external body layout
func (v *versionVisitor) VisitLockup(transfer.Lockup) { v.version = transfer.V3R2 }

func (v *versionVisitor) VisitWatchonly(transfer.Watchonly) {
	v.err = fmt.Errorf("watch-only wallet has no contract to build for")
}

func (v *versionVisitor) VisitExternal(k transfer.External) { v.version = k.Version }

func internalMessage(dst *address.Address, bounce bool, amount *big.Int, body *cell.Cell) *tlb.InternalMessage {
	if body == nil {
		body = cell.BeginCell().EndCell()
	}

	return &tlb.InternalMessage{
		IHRDisabled: true,
		Bounce:      bounce,
		DstAddr:     dst,
		Amount:      tlb.FromNanoTON(amount),
		Body:        body,
	}
}

func maxBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

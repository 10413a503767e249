package builder

import (
	"context"
	"fmt"
	"math/big"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/qynonyq/ton_transfer_signer/internal/structures"
	"github.com/qynonyq/ton_transfer_signer/internal/transfer"
)

// swapGas is per direction. The amounts differ between directions and must
// not be swapped.
type swapGas struct {
	Attached tlb.Coins
	Forward  tlb.Coins
}

var (
	gasJettonToJetton = swapGas{Attached: tlb.MustFromTON("0.265"), Forward: tlb.MustFromTON("0.205")}
	gasJettonToTon    = swapGas{Attached: tlb.MustFromTON("0.185"), Forward: tlb.MustFromTON("0.125")}
	gasTonToJetton    = swapGas{Attached: tlb.MustFromTON("0.215"), Forward: tlb.MustFromTON("0.215")}
)

func (b *Builder) swap(ctx context.Context, p Params, s transfer.Swap) ([]OutMessage, error) {
	router := b.cfg.Stonfi.Router
	if router == nil || b.cfg.Stonfi.ProxyTonWallet == nil {
		return nil, fmt.Errorf("swap router is not configured")
	}

	switch k := s.Kind.(type) {
	case transfer.JettonToJetton:
		offerWallet, err := b.resolve(ctx, k.From.Master, p.Wallet.Address, p.Wallet.Testnet)
		if err != nil {
			return nil, err
		}
		askWallet, err := b.resolve(ctx, k.To.Master, router, p.Wallet.Testnet)
		if err != nil {
			return nil, err
		}
		return b.jettonSwap(p, offerWallet, askWallet, k.MinAsk, k.Offer, gasJettonToJetton)

	case transfer.JettonToTon:
		offerWallet, err := b.resolve(ctx, k.From.Master, p.Wallet.Address, p.Wallet.Testnet)
		if err != nil {
			return nil, err
		}
		return b.jettonSwap(p, offerWallet, b.cfg.Stonfi.ProxyTonWallet, k.MinAsk, k.Offer, gasJettonToTon)

	case transfer.TonToJetton:
		askWallet, err := b.resolve(ctx, k.To.Master, router, p.Wallet.Testnet)
		if err != nil {
			return nil, err
		}
		return b.tonSwap(p, askWallet, k.MinAsk, k.Offer)

	default:
		return nil, fmt.Errorf("unsupported swap kind %T", s.Kind)
	}
}

// jettonSwap sends the offered jettons from the owner's jetton wallet to the
// router with the swap request as forward payload.
func (b *Builder) jettonSwap(
	p Params,
	offerWallet, askWallet *address.Address,
	minAsk, offer *big.Int,
	gas swapGas,
) ([]OutMessage, error) {
	if offer == nil || offer.Sign() <= 0 {
		return nil, fmt.Errorf("invalid offer amount %v", offer)
	}

	payload, err := swapPayload(askWallet, minAsk, p.Wallet.Address)
	if err != nil {
		return nil, err
	}

	body, err := tlb.ToCell(structures.JettonTransfer{
		QueryID:             p.QueryID,
		Amount:              tlb.FromNanoTON(offer),
		Destination:         b.cfg.Stonfi.Router,
		ResponseDestination: p.Wallet.Address,
		ForwardTONAmount:    gas.Forward,
		ForwardPayload:      payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize swap transfer: %w", err)
	}

	return []OutMessage{{
		Mode:    modeDefault,
		Message: internalMessage(offerWallet, true, gas.Attached.Nano(), body),
	}}, nil
}

// tonSwap transfers TON to the router's pTON wallet, which mints proxy jettons
// to the router on our behalf.
func (b *Builder) tonSwap(p Params, askWallet *address.Address, minAsk, offer *big.Int) ([]OutMessage, error) {
	if offer == nil || offer.Sign() <= 0 {
		return nil, fmt.Errorf("invalid offer amount %v", offer)
	}

	payload, err := swapPayload(askWallet, minAsk, p.Wallet.Address)
	if err != nil {
		return nil, err
	}

	body, err := tlb.ToCell(structures.JettonTransfer{
		QueryID:          p.QueryID,
		Amount:           tlb.FromNanoTON(offer),
		Destination:      b.cfg.Stonfi.Router,
		ForwardTONAmount: gasTonToJetton.Forward,
		ForwardPayload:   payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize swap transfer: %w", err)
	}

	value := new(big.Int).Add(gasTonToJetton.Attached.Nano(), offer)

	return []OutMessage{{
		Mode:    modeDefault,
		Message: internalMessage(b.cfg.Stonfi.ProxyTonWallet, true, value, body),
	}}, nil
}

func swapPayload(askWallet *address.Address, minAsk *big.Int, to *address.Address) (*cell.Cell, error) {
	if minAsk == nil || minAsk.Sign() < 0 {
		return nil, fmt.Errorf("invalid min ask amount %v", minAsk)
	}

	c, err := tlb.ToCell(structures.StonfiSwap{
		AskJettonWallet: askWallet,
		MinAskAmount:    tlb.FromNanoTON(minAsk),
		ToAddress:       to,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize swap payload: %w", err)
	}

	return c, nil
}

func (b *Builder) resolve(ctx context.Context, master, owner *address.Address, testnet bool) (*address.Address, error) {
	if b.resolver == nil {
		return nil, fmt.Errorf("%w: no resolver configured", transfer.ErrAddressResolutionFailed)
	}

	addr, err := b.resolver.JettonWalletAddress(ctx, master, owner, testnet)
	if err != nil {
		return nil, fmt.Errorf("%w: jetton wallet of %s for %s: %w", transfer.ErrAddressResolutionFailed, master, owner, err)
	}

	return addr, nil
}

package builder

import (
	"fmt"
	"math/big"

	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/qynonyq/ton_transfer_signer/internal/structures"
	"github.com/qynonyq/ton_transfer_signer/internal/transfer"
)

// one nanoton makes the receiving wallet emit a transfer notification
var notificationAmount = tlb.FromNanoTONU(1)

func (b *Builder) nativeTransfer(p Params, t transfer.TokenTransfer) ([]OutMessage, error) {
	if err := checkTransfer(t.Recipient, t.Amount); err != nil {
		return nil, err
	}

	body, err := commentCell(t.Comment)
	if err != nil {
		return nil, err
	}

	// with carry-all mode the network deducts fees from the balance, the amount
	// field does not bound what is sent
	mode := uint8(modeDefault)
	if p.IsMax {
		mode = modeCarryAllBalance
	}

	return []OutMessage{{
		Mode:    mode,
		Message: internalMessage(t.Recipient.Address, t.Recipient.Bounceable(), t.Amount, body),
	}}, nil
}

func (b *Builder) jettonTransfer(p Params, t transfer.TokenTransfer) ([]OutMessage, error) {
	if err := checkTransfer(t.Recipient, t.Amount); err != nil {
		return nil, err
	}
	if t.Token.Jetton.Wallet == nil {
		return nil, fmt.Errorf("jetton %s has no wallet address", t.Token.Symbol())
	}

	payload, err := commentCell(t.Comment)
	if err != nil {
		return nil, err
	}

	body, err := tlb.ToCell(structures.JettonTransfer{
		QueryID:             p.QueryID,
		Amount:              tlb.FromNanoTON(t.Amount),
		Destination:         t.Recipient.Address,
		ResponseDestination: p.Wallet.Address,
		ForwardTONAmount:    notificationAmount,
		ForwardPayload:      payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize jetton transfer: %w", err)
	}

	return []OutMessage{{
		Mode:    modeDefault,
		Message: internalMessage(t.Token.Jetton.Wallet, true, b.cfg.JettonTransferValue.Nano(), body),
	}}, nil
}

func (b *Builder) nftTransfer(p Params, t transfer.NFTTransfer) ([]OutMessage, error) {
	if t.Recipient.Address == nil {
		return nil, fmt.Errorf("recipient is not set")
	}
	if t.NFT.Address == nil {
		return nil, fmt.Errorf("nft address is not set")
	}

	payload, err := commentCell(t.Comment)
	if err != nil {
		return nil, err
	}

	body, err := tlb.ToCell(structures.NFTTransfer{
		QueryID:             p.QueryID,
		NewOwner:            t.Recipient.Address,
		ResponseDestination: p.Wallet.Address,
		ForwardAmount:       notificationAmount,
		ForwardPayload:      payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize nft transfer: %w", err)
	}

	value := NFTTransferValue(b.cfg, p.EmulationExtra)

	return []OutMessage{{
		Mode:    modeDefault,
		Message: internalMessage(t.NFT.Address, true, value, body),
	}}, nil
}

// NFTTransferValue is max(floor, |extra|) + margin. The floor applies even
// when emulation reports a tiny fee.
func NFTTransferValue(cfg Config, extra int64) *big.Int {
	fee := new(big.Int).Abs(big.NewInt(extra))
	value := maxBig(cfg.NFTTransferFloor.Nano(), fee)
	return value.Add(value, cfg.NFTTransferMargin.Nano())
}

func commentCell(comment string) (*cell.Cell, error) {
	if comment == "" {
		return nil, nil
	}

	c, err := wallet.CreateCommentCell(comment)
	if err != nil {
		return nil, fmt.Errorf("failed to build comment: %w", err)
	}

	return c, nil
}

func checkTransfer(r transfer.Recipient, amount *big.Int) error {
	if r.Address == nil {
		return fmt.Errorf("recipient is not set")
	}
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid amount %v", amount)
	}

	return nil
}

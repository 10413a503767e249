package structures

import (
	"fmt"

	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

// Payload is a contract call body this wallet knows how to describe.
type Payload interface {
	Describe() string
}

type body struct {
	Payload Payload `tlb:"[JettonTransfer,NFTTransfer,WhalesDeposit,LiquidTFDeposit,StonfiSwap]"`
}

// Types lists the payloads that must be registered with tlb before DecodePayload is used.
func Types() []any {
	return []any{
		JettonTransfer{},
		NFTTransfer{},
		WhalesDeposit{},
		LiquidTFDeposit{},
		StonfiSwap{},
	}
}

func DecodePayload(c *cell.Cell) (Payload, error) {
	var b body
	if err := tlb.LoadFromCell(&b, c.BeginParse()); err != nil {
		return nil, fmt.Errorf("unknown payload: %w", err)
	}

	return b.Payload, nil
}

func (p JettonTransfer) Describe() string {
	return fmt.Sprintf("jetton transfer of %s units to %s, forwarding %s TON", p.Amount.Nano(), p.Destination, p.ForwardTONAmount)
}

func (p NFTTransfer) Describe() string {
	return fmt.Sprintf("nft transfer to %s", p.NewOwner)
}

func (p WhalesDeposit) Describe() string {
	return fmt.Sprintf("whales pool deposit, gas limit %s TON", p.GasLimit)
}

func (p LiquidTFDeposit) Describe() string {
	return fmt.Sprintf("liquid TF pool deposit, app %#x", p.AppID)
}

func (p StonfiSwap) Describe() string {
	return fmt.Sprintf("swap for at least %s units, ask wallet %s", p.MinAskAmount.Nano(), p.AskJettonWallet)
}

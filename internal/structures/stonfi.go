package structures

import (
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
)

const OpStonfiSwap = 0x25938561

// StonfiSwap is forwarded to the STON.fi v1 router inside a jetton transfer.
type StonfiSwap struct {
	_                  tlb.Magic        `tlb:"#25938561"`
	AskJettonWallet    *address.Address `tlb:"addr"`
	MinAskAmount       tlb.Coins        `tlb:"."`
	ToAddress          *address.Address `tlb:"addr"`
	HasReferralAddress bool             `tlb:"bool"`
	ReferralAddress    *address.Address `tlb:"?HasReferralAddress addr"`
}

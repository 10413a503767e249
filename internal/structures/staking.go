package structures

import (
	"github.com/xssnick/tonutils-go/tlb"
)

const (
	OpWhalesDeposit   = 0x7bcd1fef
	OpLiquidTFDeposit = 0x47d54391

	// TonkeeperQueryIDTag occupies the high 32 bits of tagged query ids.
	TonkeeperQueryIDTag = 0x546de4ef
	// LiquidTFAppID identifies the wallet app to the liquid TF pool.
	LiquidTFAppID = 0x000000000005b7ce

	// TFDepositComment is the text comment a TF nominator pool accepts as a deposit.
	TFDepositComment = "d"
)

type WhalesDeposit struct {
	_        tlb.Magic `tlb:"#7bcd1fef"`
	QueryID  uint64    `tlb:"## 64"`
	GasLimit tlb.Coins `tlb:"."`
}

type LiquidTFDeposit struct {
	_       tlb.Magic `tlb:"#47d54391"`
	QueryID uint64    `tlb:"## 64"`
	AppID   uint64    `tlb:"## 64"`
}

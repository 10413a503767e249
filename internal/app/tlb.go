package app

import (
	"github.com/xssnick/tonutils-go/tlb"

	"github.com/qynonyq/ton_transfer_signer/internal/structures"
)

func initTLB() {
	for _, t := range structures.Types() {
		tlb.Register(t)
	}
}

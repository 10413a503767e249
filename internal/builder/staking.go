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

// whales pools read the gas limit of the deposit call from the body
const whalesGasLimit = 100000

type poolDeposit struct {
	body      func(queryID uint64) (*cell.Cell, error)
	surcharge func(cfg Config) *big.Int
}

var poolDeposits = map[transfer.PoolImplementation]poolDeposit{
	transfer.PoolWhales: {
		body: func(queryID uint64) (*cell.Cell, error) {
			return tlb.ToCell(structures.WhalesDeposit{
				QueryID:  queryID,
				GasLimit: tlb.FromNanoTONU(whalesGasLimit),
			})
		},
		surcharge: noSurcharge,
	},
	transfer.PoolLiquidTF: {
		body: func(queryID uint64) (*cell.Cell, error) {
			return tlb.ToCell(structures.LiquidTFDeposit{
				QueryID: TaggedQueryID(queryID),
				AppID:   structures.LiquidTFAppID,
			})
		},
		// the pool keeps it to pay for the future withdrawal
		surcharge: func(cfg Config) *big.Int { return cfg.LiquidTFWithdrawalFee.Nano() },
	},
	transfer.PoolTF: {
		body: func(uint64) (*cell.Cell, error) {
			return wallet.CreateCommentCell(structures.TFDepositComment)
		},
		surcharge: noSurcharge,
	},
}

func noSurcharge(Config) *big.Int { return big.NewInt(0) }

func (b *Builder) stake(p Params, s transfer.Staking) ([]OutMessage, error) {
	if s.Pool.Address == nil {
		return nil, fmt.Errorf("pool address is not set")
	}
	if !s.Token.IsTON() {
		return nil, fmt.Errorf("staking %s is not supported", s.Token.Symbol())
	}

	value, err := StakeValue(b.cfg, s.Pool.Implementation, s.Amount)
	if err != nil {
		return nil, err
	}

	body, err := poolDeposits[s.Pool.Implementation].body(p.QueryID)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s deposit: %w", s.Pool.Implementation, err)
	}

	return []OutMessage{{
		Mode:    modeDefault,
		Message: internalMessage(s.Pool.Address, true, value, body),
	}}, nil
}

// StakeValue is the amount attached to a deposit call: the stake plus the
// pool's surcharge, if any.
func StakeValue(cfg Config, impl transfer.PoolImplementation, amount *big.Int) (*big.Int, error) {
	dep, ok := poolDeposits[impl]
	if !ok {
		return nil, fmt.Errorf("unknown pool implementation %q", impl)
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("invalid stake amount %v", amount)
	}

	return new(big.Int).Add(amount, dep.surcharge(cfg)), nil
}

// TaggedQueryID puts the wallet tag into the high half of a time-based query id.
func TaggedQueryID(queryID uint64) uint64 {
	return uint64(structures.TonkeeperQueryIDTag)<<32 | queryID&0xffffffff
}

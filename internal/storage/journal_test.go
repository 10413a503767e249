package storage

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/address"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/qynonyq/ton_transfer_signer/internal/orchestrator"
	"github.com/qynonyq/ton_transfer_signer/internal/transfer"
)

var (
	walletAddr = address.NewAddress(0, 0, bytes.Repeat([]byte{1}, 32))
	usdt       = transfer.JettonRef{Master: address.NewAddress(0, 0, bytes.Repeat([]byte{2}, 32)), Symbol: "USDT", Decimals: 6}
	testWallet = transfer.Wallet{Address: walletAddr, Kind: transfer.Regular{Version: transfer.V4R2}}
)

// dryRunDB builds statements without a database behind it.
func dryRunDB(t *testing.T) (*gorm.DB, *[]string) {
	t.Helper()

	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=localhost user=test dbname=test sslmode=disable"}), &gorm.Config{
		DryRun:                 true,
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
	})
	require.NoError(t, err)

	var statements []string
	err = db.Callback().Create().After("gorm:create").Register("test:capture", func(tx *gorm.DB) {
		statements = append(statements, tx.Statement.SQL.String())
	})
	require.NoError(t, err)

	return db, &statements
}

func TestTransferRecord(t *testing.T) {
	fee := int64(5_000_000)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name       string
		out        orchestrator.Outcome
		wantStatus string
		wantFee    string
		wantSwap   bool
	}{
		{
			name: "completed transfer",
			out: orchestrator.Outcome{
				FlowID: uuid.New(),
				Intent: transfer.TokenTransfer{Token: transfer.TON, Amount: big.NewInt(1)},
				Wallet: testWallet,
				Hash:   "abcd",
				Fee:    &fee,
			},
			wantStatus: StatusCompleted,
			wantFee:    "0.005",
		},
		{
			name: "failed without fee",
			out: orchestrator.Outcome{
				FlowID: uuid.New(),
				Intent: transfer.NFTTransfer{},
				Wallet: testWallet,
				Err:    errors.New("failed to sign: declined"),
			},
			wantStatus: StatusFailed,
		},
		{
			name: "swap",
			out: orchestrator.Outcome{
				FlowID: uuid.New(),
				Intent: transfer.Swap{Kind: transfer.TonToJetton{To: usdt, MinAsk: big.NewInt(9_500_000), Offer: big.NewInt(2_000_000_000)}},
				Wallet: testWallet,
				Fee:    &fee,
			},
			wantStatus: StatusCompleted,
			wantFee:    "0.005",
			wantSwap:   true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := transferRecord(tc.out, now)

			require.Equal(t, tc.out.FlowID, rec.FlowID)
			require.Equal(t, tc.out.Intent.Name(), rec.Intent)
			require.Equal(t, "regular", rec.WalletKind)
			require.Equal(t, tc.wantStatus, rec.Status)
			require.Equal(t, now, rec.ProcessedAt)
			require.Equal(t, tc.wantFee != "", rec.Fee.Valid)
			if tc.wantFee != "" {
				require.Equal(t, tc.wantFee, rec.Fee.Decimal.String())
			}
			if tc.out.Err != nil {
				require.Equal(t, tc.out.Err.Error(), rec.Error)
			}

			require.Equal(t, tc.wantSwap, rec.Swap != nil)
			if tc.wantSwap {
				require.Equal(t, "TON", rec.Swap.TokenIn)
				require.Equal(t, "2", rec.Swap.AmountIn.String())
				require.Equal(t, "9.5", rec.Swap.MinAmountOut.String())
			}
		})
	}
}

func TestJournalRecord(t *testing.T) {
	db, statements := dryRunDB(t)
	j := NewJournal(db)

	fee := int64(1_000)
	err := j.Record(context.Background(), orchestrator.Outcome{
		FlowID: uuid.New(),
		Intent: transfer.Swap{Kind: transfer.JettonToTon{From: usdt, MinAsk: big.NewInt(1), Offer: big.NewInt(1_000_000)}},
		Wallet: testWallet,
		Hash:   "ff",
		Fee:    &fee,
	})
	require.NoError(t, err)

	joined := strings.Join(*statements, "\n")
	require.Contains(t, joined, `INSERT INTO "transfers"`)
	require.Contains(t, joined, `INSERT INTO "stonfi_swaps"`)
}

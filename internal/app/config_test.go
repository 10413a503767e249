package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/tlb"

	"github.com/qynonyq/ton_transfer_signer/internal/builder"
	"github.com/qynonyq/ton_transfer_signer/internal/transfer"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SEED", "word1  word2 word3")

	cfg, err := loadConfig()
	require.NoError(t, err)

	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "text", cfg.LogFormat)
	require.False(t, cfg.Testnet)
	require.Equal(t, []string{"word1", "word2", "word3"}, cfg.Wallet.Seed)
	require.Equal(t, transfer.V4R2, cfg.Wallet.Version)
	require.Nil(t, cfg.Wallet.Address)
	require.Equal(t, 5*time.Minute, cfg.Transfer.TTL)
	require.Equal(t, 3*time.Minute, cfg.Transfer.SigningTimeout)
	require.Equal(t, builder.DefaultConfig().NFTTransferFloor.Nano(), cfg.Builder.NFTTransferFloor.Nano())
	require.Equal(t, tlb.MustFromTON("1").Nano(), cfg.Builder.LiquidTFWithdrawalFee.Nano())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("NETWORK", "testnet")
	t.Setenv("WALLET_VERSION", "v5R1")
	t.Setenv("WALLET_ADDRESS", "EQB3ncyBUTjZUA5EnFKR5_EnOMI9V1tTEAAPaiU71gc4TiUt")
	t.Setenv("LITESERVER", "true")
	t.Setenv("TRANSFER_TTL", "90s")
	t.Setenv("NFT_TRANSFER_FLOOR", "0.08")
	t.Setenv("JETTON_TRANSFER_VALUE", "0.064")

	cfg, err := loadConfig()
	require.NoError(t, err)

	require.True(t, cfg.Testnet)
	require.True(t, cfg.Liteserver)
	require.Equal(t, transfer.V5R1, cfg.Wallet.Version)
	require.NotNil(t, cfg.Wallet.Address)
	require.Equal(t, 90*time.Second, cfg.Transfer.TTL)
	require.Equal(t, tlb.MustFromTON("0.08").Nano(), cfg.Builder.NFTTransferFloor.Nano())
	require.Equal(t, tlb.MustFromTON("0.064").Nano(), cfg.Builder.JettonTransferValue.Nano())
	require.Equal(t, tlb.MustFromTON("0.05").Nano(), cfg.Builder.NFTTransferMargin.Nano())
}

func TestLoadConfigErrors(t *testing.T) {
	testCases := []struct {
		key, value string
	}{
		{key: "NETWORK", value: "devnet"},
		{key: "WALLET_VERSION", value: "v2"},
		{key: "WALLET_ADDRESS", value: "not-an-address"},
		{key: "LITESERVER", value: "maybe"},
		{key: "SIGNING_TIMEOUT", value: "soon"},
		{key: "NFT_TRANSFER_MARGIN", value: "lots"},
	}

	for _, tc := range testCases {
		t.Run(tc.key, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := loadConfig()
			require.Error(t, err)
		})
	}
}

func TestDSN(t *testing.T) {
	got := dsn(Postgres{Host: "db", Port: "5432", User: "u", Password: "p", DbName: "transfers", SslMode: "disable", Timezone: "UTC"})
	require.Equal(t, "host=db port=5432 user=u password=p dbname=transfers sslmode=disable TimeZone=UTC", got)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, initLogger("debug", "json"))
	require.NoError(t, initLogger("info", "text"))
	require.Error(t, initLogger("loud", "text"))
	require.Error(t, initLogger("info", "xml"))
}

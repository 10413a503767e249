package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"

	"github.com/qynonyq/ton_transfer_signer/internal/builder"
	"github.com/qynonyq/ton_transfer_signer/internal/transfer"
)

type (
	Cfg struct {
		LogLevel   string
		LogFormat  string
		Testnet    bool
		Wallet     Wallet
		TonAPI     TonAPI
		Liteserver bool
		Transfer   Transfer
		Builder    builder.Config
		Postgres   Postgres
	}

	Wallet struct {
		Seed    []string
		Version transfer.ContractVersion
		// Address overrides the address derived from the seed.
		Address *address.Address
	}

	TonAPI struct {
		URL   string
		Token string
	}

	Transfer struct {
		TTL            time.Duration
		SigningTimeout time.Duration
		TonsignReturn  string
		RatesCurrency  string
	}

	Postgres struct {
		Host     string
		Port     string
		User     string
		Password string
		DbName   string
		SslMode  string
		Timezone string
	}
)

func initConfig() (*Cfg, error) {
	// .env is optional, the environment may already be set
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	return loadConfig()
}

func loadConfig() (*Cfg, error) {
	cfg := Cfg{
		LogLevel:  envOr("LOG_LEVEL", "info"),
		LogFormat: envOr("LOG_FORMAT", "text"),
		Wallet: Wallet{
			Seed: strings.Fields(os.Getenv("SEED")),
		},
		TonAPI: TonAPI{
			URL:   os.Getenv("TONAPI_URL"),
			Token: os.Getenv("TONAPI_TOKEN"),
		},
		Transfer: Transfer{
			TonsignReturn: envOr("TONSIGN_RETURN", "none"),
			RatesCurrency: envOr("RATES_CURRENCY", "usd"),
		},
		Postgres: Postgres{
			Host:     os.Getenv("POSTGRES_HOST"),
			Port:     os.Getenv("POSTGRES_PORT"),
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DbName:   os.Getenv("POSTGRES_DB_NAME"),
			SslMode:  os.Getenv("POSTGRES_SSLMODE"),
			Timezone: os.Getenv("POSTGRES_TIMEZONE"),
		},
	}

	switch network := envOr("NETWORK", "mainnet"); network {
	case "mainnet":
	case "testnet":
		cfg.Testnet = true
	default:
		return nil, fmt.Errorf("unknown NETWORK %q", network)
	}

	var err error
	if cfg.Wallet.Version, err = transfer.ParseContractVersion(envOr("WALLET_VERSION", string(transfer.V4R2))); err != nil {
		return nil, err
	}
	if v := os.Getenv("WALLET_ADDRESS"); v != "" {
		if cfg.Wallet.Address, err = address.ParseAddr(v); err != nil {
			return nil, fmt.Errorf("bad WALLET_ADDRESS: %w", err)
		}
	}

	if cfg.Liteserver, err = boolEnv("LITESERVER", false); err != nil {
		return nil, err
	}
	if cfg.Transfer.TTL, err = durationEnv("TRANSFER_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Transfer.SigningTimeout, err = durationEnv("SIGNING_TIMEOUT", 3*time.Minute); err != nil {
		return nil, err
	}

	cfg.Builder = builder.DefaultConfig()
	coins := []struct {
		key string
		dst *tlb.Coins
	}{
		{key: "JETTON_TRANSFER_VALUE", dst: &cfg.Builder.JettonTransferValue},
		{key: "NFT_TRANSFER_FLOOR", dst: &cfg.Builder.NFTTransferFloor},
		{key: "NFT_TRANSFER_MARGIN", dst: &cfg.Builder.NFTTransferMargin},
		{key: "LIQUID_TF_WITHDRAWAL_FEE", dst: &cfg.Builder.LiquidTFWithdrawalFee},
	}
	for _, c := range coins {
		if err := coinsEnv(c.key, c.dst); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func boolEnv(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("bad %s: %w", key, err)
	}
	return b, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("bad %s: %w", key, err)
	}
	return d, nil
}

// coinsEnv keeps the default in dst when key is unset. Values are in TON.
func coinsEnv(key string, dst *tlb.Coins) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}

	c, err := tlb.FromTON(v)
	if err != nil {
		return fmt.Errorf("bad %s: %w", key, err)
	}
	*dst = c
	return nil
}

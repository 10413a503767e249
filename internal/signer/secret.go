package signer

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/xssnick/tonutils-go/ton/wallet"

	"github.com/qynonyq/ton_transfer_signer/internal/transfer"
)

var ErrNoMnemonic = errors.New("no mnemonic stored")

// MnemonicStore is read-only: signing never writes secrets.
type MnemonicStore interface {
	Mnemonic(ctx context.Context, w transfer.Wallet) ([]string, error)
}

// SeedStore serves the single mnemonic loaded from the environment.
type SeedStore struct {
	words []string
}

func NewSeedStore(words []string) *SeedStore {
	return &SeedStore{words: append([]string(nil), words...)}
}

func (s *SeedStore) Mnemonic(ctx context.Context, _ transfer.Wallet) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.words) == 0 || (len(s.words) == 1 && s.words[0] == "") {
		return nil, ErrNoMnemonic
	}

	return append([]string(nil), s.words...), nil
}

// PrivateKey derives the wallet key from a mnemonic. The contract version does
// not take part in derivation.
func PrivateKey(words []string) (ed25519.PrivateKey, error) {
	w, err := wallet.FromSeed(nil, words, wallet.V4R2)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key from mnemonic: %w", err)
	}

	return w.PrivateKey(), nil
}

func PublicKey(words []string) (ed25519.PublicKey, error) {
	key, err := PrivateKey(words)
	if err != nil {
		return nil, err
	}

	return key.Public().(ed25519.PublicKey), nil
}

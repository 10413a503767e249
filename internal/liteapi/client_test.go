package liteapi

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/address"

	"github.com/qynonyq/ton_transfer_signer/internal/builder"
	"github.com/qynonyq/ton_transfer_signer/internal/transfer"
)

func TestParseExternal(t *testing.T) {
	w := transfer.Wallet{
		Address: address.NewAddress(0, 0, bytes.Repeat([]byte{1}, 32)),
		Kind:    transfer.Regular{PublicKey: make([]byte, 32), Version: transfer.V4R2},
	}

	env, err := builder.New(builder.DefaultConfig(), nil).Build(context.Background(),
		builder.Params{Wallet: w, Seqno: 2, ValidUntil: 60},
		transfer.TokenTransfer{
			Token:     transfer.TON,
			Recipient: transfer.Recipient{Address: w.Address},
			Amount:    big.NewInt(1),
		},
		func(context.Context, builder.SignableMessage) ([]byte, error) {
			return make([]byte, ed25519.SignatureSize), nil
		})
	require.NoError(t, err)

	msg, err := ParseExternal(env.BOC())
	require.NoError(t, err)
	require.Equal(t, transfer.RawAddress(w.Address), transfer.RawAddress(msg.DstAddr))
	require.Nil(t, msg.StateInit)

	body, err := env.Message.PeekRef(0)
	require.NoError(t, err)
	require.Equal(t, body.Hash(), msg.Body.Hash())
}

func TestParseExternalRejectsGarbage(t *testing.T) {
	_, err := ParseExternal([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestWrongNetwork(t *testing.T) {
	c := &Client{testnet: false}
	a := address.NewAddress(0, 0, bytes.Repeat([]byte{1}, 32))

	_, err := c.JettonWalletAddress(context.Background(), a, a, true)
	require.ErrorIs(t, err, ErrWrongNetwork)
}

package builder

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/qynonyq/ton_transfer_signer/internal/structures"
	"github.com/qynonyq/ton_transfer_signer/internal/transfer"
)

func testAddr(seed byte, bounceable bool) *address.Address {
	data := bytes.Repeat([]byte{seed}, 32)
	a := address.NewAddress(0, 0, data)
	a.SetBounce(bounceable)
	return a
}

func nullSign(context.Context, SignableMessage) ([]byte, error) {
	return make([]byte, ed25519.SignatureSize), nil
}

type resolveCall struct {
	master string
	owner  string
}

type fakeResolver struct {
	calls []resolveCall
	err   error
}

func (r *fakeResolver) JettonWalletAddress(_ context.Context, master, owner *address.Address, _ bool) (*address.Address, error) {
	r.calls = append(r.calls, resolveCall{master: transfer.RawAddress(master), owner: transfer.RawAddress(owner)})
	if r.err != nil {
		return nil, r.err
	}
	// deterministic fake: first byte of master xor first byte of owner
	seed := master.Data()[0] ^ owner.Data()[0]
	return testAddr(seed, true), nil
}

var (
	walletAddr  = testAddr(0x01, true)
	recipient   = testAddr(0x02, false)
	jettonA     = transfer.JettonRef{Master: testAddr(0x10, true), Wallet: testAddr(0x11, true), Symbol: "USDT", Decimals: 6}
	jettonB     = transfer.JettonRef{Master: testAddr(0x20, true), Wallet: testAddr(0x21, true), Symbol: "STON", Decimals: 9}
	testWallet  = transfer.Wallet{Address: walletAddr, Kind: transfer.Regular{PublicKey: make([]byte, 32), Version: transfer.V4R2}}
	baseParams  = Params{Wallet: testWallet, Seqno: 7, ValidUntil: 1_700_000_300, QueryID: 1_700_000_000}
	nftItemAddr = testAddr(0x30, true)
)

func tons(s string) *big.Int {
	return tlb.MustFromTON(s).Nano()
}

func allIntents() map[string]transfer.Intent {
	return map[string]transfer.Intent{
		"ton": transfer.TokenTransfer{
			Token: transfer.TON, Recipient: transfer.Recipient{Address: recipient}, Amount: tons("1.5"), Comment: "hello",
		},
		"jetton": transfer.TokenTransfer{
			Token: transfer.JettonToken(jettonA), Recipient: transfer.Recipient{Address: recipient}, Amount: big.NewInt(1_000_000),
		},
		"nft": transfer.NFTTransfer{
			NFT: transfer.NFTRef{Address: nftItemAddr}, Recipient: transfer.Recipient{Address: recipient},
		},
		"swap": transfer.Swap{Kind: transfer.JettonToJetton{From: jettonA, To: jettonB, MinAsk: big.NewInt(90), Offer: big.NewInt(100)}},
		"stake": transfer.Staking{
			Pool: transfer.PoolRef{Address: testAddr(0x40, true), Implementation: transfer.PoolWhales}, Token: transfer.TON, Amount: tons("5"),
		},
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	b := New(DefaultConfig(), &fakeResolver{})

	for name, intent := range allIntents() {
		t.Run(name, func(t *testing.T) {
			first, err := b.Build(context.Background(), baseParams, intent, nullSign)
			require.NoError(t, err)
			second, err := b.Build(context.Background(), baseParams, intent, nullSign)
			require.NoError(t, err)

			require.Equal(t, first.BOC(), second.BOC())
			require.Equal(t, first.Signable.BOC(), second.Signable.BOC())
		})
	}
}

func TestDryRunAndRealRunDifferOnlyByQueryID(t *testing.T) {
	b := New(DefaultConfig(), &fakeResolver{})
	realSign := func(_ context.Context, m SignableMessage) ([]byte, error) {
		return ed25519.Sign(ed25519.NewKeyFromSeed(bytes.Repeat([]byte{7}, 32)), m.Hash()), nil
	}

	for name, intent := range allIntents() {
		t.Run(name, func(t *testing.T) {
			dry, err := b.Build(context.Background(), baseParams, intent, nullSign)
			require.NoError(t, err)

			p := baseParams
			p.QueryID++
			signed, err := b.Build(context.Background(), p, intent, realSign)
			require.NoError(t, err)

			requireSameShape(t, dry.Signable.Cell(), signed.Signable.Cell())
			require.Len(t, signed.Messages, len(dry.Messages))
			for i := range dry.Messages {
				require.Equal(t, dry.Messages[i].Mode, signed.Messages[i].Mode)
				require.Equal(t, dry.Messages[i].Message.Amount.Nano(), signed.Messages[i].Message.Amount.Nano())
				require.Equal(t, transfer.RawAddress(dry.Messages[i].Message.DstAddr), transfer.RawAddress(signed.Messages[i].Message.DstAddr))
			}

			// the signer never changes what is signed
			same, err := b.Build(context.Background(), baseParams, intent, realSign)
			require.NoError(t, err)
			require.Equal(t, dry.Signable.Hash(), same.Signable.Hash())
		})
	}
}

func requireSameShape(t *testing.T, a, b *cell.Cell) {
	t.Helper()
	require.Equal(t, a.BitsSize(), b.BitsSize())
	require.Equal(t, a.RefsNum(), b.RefsNum())
	for i := uint(0); i < a.RefsNum(); i++ {
		ra, err := a.PeekRef(int(i))
		require.NoError(t, err)
		rb, err := b.PeekRef(int(i))
		require.NoError(t, err)
		requireSameShape(t, ra, rb)
	}
}

func TestNativeTransfer(t *testing.T) {
	b := New(DefaultConfig(), nil)

	testCases := []struct {
		name       string
		isMax      bool
		recipient  *address.Address
		wantMode   uint8
		wantBounce bool
	}{
		{name: "fixed amount", recipient: recipient, wantMode: 3, wantBounce: false},
		{name: "send max", isMax: true, recipient: recipient, wantMode: 128, wantBounce: false},
		{name: "bounceable recipient", recipient: testAddr(0x03, true), wantMode: 3, wantBounce: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := baseParams
			p.IsMax = tc.isMax
			env, err := b.Build(context.Background(), p, transfer.TokenTransfer{
				Token:     transfer.TON,
				Recipient: transfer.Recipient{Address: tc.recipient},
				Amount:    tons("2"),
				Comment:   "thanks",
			}, nullSign)
			require.NoError(t, err)
			require.Len(t, env.Messages, 1)

			m := env.Messages[0]
			require.Equal(t, tc.wantMode, m.Mode)
			require.Equal(t, tc.wantBounce, m.Message.Bounce)
			require.Equal(t, transfer.RawAddress(tc.recipient), transfer.RawAddress(m.Message.DstAddr))
			require.Equal(t, tons("2"), m.Message.Amount.Nano())

			s := m.Message.Body.BeginParse()
			require.Equal(t, uint64(0), s.MustLoadUInt(32))
			comment, err := s.LoadStringSnake()
			require.NoError(t, err)
			require.Equal(t, "thanks", comment)
		})
	}
}

func TestNativeTransferRejectsMissingRecipient(t *testing.T) {
	b := New(DefaultConfig(), nil)
	_, err := b.Build(context.Background(), baseParams, transfer.TokenTransfer{Token: transfer.TON, Amount: tons("1")}, nullSign)
	require.Error(t, err)
}

func TestJettonTransferGoesToJettonWallet(t *testing.T) {
	b := New(DefaultConfig(), nil)

	env, err := b.Build(context.Background(), baseParams, transfer.TokenTransfer{
		Token:     transfer.JettonToken(jettonA),
		Recipient: transfer.Recipient{Address: recipient},
		Amount:    big.NewInt(2_500_000),
		Comment:   "invoice 42",
	}, nullSign)
	require.NoError(t, err)

	m := env.Messages[0].Message
	require.Equal(t, transfer.RawAddress(jettonA.Wallet), transfer.RawAddress(m.DstAddr))
	require.NotEqual(t, transfer.RawAddress(jettonA.Master), transfer.RawAddress(m.DstAddr))
	require.True(t, m.Bounce)
	require.Equal(t, tons("0.05"), m.Amount.Nano())

	var body structures.JettonTransfer
	require.NoError(t, tlb.LoadFromCell(&body, m.Body.BeginParse()))
	require.Equal(t, baseParams.QueryID, body.QueryID)
	require.Equal(t, big.NewInt(2_500_000), body.Amount.Nano())
	require.Equal(t, transfer.RawAddress(recipient), transfer.RawAddress(body.Destination))
	require.Equal(t, transfer.RawAddress(walletAddr), transfer.RawAddress(body.ResponseDestination))
	require.Equal(t, big.NewInt(1), body.ForwardTONAmount.Nano())
	require.NotNil(t, body.ForwardPayload)

	s := body.ForwardPayload.BeginParse()
	require.Equal(t, uint64(0), s.MustLoadUInt(32))
	comment, err := s.LoadStringSnake()
	require.NoError(t, err)
	require.Equal(t, "invoice 42", comment)
}

func TestNFTTransferValue(t *testing.T) {
	cfg := DefaultConfig()

	testCases := []struct {
		name  string
		extra int64
		want  *big.Int
	}{
		{name: "floor wins", extra: -2_000_000, want: tons("0.1")},
		{name: "computed wins", extra: -200_000_000, want: tons("0.25")},
		{name: "positive extra", extra: 200_000_000, want: tons("0.25")},
		{name: "no emulation", extra: 0, want: tons("0.1")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, NFTTransferValue(cfg, tc.extra))
		})
	}
}

func TestNFTTransferUsesEmulationExtra(t *testing.T) {
	b := New(DefaultConfig(), nil)
	p := baseParams
	p.EmulationExtra = -200_000_000

	env, err := b.Build(context.Background(), p, transfer.NFTTransfer{
		NFT:       transfer.NFTRef{Address: nftItemAddr},
		Recipient: transfer.Recipient{Address: recipient},
	}, nullSign)
	require.NoError(t, err)

	m := env.Messages[0].Message
	require.Equal(t, transfer.RawAddress(nftItemAddr), transfer.RawAddress(m.DstAddr))
	require.Equal(t, tons("0.25"), m.Amount.Nano())

	var body structures.NFTTransfer
	require.NoError(t, tlb.LoadFromCell(&body, m.Body.BeginParse()))
	require.Equal(t, transfer.RawAddress(recipient), transfer.RawAddress(body.NewOwner))
	require.Equal(t, transfer.RawAddress(walletAddr), transfer.RawAddress(body.ResponseDestination))
	require.Nil(t, body.ForwardPayload)
}

func TestStaking(t *testing.T) {
	b := New(DefaultConfig(), nil)
	pool := testAddr(0x40, true)

	testCases := []struct {
		impl      transfer.PoolImplementation
		wantValue *big.Int
		check     func(t *testing.T, body *cell.Slice)
	}{
		{
			impl:      transfer.PoolWhales,
			wantValue: tons("5"),
			check: func(t *testing.T, body *cell.Slice) {
				var d structures.WhalesDeposit
				require.NoError(t, tlb.LoadFromCell(&d, body))
				require.Equal(t, baseParams.QueryID, d.QueryID)
				require.Equal(t, big.NewInt(whalesGasLimit), d.GasLimit.Nano())
			},
		},
		{
			impl:      transfer.PoolLiquidTF,
			wantValue: tons("6"),
			check: func(t *testing.T, body *cell.Slice) {
				var d structures.LiquidTFDeposit
				require.NoError(t, tlb.LoadFromCell(&d, body))
				require.Equal(t, uint64(structures.TonkeeperQueryIDTag), d.QueryID>>32)
				require.Equal(t, baseParams.QueryID&0xffffffff, d.QueryID&0xffffffff)
				require.Equal(t, uint64(structures.LiquidTFAppID), d.AppID)
			},
		},
		{
			impl:      transfer.PoolTF,
			wantValue: tons("5"),
			check: func(t *testing.T, body *cell.Slice) {
				require.Equal(t, uint64(0), body.MustLoadUInt(32))
				comment, err := body.LoadStringSnake()
				require.NoError(t, err)
				require.Equal(t, "d", comment)
			},
		},
	}

	require.Len(t, testCases, len(poolDeposits), "every pool implementation must be covered")

	for _, tc := range testCases {
		t.Run(string(tc.impl), func(t *testing.T) {
			env, err := b.Build(context.Background(), baseParams, transfer.Staking{
				Pool:   transfer.PoolRef{Address: pool, Implementation: tc.impl},
				Token:  transfer.TON,
				Amount: tons("5"),
			}, nullSign)
			require.NoError(t, err)

			m := env.Messages[0].Message
			require.Equal(t, transfer.RawAddress(pool), transfer.RawAddress(m.DstAddr))
			require.True(t, m.Bounce)
			require.Equal(t, tc.wantValue, m.Amount.Nano())
			tc.check(t, m.Body.BeginParse())
		})
	}
}

func TestStakeValueRejectsUnknownPool(t *testing.T) {
	_, err := StakeValue(DefaultConfig(), "unknown", tons("1"))
	require.Error(t, err)
}

func TestSwapTonToJetton(t *testing.T) {
	resolver := &fakeResolver{}
	cfg := DefaultConfig()
	b := New(cfg, resolver)

	env, err := b.Build(context.Background(), baseParams, transfer.Swap{Kind: transfer.TonToJetton{
		To: jettonB, MinAsk: big.NewInt(500), Offer: tons("10"),
	}}, nullSign)
	require.NoError(t, err)

	require.Len(t, resolver.calls, 1)
	require.Equal(t, transfer.RawAddress(jettonB.Master), resolver.calls[0].master)
	require.Equal(t, transfer.RawAddress(cfg.Stonfi.Router), resolver.calls[0].owner)

	m := env.Messages[0].Message
	require.Equal(t, transfer.RawAddress(cfg.Stonfi.ProxyTonWallet), transfer.RawAddress(m.DstAddr))
	require.Equal(t, tons("10.215"), m.Amount.Nano())

	var body structures.JettonTransfer
	require.NoError(t, tlb.LoadFromCell(&body, m.Body.BeginParse()))
	require.Equal(t, tons("10"), body.Amount.Nano())
	require.Equal(t, transfer.RawAddress(cfg.Stonfi.Router), transfer.RawAddress(body.Destination))
	require.Equal(t, tons("0.215"), body.ForwardTONAmount.Nano())

	var swap structures.StonfiSwap
	require.NoError(t, tlb.LoadFromCell(&swap, body.ForwardPayload.BeginParse()))
	require.Equal(t, big.NewInt(500), swap.MinAskAmount.Nano())
	require.Equal(t, transfer.RawAddress(walletAddr), transfer.RawAddress(swap.ToAddress))
	require.False(t, swap.HasReferralAddress)
}

func TestSwapJettonLegs(t *testing.T) {
	cfg := DefaultConfig()

	testCases := []struct {
		name         string
		kind         transfer.SwapKind
		wantResolves int
		wantAttached *big.Int
		wantForward  *big.Int
		wantAsk      func(r *fakeResolver) string
	}{
		{
			name:         "jetton to jetton",
			kind:         transfer.JettonToJetton{From: jettonA, To: jettonB, MinAsk: big.NewInt(1), Offer: big.NewInt(100)},
			wantResolves: 2,
			wantAttached: tons("0.265"),
			wantForward:  tons("0.205"),
			wantAsk: func(*fakeResolver) string {
				return transfer.RawAddress(testAddr(jettonB.Master.Data()[0]^cfg.Stonfi.Router.Data()[0], true))
			},
		},
		{
			name:         "jetton to ton",
			kind:         transfer.JettonToTon{From: jettonA, MinAsk: big.NewInt(1), Offer: big.NewInt(100)},
			wantResolves: 1,
			wantAttached: tons("0.185"),
			wantForward:  tons("0.125"),
			wantAsk:      func(*fakeResolver) string { return transfer.RawAddress(cfg.Stonfi.ProxyTonWallet) },
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resolver := &fakeResolver{}
			b := New(cfg, resolver)

			env, err := b.Build(context.Background(), baseParams, transfer.Swap{Kind: tc.kind}, nullSign)
			require.NoError(t, err)
			require.Len(t, resolver.calls, tc.wantResolves)

			// the offer leg always leaves from the owner's jetton wallet
			require.Equal(t, transfer.RawAddress(jettonA.Master), resolver.calls[0].master)
			require.Equal(t, transfer.RawAddress(walletAddr), resolver.calls[0].owner)

			m := env.Messages[0].Message
			require.Equal(t, tc.wantAttached, m.Amount.Nano())

			var body structures.JettonTransfer
			require.NoError(t, tlb.LoadFromCell(&body, m.Body.BeginParse()))
			require.Equal(t, tc.wantForward, body.ForwardTONAmount.Nano())
			require.Equal(t, transfer.RawAddress(walletAddr), transfer.RawAddress(body.ResponseDestination))

			var swap structures.StonfiSwap
			require.NoError(t, tlb.LoadFromCell(&swap, body.ForwardPayload.BeginParse()))
			require.Equal(t, tc.wantAsk(resolver), transfer.RawAddress(swap.AskJettonWallet))
		})
	}
}

func TestSwapResolutionFailure(t *testing.T) {
	b := New(DefaultConfig(), &fakeResolver{err: errors.New("liteserver timeout")})

	_, err := b.Build(context.Background(), baseParams, transfer.Swap{Kind: transfer.TonToJetton{
		To: jettonB, MinAsk: big.NewInt(1), Offer: tons("1"),
	}}, nullSign)
	require.ErrorIs(t, err, transfer.ErrAddressResolutionFailed)
}

func TestSigningFailure(t *testing.T) {
	b := New(DefaultConfig(), nil)
	intent := allIntents()["ton"]

	testCases := []struct {
		name string
		sign SignFunc
	}{
		{
			name: "signer error",
			sign: func(context.Context, SignableMessage) ([]byte, error) { return nil, errors.New("user declined") },
		},
		{
			name: "short signature",
			sign: func(context.Context, SignableMessage) ([]byte, error) { return []byte{1, 2, 3}, nil },
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := b.Build(context.Background(), baseParams, intent, tc.sign)
			require.ErrorIs(t, err, transfer.ErrFailedToSign)
		})
	}
}

func TestWatchonlyCannotBuild(t *testing.T) {
	b := New(DefaultConfig(), nil)
	p := baseParams
	p.Wallet.Kind = transfer.Watchonly{}

	_, err := b.Build(context.Background(), p, allIntents()["ton"], nullSign)
	require.Error(t, err)
}

func TestEnvelopeLayout(t *testing.T) {
	b := New(DefaultConfig(), nil)
	signature := bytes.Repeat([]byte{0xAB}, ed25519.SignatureSize)
	sign := func(context.Context, SignableMessage) ([]byte, error) { return signature, nil }

	testCases := []struct {
		version transfer.ContractVersion
		check   func(t *testing.T, body *cell.Slice)
	}{
		{
			version: transfer.V3R2,
			check: func(t *testing.T, body *cell.Slice) {
				require.Equal(t, signature, body.MustLoadSlice(512))
				require.Equal(t, uint64(698983191), body.MustLoadUInt(32))
				require.Equal(t, uint64(baseParams.ValidUntil), body.MustLoadUInt(32))
				require.Equal(t, uint64(baseParams.Seqno), body.MustLoadUInt(32))
				require.Equal(t, uint64(3), body.MustLoadUInt(8))
			},
		},
		{
			version: transfer.V4R2,
			check: func(t *testing.T, body *cell.Slice) {
				require.Equal(t, signature, body.MustLoadSlice(512))
				require.Equal(t, uint64(698983191), body.MustLoadUInt(32))
				require.Equal(t, uint64(baseParams.ValidUntil), body.MustLoadUInt(32))
				require.Equal(t, uint64(baseParams.Seqno), body.MustLoadUInt(32))
				require.Equal(t, uint64(0), body.MustLoadUInt(8))
				require.Equal(t, uint64(3), body.MustLoadUInt(8))
			},
		},
		{
			version: transfer.V5R1,
			check: func(t *testing.T, body *cell.Slice) {
				require.Equal(t, uint64(opV5SignedExternal), body.MustLoadUInt(32))
				require.Equal(t, uint64(2147483409), body.MustLoadUInt(32))
				require.Equal(t, uint64(baseParams.ValidUntil), body.MustLoadUInt(32))
				require.Equal(t, uint64(baseParams.Seqno), body.MustLoadUInt(32))

				actions, err := body.LoadMaybeRef()
				require.NoError(t, err)
				require.NotNil(t, actions)
				_, err = actions.LoadRef()
				require.NoError(t, err)
				require.Equal(t, uint64(opV5ActionSendMsg), actions.MustLoadUInt(32))
				require.Equal(t, uint64(3), actions.MustLoadUInt(8))

				require.False(t, body.MustLoadBoolBit())
				require.Equal(t, signature, body.MustLoadSlice(512))
			},
		},
	}

	for _, tc := range testCases {
		t.Run(string(tc.version), func(t *testing.T) {
			p := baseParams
			p.Wallet.Kind = transfer.Regular{PublicKey: make([]byte, 32), Version: tc.version}

			env, err := b.Build(context.Background(), p, allIntents()["ton"], sign)
			require.NoError(t, err)

			s := env.Message.BeginParse()
			require.Equal(t, uint64(0b10), s.MustLoadUInt(2))
			require.Equal(t, uint64(0b00), s.MustLoadUInt(2))
			require.Equal(t, transfer.RawAddress(walletAddr), transfer.RawAddress(s.MustLoadAddr()))
			require.Equal(t, uint64(0), s.MustLoadCoins())
			require.False(t, s.MustLoadBoolBit())
			require.True(t, s.MustLoadBoolBit())

			tc.check(t, s.MustLoadRef())
		})
	}
}

func TestV5WalletIDTestnet(t *testing.T) {
	w := testWallet
	w.Testnet = true
	require.Equal(t, uint32(2147483645), v5WalletID(w))
}

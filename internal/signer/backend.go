package signer

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/qynonyq/ton_transfer_signer/internal/builder"
	"github.com/qynonyq/ton_transfer_signer/internal/transfer"
)

// Backend turns a signable wallet body into a 64-byte ed25519 signature.
type Backend interface {
	Sign(ctx context.Context, msg builder.SignableMessage) ([]byte, error)
}

// Func adapts a backend to the builder's signing hook.
func Func(b Backend) builder.SignFunc {
	return b.Sign
}

type Resolver struct {
	store  MnemonicStore
	bridge *Bridge
}

func NewResolver(store MnemonicStore, bridge *Bridge) *Resolver {
	return &Resolver{
		store:  store,
		bridge: bridge,
	}
}

// Resolve picks the backend for the wallet kind. It never fails: kinds that
// cannot sign get a backend that always refuses.
func (r *Resolver) Resolve(w transfer.Wallet) Backend {
	v := resolveVisitor{resolver: r, wallet: w}
	w.Kind.Accept(&v)
	return v.backend
}

type resolveVisitor struct {
	resolver *Resolver
	wallet   transfer.Wallet
	backend  Backend
}

func (v *resolveVisitor) VisitRegular(k transfer.Regular) {
	v.backend = &Local{
		store:     v.resolver.store,
		wallet:    v.wallet,
		publicKey: k.PublicKey,
	}
}

func (v *resolveVisitor) VisitLockup(transfer.Lockup) {
	v.backend = Unsupported{Kind: "lockup"}
}

func (v *resolveVisitor) VisitWatchonly(transfer.Watchonly) {
	v.backend = Unsupported{Kind: "watch-only"}
}

func (v *resolveVisitor) VisitExternal(k transfer.External) {
	v.backend = &External{
		bridge:    v.resolver.bridge,
		publicKey: k.PublicKey,
		revision:  k.Device.Revision,
	}
}

// Local signs with a key derived from the mnemonic in the secret store.
type Local struct {
	store     MnemonicStore
	wallet    transfer.Wallet
	publicKey ed25519.PublicKey
}

func (l *Local) Sign(ctx context.Context, msg builder.SignableMessage) ([]byte, error) {
	if l.store == nil {
		return nil, fmt.Errorf("%w: no secret store", transfer.ErrFailedToSign)
	}

	words, err := l.store.Mnemonic(ctx, l.wallet)
	if err != nil {
		return nil, fmt.Errorf("%w: mnemonic unavailable: %w", transfer.ErrFailedToSign, err)
	}

	key, err := PrivateKey(words)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", transfer.ErrFailedToSign, err)
	}
	defer func() {
		for i := range key {
			key[i] = 0
		}
	}()

	if !bytes.Equal(key.Public().(ed25519.PublicKey), l.publicKey) {
		return nil, fmt.Errorf("%w: mnemonic does not match wallet %s", transfer.ErrFailedToSign, l.wallet.Address)
	}

	logrus.Debugf("[SGN] signing %x locally for %s", msg.Hash(), l.wallet.Address)

	return ed25519.Sign(key, msg.Hash()), nil
}

// External hands the body to another device through the tonsign bridge.
type External struct {
	bridge    *Bridge
	publicKey ed25519.PublicKey
	revision  string
}

func (e *External) Sign(ctx context.Context, msg builder.SignableMessage) ([]byte, error) {
	if e.bridge == nil {
		return nil, fmt.Errorf("%w: external signer is not available", transfer.ErrFailedToSign)
	}

	return e.bridge.RequestSignature(ctx, msg.BOC(), e.publicKey, e.revision)
}

// Unsupported refuses to sign for kinds that have no signing path.
type Unsupported struct {
	Kind string
}

func (u Unsupported) Sign(context.Context, builder.SignableMessage) ([]byte, error) {
	return nil, fmt.Errorf("%w: %s wallets cannot sign transfers", transfer.ErrFailedToSign, u.Kind)
}

type null struct{}

// Null returns an all-zero signature. Emulation accepts it because signature
// checks are skipped there; it must never reach a broadcast.
var Null Backend = null{}

func (null) Sign(context.Context, builder.SignableMessage) ([]byte, error) {
	return make([]byte, ed25519.SignatureSize), nil
}

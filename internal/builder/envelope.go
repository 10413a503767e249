package builder

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/qynonyq/ton_transfer_signer/internal/transfer"
)

const (
	opV5SignedExternal = 0x7369676e
	opV5ActionSendMsg  = 0x0ec3c86d

	globalIDMainnet = -239
	globalIDTestnet = -3
)

// SignFunc turns a signable wallet body into an ed25519 signature.
type SignFunc func(ctx context.Context, msg SignableMessage) ([]byte, error)

// SignableMessage is the unsigned wallet body. Its cell hash is what gets signed.
type SignableMessage struct {
	body    *cell.Cell
	version transfer.ContractVersion
}

func (m SignableMessage) Cell() *cell.Cell { return m.body }

func (m SignableMessage) Hash() []byte { return m.body.Hash() }

// BOC is what an external signer receives.
func (m SignableMessage) BOC() []byte { return m.body.ToBOC() }

func (m SignableMessage) Version() transfer.ContractVersion { return m.version }

// OutMessage is one internal message sent by the wallet contract.
type OutMessage struct {
	Mode    uint8
	Message *tlb.InternalMessage
}

// Envelope is the signed external message ready for broadcast.
type Envelope struct {
	Signable SignableMessage
	Messages []OutMessage
	Message  *cell.Cell
}

func (e *Envelope) BOC() []byte { return e.Message.ToBOC() }

func (e *Envelope) Base64() string { return base64.StdEncoding.EncodeToString(e.BOC()) }

func (e *Envelope) Hash() string { return hex.EncodeToString(e.Message.Hash()) }

func (b *Builder) envelope(
	ctx context.Context,
	p Params,
	version transfer.ContractVersion,
	msgs []OutMessage,
	sign SignFunc,
) (*Envelope, error) {
	body, err := walletBody(p, version, msgs)
	if err != nil {
		return nil, err
	}

	signable := SignableMessage{body: body, version: version}

	signature, err := sign(ctx, signable)
	if err != nil {
		if errors.Is(err, transfer.ErrFailedToSign) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", transfer.ErrFailedToSign, err)
	}
	if len(signature) != ed25519.SignatureSize {
		return nil, fmt.Errorf("%w: signature has %d bytes", transfer.ErrFailedToSign, len(signature))
	}

	signed := attachSignature(version, body, signature)

	ext, err := externalMessage(p.Wallet.Address, signed)
	if err != nil {
		return nil, err
	}

	return &Envelope{
		Signable: signable,
		Messages: msgs,
		Message:  ext,
	}, nil
}

func walletBody(p Params, version transfer.ContractVersion, msgs []OutMessage) (*cell.Cell, error) {
	refs := make([]*cell.Cell, 0, len(msgs))
	for _, m := range msgs {
		c, err := tlb.ToCell(m.Message)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize internal message: %w", err)
		}
		refs = append(refs, c)
	}

	switch version {
	case transfer.V3R2, transfer.V4R2:
		b := cell.BeginCell().
			MustStoreUInt(uint64(wallet.DefaultSubwallet), 32).
			MustStoreUInt(uint64(p.ValidUntil), 32).
			MustStoreUInt(uint64(p.Seqno), 32)
		if version == transfer.V4R2 {
			// simple send
			b.MustStoreUInt(0, 8)
		}
		for i, m := range msgs {
			b.MustStoreUInt(uint64(m.Mode), 8).MustStoreRef(refs[i])
		}
		return b.EndCell(), nil

	case transfer.V5R1:
		actions := cell.BeginCell().EndCell()
		for i, m := range msgs {
			actions = cell.BeginCell().
				MustStoreRef(actions).
				MustStoreUInt(opV5ActionSendMsg, 32).
				MustStoreUInt(uint64(m.Mode), 8).
				MustStoreRef(refs[i]).
				EndCell()
		}
		return cell.BeginCell().
			MustStoreUInt(opV5SignedExternal, 32).
			MustStoreUInt(uint64(v5WalletID(p.Wallet)), 32).
			MustStoreUInt(uint64(p.ValidUntil), 32).
			MustStoreUInt(uint64(p.Seqno), 32).
			MustStoreMaybeRef(actions).
			MustStoreBoolBit(false).
			EndCell(), nil

	default:
		return nil, fmt.Errorf("unsupported wallet contract version %q", version)
	}
}

// v5R1 signs the body with the signature as a suffix, older wallets as a prefix.
func attachSignature(version transfer.ContractVersion, body *cell.Cell, signature []byte) *cell.Cell {
	if version == transfer.V5R1 {
		return body.ToBuilder().MustStoreSlice(signature, 512).EndCell()
	}

	return cell.BeginCell().
		MustStoreSlice(signature, 512).
		MustStoreBuilder(body.ToBuilder()).
		EndCell()
}

func externalMessage(dst *address.Address, body *cell.Cell) (*cell.Cell, error) {
	if dst == nil {
		return nil, fmt.Errorf("wallet address is not set")
	}

	return cell.BeginCell().
		MustStoreUInt(0b10, 2). // ext_in_msg_info
		MustStoreUInt(0b00, 2). // src: addr_none
		MustStoreAddr(dst).
		MustStoreCoins(0). // import fee
		MustStoreBoolBit(false). // no state init
		MustStoreBoolBit(true). // body in ref
		MustStoreRef(body).
		EndCell(), nil
}

func v5WalletID(w transfer.Wallet) uint32 {
	globalID := int32(globalIDMainnet)
	if w.Testnet {
		globalID = globalIDTestnet
	}

	workchain := uint32(w.Address.Workchain())
	// wallet version 0, subwallet 0
	walletContext := uint32(1)<<31 | (workchain&0xff)<<23

	return uint32(globalID) ^ walletContext
}

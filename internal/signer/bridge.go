package signer

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/qynonyq/ton_transfer_signer/internal/transfer"
)

const tonsignScheme = "tonsign"

// LinkHandler opens a tonsign link on the signing device and waits for the raw
// signature. A nil signature means the user declined.
type LinkHandler func(ctx context.Context, link string) ([]byte, error)

type Bridge struct {
	handler      LinkHandler
	returnScheme string
}

func NewBridge(handler LinkHandler, returnScheme string) *Bridge {
	return &Bridge{
		handler:      handler,
		returnScheme: returnScheme,
	}
}

// SignLink renders tonsign://?pk=..&body=..&v=..&return=.. with base64url
// encoded key and body.
func SignLink(payload []byte, publicKey ed25519.PublicKey, revision, returnScheme string) string {
	q := url.Values{}
	q.Set("pk", base64.RawURLEncoding.EncodeToString(publicKey))
	q.Set("body", base64.RawURLEncoding.EncodeToString(payload))
	q.Set("v", revision)
	q.Set("return", returnScheme)

	return tonsignScheme + "://?" + q.Encode()
}

// RequestSignature blocks until the handler answers or ctx is done.
func (b *Bridge) RequestSignature(
	ctx context.Context,
	payload []byte,
	publicKey ed25519.PublicKey,
	revision string,
) ([]byte, error) {
	if b.handler == nil {
		return nil, fmt.Errorf("%w: no tonsign handler", transfer.ErrFailedToSign)
	}

	link := SignLink(payload, publicKey, revision, b.returnScheme)
	if _, err := url.Parse(link); err != nil {
		return nil, fmt.Errorf("%w: malformed sign link: %w", transfer.ErrFailedToSign, err)
	}

	type answer struct {
		signature []byte
		err       error
	}
	done := make(chan answer, 1)

	go func() {
		sig, err := b.handler(ctx, link)
		done <- answer{signature: sig, err: err}
	}()

	logrus.Infof("[SGN] waiting for external signature, revision %q", revision)

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", transfer.ErrFailedToSign, ctx.Err())
	case a := <-done:
		if a.err != nil {
			return nil, fmt.Errorf("%w: external signer: %w", transfer.ErrFailedToSign, a.err)
		}
		if a.signature == nil {
			return nil, fmt.Errorf("%w: external signer returned nothing", transfer.ErrFailedToSign)
		}
		if len(a.signature) != ed25519.SignatureSize {
			return nil, fmt.Errorf("%w: external signature has %d bytes", transfer.ErrFailedToSign, len(a.signature))
		}
		return a.signature, nil
	}
}

// ParseSignLink is the inverse of SignLink, used by handlers that sign on the
// same host.
func ParseSignLink(link string) (payload []byte, publicKey ed25519.PublicKey, revision string, err error) {
	u, err := url.Parse(link)
	if err != nil {
		return nil, nil, "", err
	}
	if u.Scheme != tonsignScheme {
		return nil, nil, "", fmt.Errorf("unexpected scheme %q", u.Scheme)
	}

	q := u.Query()
	pk, err := base64.RawURLEncoding.DecodeString(q.Get("pk"))
	if err != nil {
		return nil, nil, "", fmt.Errorf("bad pk: %w", err)
	}
	body, err := base64.RawURLEncoding.DecodeString(q.Get("body"))
	if err != nil {
		return nil, nil, "", fmt.Errorf("bad body: %w", err)
	}

	return body, pk, q.Get("v"), nil
}

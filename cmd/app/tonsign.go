package main

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/qynonyq/ton_transfer_signer/internal/signer"
	"github.com/qynonyq/ton_transfer_signer/internal/structures"
)

// messages are nested at most this deep inside a wallet body
const maxBodyDepth = 3

// tonsign hands the link to the user and reads the signature back from stdin.
// An empty line declines.
func (e *flowEnv) tonsign(_ context.Context, link string) ([]byte, error) {
	payload, _, _, err := signer.ParseSignLink(link)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(e.out, "\nopen on the signing device:\n%s\n", link)
	if body, err := cell.FromBOC(payload); err == nil {
		for _, line := range describeBody(body, 0) {
			fmt.Fprintf(e.out, "  %s\n", line)
		}
	} else {
		logrus.Warnf("[APP] failed to decode signing payload: %s", err)
	}

	fmt.Fprint(e.out, "signature (hex or base64, empty to decline): ")
	line, err := e.in.ReadString('\n')
	if err != nil && line == "" {
		return nil, err
	}

	return parseSignature(strings.TrimSpace(line))
}

func parseSignature(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	if sig, err := hex.DecodeString(s); err == nil {
		return sig, nil
	}
	if sig, err := base64.StdEncoding.DecodeString(s); err == nil {
		return sig, nil
	}
	if sig, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return sig, nil
	}

	return nil, fmt.Errorf("signature is neither hex nor base64")
}

// describeBody lists the internal messages found in the refs of a wallet body.
func describeBody(c *cell.Cell, depth int) []string {
	if depth >= maxBodyDepth {
		return nil
	}

	var lines []string
	for i := 0; i < int(c.RefsNum()); i++ {
		ref, err := c.PeekRef(i)
		if err != nil {
			break
		}

		var msg tlb.InternalMessage
		if err := tlb.LoadFromCell(&msg, ref.BeginParse()); err != nil || msg.DstAddr == nil {
			lines = append(lines, describeBody(ref, depth+1)...)
			continue
		}

		lines = append(lines, fmt.Sprintf("%s TON to %s: %s", msg.Amount, msg.DstAddr, describePayload(msg.Body)))
	}

	return lines
}

func describePayload(body *cell.Cell) string {
	if body == nil || body.BitsSize() == 0 {
		return "no payload"
	}

	s := body.BeginParse()
	if op, err := s.LoadUInt(32); err == nil && op == 0 {
		if text, err := s.LoadStringSnake(); err == nil {
			return fmt.Sprintf("comment %q", text)
		}
	}

	p, err := structures.DecodePayload(body)
	if err != nil {
		return "unknown payload"
	}

	return p.Describe()
}

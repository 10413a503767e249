package transfer

import (
	"crypto/ed25519"
	"fmt"

	"github.com/xssnick/tonutils-go/address"
)

type ContractVersion string

const (
	V3R2 ContractVersion = "v3R2"
	V4R2 ContractVersion = "v4R2"
	V5R1 ContractVersion = "v5R1"
)

func ParseContractVersion(s string) (ContractVersion, error) {
	switch v := ContractVersion(s); v {
	case V3R2, V4R2, V5R1:
		return v, nil
	default:
		return "", fmt.Errorf("unknown wallet contract version %q", s)
	}
}

// Wallet is the sending wallet of a confirmation flow.
type Wallet struct {
	Address *address.Address
	Kind    Kind
	Testnet bool
}

// Kind is a closed set of wallet kinds. New kinds must be added to KindVisitor,
// which breaks every resolver until it handles them.
type Kind interface {
	Accept(v KindVisitor)
}

type KindVisitor interface {
	VisitRegular(k Regular)
	VisitLockup(k Lockup)
	VisitWatchonly(k Watchonly)
	VisitExternal(k External)
}

type (
	// Regular wallets keep their mnemonic in the local secret store.
	Regular struct {
		PublicKey ed25519.PublicKey
		Version   ContractVersion
	}

	Lockup struct {
		PublicKey ed25519.PublicKey
		Config    LockupConfig
	}

	LockupConfig struct {
		ConfigPubKey        string
		AllowedDestinations []string
	}

	Watchonly struct{}

	// External wallets are signed on another device through the tonsign protocol.
	External struct {
		PublicKey ed25519.PublicKey
		Version   ContractVersion
		Device    Device
	}

	Device struct {
		Name     string
		Revision string
	}
)

func (k Regular) Accept(v KindVisitor)   { v.VisitRegular(k) }
func (k Lockup) Accept(v KindVisitor)    { v.VisitLockup(k) }
func (k Watchonly) Accept(v KindVisitor) { v.VisitWatchonly(k) }
func (k External) Accept(v KindVisitor)  { v.VisitExternal(k) }

// KindName is used in logs and journal rows.
func KindName(k Kind) string {
	var n kindNamer
	k.Accept(&n)
	return n.name
}

type kindNamer struct{ name string }

func (n *kindNamer) VisitRegular(Regular)     { n.name = "regular" }
func (n *kindNamer) VisitLockup(Lockup)       { n.name = "lockup" }
func (n *kindNamer) VisitWatchonly(Watchonly) { n.name = "watchonly" }
func (n *kindNamer) VisitExternal(External)   { n.name = "external" }

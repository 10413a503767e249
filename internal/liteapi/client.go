package liteapi

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/liteclient"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/ton/jetton"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

const (
	MainnetCfgURL = "https://ton-blockchain.github.io/global.config.json"
	TestnetCfgURL = "https://ton-blockchain.github.io/testnet-global.config.json"
)

var ErrWrongNetwork = errors.New("liteserver pool is bound to another network")

// Client reads chain state and broadcasts through a liteserver pool.
type Client struct {
	api     *ton.APIClient
	pool    *liteclient.ConnectionPool
	testnet bool
}

func NewClient(ctx context.Context, testnet bool) (*Client, error) {
	cfgURL := MainnetCfgURL
	if testnet {
		cfgURL = TestnetCfgURL
	}

	pool := liteclient.NewConnectionPool()
	if err := pool.AddConnectionsFromConfigUrl(ctx, cfgURL); err != nil {
		return nil, fmt.Errorf("failed to connect to liteservers: %w", err)
	}

	logrus.Infof("[LITE] connected to liteservers from %s", cfgURL)

	return &Client{
		api:     ton.NewAPIClient(pool),
		pool:    pool,
		testnet: testnet,
	}, nil
}

func (c *Client) Stop() {
	c.pool.Stop()
}

func (c *Client) Seqno(ctx context.Context, addr *address.Address) (uint32, error) {
	master, err := c.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get masterchain info: %w", err)
	}

	acc, err := c.api.GetAccount(ctx, master, addr)
	if err != nil {
		return 0, fmt.Errorf("failed to get account %s: %w", addr, err)
	}
	// the first message deploys the wallet with seqno 0
	if !acc.IsActive {
		return 0, nil
	}

	res, err := c.api.RunGetMethod(ctx, master, addr, "seqno")
	if err != nil {
		return 0, fmt.Errorf("failed to run seqno: %w", err)
	}

	seqno, err := res.Int(0)
	if err != nil {
		return 0, fmt.Errorf("failed to parse seqno: %w", err)
	}

	return uint32(seqno.Uint64()), nil
}

func (c *Client) Time(ctx context.Context) (uint32, error) {
	return c.api.GetTime(ctx)
}

func (c *Client) SendTransaction(ctx context.Context, boc []byte) error {
	msg, err := ParseExternal(boc)
	if err != nil {
		return err
	}

	if err := c.api.SendExternalMessage(ctx, msg); err != nil {
		return fmt.Errorf("failed to send external message: %w", err)
	}

	logrus.Debugf("[LITE] sent external message to %s", msg.DstAddr)

	return nil
}

func (c *Client) JettonWalletAddress(ctx context.Context, master, owner *address.Address, testnet bool) (*address.Address, error) {
	if testnet != c.testnet {
		return nil, ErrWrongNetwork
	}

	block, err := c.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get masterchain info: %w", err)
	}

	w, err := jetton.NewJettonMasterClient(c.api, master).GetJettonWalletAtBlock(ctx, owner, block)
	if err != nil {
		return nil, fmt.Errorf("failed to get jetton wallet: %w", err)
	}

	return w.Address(), nil
}

// ParseExternal decodes a serialized external inbound message.
func ParseExternal(boc []byte) (*tlb.ExternalMessage, error) {
	c, err := cell.FromBOC(boc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse boc: %w", err)
	}

	var msg tlb.ExternalMessage
	if err := tlb.LoadFromCell(&msg, c.BeginParse()); err != nil {
		return nil, fmt.Errorf("failed to parse external message: %w", err)
	}

	return &msg, nil
}

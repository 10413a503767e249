package tonapi

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xssnick/tonutils-go/address"

	"github.com/qynonyq/ton_transfer_signer/internal/chain"
	"github.com/qynonyq/ton_transfer_signer/internal/transfer"
)

const (
	MainnetURL = "https://tonapi.io"
	TestnetURL = "https://testnet.tonapi.io"

	defaultTimeout = 15 * time.Second
)

var ErrWrongNetwork = errors.New("client is bound to another network")

// Client talks to a tonapi-compatible REST service. One client serves one network.
type Client struct {
	http    *resty.Client
	testnet bool
}

type apiError struct {
	Error string `json:"error"`
}

func New(baseURL, token string, testnet bool) *Client {
	if baseURL == "" {
		baseURL = MainnetURL
		if testnet {
			baseURL = TestnetURL
		}
	}

	http := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(defaultTimeout).
		SetHeader("Accept", "application/json").
		SetError(&apiError{})
	if token != "" {
		http.SetAuthToken(token)
	}

	return &Client{
		http:    http,
		testnet: testnet,
	}
}

// request decodes bodies as JSON whatever content type the server reports.
func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		ForceContentType("application/json")
}

func (c *Client) Seqno(ctx context.Context, addr *address.Address) (uint32, error) {
	var out struct {
		Seqno uint32 `json:"seqno"`
	}

	resp, err := c.request(ctx).
		SetPathParam("account", transfer.RawAddress(addr)).
		SetResult(&out).
		Get("/v2/wallet/{account}/seqno")
	if err := check(resp, err); err != nil {
		// uninitialized wallets have no seqno yet
		if resp != nil && resp.StatusCode() == 404 {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get seqno: %w", err)
	}

	return out.Seqno, nil
}

func (c *Client) Time(ctx context.Context) (uint32, error) {
	var out struct {
		Time uint32 `json:"time"`
	}

	resp, err := c.request(ctx).
		SetResult(&out).
		Get("/v2/liteserver/get_raw_time")
	if err := check(resp, err); err != nil {
		return 0, fmt.Errorf("failed to get time: %w", err)
	}

	return out.Time, nil
}

type (
	emulateRequest struct {
		Boc    string          `json:"boc"`
		Params []emulateParams `json:"params,omitempty"`
	}

	emulateParams struct {
		Address string `json:"address"`
	}

	consequences struct {
		Trace struct {
			Transaction struct {
				TotalFees int64 `json:"total_fees"`
			} `json:"transaction"`
		} `json:"trace"`
		Risk struct {
			TON     int64 `json:"ton"`
			Jettons []struct {
				Quantity string `json:"quantity"`
				Jetton   struct {
					Address string `json:"address"`
				} `json:"jetton"`
			} `json:"jettons"`
			NFTs []struct {
				Address string `json:"address"`
			} `json:"nfts"`
		} `json:"risk"`
		Event struct {
			EventID string `json:"event_id"`
			Actions []struct {
				Type          string `json:"type"`
				Status        string `json:"status"`
				SimplePreview struct {
					Description string `json:"description"`
				} `json:"simple_preview"`
			} `json:"actions"`
			Extra      int64 `json:"extra"`
			InProgress bool  `json:"in_progress"`
		} `json:"event"`
	}
)

// TransactionInfo emulates a wallet message as if the wallet had signed it.
func (c *Client) TransactionInfo(ctx context.Context, boc []byte, w transfer.Wallet) (*chain.TransactionInfo, error) {
	var out consequences

	resp, err := c.request(ctx).
		SetBody(emulateRequest{
			Boc:    base64.StdEncoding.EncodeToString(boc),
			Params: []emulateParams{{Address: transfer.RawAddress(w.Address)}},
		}).
		SetResult(&out).
		Post("/v2/wallet/emulate")
	if err := check(resp, err); err != nil {
		return nil, fmt.Errorf("failed to emulate message: %w", err)
	}

	info := &chain.TransactionInfo{
		Fee: out.Trace.Transaction.TotalFees,
		Risk: chain.Risk{
			TON:  out.Risk.TON,
			NFTs: len(out.Risk.NFTs),
		},
		Event: chain.Event{
			ID:         out.Event.EventID,
			Extra:      out.Event.Extra,
			InProgress: out.Event.InProgress,
		},
	}
	for _, j := range out.Risk.Jettons {
		info.Risk.Jettons = append(info.Risk.Jettons, chain.JettonRisk{Master: j.Jetton.Address, Quantity: j.Quantity})
	}
	for _, a := range out.Event.Actions {
		info.Event.Actions = append(info.Event.Actions, chain.Action{
			Type:        a.Type,
			Status:      a.Status,
			Description: a.SimplePreview.Description,
		})
	}

	logrus.Debugf("[TONAPI] emulated %s: fee %d, extra %d", w.Address, info.Fee, info.Event.Extra)

	return info, nil
}

func (c *Client) SendTransaction(ctx context.Context, boc []byte) error {
	resp, err := c.request(ctx).
		SetBody(map[string]string{"boc": base64.StdEncoding.EncodeToString(boc)}).
		Post("/v2/blockchain/message")
	if err := check(resp, err); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

func (c *Client) JettonWalletAddress(ctx context.Context, master, owner *address.Address, testnet bool) (*address.Address, error) {
	if testnet != c.testnet {
		return nil, ErrWrongNetwork
	}

	var out struct {
		Success bool `json:"success"`
		Decoded struct {
			JettonWalletAddress string `json:"jetton_wallet_address"`
		} `json:"decoded"`
	}

	resp, err := c.request(ctx).
		SetPathParam("account", transfer.RawAddress(master)).
		SetQueryParam("args", transfer.RawAddress(owner)).
		SetResult(&out).
		Get("/v2/blockchain/accounts/{account}/methods/get_wallet_address")
	if err := check(resp, err); err != nil {
		return nil, fmt.Errorf("failed to run get_wallet_address: %w", err)
	}
	if !out.Success || out.Decoded.JettonWalletAddress == "" {
		return nil, fmt.Errorf("get_wallet_address of %s failed", master)
	}

	addr, err := address.ParseRawAddr(out.Decoded.JettonWalletAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jetton wallet address: %w", err)
	}

	return addr, nil
}

func (c *Client) Rate(ctx context.Context, currency string) (decimal.Decimal, error) {
	currency = strings.ToUpper(currency)

	var out struct {
		Rates map[string]struct {
			Prices map[string]decimal.Decimal `json:"prices"`
		} `json:"rates"`
	}

	resp, err := c.request(ctx).
		SetQueryParams(map[string]string{"tokens": "ton", "currencies": currency}).
		SetResult(&out).
		Get("/v2/rates")
	if err := check(resp, err); err != nil {
		return decimal.Zero, fmt.Errorf("failed to get rates: %w", err)
	}

	price, ok := out.Rates["TON"].Prices[currency]
	if !ok {
		return decimal.Zero, fmt.Errorf("no TON price in %s", currency)
	}

	return price, nil
}

func (c *Client) Balance(ctx context.Context, w transfer.Wallet, token transfer.TokenRef) (*big.Int, error) {
	if token.IsTON() {
		var out struct {
			Balance int64 `json:"balance"`
		}

		resp, err := c.request(ctx).
			SetPathParam("account", transfer.RawAddress(w.Address)).
			SetResult(&out).
			Get("/v2/accounts/{account}")
		if err := check(resp, err); err != nil {
			return nil, fmt.Errorf("failed to get account: %w", err)
		}

		return big.NewInt(out.Balance), nil
	}

	var out struct {
		Balance string `json:"balance"`
	}

	resp, err := c.request(ctx).
		SetPathParams(map[string]string{
			"account": transfer.RawAddress(w.Address),
			"jetton":  transfer.RawAddress(token.Jetton.Master),
		}).
		SetResult(&out).
		Get("/v2/accounts/{account}/jettons/{jetton}")
	if err := check(resp, err); err != nil {
		return nil, fmt.Errorf("failed to get jetton balance: %w", err)
	}

	balance, ok := new(big.Int).SetString(out.Balance, 10)
	if !ok {
		return nil, fmt.Errorf("bad jetton balance %q", out.Balance)
	}

	return balance, nil
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if !resp.IsError() {
		return nil
	}

	if e, ok := resp.Error().(*apiError); ok && e.Error != "" {
		return fmt.Errorf("%s: %s", resp.Status(), e.Error)
	}

	return errors.New(resp.Status())
}

package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/xssnick/tonutils-go/address"

	"github.com/qynonyq/ton_transfer_signer/internal/transfer"
)

const tonKeyword = "ton"

func sendCmd(env func() *flowEnv) *cobra.Command {
	var comment string

	cmd := &cobra.Command{
		Use:   "send <recipient> <amount|max>",
		Short: "Send TON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := parseAddr("recipient", args[0])
			if err != nil {
				return err
			}

			return env().run(cmd.Context(), func(ctx context.Context, s *session) (transfer.Intent, error) {
				amount, err := s.amount(ctx, transfer.TON, args[1])
				if err != nil {
					return nil, err
				}

				return transfer.TokenTransfer{
					Token:     transfer.TON,
					Recipient: transfer.Recipient{Address: to},
					Amount:    amount,
					Comment:   comment,
				}, nil
			})
		},
	}
	cmd.Flags().StringVar(&comment, "comment", "", "text comment attached to the transfer")

	return cmd
}

func jettonCmd(env func() *flowEnv) *cobra.Command {
	var (
		comment  string
		symbol   string
		decimals int
	)

	cmd := &cobra.Command{
		Use:   "jetton <master> <recipient> <amount|max>",
		Short: "Send jettons",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			master, err := parseAddr("jetton master", args[0])
			if err != nil {
				return err
			}
			to, err := parseAddr("recipient", args[1])
			if err != nil {
				return err
			}

			return env().run(cmd.Context(), func(ctx context.Context, s *session) (transfer.Intent, error) {
				jw, err := s.svc.resolver.JettonWalletAddress(ctx, master, s.wallet.Address, s.wallet.Testnet)
				if err != nil {
					return nil, fmt.Errorf("failed to resolve jetton wallet: %w", err)
				}

				token := transfer.JettonToken(transfer.JettonRef{
					Master:   master,
					Wallet:   jw,
					Symbol:   symbol,
					Decimals: decimals,
				})
				amount, err := s.amount(ctx, token, args[2])
				if err != nil {
					return nil, err
				}

				return transfer.TokenTransfer{
					Token:     token,
					Recipient: transfer.Recipient{Address: to},
					Amount:    amount,
					Comment:   comment,
				}, nil
			})
		},
	}
	cmd.Flags().StringVar(&comment, "comment", "", "text comment forwarded to the recipient")
	cmd.Flags().StringVar(&symbol, "symbol", "JETTON", "jetton symbol shown in the preview")
	cmd.Flags().IntVar(&decimals, "decimals", 9, "jetton decimals")

	return cmd
}

func nftCmd(env func() *flowEnv) *cobra.Command {
	var comment, name string

	cmd := &cobra.Command{
		Use:   "nft <item> <recipient>",
		Short: "Transfer an NFT item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := parseAddr("nft item", args[0])
			if err != nil {
				return err
			}
			to, err := parseAddr("recipient", args[1])
			if err != nil {
				return err
			}

			return env().run(cmd.Context(), func(context.Context, *session) (transfer.Intent, error) {
				return transfer.NFTTransfer{
					NFT:       transfer.NFTRef{Address: item, Name: name},
					Recipient: transfer.Recipient{Address: to},
					Comment:   comment,
				}, nil
			})
		},
	}
	cmd.Flags().StringVar(&comment, "comment", "", "text comment forwarded to the new owner")
	cmd.Flags().StringVar(&name, "name", "", "item name shown in the preview")

	return cmd
}

func swapCmd(env func() *flowEnv) *cobra.Command {
	var (
		offerDecimals, askDecimals int
		offerSymbol, askSymbol     string
	)

	cmd := &cobra.Command{
		Use:   "swap <offer ton|master> <ask ton|master> <offer amount> <min ask amount>",
		Short: "Swap on STON.fi",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			offer, err := parseAsset(args[0], offerSymbol, offerDecimals)
			if err != nil {
				return err
			}
			ask, err := parseAsset(args[1], askSymbol, askDecimals)
			if err != nil {
				return err
			}
			offerAmount, err := parseUnits(args[2], offer.Decimals())
			if err != nil {
				return err
			}
			minAsk, err := parseUnits(args[3], ask.Decimals())
			if err != nil {
				return err
			}

			var kind transfer.SwapKind
			switch {
			case offer.IsTON() && ask.IsTON():
				return errors.New("one side of a swap must be a jetton")
			case offer.IsTON():
				kind = transfer.TonToJetton{To: *ask.Jetton, Offer: offerAmount, MinAsk: minAsk}
			case ask.IsTON():
				kind = transfer.JettonToTon{From: *offer.Jetton, Offer: offerAmount, MinAsk: minAsk}
			default:
				kind = transfer.JettonToJetton{From: *offer.Jetton, To: *ask.Jetton, Offer: offerAmount, MinAsk: minAsk}
			}

			return env().run(cmd.Context(), func(context.Context, *session) (transfer.Intent, error) {
				return transfer.Swap{Kind: kind}, nil
			})
		},
	}
	cmd.Flags().IntVar(&offerDecimals, "offer-decimals", 9, "offered jetton decimals")
	cmd.Flags().IntVar(&askDecimals, "ask-decimals", 9, "asked jetton decimals")
	cmd.Flags().StringVar(&offerSymbol, "offer-symbol", "JETTON", "offered jetton symbol")
	cmd.Flags().StringVar(&askSymbol, "ask-symbol", "JETTON", "asked jetton symbol")

	return cmd
}

func stakeCmd(env func() *flowEnv) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "stake <pool> <whales|liquidTF|tf> <amount|max>",
		Short: "Deposit TON into a staking pool",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := parseAddr("pool", args[0])
			if err != nil {
				return err
			}
			impl, err := transfer.ParsePoolImplementation(args[1])
			if err != nil {
				return err
			}

			return env().run(cmd.Context(), func(ctx context.Context, s *session) (transfer.Intent, error) {
				amount, err := s.amount(ctx, transfer.TON, args[2])
				if err != nil {
					return nil, err
				}

				return transfer.Staking{
					Pool:   transfer.PoolRef{Address: pool, Name: name, Implementation: impl},
					Token:  transfer.TON,
					Amount: amount,
				}, nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "pool name shown in the preview")

	return cmd
}

// amount parses a user amount. "max" is the whole balance of the token.
func (s *session) amount(ctx context.Context, token transfer.TokenRef, arg string) (*big.Int, error) {
	if !strings.EqualFold(arg, "max") {
		return parseUnits(arg, token.Decimals())
	}

	balance, err := s.svc.balances.Balance(ctx, s.wallet, token)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s balance: %w", token.Symbol(), err)
	}
	if balance.Sign() <= 0 {
		return nil, fmt.Errorf("%s balance is empty", token.Symbol())
	}

	return balance, nil
}

func parseAddr(what, s string) (*address.Address, error) {
	addr, err := address.ParseAddr(s)
	if err != nil {
		if addr, err = address.ParseRawAddr(s); err != nil {
			return nil, fmt.Errorf("bad %s address %q: %w", what, s, err)
		}
	}
	return addr, nil
}

func parseAsset(s, symbol string, decimals int) (transfer.TokenRef, error) {
	if strings.EqualFold(s, tonKeyword) {
		return transfer.TON, nil
	}

	master, err := parseAddr("jetton master", s)
	if err != nil {
		return transfer.TokenRef{}, err
	}

	return transfer.JettonToken(transfer.JettonRef{Master: master, Symbol: symbol, Decimals: decimals}), nil
}

// parseUnits converts a decimal amount into the token's smallest units.
func parseUnits(s string, decimals int) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("bad amount %q: %w", s, err)
	}
	if d.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %s", s)
	}

	units := d.Shift(int32(decimals))
	if !units.Equal(units.Truncate(0)) {
		return nil, fmt.Errorf("amount %s has more than %d decimals", s, decimals)
	}

	return units.BigInt(), nil
}

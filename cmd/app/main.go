package main

import (
	"bufio"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/qynonyq/ton_transfer_signer/internal/app"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var (
		a        *app.App
		external string
	)

	root := &cobra.Command{
		Use:           "transfer",
		Short:         "Build, sign and send TON transfers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			a, err = app.InitApp()
			return err
		},
	}
	root.PersistentFlags().StringVar(&external, "external", "",
		"hex public key of a wallet signed on another device through tonsign")

	env := func() *flowEnv {
		return &flowEnv{
			app:         a,
			externalKey: external,
			in:          bufio.NewReader(os.Stdin),
			out:         os.Stdout,
		}
	}

	root.AddCommand(
		sendCmd(env),
		jettonCmd(env),
		nftCmd(env),
		swapCmd(env),
		stakeCmd(env),
	)

	return root.Execute()
}

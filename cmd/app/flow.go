package main

import (
	"bufio"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/ton/wallet"

	"github.com/qynonyq/ton_transfer_signer/internal/app"
	"github.com/qynonyq/ton_transfer_signer/internal/builder"
	"github.com/qynonyq/ton_transfer_signer/internal/chain"
	"github.com/qynonyq/ton_transfer_signer/internal/emulation"
	"github.com/qynonyq/ton_transfer_signer/internal/liteapi"
	"github.com/qynonyq/ton_transfer_signer/internal/orchestrator"
	"github.com/qynonyq/ton_transfer_signer/internal/signer"
	"github.com/qynonyq/ton_transfer_signer/internal/storage"
	"github.com/qynonyq/ton_transfer_signer/internal/submit"
	"github.com/qynonyq/ton_transfer_signer/internal/tonapi"
	"github.com/qynonyq/ton_transfer_signer/internal/transfer"
)

const (
	tonsignRevision = "v2"
	shutdownTimeout = 5 * time.Second
)

type flowEnv struct {
	app         *app.App
	externalKey string
	in          *bufio.Reader
	out         io.Writer
}

type services struct {
	state       chain.ChainState
	loader      chain.TransactionInfoLoader
	broadcaster chain.Broadcaster
	resolver    chain.AddressResolver
	rates       chain.RatesService
	balances    chain.BalanceProvider
	stop        func()
}

// session is one wallet with the services it talks to.
type session struct {
	cfg    *app.Cfg
	wallet transfer.Wallet
	svc    *services
}

func newServices(ctx context.Context, cfg *app.Cfg) (*services, error) {
	api := tonapi.New(cfg.TonAPI.URL, cfg.TonAPI.Token, cfg.Testnet)

	svc := &services{
		state:       api,
		loader:      api,
		broadcaster: api,
		resolver:    api,
		rates:       api,
		balances:    api,
		stop:        func() {},
	}

	// emulation, rates and balances have no liteserver equivalent
	if cfg.Liteserver {
		lite, err := liteapi.NewClient(ctx, cfg.Testnet)
		if err != nil {
			return nil, err
		}
		svc.state = lite
		svc.broadcaster = lite
		svc.resolver = lite
		svc.stop = lite.Stop
	}

	return svc, nil
}

func (e *flowEnv) run(ctx context.Context, intentFn func(ctx context.Context, s *session) (transfer.Intent, error)) error {
	cfg := e.app.Cfg

	w, err := e.wallet(cfg)
	if err != nil {
		return err
	}

	svc, err := newServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.stop()

	s := &session{cfg: cfg, wallet: w, svc: svc}

	intent, err := intentFn(ctx, s)
	if err != nil {
		return err
	}

	return e.confirm(ctx, s, intent)
}

func (e *flowEnv) wallet(cfg *app.Cfg) (transfer.Wallet, error) {
	w := transfer.Wallet{Address: cfg.Wallet.Address, Testnet: cfg.Testnet}

	var pub ed25519.PublicKey
	switch {
	case e.externalKey != "":
		key, err := hex.DecodeString(e.externalKey)
		if err != nil || len(key) != ed25519.PublicKeySize {
			return w, fmt.Errorf("bad external public key %q", e.externalKey)
		}
		pub = key
		w.Kind = transfer.External{
			PublicKey: pub,
			Version:   cfg.Wallet.Version,
			Device:    transfer.Device{Name: "tonsign", Revision: tonsignRevision},
		}
	case len(cfg.Wallet.Seed) > 0:
		key, err := signer.PublicKey(cfg.Wallet.Seed)
		if err != nil {
			return w, err
		}
		pub = key
		w.Kind = transfer.Regular{PublicKey: pub, Version: cfg.Wallet.Version}
	default:
		w.Kind = transfer.Watchonly{}
	}

	if w.Address != nil {
		return w, nil
	}
	if pub == nil {
		return w, fmt.Errorf("WALLET_ADDRESS is required for watch-only wallets")
	}

	addr, err := deriveAddress(pub, cfg.Wallet.Version)
	if err != nil {
		return w, err
	}
	w.Address = addr

	return w, nil
}

func deriveAddress(pub ed25519.PublicKey, version transfer.ContractVersion) (*address.Address, error) {
	var v wallet.VersionConfig
	switch version {
	case transfer.V3R2:
		v = wallet.V3R2
	case transfer.V4R2:
		v = wallet.V4R2
	default:
		return nil, fmt.Errorf("set WALLET_ADDRESS for %s wallets", version)
	}

	addr, err := wallet.AddressFromPubKey(pub, v, wallet.DefaultSubwallet)
	if err != nil {
		return nil, fmt.Errorf("failed to derive wallet address: %w", err)
	}

	return addr, nil
}

func (e *flowEnv) confirm(ctx context.Context, s *session, intent transfer.Intent) error {
	cfg := s.cfg
	b := builder.New(cfg.Builder, s.svc.resolver)

	deps := orchestrator.Deps{
		Builder:  b,
		Emulator: emulation.NewEmulator(b, s.svc.state, s.svc.loader, cfg.Transfer.TTL),
		Signers: signer.NewResolver(
			signer.NewSeedStore(cfg.Wallet.Seed),
			signer.NewBridge(e.tonsign, cfg.Transfer.TonsignReturn),
		),
		Submitter: submit.NewSubmitter(s.svc.broadcaster),
		State:     s.svc.state,
		Balances:  s.svc.balances,
		Rates:     s.svc.rates,
	}
	if app.DB != nil {
		deps.Recorder = storage.NewJournal(app.DB)
	}

	settled := make(chan struct{})
	var once sync.Once

	observer := func(ev orchestrator.Event) {
		switch ev := ev.(type) {
		case orchestrator.StateChanged:
			logrus.Debugf("[APP] %s -> %s", ev.From, ev.To)
			if ev.To == orchestrator.StateReady || ev.To == orchestrator.StateFailed {
				once.Do(func() { close(settled) })
			}
		case orchestrator.FeeCalculationFailed:
			logrus.Warnf("[APP] fee is unknown: %s", ev.Err)
		case orchestrator.Completed:
			fmt.Fprintf(e.out, "sent from %s, message hash %s\n", ev.Wallet.Address, ev.Hash)
		case orchestrator.Failed:
			fmt.Fprintf(e.out, "failed: %s\n", ev.Err)
		}
	}

	o := orchestrator.New(deps, orchestrator.Config{
		TTL:            cfg.Transfer.TTL,
		SigningTimeout: cfg.Transfer.SigningTimeout,
		Currency:       cfg.Transfer.RatesCurrency,
	}, s.wallet, intent, observer)

	done := make(chan struct{})
	defer close(done)
	go cancelOnSignal(o, done)

	if err := o.Start(ctx); err != nil {
		return err
	}

	select {
	case <-settled:
	case <-ctx.Done():
		o.Cancel()
		return ctx.Err()
	}
	if o.State() != orchestrator.StateReady {
		return orchestrator.ErrCancelled
	}

	printModel(e.out, s.wallet, o.Model())

	ok, err := e.ask("confirm transfer? [y/N] ")
	if err != nil {
		o.Cancel()
		return err
	}
	if !ok {
		o.Cancel()
		fmt.Fprintln(e.out, "cancelled")
		return nil
	}

	return o.Confirm(ctx)
}

// cancelOnSignal aborts the flow on SIGINT/SIGTERM. A transfer that is
// already signed still goes out.
func cancelOnSignal(o *orchestrator.Orchestrator, done <-chan struct{}) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-done:
		return
	case sig := <-sigCh:
		logrus.Infof("received %q, cancelling transfer", sig)
	}

	o.Cancel()

	select {
	case <-time.After(shutdownTimeout):
		logrus.Info("shutdown timeout expired")
		os.Exit(1)
	case <-done:
	}
}

func printModel(out io.Writer, w transfer.Wallet, m orchestrator.Model) {
	fmt.Fprintf(out, "\n%s (%s)\n", m.Title, m.FlowID)
	fmt.Fprintf(out, "  from:      %s (%s)\n", w.Address, transfer.KindName(w.Kind))
	if m.Recipient != "" {
		fmt.Fprintf(out, "  to:        %s\n", m.Recipient)
	}
	fmt.Fprintf(out, "  amount:    %s\n", m.Amount)
	fmt.Fprintf(out, "  fee:       %s", m.Fee)
	if converted, ok := m.FeeConverted.Get(); ok {
		fmt.Fprintf(out, " (%s)", converted)
	}
	fmt.Fprintln(out)
	if m.Comment != "" {
		fmt.Fprintf(out, "  comment:   %s\n", m.Comment)
	}
}

func (e *flowEnv) ask(prompt string) (bool, error) {
	fmt.Fprint(e.out, prompt)

	line, err := e.in.ReadString('\n')
	if err != nil && line == "" {
		return false, err
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

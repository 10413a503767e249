package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/tomb.v2"

	"github.com/qynonyq/ton_transfer_signer/internal/builder"
	"github.com/qynonyq/ton_transfer_signer/internal/chain"
	"github.com/qynonyq/ton_transfer_signer/internal/emulation"
	"github.com/qynonyq/ton_transfer_signer/internal/signer"
	"github.com/qynonyq/ton_transfer_signer/internal/submit"
	"github.com/qynonyq/ton_transfer_signer/internal/transfer"
)

var (
	ErrConfirmationInProgress = errors.New("confirmation already in progress")
	ErrNotReady               = errors.New("transfer is not ready for confirmation")
	ErrCancelled              = errors.New("transfer cancelled")
	ErrAlreadyStarted         = errors.New("transfer already started")
	ErrVariantChanged         = errors.New("transfer kind cannot change within a flow")
)

type Deps struct {
	Builder   *builder.Builder
	Emulator  *emulation.Emulator
	Signers   *signer.Resolver
	Submitter *submit.Submitter
	State     chain.ChainState
	// optional
	Balances chain.BalanceProvider
	Rates    chain.RatesService
	Recorder Recorder
}

type Config struct {
	TTL            time.Duration
	SigningTimeout time.Duration
	Currency       string
}

// Orchestrator drives one confirmation flow for one wallet.
type Orchestrator struct {
	deps     Deps
	cfg      Config
	wallet   transfer.Wallet
	observer Observer
	flowID   uuid.UUID
	now      func() time.Time

	mu         sync.Mutex
	state      State
	intent     transfer.Intent
	model      Model
	isMax      bool
	result     *emulation.Result
	generation uint64
	emulation  *tomb.Tomb

	ctx           context.Context
	cancel        context.CancelFunc
	cancelConfirm context.CancelFunc

	pending  []Event
	draining bool
}

func New(deps Deps, cfg Config, w transfer.Wallet, intent transfer.Intent, observer Observer) *Orchestrator {
	if observer == nil {
		observer = func(Event) {}
	}

	return &Orchestrator{
		deps:     deps,
		cfg:      cfg,
		wallet:   w,
		observer: observer,
		flowID:   uuid.New(),
		now:      time.Now,
		intent:   intent,
		state:    StateInitial,
	}
}

func (o *Orchestrator) FlowID() uuid.UUID { return o.flowID }

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) Model() Model {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.model
}

// Start publishes the loading model and kicks off fee emulation. The context
// bounds the whole flow except the broadcast of an already signed transfer.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateInitial {
		o.mu.Unlock()
		return ErrAlreadyStarted
	}
	if err := transfer.Validate(o.intent); err != nil {
		o.mu.Unlock()
		return err
	}
	o.ctx, o.cancel = context.WithCancel(ctx)
	o.model = previewModel(o.flowID, o.intent)
	o.emit(ModelUpdated{Model: o.model})
	o.setState(StateEmulating)
	o.startEmulation()
	o.mu.Unlock()

	logrus.Infof("[ORC] flow %s started: %s from %s", o.flowID, o.intent.Name(), o.wallet.Address)

	o.flush()
	return nil
}

// UpdateIntent replaces the intent before confirmation. Emulation for the old
// intent is cancelled and its result discarded. The replacement must be of the
// same kind as the intent the flow was created with.
func (o *Orchestrator) UpdateIntent(intent transfer.Intent) error {
	if err := transfer.Validate(intent); err != nil {
		return err
	}

	o.mu.Lock()
	switch {
	case o.state.terminal():
		o.mu.Unlock()
		return fmt.Errorf("cannot update a %s transfer", o.state)
	case o.state == StateSigning || o.state == StateSubmitting:
		o.mu.Unlock()
		return ErrConfirmationInProgress
	case o.intent != nil && reflect.TypeOf(intent) != reflect.TypeOf(o.intent):
		o.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrVariantChanged, o.intent.Name(), intent.Name())
	case o.state == StateInitial:
		o.intent = intent
		o.mu.Unlock()
		return nil
	}

	o.intent = intent
	o.result = nil
	o.model = previewModel(o.flowID, intent)
	o.emit(ModelUpdated{Model: o.model})
	o.setState(StateEmulating)
	o.startEmulation()
	o.mu.Unlock()

	o.flush()
	return nil
}

// startEmulation must be called with mu held.
func (o *Orchestrator) startEmulation() {
	if o.emulation != nil {
		o.emulation.Kill(nil)
	}

	o.generation++
	gen, intent := o.generation, o.intent

	t, ctx := tomb.WithContext(o.ctx)
	o.emulation = t
	t.Go(func() error {
		o.emulate(ctx, gen, intent)
		return nil
	})
}

func (o *Orchestrator) emulate(ctx context.Context, gen uint64, intent transfer.Intent) {
	isMax := o.deriveIsMax(ctx, intent)

	res, err := o.deps.Emulator.Estimate(ctx, o.wallet, intent, isMax)

	converted := Unknown[string]()
	if err == nil && o.deps.Rates != nil {
		rate, rerr := o.deps.Rates.Rate(ctx, o.cfg.Currency)
		if rerr != nil {
			logrus.Warnf("[ORC] failed to load %s rate: %s", o.cfg.Currency, rerr)
		} else {
			converted = Value(formatConverted(res.Fee, rate, o.cfg.Currency))
		}
	}

	o.mu.Lock()
	if gen != o.generation || o.state != StateEmulating {
		o.mu.Unlock()
		logrus.Debugf("[ORC] flow %s: dropping stale emulation #%d", o.flowID, gen)
		return
	}

	o.isMax = isMax
	model := o.model
	if err != nil {
		o.result = nil
		model.Fee = Unknown[string]()
		model.FeeConverted = Unknown[string]()
		o.emit(FeeCalculationFailed{Err: err})
	} else {
		o.result = res
		model.Fee = Value(formatFee(res.Fee))
		model.FeeConverted = converted
	}
	o.model = model
	o.emit(ModelUpdated{Model: model})
	o.setState(StateReady)
	o.mu.Unlock()

	o.flush()
}

// deriveIsMax reports whether a token transfer sends the whole balance.
func (o *Orchestrator) deriveIsMax(ctx context.Context, intent transfer.Intent) bool {
	t, ok := intent.(transfer.TokenTransfer)
	if !ok || o.deps.Balances == nil || t.Amount == nil {
		return false
	}

	balance, err := o.deps.Balances.Balance(ctx, o.wallet, t.Token)
	if err != nil {
		logrus.Warnf("[ORC] failed to load %s balance of %s: %s", t.Token.Symbol(), o.wallet.Address, err)
		return false
	}

	return t.Amount.Cmp(balance) == 0
}

// Confirm signs and broadcasts the transfer. Only one confirmation can run at
// a time; a second call while it runs is rejected.
func (o *Orchestrator) Confirm(ctx context.Context) error {
	o.mu.Lock()
	switch o.state {
	case StateReady:
	case StateSigning, StateSubmitting:
		o.mu.Unlock()
		return ErrConfirmationInProgress
	default:
		o.mu.Unlock()
		return ErrNotReady
	}

	intent, isMax := o.intent, o.isMax
	var extra, fee int64
	hasFee := o.result != nil
	if hasFee {
		extra, fee = o.result.Extra, o.result.Fee
	}

	ctx, stop := mergeCancel(ctx, o.ctx)
	o.cancelConfirm = stop
	o.setState(StateSigning)
	o.mu.Unlock()
	o.flush()

	defer stop()

	out := Outcome{FlowID: o.flowID, Intent: intent, Wallet: o.wallet}
	if hasFee {
		out.Fee = &fee
	}

	env, err := o.sign(ctx, intent, isMax, extra)
	if err != nil {
		return o.fail(ctx, out, err)
	}
	out.Hash = env.Hash()

	o.mu.Lock()
	o.setState(StateSubmitting)
	o.mu.Unlock()
	o.flush()

	// a signed transfer is broadcast even if the flow is cancelled meanwhile
	if err := o.deps.Submitter.Submit(context.WithoutCancel(ctx), o.wallet, env); err != nil {
		return o.fail(ctx, out, err)
	}

	o.mu.Lock()
	o.setState(StateCompleted)
	o.emit(Completed{Wallet: o.wallet, Hash: out.Hash})
	o.mu.Unlock()
	o.flush()

	logrus.Infof("[ORC] flow %s completed: %s", o.flowID, out.Hash)
	o.record(ctx, out)

	return nil
}

func (o *Orchestrator) sign(ctx context.Context, intent transfer.Intent, isMax bool, extra int64) (*builder.Envelope, error) {
	if o.cfg.SigningTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.SigningTimeout)
		defer cancel()
	}

	snap, err := chain.LoadSnapshot(ctx, o.deps.State, o.wallet.Address, o.cfg.TTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", transfer.ErrFailedToSign, err)
	}

	backend := o.deps.Signers.Resolve(o.wallet)

	env, err := o.deps.Builder.Build(ctx, builder.Params{
		Wallet:         o.wallet,
		Seqno:          snap.Seqno,
		ValidUntil:     snap.ValidUntil,
		QueryID:        builder.QueryIDAt(o.now()),
		IsMax:          isMax,
		EmulationExtra: extra,
	}, intent, signer.Func(backend))
	if err != nil {
		if errors.Is(err, transfer.ErrFailedToSign) || errors.Is(err, transfer.ErrAddressResolutionFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", transfer.ErrFailedToSign, err)
	}

	return env, nil
}

func (o *Orchestrator) fail(ctx context.Context, out Outcome, err error) error {
	logrus.Errorf("[ORC] flow %s failed: %s", o.flowID, err)

	o.mu.Lock()
	o.setState(StateFailed)
	o.emit(Failed{Err: err})
	o.mu.Unlock()
	o.flush()

	out.Err = err
	o.record(ctx, out)

	return err
}

func (o *Orchestrator) record(ctx context.Context, out Outcome) {
	if o.deps.Recorder == nil {
		return
	}
	if err := o.deps.Recorder.Record(context.WithoutCancel(ctx), out); err != nil {
		logrus.Errorf("[ORC] failed to journal flow %s: %s", o.flowID, err)
	}
}

// Cancel aborts emulation and any pending external signature. A transfer that
// is already signed is still broadcast.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	if o.cancel != nil {
		o.cancel()
	}
	if o.cancelConfirm != nil {
		o.cancelConfirm()
	}

	switch o.state {
	case StateInitial, StateEmulating, StateReady:
		o.generation++
		o.setState(StateFailed)
		o.emit(Failed{Err: ErrCancelled})
	}
	o.mu.Unlock()

	o.flush()
}

// Wait blocks until the running emulation, if any, has returned.
func (o *Orchestrator) Wait() {
	o.mu.Lock()
	t := o.emulation
	o.mu.Unlock()

	if t != nil {
		_ = t.Wait()
	}
}

// setState must be called with mu held.
func (o *Orchestrator) setState(s State) {
	if o.state == s {
		return
	}
	logrus.Debugf("[ORC] flow %s: %s -> %s", o.flowID, o.state, s)
	o.emit(StateChanged{From: o.state, To: s})
	o.state = s
}

// emit must be called with mu held. Events are delivered by flush.
func (o *Orchestrator) emit(ev Event) {
	o.pending = append(o.pending, ev)
}

// flush delivers queued events in order outside the lock. Only one goroutine
// delivers at a time; events queued by observers are delivered by it too.
func (o *Orchestrator) flush() {
	o.mu.Lock()
	if o.draining {
		o.mu.Unlock()
		return
	}
	o.draining = true
	for len(o.pending) > 0 {
		ev := o.pending[0]
		o.pending = o.pending[1:]
		o.mu.Unlock()
		o.observer(ev)
		o.mu.Lock()
	}
	o.draining = false
	o.mu.Unlock()
}

// mergeCancel returns a context that ends with either parent.
func mergeCancel(ctx, flow context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	if flow == nil {
		return ctx, cancel
	}
	stop := context.AfterFunc(flow, cancel)

	return ctx, func() {
		stop()
		cancel()
	}
}

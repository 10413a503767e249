package submit

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/qynonyq/ton_transfer_signer/internal/builder"
	"github.com/qynonyq/ton_transfer_signer/internal/chain"
	"github.com/qynonyq/ton_transfer_signer/internal/transfer"
)

type Submitter struct {
	broadcaster chain.Broadcaster
}

func NewSubmitter(b chain.Broadcaster) *Submitter {
	return &Submitter{broadcaster: b}
}

// Submit broadcasts a signed envelope exactly once. A resend after failure
// could race a stale seqno, so retrying is left to the user.
func (s *Submitter) Submit(ctx context.Context, w transfer.Wallet, env *builder.Envelope) error {
	if env == nil {
		return fmt.Errorf("%w: nothing to send", transfer.ErrFailedToSendTransaction)
	}

	if err := s.broadcaster.SendTransaction(ctx, env.BOC()); err != nil {
		logrus.Errorf("[SUB] failed to send %s from %s: %s", env.Hash(), w.Address, err)
		return fmt.Errorf("%w: %w", transfer.ErrFailedToSendTransaction, err)
	}

	logrus.Infof("[SUB] sent %s from %s", env.Hash(), w.Address)

	return nil
}

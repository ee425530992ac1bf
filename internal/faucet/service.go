// Package faucet turns chat commands into ledger work: token requests
// gated by a per-user cooldown, and project workflow commands.
package faucet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ImbueNetwork/imbue-faucet/internal/address"
	"github.com/ImbueNetwork/imbue-faucet/internal/ledger"
	"github.com/ImbueNetwork/imbue-faucet/internal/ratelimit"
	"github.com/ImbueNetwork/imbue-faucet/internal/workflow"
)

// Reply is the text to send back. Silent replies send nothing.
type Reply struct {
	Text   string
	Silent bool
}

// Gateway runs ledger work on a scoped connection.
type Gateway interface {
	Do(ctx context.Context, fn func(*ledger.Session) error) error
}

// Recorder counts limiter decisions and handled commands.
type Recorder interface {
	RateLimit(allowed bool)
	Command(command, outcome string)
}

type noopRecorder struct{}

func (noopRecorder) RateLimit(bool)        {}
func (noopRecorder) Command(string, string) {}

// Settings are the values of the faucet configuration the service uses.
type Settings struct {
	FaucetName   string
	TokenName    string
	Amount       decimal.Decimal
	ScaledAmount *big.Int
	Cooldown     time.Duration
	Mnemonic     string
}

// Deps are the collaborators of a Service. Metrics and Log may be nil.
type Deps struct {
	Extractor *address.Extractor
	Limiter   *ratelimit.Limiter
	Gateway   Gateway
	Workflow  *workflow.Workflow
	Metrics   Recorder
	Log       *slog.Logger
}

// Service handles faucet and workflow commands. It is safe for
// concurrent use.
type Service struct {
	settings  Settings
	extractor *address.Extractor
	limiter   *ratelimit.Limiter
	gateway   Gateway
	workflow  *workflow.Workflow
	metrics   Recorder
	log       *slog.Logger
}

// New returns a Service.
func New(s Settings, d Deps) *Service {
	if d.Metrics == nil {
		d.Metrics = noopRecorder{}
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	return &Service{
		settings:  s,
		extractor: d.Extractor,
		limiter:   d.Limiter,
		gateway:   d.Gateway,
		workflow:  d.Workflow,
		metrics:   d.Metrics,
		log:       d.Log,
	}
}

// Help is the greeting sent for /start and /help.
func (s *Service) Help() Reply {
	return Reply{Text: helpMessage(s.settings.FaucetName, s.settings.TokenName)}
}

// ChooseToken answers /type. Selecting between tokens is not supported.
func (s *Service) ChooseToken() Reply {
	return Reply{Text: chooseTokenMessage}
}

// HandleRequest sends the configured amount to the address in rawText if
// user is outside the cooldown. The grant is revoked when the transfer
// provably never reached the pool.
func (s *Service) HandleRequest(ctx context.Context, user ratelimit.UserID, rawText string, now time.Time) (reply Reply) {
	log := s.log.With("request_id", uuid.NewString(), "command", "request", "user", string(user))

	addr, ok := s.extractor.Extract(rawText)
	if !ok {
		log.Info("invalid address")
		s.metrics.Command("request", "invalid_address")
		return Reply{Text: invalidAddressMessage(s.extractor.Network())}
	}

	d := s.limiter.TryGrant(user, now, s.settings.Cooldown)
	s.metrics.RateLimit(d.Allowed)
	if !d.Allowed {
		log.Info("cooldown active", "address", addr, "retry_after", d.RetryAfter.String())
		s.metrics.Command("request", "cooldown")
		return Reply{Text: d.RetryMessage}
	}

	defer s.recoverTo(&reply, log, "request", func() { s.limiter.Revoke(user, now) })

	var hash ledger.TxHash
	err := s.gateway.Do(ctx, func(sess *ledger.Session) error {
		if _, err := sess.InitCredential(s.settings.Mnemonic); err != nil {
			return err
		}
		var err error
		hash, err = sess.Transfer(ctx, addr, s.settings.ScaledAmount)
		return err
	})
	if err != nil {
		if notSent(err) {
			s.limiter.Revoke(user, now)
			log.Error("transfer failed", "address", addr, "err", err)
		} else {
			log.Error("transfer outcome unknown, keeping cooldown", "address", addr, "err", err)
		}
		s.metrics.Command("request", "failed")
		return Reply{Text: FailureMessage}
	}

	log.Info("tokens sent",
		"address", addr,
		"amount", s.settings.Amount.String(),
		"token", s.settings.TokenName,
		"tx_hash", string(hash),
	)
	s.metrics.Command("request", "sent")
	return Reply{Text: fmt.Sprintf("Sending %s %s to %s!", s.settings.Amount.String(), s.settings.TokenName, addr)}
}

// notSent reports whether err proves no transaction was submitted.
func notSent(err error) bool {
	if errors.Is(err, ledger.ErrUnconfirmed) {
		return false
	}
	return errors.Is(err, ledger.ErrConnection) ||
		errors.Is(err, ledger.ErrCredential) ||
		errors.Is(err, ledger.ErrSubmission)
}

// HandleWorkflowCommand runs kind for the project created by the address
// in rawText.
func (s *Service) HandleWorkflowCommand(ctx context.Context, kind workflow.Kind, rawText string) (reply Reply) {
	command := string(kind)
	log := s.log.With("request_id", uuid.NewString(), "command", command)

	addr, ok := s.extractor.Extract(rawText)
	if !ok {
		log.Info("invalid address")
		s.metrics.Command(command, "invalid_address")
		return Reply{Text: invalidAddressMessage(s.extractor.Network())}
	}

	defer s.recoverTo(&reply, log, command, nil)

	var res workflow.Result
	err := s.gateway.Do(ctx, func(sess *ledger.Session) error {
		if _, err := sess.InitCredential(s.settings.Mnemonic); err != nil {
			return err
		}
		var err error
		res, err = s.workflow.Run(ctx, kind, addr, sess)
		return err
	})
	if err != nil {
		log.Error("workflow failed", "address", addr, "err", err)
		s.metrics.Command(command, "failed")
		return Reply{Text: FailureMessage}
	}

	s.metrics.Command(command, string(res.Outcome))
	if res.Silent {
		return Reply{Silent: true}
	}
	if res.Submitted() {
		log.Info("workflow submitted", "address", addr, "outcome", string(res.Outcome), "tx_hash", string(res.TxHash))
	}
	return Reply{Text: res.Text}
}

// recoverTo turns a panic in the handler into the failure reply. It must
// be deferred directly.
func (s *Service) recoverTo(reply *Reply, log *slog.Logger, command string, undo func()) {
	r := recover()
	if r == nil {
		return
	}
	if undo != nil {
		undo()
	}
	log.Error("handler panic", "panic", fmt.Sprint(r))
	s.metrics.Command(command, "failed")
	*reply = Reply{Text: FailureMessage}
}

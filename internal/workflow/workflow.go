package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ImbueNetwork/imbue-faucet/internal/ledger"
)

const (
	// RoundStartOffset is how many blocks after the head a round opens.
	RoundStartOffset = 1
	// RoundLength is the number of blocks a funding round stays open.
	RoundLength = 100
)

// Only milestone 0 can be approved from chat.
const firstMilestoneIndex uint32 = 0

// Ledger is the part of a ledger session the workflow reads and writes.
type Ledger interface {
	FindProjectByInitiator(ctx context.Context, initiator string) (*ledger.Project, error)
	LatestBlock(ctx context.Context) (uint64, error)
	ScheduleRound(ctx context.Context, projectKeys []uint32, startBlock, endBlock uint64) (ledger.TxHash, error)
	ApproveFunding(ctx context.Context, projectKey uint32, milestone *uint32) (ledger.TxHash, error)
}

// Result is the user-facing outcome of a workflow command. Silent results
// have no text and should produce no reply.
type Result struct {
	Text    string
	Silent  bool
	Outcome Outcome
	State   State
	TxHash  ledger.TxHash
}

// Submitted reports whether the command handed a write to the node.
func (r Result) Submitted() bool { return r.TxHash != "" }

// Workflow runs lifecycle commands against a project found by its
// initiator address.
type Workflow struct {
	reportMissing bool
	log           *slog.Logger
}

// New returns a Workflow. When reportMissing is false a command for an
// address with no project yields a silent result.
func New(reportMissing bool, log *slog.Logger) *Workflow {
	if log == nil {
		log = slog.Default()
	}
	return &Workflow{reportMissing: reportMissing, log: log}
}

// Run resolves the project created by initiator, checks the command's
// precondition and submits the matching privileged call. The project is
// read once; it may change on chain before the write lands.
func (w *Workflow) Run(ctx context.Context, kind Kind, initiator string, l Ledger) (Result, error) {
	switch kind {
	case Schedule, Approve, ApproveMilestone:
	default:
		return Result{}, fmt.Errorf("workflow: unknown command %q", kind)
	}

	p, err := l.FindProjectByInitiator(ctx, initiator)
	if err != nil {
		return Result{}, err
	}
	if p == nil {
		w.log.Info("no project for initiator", "command", string(kind), "address", initiator)
		if !w.reportMissing {
			return Result{Silent: true, Outcome: OutcomeNoProject}, nil
		}
		return Result{Text: noProjectText(initiator), Outcome: OutcomeNoProject}, nil
	}

	state := StateOf(p)
	w.log.Info("workflow command",
		"command", string(kind),
		"project", p.Key,
		"name", p.Name,
		"state", state.String(),
	)

	name := strings.ToUpper(p.Name)
	pl := decide(kind, p)
	res := Result{Outcome: pl.outcome, State: state}
	m, _ := p.FirstMilestone()

	switch pl.action {
	case actionSchedule:
		head, err := l.LatestBlock(ctx)
		if err != nil {
			return Result{}, err
		}
		start := head + RoundStartOffset
		end := start + RoundLength
		hash, err := l.ScheduleRound(ctx, []uint32{m.ProjectKey}, start, end)
		if err != nil {
			return Result{}, err
		}
		res.TxHash = hash
		res.Text = fmt.Sprintf("Project \"%s\" has been scheduled for funding.\n\n Contributors can fund between blocks %d and %d.", name, start, end)

	case actionApprove:
		hash, err := l.ApproveFunding(ctx, m.ProjectKey, nil)
		if err != nil {
			return Result{}, err
		}
		res.TxHash = hash
		res.Text = fmt.Sprintf("Project \"%s\" funding has been approved. You can now submit your milestones!", name)

	case actionApproveMilestone:
		idx := firstMilestoneIndex
		hash, err := l.ApproveFunding(ctx, m.ProjectKey, &idx)
		if err != nil {
			return Result{}, err
		}
		res.TxHash = hash
		res.Text = milestoneText(name, m, "has been approved")

	case actionNone:
		res.Text = refusalText(kind, pl.outcome, name, m)
	}
	return res, nil
}

func refusalText(kind Kind, outcome Outcome, name string, m ledger.Milestone) string {
	switch outcome {
	case OutcomeNoMilestones:
		return fmt.Sprintf("Project \"%s\" has no milestones. Nothing to %s!", name, strings.ReplaceAll(string(kind), "_", " "))
	case OutcomeAlreadyApproved:
		return milestoneText(name, m, "has already been approved")
	case OutcomeNoContributions:
		if kind == ApproveMilestone {
			return fmt.Sprintf("Project \"%s\" has no contributions. Cannot approve milestone voting!", name)
		}
		return fmt.Sprintf("Project  \"%s\" has no contributions. Cannot approve funding!", name)
	}
	return ""
}

func milestoneText(name string, m ledger.Milestone, verb string) string {
	return fmt.Sprintf("Project \"%s\" first milestone [%s] %s. You can now withdraw %d%% of the total required funds",
		name, strings.ToUpper(m.Name), verb, m.PercentageToUnlock)
}

func noProjectText(initiator string) string {
	return fmt.Sprintf("No project found for address %s!", initiator)
}

// Package workflow moves an ImbueProposals project through its funding
// lifecycle: schedule a round, approve funding, approve the first
// milestone.
package workflow

import "github.com/ImbueNetwork/imbue-faucet/internal/ledger"

// State is a project's lifecycle stage as read from its on-chain record.
type State int

const (
	NoContributions State = iota
	FundableNoApproval
	FundingApprovedMilestonePending
	MilestoneApproved
)

func (s State) String() string {
	switch s {
	case NoContributions:
		return "no_contributions"
	case FundableNoApproval:
		return "fundable_no_approval"
	case FundingApprovedMilestonePending:
		return "funding_approved_milestone_pending"
	case MilestoneApproved:
		return "milestone_approved"
	default:
		return "unknown"
	}
}

// StateOf infers the stage of p. Only the first milestone is considered.
func StateOf(p *ledger.Project) State {
	if m, ok := p.FirstMilestone(); ok && m.IsApproved {
		return MilestoneApproved
	}
	if len(p.Contributions) == 0 {
		return NoContributions
	}
	if p.ApprovedForFunding {
		return FundingApprovedMilestonePending
	}
	return FundableNoApproval
}

// Kind names a workflow command.
type Kind string

const (
	Schedule         Kind = "schedule"
	Approve          Kind = "approve"
	ApproveMilestone Kind = "approve_milestone"
)

// Outcome classifies what a command did.
type Outcome string

const (
	OutcomeScheduled         Outcome = "scheduled"
	OutcomeApproved          Outcome = "approved"
	OutcomeMilestoneApproved Outcome = "milestone_approved"
	OutcomeNoContributions   Outcome = "no_contributions"
	OutcomeAlreadyApproved   Outcome = "already_approved"
	OutcomeNoMilestones      Outcome = "no_milestones"
	OutcomeNoProject         Outcome = "no_project"
)

type action int

const (
	actionNone action = iota
	actionSchedule
	actionApprove
	actionApproveMilestone
)

// plan is the decision for one command before anything is submitted.
type plan struct {
	action  action
	outcome Outcome
}

// decide applies the precondition table to p.
func decide(kind Kind, p *ledger.Project) plan {
	m, ok := p.FirstMilestone()
	if !ok {
		return plan{outcome: OutcomeNoMilestones}
	}
	switch kind {
	case Schedule:
		return plan{action: actionSchedule, outcome: OutcomeScheduled}
	case Approve:
		if len(p.Contributions) == 0 {
			return plan{outcome: OutcomeNoContributions}
		}
		return plan{action: actionApprove, outcome: OutcomeApproved}
	case ApproveMilestone:
		if m.IsApproved {
			return plan{outcome: OutcomeAlreadyApproved}
		}
		if len(p.Contributions) == 0 {
			return plan{outcome: OutcomeNoContributions}
		}
		return plan{action: actionApproveMilestone, outcome: OutcomeMilestoneApproved}
	}
	return plan{}
}

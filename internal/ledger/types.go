// Package ledger is the faucet's view of the chain: a node port that
// adapters implement, and a Gateway that scopes every logical operation
// to one acquired node connection.
package ledger

import (
	"context"
	"math/big"
)

// TxHash is the receipt returned when the node accepts a submission into
// its pool. It says nothing about inclusion or finality.
type TxHash string

// ChainInfo identifies the chain and node a connection talks to.
type ChainInfo struct {
	Chain       string
	NodeName    string
	NodeVersion string
}

// Milestone is one step of a project's funding plan.
type Milestone struct {
	ProjectKey         uint32
	Index              uint32
	Name               string
	PercentageToUnlock uint32
	IsApproved         bool
}

// Contribution is value committed to a project by one funder.
type Contribution struct {
	Account string
	Value   *big.Int
}

// Project is a funding request decoded from ImbueProposals.Projects.
type Project struct {
	Key                 uint32
	Name                string
	Initiator           string
	Milestones          []Milestone
	Contributions       []Contribution
	RequiredFunds       *big.Int
	WithdrawnFunds      *big.Int
	CreatedAt           uint64
	ApprovedForFunding  bool
	FundingThresholdMet bool
	Cancelled           bool
}

// FirstMilestone returns milestone 0 and whether the project has one.
func (p *Project) FirstMilestone() (Milestone, bool) {
	if len(p.Milestones) == 0 {
		return Milestone{}, false
	}
	return p.Milestones[0], true
}

// SigningIdentity is the account writes are signed with.
type SigningIdentity struct {
	Address string
}

// Dialer opens connections to a ledger node.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// Conn is one session with a ledger node. Implementations need not be
// safe for concurrent use; the Gateway hands each Conn to one caller at a
// time.
type Conn interface {
	ChainInfo(ctx context.Context) (ChainInfo, error)
	// Projects returns every project in creation order.
	Projects(ctx context.Context) ([]Project, error)
	LatestBlock(ctx context.Context) (uint64, error)

	UseCredential(mnemonic string) (SigningIdentity, error)
	Transfer(ctx context.Context, to string, amount *big.Int) (TxHash, error)
	ScheduleRound(ctx context.Context, projectKeys []uint32, startBlock, endBlock uint64) (TxHash, error)
	ApproveFunding(ctx context.Context, projectKey uint32, milestone *uint32) (TxHash, error)

	Close() error
}

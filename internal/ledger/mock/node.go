// Package mock provides an in-memory ledger node for tests and dry runs.
package mock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"

	"github.com/ImbueNetwork/imbue-faucet/internal/ledger"
)

// SignerAddress is the identity every accepted mnemonic resolves to.
const SignerAddress = "5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty"

// Transfer is a recorded balance transfer.
type Transfer struct {
	To     string
	Amount *big.Int
}

// Round is a recorded ScheduleRound call.
type Round struct {
	ProjectKeys []uint32
	StartBlock  uint64
	EndBlock    uint64
}

// Approval is a recorded ApproveFunding call. Milestone is nil for
// project-level approval.
type Approval struct {
	ProjectKey uint32
	Milestone  *uint32
}

// Node implements ledger.Dialer. Submitted writes are recorded and
// applied to the in-memory project state.
type Node struct {
	mu        sync.Mutex
	info      ledger.ChainInfo
	head      uint64
	projects  []ledger.Project
	dialErr   error
	submitErr error
	infoErr   error

	transfers []Transfer
	rounds    []Round
	approvals []Approval
	dials     int
	open      int
	txSeq     int
}

// NewNode returns a Node at block height head.
func NewNode(head uint64) *Node {
	return &Node{
		info: ledger.ChainInfo{Chain: "Imbue Development", NodeName: "mock-node", NodeVersion: "0.0.0"},
		head: head,
	}
}

// AddProject appends p to the project list, making it the newest.
func (n *Node) AddProject(p ledger.Project) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.projects = append(n.projects, p)
}

// Project returns the stored project with key.
func (n *Node) Project(key uint32) (ledger.Project, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, p := range n.projects {
		if p.Key == key {
			return p, true
		}
	}
	return ledger.Project{}, false
}

// SetHead moves the chain head.
func (n *Node) SetHead(h uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.head = h
}

// FailDial makes every following Dial return err.
func (n *Node) FailDial(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dialErr = err
}

// FailChainInfo makes the handshake on new connections return err.
func (n *Node) FailChainInfo(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.infoErr = err
}

// FailSubmit makes every following write return err.
func (n *Node) FailSubmit(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.submitErr = err
}

func (n *Node) Transfers() []Transfer {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Transfer(nil), n.transfers...)
}

func (n *Node) Rounds() []Round {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Round(nil), n.rounds...)
}

func (n *Node) Approvals() []Approval {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Approval(nil), n.approvals...)
}

// Submissions counts every accepted write.
func (n *Node) Submissions() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.transfers) + len(n.rounds) + len(n.approvals)
}

// Dials reports how many connections were opened.
func (n *Node) Dials() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dials
}

// OpenConns reports connections dialed but not yet closed.
func (n *Node) OpenConns() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.open
}

// Dial implements ledger.Dialer.
func (n *Node) Dial(ctx context.Context) (ledger.Conn, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.dialErr != nil {
		return nil, n.dialErr
	}
	n.dials++
	n.open++
	return &conn{node: n}, nil
}

type conn struct {
	node   *Node
	closed bool
	signed bool
}

func (c *conn) ChainInfo(ctx context.Context) (ledger.ChainInfo, error) {
	c.node.mu.Lock()
	defer c.node.mu.Unlock()
	if c.node.infoErr != nil {
		return ledger.ChainInfo{}, c.node.infoErr
	}
	return c.node.info, nil
}

func (c *conn) Projects(ctx context.Context) ([]ledger.Project, error) {
	c.node.mu.Lock()
	defer c.node.mu.Unlock()
	out := make([]ledger.Project, len(c.node.projects))
	for i, p := range c.node.projects {
		p.Milestones = append([]ledger.Milestone(nil), p.Milestones...)
		p.Contributions = append([]ledger.Contribution(nil), p.Contributions...)
		out[i] = p
	}
	return out, nil
}

func (c *conn) LatestBlock(ctx context.Context) (uint64, error) {
	c.node.mu.Lock()
	defer c.node.mu.Unlock()
	return c.node.head, nil
}

// UseCredential accepts any mnemonic of 12 or 24 words.
func (c *conn) UseCredential(mnemonic string) (ledger.SigningIdentity, error) {
	if words := len(strings.Fields(mnemonic)); words != 12 && words != 24 {
		return ledger.SigningIdentity{}, fmt.Errorf("mnemonic has %d words", words)
	}
	c.signed = true
	return ledger.SigningIdentity{Address: SignerAddress}, nil
}

func (c *conn) Transfer(ctx context.Context, to string, amount *big.Int) (ledger.TxHash, error) {
	return c.write(func(n *Node) {
		n.transfers = append(n.transfers, Transfer{To: to, Amount: new(big.Int).Set(amount)})
	})
}

func (c *conn) ScheduleRound(ctx context.Context, projectKeys []uint32, startBlock, endBlock uint64) (ledger.TxHash, error) {
	return c.write(func(n *Node) {
		n.rounds = append(n.rounds, Round{
			ProjectKeys: append([]uint32(nil), projectKeys...),
			StartBlock:  startBlock,
			EndBlock:    endBlock,
		})
	})
}

func (c *conn) ApproveFunding(ctx context.Context, projectKey uint32, milestone *uint32) (ledger.TxHash, error) {
	return c.write(func(n *Node) {
		a := Approval{ProjectKey: projectKey}
		if milestone != nil {
			m := *milestone
			a.Milestone = &m
		}
		n.approvals = append(n.approvals, a)
		n.applyApproval(a)
	})
}

func (c *conn) write(apply func(*Node)) (ledger.TxHash, error) {
	if c.closed {
		return "", errors.New("mock: connection closed")
	}
	if !c.signed {
		return "", errors.New("mock: unsigned write")
	}
	n := c.node
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.submitErr != nil {
		return "", n.submitErr
	}
	apply(n)
	n.txSeq++
	hash := ledger.TxHash(fmt.Sprintf("0x%064x", n.txSeq))
	slog.Debug("mock ledger accepted extrinsic", "tx_hash", string(hash))
	return hash, nil
}

func (n *Node) applyApproval(a Approval) {
	for i := range n.projects {
		p := &n.projects[i]
		if p.Key != a.ProjectKey {
			continue
		}
		if a.Milestone == nil {
			p.ApprovedForFunding = true
			return
		}
		for j := range p.Milestones {
			if p.Milestones[j].Index == *a.Milestone {
				p.Milestones[j].IsApproved = true
			}
		}
		return
	}
}

func (c *conn) Close() error {
	if c.closed {
		return errors.New("mock: connection already closed")
	}
	c.closed = true
	c.node.mu.Lock()
	defer c.node.mu.Unlock()
	c.node.open--
	return nil
}

package workflow

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ImbueNetwork/imbue-faucet/internal/ledger"
)

const initiator = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"

type approval struct {
	key       uint32
	milestone *uint32
}

type round struct {
	keys       []uint32
	start, end uint64
}

type fakeLedger struct {
	project   *ledger.Project
	findErr   error
	head      uint64
	submitErr error
	rounds    []round
	approvals []approval
}

func (f *fakeLedger) FindProjectByInitiator(ctx context.Context, addr string) (*ledger.Project, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	if f.project == nil || f.project.Initiator != addr {
		return nil, nil
	}
	return f.project, nil
}

func (f *fakeLedger) LatestBlock(ctx context.Context) (uint64, error) { return f.head, nil }

func (f *fakeLedger) ScheduleRound(ctx context.Context, keys []uint32, start, end uint64) (ledger.TxHash, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.rounds = append(f.rounds, round{keys: keys, start: start, end: end})
	return "0xround", nil
}

func (f *fakeLedger) ApproveFunding(ctx context.Context, key uint32, milestone *uint32) (ledger.TxHash, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.approvals = append(f.approvals, approval{key: key, milestone: milestone})
	return "0xapprove", nil
}

func (f *fakeLedger) writes() int { return len(f.rounds) + len(f.approvals) }

func project(contributions int, milestoneApproved bool) *ledger.Project {
	p := &ledger.Project{
		Key:       3,
		Name:      "Solar Farm",
		Initiator: initiator,
		Milestones: []ledger.Milestone{{
			ProjectKey:         7,
			Index:              0,
			Name:               "Site survey",
			PercentageToUnlock: 20,
			IsApproved:         milestoneApproved,
		}},
	}
	for i := 0; i < contributions; i++ {
		p.Contributions = append(p.Contributions, ledger.Contribution{Account: "c", Value: big.NewInt(10)})
	}
	return p
}

func TestRun_ScheduleUsesHeadPlusOffset(t *testing.T) {
	f := &fakeLedger{project: project(0, false), head: 1000}

	res, err := New(false, nil).Run(context.Background(), Schedule, initiator, f)
	require.NoError(t, err)

	require.Len(t, f.rounds, 1)
	assert.Equal(t, round{keys: []uint32{7}, start: 1001, end: 1101}, f.rounds[0])
	assert.Equal(t, OutcomeScheduled, res.Outcome)
	assert.True(t, res.Submitted())
	assert.Equal(t, "Project \"SOLAR FARM\" has been scheduled for funding.\n\n Contributors can fund between blocks 1001 and 1101.", res.Text)
}

func TestRun_Approve(t *testing.T) {
	f := &fakeLedger{project: project(1, false)}

	res, err := New(false, nil).Run(context.Background(), Approve, initiator, f)
	require.NoError(t, err)

	require.Len(t, f.approvals, 1)
	assert.Equal(t, uint32(7), f.approvals[0].key)
	assert.Nil(t, f.approvals[0].milestone)
	assert.Equal(t, OutcomeApproved, res.Outcome)
	assert.Equal(t, FundableNoApproval, res.State)
	assert.Equal(t, `Project "SOLAR FARM" funding has been approved. You can now submit your milestones!`, res.Text)
}

func TestRun_ApproveWithoutContributions(t *testing.T) {
	f := &fakeLedger{project: project(0, false)}

	res, err := New(false, nil).Run(context.Background(), Approve, initiator, f)
	require.NoError(t, err)

	assert.Zero(t, f.writes())
	assert.False(t, res.Submitted())
	assert.Equal(t, OutcomeNoContributions, res.Outcome)
	assert.Contains(t, res.Text, "has no contributions")
	assert.Equal(t, `Project  "SOLAR FARM" has no contributions. Cannot approve funding!`, res.Text)
}

func TestRun_ApproveMilestone(t *testing.T) {
	f := &fakeLedger{project: project(2, false)}

	res, err := New(false, nil).Run(context.Background(), ApproveMilestone, initiator, f)
	require.NoError(t, err)

	require.Len(t, f.approvals, 1)
	require.NotNil(t, f.approvals[0].milestone)
	assert.Equal(t, uint32(0), *f.approvals[0].milestone)
	assert.Equal(t, OutcomeMilestoneApproved, res.Outcome)
	assert.Equal(t, `Project "SOLAR FARM" first milestone [SITE SURVEY] has been approved. You can now withdraw 20% of the total required funds`, res.Text)
}

func TestRun_ApproveMilestoneAlreadyApproved(t *testing.T) {
	for _, contributions := range []int{0, 1} {
		f := &fakeLedger{project: project(contributions, true)}

		res, err := New(false, nil).Run(context.Background(), ApproveMilestone, initiator, f)
		require.NoError(t, err)

		assert.Zero(t, f.writes())
		assert.Equal(t, OutcomeAlreadyApproved, res.Outcome)
		assert.Equal(t, MilestoneApproved, res.State)
		assert.Contains(t, res.Text, "20%")
		assert.Contains(t, res.Text, "has already been approved")
	}
}

func TestRun_ApproveMilestoneWithoutContributions(t *testing.T) {
	f := &fakeLedger{project: project(0, false)}

	res, err := New(false, nil).Run(context.Background(), ApproveMilestone, initiator, f)
	require.NoError(t, err)

	assert.Zero(t, f.writes())
	assert.Equal(t, `Project "SOLAR FARM" has no contributions. Cannot approve milestone voting!`, res.Text)
}

func TestRun_NoProject(t *testing.T) {
	f := &fakeLedger{}

	res, err := New(false, nil).Run(context.Background(), Schedule, initiator, f)
	require.NoError(t, err)
	assert.True(t, res.Silent)
	assert.Empty(t, res.Text)
	assert.Equal(t, OutcomeNoProject, res.Outcome)

	res, err = New(true, nil).Run(context.Background(), Schedule, initiator, f)
	require.NoError(t, err)
	assert.False(t, res.Silent)
	assert.Contains(t, res.Text, initiator)
	assert.Zero(t, f.writes())
}

func TestRun_NoMilestones(t *testing.T) {
	p := project(1, false)
	p.Milestones = nil

	for _, kind := range []Kind{Schedule, Approve, ApproveMilestone} {
		f := &fakeLedger{project: p}
		res, err := New(false, nil).Run(context.Background(), kind, initiator, f)
		require.NoError(t, err)
		assert.Equal(t, OutcomeNoMilestones, res.Outcome, kind)
		assert.Zero(t, f.writes())
	}
}

func TestRun_Errors(t *testing.T) {
	boom := errors.New("boom")

	_, err := New(false, nil).Run(context.Background(), Approve, initiator, &fakeLedger{findErr: boom})
	assert.ErrorIs(t, err, boom)

	_, err = New(false, nil).Run(context.Background(), Approve, initiator, &fakeLedger{project: project(1, false), submitErr: boom})
	assert.ErrorIs(t, err, boom)

	_, err = New(false, nil).Run(context.Background(), Kind("withdraw"), initiator, &fakeLedger{})
	assert.Error(t, err)
}

func TestStateOf(t *testing.T) {
	approved := project(1, false)
	approved.ApprovedForFunding = true

	tests := []struct {
		name string
		p    *ledger.Project
		want State
	}{
		{"no contributions", project(0, false), NoContributions},
		{"fundable", project(1, false), FundableNoApproval},
		{"funding approved", approved, FundingApprovedMilestonePending},
		{"milestone approved", project(1, true), MilestoneApproved},
		{"no milestones", &ledger.Project{}, NoContributions},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StateOf(tt.p))
			assert.NotEqual(t, "unknown", tt.want.String())
		})
	}
}

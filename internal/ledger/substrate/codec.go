package substrate

import (
	"fmt"
	"math/big"

	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"

	"github.com/ImbueNetwork/imbue-faucet/internal/address"
	"github.com/ImbueNetwork/imbue-faucet/internal/ledger"
)

// Field order mirrors the SCALE layout of the imbue-proposals pallet.

type rawMilestone struct {
	ProjectKey         types.U32
	MilestoneIndex     types.U32
	Name               types.Bytes
	PercentageToUnlock types.U32
	IsApproved         types.Bool
}

type rawContribution struct {
	AccountID [32]byte
	Value     types.U128
}

type rawProject struct {
	Name                types.Bytes
	Logo                types.Bytes
	Description         types.Bytes
	Website             types.Bytes
	Milestones          []rawMilestone
	Contributions       []rawContribution
	CurrencyID          types.U8
	RequiredFunds       types.U128
	WithdrawnFunds      types.U128
	Initiator           [32]byte
	CreateBlockNumber   types.U32
	ApprovedForFunding  types.Bool
	FundingThresholdMet types.Bool
	Cancelled           types.Bool
}

func (r rawProject) toProject(key uint32, network uint16) (ledger.Project, error) {
	initiator, err := address.Encode(r.Initiator[:], network)
	if err != nil {
		return ledger.Project{}, fmt.Errorf("project %d initiator: %w", key, err)
	}
	p := ledger.Project{
		Key:                 key,
		Name:                string(r.Name),
		Initiator:           initiator,
		RequiredFunds:       bigOf(r.RequiredFunds),
		WithdrawnFunds:      bigOf(r.WithdrawnFunds),
		CreatedAt:           uint64(r.CreateBlockNumber),
		ApprovedForFunding:  bool(r.ApprovedForFunding),
		FundingThresholdMet: bool(r.FundingThresholdMet),
		Cancelled:           bool(r.Cancelled),
	}
	for _, m := range r.Milestones {
		p.Milestones = append(p.Milestones, ledger.Milestone{
			ProjectKey:         uint32(m.ProjectKey),
			Index:              uint32(m.MilestoneIndex),
			Name:               string(m.Name),
			PercentageToUnlock: uint32(m.PercentageToUnlock),
			IsApproved:         bool(m.IsApproved),
		})
	}
	for _, c := range r.Contributions {
		account, err := address.Encode(c.AccountID[:], network)
		if err != nil {
			return ledger.Project{}, fmt.Errorf("project %d contributor: %w", key, err)
		}
		p.Contributions = append(p.Contributions, ledger.Contribution{Account: account, Value: bigOf(c.Value)})
	}
	return p, nil
}

func bigOf(v types.U128) *big.Int {
	if v.Int == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v.Int)
}

// milestoneKeys encodes Option<Vec<MilestoneKey>> for the approve call.
type milestoneKeys struct {
	set  bool
	keys []types.U32
}

func (m milestoneKeys) Encode(encoder scale.Encoder) error {
	return encoder.EncodeOption(m.set, m.keys)
}

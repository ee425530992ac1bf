package substrate

import (
	"errors"
	"math"
	"testing"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ImbueNetwork/imbue-faucet/internal/ledger"
)

func TestBlockNumber(t *testing.T) {
	n, err := blockNumber(math.MaxUint32)
	require.NoError(t, err)
	assert.Equal(t, types.NewU32(math.MaxUint32), n)

	_, err = blockNumber(math.MaxUint32 + 1)
	assert.ErrorContains(t, err, "u32")

	_, err = blockNumber(1 << 40)
	assert.Error(t, err)
}

type invalidTransaction struct{}

func (invalidTransaction) Error() string  { return "Invalid Transaction" }
func (invalidTransaction) ErrorCode() int { return 1010 }

func TestSubmitError(t *testing.T) {
	refused := submitError(invalidTransaction{})
	assert.NotErrorIs(t, refused, ledger.ErrUnconfirmed)
	assert.ErrorContains(t, refused, "Invalid Transaction")

	lost := submitError(errors.New("websocket: close 1006 (abnormal closure)"))
	assert.ErrorIs(t, lost, ledger.ErrUnconfirmed)
}

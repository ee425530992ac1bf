package address

import (
	"encoding/hex"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	aliceHex       = "d43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"
	aliceGeneric   = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	alicePolkadot  = "15oF4uVJwmo4TdGW7VfQxNLavjCXviqxT9S1MgbjMNHr6Sp5"
	genericNetwork = 42
)

func alice(t *testing.T) []byte {
	t.Helper()
	b, err := hex.DecodeString(aliceHex)
	require.NoError(t, err)
	return b
}

func TestEncode_KnownVectors(t *testing.T) {
	got, err := Encode(alice(t), genericNetwork)
	require.NoError(t, err)
	assert.Equal(t, aliceGeneric, got)

	got, err = Encode(alice(t), 0)
	require.NoError(t, err)
	assert.Equal(t, alicePolkadot, got)
}

func TestDecode_KnownVector(t *testing.T) {
	a, err := Decode(aliceGeneric)
	require.NoError(t, err)
	assert.Equal(t, uint16(genericNetwork), a.Network())
	assert.Equal(t, alice(t), a.AccountID())
	assert.Equal(t, aliceGeneric, a.String())
}

func TestEncodeDecode_TwoBytePrefix(t *testing.T) {
	for _, network := range []uint16{64, 255, 1284, 16383} {
		s, err := Encode(alice(t), network)
		require.NoError(t, err)

		a, err := Decode(s)
		require.NoError(t, err, "network %d", network)
		assert.Equal(t, network, a.Network())
		assert.Equal(t, alice(t), a.AccountID())
	}
}

func TestEncode_ShortAccountUsesOneByteChecksum(t *testing.T) {
	s, err := Encode([]byte{1, 2, 3, 4}, genericNetwork)
	require.NoError(t, err)

	a, err := Decode(s)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, a.AccountID())
}

func TestEncode_Rejects(t *testing.T) {
	_, err := Encode(make([]byte, 31), genericNetwork)
	assert.ErrorIs(t, err, ErrLength)

	_, err = Encode(alice(t), 46)
	assert.ErrorIs(t, err, ErrPrefix)

	_, err = Encode(alice(t), maxNetwork+1)
	assert.ErrorIs(t, err, ErrPrefix)
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"not base58", "0OIl", ErrEncoding},
		{"empty", "", ErrEncoding},
		{"bad checksum", aliceGeneric[:len(aliceGeneric)-1] + "Z", ErrChecksum},
		{"bad length", base58.Encode(append([]byte{genericNetwork}, make([]byte, 11)...)), ErrLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParse_NetworkMismatch(t *testing.T) {
	_, err := Parse(alicePolkadot, genericNetwork)
	assert.ErrorIs(t, err, ErrNetwork)

	a, err := Parse(alicePolkadot, 0)
	require.NoError(t, err)
	assert.Equal(t, alice(t), a.AccountID())
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(aliceGeneric, genericNetwork))
	assert.False(t, Valid(aliceGeneric, 0))
	assert.False(t, Valid("hello", genericNetwork))
}

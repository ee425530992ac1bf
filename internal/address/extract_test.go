package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var commandTokens = []string{"/request", "/schedule", "/approve", "/milestone"}

func TestExtractor_Extract(t *testing.T) {
	e := NewExtractor(commandTokens, genericNetwork, nil)

	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{"request", "/request " + aliceGeneric, aliceGeneric, true},
		{"schedule", "/schedule " + aliceGeneric, aliceGeneric, true},
		{"milestone", "/milestone   " + aliceGeneric + "  ", aliceGeneric, true},
		{"bare address", aliceGeneric, aliceGeneric, true},
		{"no address", "/request", "", false},
		{"garbage", "/request not-an-address", "", false},
		{"wrong network", "/request " + alicePolkadot, "", false},
		{"inner whitespace", "/request 5Grwva EF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := e.Extract(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractor_IdempotentOnBareAddress(t *testing.T) {
	e := NewExtractor(commandTokens, genericNetwork, nil)

	once, ok := e.Extract(aliceGeneric)
	assert.True(t, ok)
	twice, ok := e.Extract(once)
	assert.True(t, ok)
	assert.Equal(t, aliceGeneric, twice)
}

func TestExtractor_CheckerDecides(t *testing.T) {
	var seen []string
	reject := func(candidate string, network uint16) bool {
		seen = append(seen, candidate)
		assert.Equal(t, uint16(7), network)
		return false
	}
	e := NewExtractor(commandTokens, 7, reject)

	for _, in := range []string{"/request " + aliceGeneric, aliceGeneric, "/approve /milestone abc"} {
		_, ok := e.Extract(in)
		assert.False(t, ok, in)
	}
	assert.Equal(t, []string{aliceGeneric, aliceGeneric, "abc"}, seen)
}

func TestExtractor_CustomCheckerAccepts(t *testing.T) {
	e := NewExtractor(commandTokens, 7, func(string, uint16) bool { return true })

	got, ok := e.Extract("/schedule\tanything ")
	assert.True(t, ok)
	assert.Equal(t, "anything", got)
}

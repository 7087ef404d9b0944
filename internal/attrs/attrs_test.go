// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package attrs

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPortPartitionsRanges(t *testing.T) {
	// S1 from spec: R1=[1000,2000], R2=[1500,65535], R3=[0,3000].
	reg, state, err := BuildPort([][]PortRange{
		{{From: 1000, To: 2000}},
		{{From: 1500, To: 65535}},
		{{From: 0, To: 3000}},
	})
	require.NoError(t, err)

	id1500 := state.Query(1500)
	assert.ElementsMatch(t, []uint32{0, 1, 2}, reg.Range(id1500))

	id2500 := state.Query(2500)
	assert.ElementsMatch(t, []uint32{1, 2}, reg.Range(id2500))

	id3500 := state.Query(3500)
	assert.Equal(t, []uint32{1}, reg.Range(id3500))
}

func TestBuildPortRejectsInvertedRange(t *testing.T) {
	_, _, err := BuildPort([][]PortRange{{{From: 100, To: 50}}})
	assert.Error(t, err)
}

func TestBuildPortWildcardAppliesToEverySegment(t *testing.T) {
	reg, state, err := BuildPort([][]PortRange{
		{{From: 0, To: 65535}},
		{{From: 80, To: 80}},
	})
	require.NoError(t, err)

	assert.Contains(t, reg.Range(state.Query(22)), uint32(0))
	assert.Contains(t, reg.Range(state.Query(80)), uint32(0))
	assert.Contains(t, reg.Range(state.Query(80)), uint32(1))
}

func TestBuildProtoAndTCPFlags(t *testing.T) {
	reg, state, err := BuildProto([]TransportProto{
		{Number: 6, TCPEnable: 0x02}, // SYN required
		{Number: ProtoUnspec},
	})
	require.NoError(t, err)

	id := state.Query(6)
	assert.Contains(t, reg.Range(id), uint32(0))
	assert.Contains(t, reg.Range(id), uint32(1))

	assert.True(t, state.CheckTCPFlags(0, 0x02))
	assert.False(t, state.CheckTCPFlags(0, 0x00))
	assert.True(t, state.CheckTCPFlags(1, 0x00), "unconstrained rule always passes the flag check")
}

func TestBuildNet4NarrowsToMostSpecificPrefix(t *testing.T) {
	// S3 from spec: 192.168.0.0/16, terminal.
	reg, state, err := BuildNet4([][]Net4{
		{{Addr: [4]byte{192, 168, 0, 0}, Mask: [4]byte{255, 255, 0, 0}}},
	})
	require.NoError(t, err)

	inside := netip.MustParseAddr("192.168.5.5")
	outside := netip.MustParseAddr("10.0.0.1")

	assert.Equal(t, []uint32{0}, reg.Range(state.Query(inside)))
	assert.Empty(t, reg.Range(state.Query(outside)))
}

func TestBuildNet4RejectsNonPrefixMask(t *testing.T) {
	_, _, err := BuildNet4([][]Net4{
		{{Addr: [4]byte{10, 0, 0, 0}, Mask: [4]byte{255, 0, 255, 0}}},
	})
	assert.Error(t, err)
}

func TestBuildNet4NestedPrefixesInheritAncestorRules(t *testing.T) {
	reg, state, err := BuildNet4([][]Net4{
		{{Addr: [4]byte{10, 0, 0, 0}, Mask: [4]byte{255, 0, 0, 0}}},   // 10.0.0.0/8
		{{Addr: [4]byte{10, 1, 0, 0}, Mask: [4]byte{255, 255, 0, 0}}}, // 10.1.0.0/16
	})
	require.NoError(t, err)

	inNarrow := netip.MustParseAddr("10.1.2.3")
	inBroadOnly := netip.MustParseAddr("10.9.9.9")

	assert.ElementsMatch(t, []uint32{0, 1}, reg.Range(state.Query(inNarrow)))
	assert.Equal(t, []uint32{0}, reg.Range(state.Query(inBroadOnly)))
}

func TestBuildVLANWildcard(t *testing.T) {
	reg, state, err := BuildVLAN([]uint16{VLANUnspec, 100})
	require.NoError(t, err)

	id := state.Query(100)
	assert.ElementsMatch(t, []uint32{0, 1}, reg.Range(id))
	assert.Equal(t, []uint32{0}, reg.Range(state.Query(200)))
}

// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package classify is the public API of the multi-dimensional packet
// classifier: Compile turns a rule set into a static binary decision
// tree, Query evaluates it per packet.
package classify

import (
	"github.com/coreswitch/pktclass/internal/attrs"
)

// AttrKind identifies one packet attribute in the compile-time signature
// (spec.md §4.3/§6). Build and query must use the same ordered list.
type AttrKind int

const (
	Net4Src AttrKind = iota
	Net4Dst
	Net6Src
	Net6Dst
	PortSrc
	PortDst
	Proto
	VLAN
)

func (k AttrKind) String() string {
	switch k {
	case Net4Src:
		return "net4_src"
	case Net4Dst:
		return "net4_dst"
	case Net6Src:
		return "net6_src"
	case Net6Dst:
		return "net6_dst"
	case PortSrc:
		return "port_src"
	case PortDst:
		return "port_dst"
	case Proto:
		return "proto"
	case VLAN:
		return "vlan"
	default:
		return "unknown"
	}
}

// Rule mirrors the wire format of spec.md §6. The rule's index in the
// slice passed to Compile is its priority (spec.md §3).
type Rule struct {
	Net4Src []attrs.Net4
	Net4Dst []attrs.Net4
	Net6Src []attrs.Net6
	Net6Dst []attrs.Net6

	SrcPorts []attrs.PortRange
	DstPorts []attrs.PortRange

	Transport attrs.TransportProto

	VLAN uint16 // attrs.VLANUnspec for "any"

	Action uint32
}

// Packet is a plain, caller-populated decode result (spec.md §6's
// packet decoder collaborator; decode from raw bytes is a non-goal).
type Packet struct {
	SrcIP4, DstIP4   [4]byte
	SrcIP6, DstIP6   [16]byte
	SrcPort, DstPort uint16
	Proto            uint8
	TCPFlags         uint16
	VLAN             uint16
}

// Action word layout (spec.md §3).
const (
	ActionPayloadMask = 0x7FFF
	NonTerminateBit   = 1 << 15
	CategoryMaskShift = 16
)

// ActionPayload returns bits [0..14] of an action word.
func ActionPayload(action uint32) uint16 {
	return uint16(action & ActionPayloadMask)
}

// IsTerminal reports whether an action word ends match collection
// (bit 15 clear).
func IsTerminal(action uint32) bool {
	return action&NonTerminateBit == 0
}

// CategoryMask returns bits [16..31] of an action word.
func CategoryMask(action uint32) uint16 {
	return uint16(action >> CategoryMaskShift)
}

// ActionsWithCategory filters actions in place for a category, per
// spec.md §4.6: a set category mask matches only packets whose category
// bit is set; mask 0 matches every category. Filtering stops at the
// first kept terminal action. It always returns a valid prefix length
// of the input slice.
func ActionsWithCategory(actions []uint32, category uint16) []uint32 {
	out := actions[:0]
	for _, a := range actions {
		mask := CategoryMask(a)
		if mask != 0 && mask&(1<<category) == 0 {
			continue
		}
		out = append(out, a)
		if IsTerminal(a) {
			break
		}
	}
	return out
}

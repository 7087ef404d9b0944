// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package attrs

import (
	"sort"

	"github.com/coreswitch/pktclass/internal/registry"
)

// ProtoUnspec is the wildcard protocol number (spec.md §6).
const ProtoUnspec = 0xFF

// TransportProto is one rule's protocol-and-TCP-flags constraint.
type TransportProto struct {
	Number     uint8 // ProtoUnspec for "any protocol"
	TCPEnable  uint16
	TCPDisable uint16
}

// ProtoState is the opaque per-attribute query state for the protocol
// builder: a dense map from protocol number to classifier id, plus the
// TCP flag masks to re-check at query time (spec.md §4.3: "TCP flag
// masks participate only as an additional AND-check performed at query
// time"). The flag masks are keyed directly by rule id rather than by
// classifier id, since a rule's TCP constraint is a fact about that
// rule, not about the protocol-number partition it happens to fall
// into.
type ProtoState struct {
	classifier [256]uint32 // classifier id for each protocol number
	universal  uint32      // classifier id carrying wildcard rules, folded into every protocol
	flags      map[uint32]flagCheck
}

type flagCheck struct {
	enable  uint16
	disable uint16
}

// Query returns the classifier id for a packet's protocol number. The
// TCP flags AND-check happens downstream in the query engine once the
// candidate rule list is known, via CheckTCPFlags.
func (s *ProtoState) Query(proto uint8) uint32 {
	if s == nil {
		return 0
	}
	return s.classifier[proto]
}

// CheckTCPFlags reports whether ruleID's TCP enable/disable masks admit
// the packet's observed flags. Rules with no flag constraint always
// pass.
func (s *ProtoState) CheckTCPFlags(ruleID uint32, observed uint16) bool {
	if s == nil {
		return true
	}
	fc, ok := s.flags[ruleID]
	if !ok {
		return true
	}
	return observed&fc.enable == fc.enable && observed&fc.disable == 0
}

func (s *ProtoState) Free() {
	if s != nil {
		s.flags = nil
	}
}

// BuildProto is the C3 builder for the protocol attribute: the
// partition is one classifier per distinct protocol number that
// appears in the rule set, plus the wildcard classifier that every
// protocol-unconstrained rule belongs to and which is folded into every
// protocol's registry range.
func BuildProto(protos []TransportProto) (*registry.Registry, *ProtoState, error) {
	reg := registry.New()
	reg.StartRange() // classifier 0: reserved, carries only wildcard rules when nothing else matches

	numbers := map[uint8][]uint32{}
	var universal []uint32

	for ruleID, p := range protos {
		if p.Number == ProtoUnspec {
			universal = append(universal, uint32(ruleID))
			continue
		}
		numbers[p.Number] = append(numbers[p.Number], uint32(ruleID))
	}

	ordered := make([]uint8, 0, len(numbers))
	for n := range numbers {
		ordered = append(ordered, n)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	state := &ProtoState{flags: map[uint32]flagCheck{}}
	for p := 0; p < 256; p++ {
		state.classifier[p] = 0
	}

	for ruleID, p := range protos {
		if p.TCPEnable != 0 || p.TCPDisable != 0 {
			state.flags[uint32(ruleID)] = flagCheck{enable: p.TCPEnable, disable: p.TCPDisable}
		}
	}

	for _, n := range ordered {
		id := reg.StartRange()
		members := append(append([]uint32{}, universal...), numbers[n]...)
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		reg.SetRange(id, members)
		state.classifier[n] = id
	}
	reg.SetRange(0, append([]uint32{}, universal...))

	return reg, state, nil
}

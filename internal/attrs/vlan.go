// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package attrs

import (
	"sort"

	"github.com/coreswitch/pktclass/internal/registry"
)

// VLANUnspec is the wildcard VLAN id (spec.md §6).
const VLANUnspec = 0xFFFF

// VLANState is the opaque per-attribute query state for the VLAN
// builder: a dense map from VLAN id to classifier id.
type VLANState struct {
	classifier map[uint16]uint32
}

// Query returns the classifier id for a packet's VLAN id, or the
// universal classifier (0) if this exact id was never constrained.
func (s *VLANState) Query(vlan uint16) uint32 {
	if s == nil {
		return 0
	}
	return s.classifier[vlan]
}

func (s *VLANState) Free() {
	if s != nil {
		s.classifier = nil
	}
}

// BuildVLAN is the C3 builder for the VLAN attribute: one classifier
// per distinct VLAN id referenced by a rule, plus the universal
// classifier 0 carrying every VLANUnspec rule, folded into every id's
// registry range.
func BuildVLAN(vlans []uint16) (*registry.Registry, *VLANState, error) {
	reg := registry.New()
	reg.StartRange() // classifier 0

	byID := map[uint16][]uint32{}
	var universal []uint32

	for ruleID, v := range vlans {
		if v == VLANUnspec {
			universal = append(universal, uint32(ruleID))
			continue
		}
		byID[v] = append(byID[v], uint32(ruleID))
	}

	ordered := make([]uint16, 0, len(byID))
	for v := range byID {
		ordered = append(ordered, v)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	state := &VLANState{classifier: make(map[uint16]uint32, len(ordered))}
	for _, v := range ordered {
		id := reg.StartRange()
		members := append(append([]uint32{}, universal...), byID[v]...)
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		reg.SetRange(id, members)
		state.classifier[v] = id
	}
	reg.SetRange(0, append([]uint32{}, universal...))

	return reg, state, nil
}

// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package attrs

import (
	"sort"

	cerrors "github.com/coreswitch/pktclass/internal/errors"
	"github.com/coreswitch/pktclass/internal/registry"
)

// PortRange is one rule's inclusive port-range constraint (spec.md §6).
type PortRange struct {
	From, To uint16
}

// PortState is the opaque per-attribute query state for a port builder:
// the sorted segment boundaries induced by every rule's range endpoints.
type PortState struct {
	bounds []uint16 // ascending, inclusive starts of each segment after bounds[0]
}

// Query returns the segment classifier id covering port. Segments are
// contiguous and total over [0, 65535] (bounds[0] is always 0), so a
// binary search over the recorded starts locates the covering one.
func (s *PortState) Query(port uint16) uint32 {
	if s == nil || len(s.bounds) == 0 {
		return 0
	}
	idx := sort.Search(len(s.bounds), func(i int) bool { return s.bounds[i] > port }) - 1
	if idx < 0 {
		idx = 0
	}
	return uint32(idx)
}

func (s *PortState) Free() {
	if s != nil {
		s.bounds = nil
	}
}

// BuildPort is the C3 builder for a port-range attribute (src or dst
// port): collect every rule range's endpoints, which induces a total
// partition of [0, 65535] into at most 2N+1 disjoint segments; rules
// that span the full range are "no constraint" and are folded into
// every segment's registry rather than narrowing the partition
// (spec.md §4.3).
func BuildPort(ranges [][]PortRange) (*registry.Registry, *PortState, error) {
	reg := registry.New()

	boundSet := map[uint16]struct{}{0: {}}
	var universal []uint32
	perRule := make([][]PortRange, len(ranges))

	for ruleID, rs := range ranges {
		if len(rs) == 0 {
			universal = append(universal, uint32(ruleID))
			continue
		}
		for _, r := range rs {
			if r.To < r.From {
				return nil, nil, cerrors.Errorf(cerrors.KindInvalidRule, "port range [%d,%d] has to < from for rule %d", r.From, r.To, ruleID)
			}
			if r.From == 0 && r.To == 65535 {
				universal = append(universal, uint32(ruleID))
				continue
			}
			perRule[ruleID] = append(perRule[ruleID], r)
			boundSet[r.From] = struct{}{}
			if r.To < 65535 {
				boundSet[r.To+1] = struct{}{}
			}
		}
	}

	bounds := make([]uint16, 0, len(boundSet))
	for b := range boundSet {
		bounds = append(bounds, b)
	}
	sort.Slice(bounds, func(i, j int) bool { return bounds[i] < bounds[j] })

	for range bounds {
		reg.StartRange()
	}

	for segIdx, lo := range bounds {
		hi := uint16(65535)
		if segIdx+1 < len(bounds) {
			hi = bounds[segIdx+1] - 1
		}
		var members []uint32
		members = append(members, universal...)
		for ruleID, rs := range perRule {
			for _, r := range rs {
				if r.From <= lo && hi <= r.To {
					members = append(members, uint32(ruleID))
					break
				}
			}
		}
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		reg.SetRange(uint32(segIdx), members)
	}

	return reg, &PortState{bounds: bounds}, nil
}

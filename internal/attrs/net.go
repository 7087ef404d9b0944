// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package attrs

import (
	"net/netip"
	"sort"

	"github.com/gaissmai/bart"

	cerrors "github.com/coreswitch/pktclass/internal/errors"
	"github.com/coreswitch/pktclass/internal/registry"
)

// Net4 is one rule's IPv4 CIDR constraint (spec.md §6 wire format).
type Net4 struct {
	Addr [4]byte
	Mask [4]byte
}

// Net6 is one rule's IPv6 CIDR constraint, pre-split into independent
// high/low 64-bit halves (spec.md §6). SplitHi and SplitLo are the
// prefix lengths, within their own 64-bit half, that the earlier pass
// computed; see DESIGN.md for how malformed combinations are rejected.
type Net6 struct {
	Addr    [16]byte
	Mask    [16]byte
	SplitHi uint8
	SplitLo uint8
}

// NetState is the opaque per-attribute query state handed back by a net
// builder's Init and consumed by Query (the C3 init/query/free triple).
type NetState struct {
	table *bart.Table[uint32]
}

// Query returns the classifier id for addr: the id of the most specific
// inserted prefix covering it, or 0 (the sentinel that still carries
// every unconstrained rule) if no prefix covers addr at all.
func (s *NetState) Query(addr netip.Addr) uint32 {
	if s == nil || s.table == nil {
		return 0
	}
	id, ok := s.table.Lookup(addr)
	if !ok {
		return 0
	}
	return id
}

// Free drops the builder's LPM trie.
func (s *NetState) Free() {
	if s != nil {
		s.table = nil
	}
}

// prefixLen converts a network-order mask to a prefix length, rejecting
// any mask whose set bits are not a contiguous run from the top
// (spec.md §4.3's "masks are prefix-consecutive" invariant).
func prefixLen(mask []byte) (int, bool) {
	n := 0
	seenZero := false
	for _, b := range mask {
		for bit := 7; bit >= 0; bit-- {
			set := b&(1<<uint(bit)) != 0
			if set {
				if seenZero {
					return 0, false
				}
				n++
			} else {
				seenZero = true
			}
		}
	}
	return n, true
}

// buildNetTable is the shared partition-and-merge algorithm behind
// BuildNet4 and the IPv6 hi/lo half builders (spec.md §4.3): every
// distinct rule prefix becomes one classifier leaf in an LPM trie, and
// a leaf's registry range is the union of its own rules with every
// ancestor prefix's rules, since an address inside a narrower prefix
// also satisfies every broader rule that covers it.
func buildNetTable(n int, prefixOf func(ruleID int) ([]netip.Prefix, error)) (*registry.Registry, *NetState, error) {
	reg := registry.New()
	reg.StartRange() // classifier 0: "no narrower prefix matched"

	type prefixRules struct {
		rules map[uint32]struct{}
	}
	order := []netip.Prefix{}
	byPfx := map[netip.Prefix]*prefixRules{}
	var universal []uint32

	for ruleID := 0; ruleID < n; ruleID++ {
		pfxs, err := prefixOf(ruleID)
		if err != nil {
			return nil, nil, err
		}
		if len(pfxs) == 0 {
			universal = append(universal, uint32(ruleID))
			continue
		}
		for _, pfx := range pfxs {
			pr, ok := byPfx[pfx]
			if !ok {
				pr = &prefixRules{rules: map[uint32]struct{}{}}
				byPfx[pfx] = pr
				order = append(order, pfx)
			}
			pr.rules[uint32(ruleID)] = struct{}{}
		}
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].Bits() != order[j].Bits() {
			return order[i].Bits() < order[j].Bits()
		}
		return order[i].Addr().Less(order[j].Addr())
	})

	table := new(bart.Table[uint32])
	ids := make(map[netip.Prefix]uint32, len(order))
	nextID := uint32(1)
	for _, pfx := range order {
		ids[pfx] = nextID
		table.Insert(pfx, nextID)
		reg.StartRange()
		nextID++
	}

	for _, pfx := range order {
		merged := map[uint32]struct{}{}
		for _, u := range universal {
			merged[u] = struct{}{}
		}
		for r := range byPfx[pfx].rules {
			merged[r] = struct{}{}
		}
		for anc, _ := range table.Supernets(pfx) {
			if other, ok := byPfx[anc]; ok {
				for r := range other.rules {
					merged[r] = struct{}{}
				}
			}
		}

		ordered := make([]uint32, 0, len(merged))
		for r := range merged {
			ordered = append(ordered, r)
		}
		sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })
		reg.SetRange(ids[pfx], ordered)
	}

	if len(universal) > 0 {
		sort.Slice(universal, func(i, j int) bool { return universal[i] < universal[j] })
		reg.SetRange(0, universal)
	}

	return reg, &NetState{table: table}, nil
}

// BuildNet4 is the C3 builder for an IPv4 net attribute (src or dst).
// nets[i] is rule i's list of CIDR constraints for this attribute; an
// empty list means the rule is unconstrained on this attribute.
func BuildNet4(nets [][]Net4) (*registry.Registry, *NetState, error) {
	return buildNetTable(len(nets), func(ruleID int) ([]netip.Prefix, error) {
		cidrs := nets[ruleID]
		out := make([]netip.Prefix, 0, len(cidrs))
		for _, c := range cidrs {
			l, ok := prefixLen(c.Mask[:])
			if !ok {
				return nil, cerrors.Errorf(cerrors.KindInvalidRule, "non-prefix IPv4 mask for rule %d", ruleID)
			}
			pfx := netip.PrefixFrom(netip.AddrFrom4(c.Addr), l).Masked()
			out = append(out, pfx)
		}
		return out, nil
	})
}

// net6Half packs a 64-bit half of an IPv6 address into the high 8 bytes
// of a 16-byte key (low 8 bytes zero) so the shared bart-backed
// partition machinery, which only understands native v4/v6 addresses,
// can be reused unmodified for the hi and lo LPM halves (spec.md §4.3's
// IPv6 net attribute).
func net6Half(half [8]byte, bits int) netip.Prefix {
	var key [16]byte
	copy(key[:8], half[:])
	return netip.PrefixFrom(netip.AddrFrom16(key), bits).Masked()
}

// BuildNet6Half is the C3 builder for one independent 64-bit half (hi or
// lo) of an IPv6 net attribute. lo reports whether this call is for the
// low half, which determines which 8 bytes of Net6.Addr/Mask and which
// split-prefix field are consulted.
func BuildNet6Half(nets [][]Net6, lo bool) (*registry.Registry, *NetState, error) {
	return buildNetTable(len(nets), func(ruleID int) ([]netip.Prefix, error) {
		entries := nets[ruleID]
		out := make([]netip.Prefix, 0, len(entries))
		for _, e := range entries {
			var addrHalf, maskHalf [8]byte
			var split uint8
			if lo {
				copy(addrHalf[:], e.Addr[8:])
				copy(maskHalf[:], e.Mask[8:])
				split = e.SplitLo
			} else {
				copy(addrHalf[:], e.Addr[:8])
				copy(maskHalf[:], e.Mask[:8])
				split = e.SplitHi
			}
			l, ok := prefixLen(maskHalf[:])
			if !ok || l != int(split) {
				return nil, cerrors.Errorf(cerrors.KindInvalidRule, "malformed IPv6 hi/lo split mask for rule %d", ruleID)
			}
			out = append(out, net6Half(addrHalf, l))
		}
		return out, nil
	})
}

// QueryNet6Half is the query side of BuildNet6Half: packs half into the
// same 16-byte key shape used at build time and looks it up.
func QueryNet6Half(s *NetState, half [8]byte) uint32 {
	var key [16]byte
	copy(key[:8], half[:])
	return s.Query(netip.AddrFrom16(key))
}

// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package classify

import (
	"net/netip"

	"github.com/coreswitch/pktclass/internal/attrs"
	cerrors "github.com/coreswitch/pktclass/internal/errors"
	"github.com/coreswitch/pktclass/internal/registry"
	"github.com/coreswitch/pktclass/internal/tree"
)

// leafQuerier is the C3 attribute builder's query side, adapted to a
// uniform signature so the query engine can drive any attribute kind
// identically (spec.md §9's "avoid trait objects... generics +
// monomorphisation" note doesn't apply here since the signature is only
// known at runtime, not compile time, so a small interface dispatch
// table is the idiomatic Go shape).
type leafQuerier interface {
	classifierID(pkt *Packet) uint32
	free()
}

type portQuerier struct {
	state *attrs.PortState
	src   bool
}

func (q *portQuerier) classifierID(pkt *Packet) uint32 {
	if q.src {
		return q.state.Query(pkt.SrcPort)
	}
	return q.state.Query(pkt.DstPort)
}
func (q *portQuerier) free() { q.state.Free() }

type protoQuerier struct {
	state *attrs.ProtoState
}

func (q *protoQuerier) classifierID(pkt *Packet) uint32 {
	return q.state.Query(pkt.Proto)
}
func (q *protoQuerier) free() { q.state.Free() }

type vlanQuerier struct {
	state *attrs.VLANState
}

func (q *vlanQuerier) classifierID(pkt *Packet) uint32 {
	return q.state.Query(pkt.VLAN)
}
func (q *vlanQuerier) free() { q.state.Free() }

type net4Querier struct {
	state *attrs.NetState
	src   bool
}

func (q *net4Querier) classifierID(pkt *Packet) uint32 {
	if q.src {
		return q.state.Query(netip.AddrFrom4(pkt.SrcIP4))
	}
	return q.state.Query(netip.AddrFrom4(pkt.DstIP4))
}
func (q *net4Querier) free() { q.state.Free() }

// net6Querier combines independently built hi/lo 64-bit LPM halves into
// a single logical leaf classifier via one small merge table, per
// spec.md §4.3's "exposed as a single logical leaf" option for the
// IPv6 net attribute.
type net6Querier struct {
	hi, lo *attrs.NetState
	merge  valuetableGetter
	src    bool
}

// valuetableGetter narrows internal/valuetable.Table to the one method
// the query path needs, keeping this file free of a direct dependency
// on the table's build-time API.
type valuetableGetter interface {
	Get(l, r int) uint32
}

func (q *net6Querier) classifierID(pkt *Packet) uint32 {
	addr := pkt.SrcIP6
	if !q.src {
		addr = pkt.DstIP6
	}
	var hiHalf, loHalf [8]byte
	copy(hiHalf[:], addr[:8])
	copy(loHalf[:], addr[8:])
	hiID := attrs.QueryNet6Half(q.hi, hiHalf)
	loID := attrs.QueryNet6Half(q.lo, loHalf)
	return q.merge.Get(int(hiID), int(loID))
}
func (q *net6Querier) free() {
	q.hi.Free()
	q.lo.Free()
}

func extractNet4(rules []Rule, src bool) [][]attrs.Net4 {
	out := make([][]attrs.Net4, len(rules))
	for i, r := range rules {
		if src {
			out[i] = r.Net4Src
		} else {
			out[i] = r.Net4Dst
		}
	}
	return out
}

func extractNet6(rules []Rule, src bool) [][]attrs.Net6 {
	out := make([][]attrs.Net6, len(rules))
	for i, r := range rules {
		if src {
			out[i] = r.Net6Src
		} else {
			out[i] = r.Net6Dst
		}
	}
	return out
}

func buildLeaf(kind AttrKind, rules []Rule) (*registry.Registry, leafQuerier, error) {
	switch kind {
	case PortSrc, PortDst:
		src := kind == PortSrc
		ranges := make([][]attrs.PortRange, len(rules))
		for i, r := range rules {
			if src {
				ranges[i] = r.SrcPorts
			} else {
				ranges[i] = r.DstPorts
			}
		}
		reg, state, err := attrs.BuildPort(ranges)
		if err != nil {
			return nil, nil, err
		}
		return reg, &portQuerier{state: state, src: src}, nil

	case Proto:
		protos := make([]attrs.TransportProto, len(rules))
		for i, r := range rules {
			protos[i] = r.Transport
		}
		reg, state, err := attrs.BuildProto(protos)
		if err != nil {
			return nil, nil, err
		}
		return reg, &protoQuerier{state: state}, nil

	case VLAN:
		vlans := make([]uint16, len(rules))
		for i, r := range rules {
			vlans[i] = r.VLAN
		}
		reg, state, err := attrs.BuildVLAN(vlans)
		if err != nil {
			return nil, nil, err
		}
		return reg, &vlanQuerier{state: state}, nil

	case Net4Src, Net4Dst:
		src := kind == Net4Src
		reg, state, err := attrs.BuildNet4(extractNet4(rules, src))
		if err != nil {
			return nil, nil, err
		}
		return reg, &net4Querier{state: state, src: src}, nil

	case Net6Src, Net6Dst:
		src := kind == Net6Src
		nets := extractNet6(rules, src)
		hiReg, hiState, err := attrs.BuildNet6Half(nets, false)
		if err != nil {
			return nil, nil, err
		}
		loReg, loState, err := attrs.BuildNet6Half(nets, true)
		if err != nil {
			return nil, nil, err
		}
		tbl, merged, err := tree.MergeAndCollect(hiReg, loReg, len(rules))
		if err != nil {
			return nil, nil, err
		}
		return merged, &net6Querier{hi: hiState, lo: loState, merge: tbl, src: src}, nil

	default:
		return nil, nil, cerrors.Errorf(cerrors.KindInvalidRule, "unknown attribute kind %d in signature", kind)
	}
}

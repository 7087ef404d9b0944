// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config loads a rule set and attribute signature from an HCL
// document (ambient rule-ingestion collaborator, spec.md §1/§6), the
// way the teacher's internal/config/hcl.go decodes its own firewall
// config with hclsimple.
package config

import (
	"net/netip"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/coreswitch/pktclass/classify"
	"github.com/coreswitch/pktclass/internal/attrs"
	cerrors "github.com/coreswitch/pktclass/internal/errors"
)

// RuleSet is a loaded rule file: an ordered attribute signature plus the
// rules themselves, in priority order (spec.md §3).
type RuleSet struct {
	Signature []classify.AttrKind
	Rules     []classify.Rule
}

type ruleFile struct {
	Signature []string    `hcl:"signature"`
	Rules     []ruleBlock `hcl:"rule,block"`
}

type ruleBlock struct {
	Name string `hcl:"name,label"`

	Net4Src []string `hcl:"net4_src,optional"`
	Net4Dst []string `hcl:"net4_dst,optional"`

	PortSrc []cty.Value `hcl:"port_src,optional"`
	PortDst []cty.Value `hcl:"port_dst,optional"`

	Proto      *string `hcl:"proto,optional"`
	TCPEnable  *int    `hcl:"tcp_enable,optional"`
	TCPDisable *int    `hcl:"tcp_disable,optional"`

	VLAN *int `hcl:"vlan,optional"`

	Action   int  `hcl:"action"`
	Terminal bool `hcl:"terminal,optional"`
	Category int  `hcl:"category,optional"`
}

// portRangeFunc implements the portrange(from, to) DSL function used to
// build a PortRange attribute expression inline in a rule block; HCL's
// own value model (go-cty) carries the result through decode.
var portRangeFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "from", Type: cty.Number},
		{Name: "to", Type: cty.Number},
	},
	Type: function.StaticReturnType(cty.Object(map[string]cty.Type{
		"from": cty.Number,
		"to":   cty.Number,
	})),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		return cty.ObjectVal(map[string]cty.Value{
			"from": args[0],
			"to":   args[1],
		}), nil
	},
})

var evalCtx = &hcl.EvalContext{
	Functions: map[string]function.Function{"portrange": portRangeFunc},
}

// LoadRuleFile reads and decodes an HCL rule file from disk.
func LoadRuleFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.KindInternal, "reading rule file")
	}
	return LoadRuleFileFromBytes(path, data)
}

// LoadRuleFileFromBytes decodes an HCL rule file already in memory.
func LoadRuleFileFromBytes(filename string, data []byte) (*RuleSet, error) {
	var rf ruleFile
	if err := hclsimple.Decode(filename, data, evalCtx, &rf); err != nil {
		return nil, cerrors.Wrap(err, cerrors.KindInvalidRule, "decoding HCL rule file")
	}

	sig := make([]classify.AttrKind, 0, len(rf.Signature))
	for _, name := range rf.Signature {
		kind, ok := attrKindByName(name)
		if !ok {
			return nil, cerrors.Errorf(cerrors.KindInvalidRule, "unknown attribute kind %q in signature", name)
		}
		sig = append(sig, kind)
	}

	rules := make([]classify.Rule, 0, len(rf.Rules))
	for i, rb := range rf.Rules {
		rule, err := rb.toRule()
		if err != nil {
			return nil, cerrors.Wrapf(err, cerrors.GetKind(err), "decoding rule %d (%s)", i, rb.Name)
		}
		rules = append(rules, rule)
	}

	return &RuleSet{Signature: sig, Rules: rules}, nil
}

func attrKindByName(name string) (classify.AttrKind, bool) {
	switch name {
	case "net4_src":
		return classify.Net4Src, true
	case "net4_dst":
		return classify.Net4Dst, true
	case "net6_src":
		return classify.Net6Src, true
	case "net6_dst":
		return classify.Net6Dst, true
	case "port_src":
		return classify.PortSrc, true
	case "port_dst":
		return classify.PortDst, true
	case "proto":
		return classify.Proto, true
	case "vlan":
		return classify.VLAN, true
	default:
		return 0, false
	}
}

func (rb ruleBlock) toRule() (classify.Rule, error) {
	var r classify.Rule

	var err error
	if r.Net4Src, err = parseCIDRs(rb.Net4Src); err != nil {
		return r, err
	}
	if r.Net4Dst, err = parseCIDRs(rb.Net4Dst); err != nil {
		return r, err
	}
	if r.SrcPorts, err = parsePortRanges(rb.PortSrc); err != nil {
		return r, err
	}
	if r.DstPorts, err = parsePortRanges(rb.PortDst); err != nil {
		return r, err
	}

	r.Transport.Number = attrs.ProtoUnspec
	if rb.Proto != nil {
		n, ok := protoByName(*rb.Proto)
		if !ok {
			return r, cerrors.Errorf(cerrors.KindInvalidRule, "unknown protocol %q", *rb.Proto)
		}
		r.Transport.Number = n
	}
	if rb.TCPEnable != nil {
		r.Transport.TCPEnable = uint16(*rb.TCPEnable)
	}
	if rb.TCPDisable != nil {
		r.Transport.TCPDisable = uint16(*rb.TCPDisable)
	}

	r.VLAN = attrs.VLANUnspec
	if rb.VLAN != nil {
		r.VLAN = uint16(*rb.VLAN)
	}

	action := uint32(rb.Action) & classify.ActionPayloadMask
	if !rb.Terminal {
		action |= classify.NonTerminateBit
	}
	action |= uint32(rb.Category) << classify.CategoryMaskShift
	r.Action = action

	return r, nil
}

func protoByName(name string) (uint8, bool) {
	switch name {
	case "tcp":
		return 6, true
	case "udp":
		return 17, true
	case "icmp":
		return 1, true
	case "any", "":
		return attrs.ProtoUnspec, true
	default:
		return 0, false
	}
}

func parseCIDRs(lits []string) ([]attrs.Net4, error) {
	if len(lits) == 0 {
		return nil, nil
	}
	out := make([]attrs.Net4, 0, len(lits))
	for _, lit := range lits {
		pfx, err := netip.ParsePrefix(lit)
		if err != nil || !pfx.Addr().Is4() {
			return nil, cerrors.Errorf(cerrors.KindInvalidRule, "invalid IPv4 CIDR %q", lit)
		}
		pfx = pfx.Masked()
		var n attrs.Net4
		n.Addr = pfx.Addr().As4()
		mask := net4MaskFromBits(pfx.Bits())
		n.Mask = mask
		out = append(out, n)
	}
	return out, nil
}

func net4MaskFromBits(bits int) [4]byte {
	var m [4]byte
	for i := 0; i < bits; i++ {
		m[i/8] |= 1 << uint(7-i%8)
	}
	return m
}

func parsePortRanges(vals []cty.Value) ([]attrs.PortRange, error) {
	if len(vals) == 0 {
		return nil, nil
	}
	out := make([]attrs.PortRange, 0, len(vals))
	for _, v := range vals {
		if v.IsNull() || !v.Type().IsObjectType() {
			return nil, cerrors.New(cerrors.KindInvalidRule, "port entry must be a portrange(from, to) expression")
		}
		from, _ := v.GetAttr("from").AsBigFloat().Int64()
		to, _ := v.GetAttr("to").AsBigFloat().Int64()
		out = append(out, attrs.PortRange{From: uint16(from), To: uint16(to)})
	}
	return out, nil
}

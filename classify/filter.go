// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package classify

import (
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/coreswitch/pktclass/internal/arena"
	"github.com/coreswitch/pktclass/internal/attrs"
	cerrors "github.com/coreswitch/pktclass/internal/errors"
	"github.com/coreswitch/pktclass/internal/logging"
	"github.com/coreswitch/pktclass/internal/metrics"
	"github.com/coreswitch/pktclass/internal/registry"
	"github.com/coreswitch/pktclass/internal/tree"
)

// Stats summarizes a compiled filter's shape, surfaced for diagnostics
// via DebugDump (spec.md's "Ownership & lifetime" section doesn't name
// this, but the teacher's domain structs always carry a debug summary
// alongside the structural data).
type Stats struct {
	NumRules        int `yaml:"num_rules"`
	NumAttrs        int `yaml:"num_attrs"`
	RootClassifiers int `yaml:"root_classifiers"`
}

// Filter is a compiled classifier: a per-attribute leaf query table
// plus the merged tree of C4/C5 value tables and the root action
// registry (spec.md §3's "Ownership & lifetime").
type Filter struct {
	ID      uuid.UUID
	BuiltAt time.Time
	Stats   Stats

	sig      []AttrKind
	queriers []leafQuerier
	tr       *tree.Tree
	arena    *arena.Arena

	// protoState is non-nil when Proto is part of sig; Query consults it
	// to re-check TCP flag-gated rules (spec.md §4.3's "additional
	// AND-check performed at query time").
	protoState *attrs.ProtoState

	log *logging.Logger
}

type compileOptions struct {
	buildTime time.Time
	logger    *logging.Logger
}

// CompileOption customizes Compile without touching the wall clock or
// global state from inside the compiler itself.
type CompileOption func(*compileOptions)

// WithBuildTime stamps Filter.BuiltAt with a caller-supplied time,
// keeping Compile itself free of time.Now() (spec.md §5's "no
// suspension points" and §8's determinism invariant both favor a pure
// build path; the wall clock, when wanted, is the caller's concern).
func WithBuildTime(t time.Time) CompileOption {
	return func(o *compileOptions) { o.buildTime = t }
}

// WithLogger overrides the filter's logger; default is logging.Default.
func WithLogger(l *logging.Logger) CompileOption {
	return func(o *compileOptions) { o.logger = l }
}

// Compile builds a Filter from an attribute signature and a rule set
// (spec.md §6's conceptual `compile`). The signature's order fixes tree
// shape and must be repeated identically at query time — here that's
// enforced structurally, since Query always walks this Filter's own
// queriers.
func Compile(sig []AttrKind, rules []Rule, opts ...CompileOption) (*Filter, error) {
	cfg := compileOptions{}
	for _, o := range opts {
		o(&cfg)
	}
	log := cfg.logger
	if log == nil {
		log = logging.Default("classify")
	}

	if len(sig) == 0 {
		return nil, cerrors.New(cerrors.KindEmptySignature, "attribute signature must have at least one attribute")
	}

	leaves := make([]*registry.Registry, len(sig))
	queriers := make([]leafQuerier, len(sig))
	var protoState *attrs.ProtoState
	hasProto := false
	for i, kind := range sig {
		reg, q, err := buildLeaf(kind, rules)
		if err != nil {
			return nil, cerrors.Wrapf(err, cerrors.GetKind(err), "building leaf attribute %s", kind)
		}
		leaves[i] = reg
		queriers[i] = q
		if pq, ok := q.(*protoQuerier); ok {
			protoState = pq.state
			hasProto = true
		}
	}

	actions := make([]uint32, len(rules))
	conditional := make([]bool, len(rules))
	for i, r := range rules {
		actions[i] = r.Action
		if hasProto && (r.Transport.TCPEnable != 0 || r.Transport.TCPDisable != 0) {
			conditional[i] = true
		}
	}

	tr, err := tree.Build(leaves, actions, len(rules), conditional)
	if err != nil {
		return nil, err
	}

	f := &Filter{
		ID:         uuid.New(),
		BuiltAt:    cfg.buildTime,
		sig:        append([]AttrKind{}, sig...),
		queriers:   queriers,
		tr:         tr,
		protoState: protoState,
		log:        log,
	}
	f.Stats = Stats{NumRules: len(rules), NumAttrs: len(sig), RootClassifiers: tr.RootClassCount()}

	metrics.ActiveFilters.Inc()
	log.Infof("compiled filter %s: %d rules, %d attrs, %d root classifiers", f.ID, len(rules), len(sig), f.Stats.RootClassifiers)
	return f, nil
}

// Query evaluates the filter against a packet, returning the ordered,
// terminal-truncated action list (spec.md §4.6, §6's conceptual
// `query`). Rules carrying a TCP flag constraint are re-checked here
// against pkt.TCPFlags before their action is admitted (spec.md §4.3's
// "additional AND-check performed at query time"). The returned slice
// is freshly allocated per call and owned by the caller — it shares no
// backing array with the filter's compiled tables, so passing it to
// ActionsWithCategory (or otherwise mutating it) is always safe and
// never corrupts a concurrent or later Query call.
func (f *Filter) Query(pkt *Packet) []uint32 {
	leafIDs := make([]uint32, len(f.queriers))
	for i, q := range f.queriers {
		leafIDs[i] = q.classifierID(pkt)
	}
	id := f.tr.Query(leafIDs)
	metrics.IncQueries(f.ID.String())

	raw := f.tr.RootActions(id)
	ruleIDs := f.tr.RootConditionalRuleIDs(id)
	out := make([]uint32, 0, len(raw))
	for i, a := range raw {
		if rid := ruleIDs[i]; rid != tree.NoConditionalRule {
			if f.protoState == nil || !f.protoState.CheckTCPFlags(rid, pkt.TCPFlags) {
				continue
			}
		}
		out = append(out, a)
		if IsTerminal(a) {
			break
		}
	}
	return out
}

// Free releases the filter's query-side state and arena, if any.
func (f *Filter) Free() {
	for _, q := range f.queriers {
		q.free()
	}
	f.tr.Free()
	if f.arena != nil {
		f.arena.Close()
		f.arena = nil
	}
	metrics.ActiveFilters.Dec()
	f.log.Infof("freed filter %s", f.ID)
}

// ShareTo publishes, into a shared memory arena, the root classifier id
// that a zero-valued Packet resolves to, as a 4-byte little-endian value
// at the returned offset, so a second process mapping the same region
// can read it (spec.md §4.7/§5's "offset pointer discipline" and publish
// barrier). Only that one id is published; the full
// merge/registry graph remains in normal Go memory, as documented in
// DESIGN.md's scoping of the arena's responsibility.
func (f *Filter) ShareTo(a *arena.Arena) (int64, error) {
	off, err := a.Alloc(4)
	if err != nil {
		return 0, err
	}
	buf := a.Bytes()
	leafIDs := make([]uint32, len(f.queriers))
	for i, q := range f.queriers {
		leafIDs[i] = q.classifierID(&Packet{})
	}
	rootID := f.tr.Query(leafIDs)
	buf[off] = byte(rootID)
	buf[off+1] = byte(rootID >> 8)
	buf[off+2] = byte(rootID >> 16)
	buf[off+3] = byte(rootID >> 24)
	f.arena = a
	return off, nil
}

// DebugDump renders the filter's signature and Stats as YAML, for
// `pktclassctl dump`.
func (f *Filter) DebugDump() (string, error) {
	doc := struct {
		ID    string   `yaml:"id"`
		Sig   []string `yaml:"signature"`
		Stats Stats    `yaml:"stats"`
	}{
		ID:    f.ID.String(),
		Stats: f.Stats,
	}
	for _, k := range f.sig {
		doc.Sig = append(doc.Sig, k.String())
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", cerrors.Wrap(err, cerrors.KindInternal, "marshaling debug dump")
	}
	return string(out), nil
}

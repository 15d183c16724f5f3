package eval

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/greql/internal/costs"
	"github.com/roach88/greql/internal/funlib"
	"github.com/roach88/greql/internal/graph"
	"github.com/roach88/greql/internal/ir"
	"github.com/roach88/greql/internal/syntax"
)

// Session evaluates one query syntax graph over one host graph.
//
// The session owns one evaluator per syntax node, stored in an arena
// indexed by node id. Evaluators memoize their results across Evaluate
// calls until the graph version, the traversal context or a variable they
// read changes.
//
// Thread-safety: Evaluate calls are serialized by a mutex; evaluation itself
// is single-threaded. Concurrent queries need separate sessions.
type Session struct {
	id     string
	g      graph.Graph
	q      *syntax.Graph
	funcs  *funlib.Registry
	model  costs.Model
	logger *slog.Logger
	tracer trace.Tracer
	ids    SessionIDGenerator
	clock  *Clock

	mu    sync.Mutex
	evals []*evaluator
	// cur is the context of the running evaluation. Automaton guards read
	// it, since a compiled automaton outlives the evaluation building it.
	cur *Context
	// domains maps declared variable names to their domain expressions.
	domains map[string][]syntax.NodeID
	// definitions maps let/where-defined names to their expressions.
	definitions map[string][]syntax.NodeID
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithFunctions sets the function library. Default: funlib.Default().
func WithFunctions(r *funlib.Registry) Option {
	return func(s *Session) { s.funcs = r }
}

// WithCostModel sets the heuristic constants of the cost oracle.
// Default: costs.DefaultModel().
func WithCostModel(m costs.Model) Option {
	return func(s *Session) { s.model = m }
}

// WithSessionIDs sets the session id generator. Default: UUIDv7Generator.
func WithSessionIDs(g SessionIDGenerator) Option {
	return func(s *Session) { s.ids = g }
}

// WithTracer sets the tracer for evaluation spans. Default: the global
// provider's "greql.eval" tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *Session) { s.tracer = t }
}

// New creates a session for query q over g and builds its evaluator tree.
func New(g graph.Graph, q *syntax.Graph, opts ...Option) (*Session, error) {
	s := &Session{
		g:      g,
		q:      q,
		funcs:  funlib.Default(),
		model:  costs.DefaultModel(),
		logger: slog.Default(),
		tracer: tracer,
		ids:    UUIDv7Generator{},
		clock:  NewClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.id = s.ids.Generate()

	if err := syntax.ValidatePathOwnership(q); err != nil {
		return nil, newMalformedQuery(nil, "%v", err)
	}

	s.evals = make([]*evaluator, q.Len())
	for _, n := range q.Nodes() {
		s.evals[n.ID] = &evaluator{node: n}
	}
	s.collectDeclarations()
	for id := range s.evals {
		s.variables(syntax.NodeID(id))
	}

	s.logger.Debug("session created",
		"session", s.id,
		"nodes", q.Len(),
		"root", q.Node(q.Root()).Label(),
	)
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Graph returns the host graph.
func (s *Session) Graph() graph.Graph { return s.g }

// Query returns the query syntax graph.
func (s *Session) Query() *syntax.Graph { return s.q }

// Evaluate computes the value of the query root. external binds the free
// variables of the query; a Query root's bound variables must all be given.
func (s *Session) Evaluate(ctx context.Context, external map[string]ir.Value) (ir.Value, error) {
	return s.EvaluateNode(ctx, s.q.Root(), external)
}

// EvaluateNode computes the value of node id, which need not be the root.
func (s *Session) EvaluateNode(ctx context.Context, id syntax.NodeID, external map[string]ir.Value) (ir.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.q.Node(id)
	if n == nil {
		return nil, newError(ErrCodeUnresolvedVariable, nil, "node %d has no evaluator", id)
	}

	began := time.Now()
	ctx, span := startEvalSpan(ctx, s.tracer, s.id, n)
	defer span.End()

	bindings := NewBindings(s.clock)
	for _, name := range sortedKeys(external) {
		bindings.Push(name, external[name])
	}
	c := newContext(ctx, bindings)
	s.cur = c
	defer func() { s.cur = nil }()

	v, err := s.value(c, id)
	recordEvalMetrics(ctx, time.Since(began), err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("evaluation failed",
			"session", s.id,
			"node", int(id),
			"error", err,
		)
		return nil, err
	}
	s.logger.Info("evaluation finished",
		"session", s.id,
		"node", int(id),
		"result", ir.KindName(v),
		"duration", time.Since(began),
	)
	return v, nil
}

func sortedKeys(m map[string]ir.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// evaluator is the per-node state: cached result, variable analysis, cost
// estimates and kind-specific side caches.
type evaluator struct {
	node *syntax.Node

	analyzed bool
	needed   []string
	defined  []string

	cache resultCache
	est   map[string]estimate

	// plan is the variable ordering of a Declaration node.
	plan *declPlan
	// dfas caches determinized automata of a path expression node.
	dfas dfaCache
}

// stamp identifies the inputs a cached result was computed from.
type stamp struct {
	version uint64
	view    uint64
	ticks   []int64
}

func (a stamp) equal(b stamp) bool {
	return a.version == b.version && a.view == b.view && slices.Equal(a.ticks, b.ticks)
}

type resultCache struct {
	valid bool
	stamp stamp
	value ir.Value
}

func (s *Session) evaluator(n *syntax.Node, id syntax.NodeID) (*evaluator, error) {
	if id < 0 || int(id) >= len(s.evals) || s.evals[id] == nil {
		e := newError(ErrCodeUnresolvedVariable, n, "node %d has no evaluator", id)
		return nil, e
	}
	return s.evals[id], nil
}

func (s *Session) stampOf(c *Context, e *evaluator) stamp {
	st := stamp{version: s.g.Version(), view: c.ViewID()}
	if len(e.needed) > 0 {
		st.ticks = make([]int64, len(e.needed))
		for i, name := range e.needed {
			st.ticks[i] = c.bindings.Tick(name)
		}
	}
	return st
}

// value returns the memoized value of node id, computing it when the cache
// is missing or stale.
func (s *Session) value(c *Context, id syntax.NodeID) (ir.Value, error) {
	e, err := s.evaluator(nil, id)
	if err != nil {
		return nil, err
	}
	st := s.stampOf(c, e)
	if e.cache.valid && e.cache.stamp.equal(st) {
		return e.cache.value, nil
	}
	v, err := s.compute(c, e)
	if err != nil {
		return nil, classify(e.node, err)
	}
	e.cache = resultCache{valid: true, stamp: st, value: v}
	return v, nil
}

// Invalidate drops every cached result and estimate.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.evals {
		e.cache = resultCache{}
		e.est = nil
		e.dfas = dfaCache{}
		e.plan = nil
	}
}

func (s *Session) node(id syntax.NodeID) *syntax.Node { return s.q.Node(id) }

// child returns the single mandatory child of n in role.
func (s *Session) child(n *syntax.Node, role syntax.Role) (syntax.NodeID, error) {
	id, ok := s.q.Child(n.ID, role)
	if !ok {
		return syntax.NoNode, newMalformedQuery(n, "%s requires a %q child", n.Kind, role)
	}
	return id, nil
}

// childValue evaluates the mandatory child of n in role.
func (s *Session) childValue(c *Context, n *syntax.Node, role syntax.Role) (ir.Value, error) {
	id, err := s.child(n, role)
	if err != nil {
		return nil, err
	}
	return s.value(c, id)
}

// childValues evaluates all children of n in role, in order.
func (s *Session) childValues(c *Context, n *syntax.Node, role syntax.Role) ([]ir.Value, error) {
	ids := s.q.Children(n.ID, role)
	vals := make([]ir.Value, len(ids))
	for i, id := range ids {
		v, err := s.value(c, id)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

func (s *Session) env(c *Context) funlib.Env {
	return funlib.Env{Graph: s.g, View: c.View()}
}

// Package eval evaluates query syntax graphs against a host graph.
//
// ARCHITECTURE:
//
// Evaluator Arena:
// A Session holds one evaluator per syntax node, indexed by node id. There
// are no per-kind evaluator types; compute dispatches on the node kind.
// Shared syntax nodes share their evaluator and its cache.
//
// Evaluation Flow:
// 1. Session.Evaluate binds the external variables in a fresh Context
// 2. value() checks the node's cached result against the current stamp
// 3. On a miss, compute() evaluates the children it needs through value()
// 4. The result is cached with the stamp it was computed under
//
// A stamp is (graph version, traversal context id, ticks of the variables
// the node reads). Variables are bound by name in an explicit Bindings
// table; every binding takes a tick from the session Clock, so rebinding a
// variable invalidates exactly the results that read it.
//
// Path Expressions:
// Path descriptions evaluate to NFAs (ir.Opaque labelled "nfa"). Forward,
// backward and existence expressions determinize them once per NFA and hand
// the DFA to package search. Restriction predicates are compiled into
// automaton guards that evaluate their syntax node with thisEdge or
// thisVertex bound to the candidate element.
//
// Declarations:
// Comprehensions and quantified expressions iterate a Declaration's
// variable combinations with an odometer (declLayer). Variables are ordered
// so that every domain only reads variables bound before it, and each
// constraint is checked at the innermost level it depends on.
//
// Cost Oracle:
// Costs, Cardinality, Selectivity and Explain estimate evaluation effort
// per node for a costs.GraphSize. Results are memoized per GraphSize key.
//
// CRITICAL PATTERNS:
//
// Errors are *EvalError values with a Code. Any error aborts the whole
// evaluation; Null start or target operands are not errors.
//
// The traversal context of a subgraph-restricted expression is restored by
// a deferred call on every return path, including errors.
package eval

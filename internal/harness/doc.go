// Package harness runs query scenarios against host graph fixtures.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: chain_forward
//	description: "T1 T2 from A reaches C"
//	graph: ../graphs/chain.yaml
//	query:
//	  kind: ForwardVertexSet
//	  start: {kind: Variable, name: a}
//	  path: {...}
//	bind:
//	  a: {vertex: a}
//	expect:
//	  result: {set: [{vertex: c}]}
//	assertions:
//	  - type: automaton_equivalence
//	  - type: costs_valid
//
// The graph is a graphstore fixture, either a path relative to the scenario
// file or an inline document under graph_inline. The query is an inline
// YAML query document or a query_file (.cue or .yaml) relative to the
// scenario file.
//
// # Values
//
// Expected values and bindings use plain YAML for null, booleans, numbers,
// strings, lists and records. Single-key mappings select other kinds:
//
//	{vertex: label}  {edge: label}
//	{set: [...]}     {tuple: [...]}
//	{map: [[k, v], ...]}
//	{double: 1}
//
// # Assertion Types
//
//   - result_equals: the result equals value
//   - result_contains: the result collection contains every listed element
//   - result_size: the result collection has count elements
//   - costs_valid: every node of the cost plan has consistent estimates
//   - cost_bound: the root subtree cost is at most max
//   - dfa_states: the path automaton of node determinizes to count states
//   - automaton_equivalence: for every start vertex and edge, searching the
//     DFA and simulating the NFA reach the same vertices, and the reversed
//     automaton finds every start vertex from every vertex it reaches
//
// Every scenario runs in a fresh session with deterministic session ids, so
// golden snapshots are stable.
package harness

// Package ir provides the value model shared by every layer of the GReQL
// evaluator.
//
// This package contains value definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the value model the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Value is a sealed interface; only types in this package implement it
//   - Collections are immutable once built (Set and Map via their builders)
//   - Set identity and ordering use the canonical Key, never Go map order
//   - Strings are NFC normalised before they take part in a Key
//   - Host payloads the language cannot express (compiled automata, type
//     collections, subgraph views) travel as Opaque values
package ir

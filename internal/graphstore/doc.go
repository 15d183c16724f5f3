// Package graphstore persists host graphs in SQLite and reads YAML graph
// fixtures.
//
// A database holds a single graph: its schema classes (with superclasses,
// declared attributes and edge end descriptions), its vertices and its
// edges. Attribute records are stored as JSON produced by ir.MarshalValue,
// so every persistable value kind survives a round trip.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Save replaces the stored graph in one transaction. Load rebuilds a
// graph.Memory with the stored ids.
package graphstore

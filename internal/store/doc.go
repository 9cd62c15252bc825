// Package store provides SQLite-backed history of executed queries.
//
// Each call through the hubmap client can be recorded as a run: which
// operation ran, a hash of the bound query text, where the results went,
// how many rows came back and whether it failed. The history is append
// only.
//
// # Query Hashes
//
// QueryHash normalises the bound query to Unicode NFC before hashing so
// that visually identical queries typed on different systems compare
// equal. The hash is SHA-256 with domain separation.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Schema changes are tracked with PRAGMA user_version.
package store

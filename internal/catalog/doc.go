// Package catalog implements the persistent asset catalog on SQLite:
// one row per known model file plus a small key/value config table.
//
// The catalog is the single writer of record for persisted state. Writers
// are serialized internally; readers run concurrently under WAL. All
// mutating operations are transactional and roll back completely on
// failure. Reconciliation upserts apply a sticky merge to the user-owned
// comment and tags fields: an empty incoming value never clears a
// non-empty stored one.
package catalog

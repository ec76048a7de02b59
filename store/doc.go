// Package store provides the GORM-backed durable credential store.
//
// It implements authcore.CredentialStore on top of a relational database.
// Postgres is the production target; tests run against SQLite. The atomicity
// contracts (failure counting, recovery-code consumption, signature-counter
// advancement) are implemented as conditional single-statement writes so they
// hold under concurrent engine instances sharing one database.
package store

// Package provenance persists pipeline run history in SQLite so every
// quality-gate comparison stays auditable after the fact.
//
// Each run records what was compared and why the verdict came out the way it
// did: the snapshot composition digest, split seed and sizes, the new and
// baseline metric sets, the decision, and its justification. The database is
// an append-mostly journal; rows transition from running to a terminal status
// exactly once.
//
// Treat this package as the single source of truth for run-record semantics;
// schema changes bump the version in schema.go.
package provenance

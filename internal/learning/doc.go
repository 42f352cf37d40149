// Package learning persists the pipeline's learned artifacts — patterns,
// insights, and learning actions — and owns the approval workflow for
// suggested adaptations.
//
// The Store interface has three interchangeable backends (memory, file
// journal, SQLite) with identical filter semantics. Writes are idempotent
// by id: re-saving a record overwrites rather than duplicates.
//
// A LearningAction starts pending and moves exactly once, to applied or
// rejected. Both end states are terminal; any further transition fails
// with ErrInvalidTransition and leaves the record unchanged.
package learning

// Package store defines the persisted document model and the repository
// interface for the document lifecycle. Implementations live in other
// packages; this package must not import database drivers or concrete
// clients.
package store

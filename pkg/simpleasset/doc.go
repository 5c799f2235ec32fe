// Package simpleasset provides an asynchronous, resilient asset ingestion
// pipeline with pluggable record stores and storage operations.
//
// A submitted asset is persisted in the PENDING state and returned to the
// caller immediately. The payload is then pushed to the configured
// StorageOperation in the background, under a retry policy wrapped by a
// process-wide circuit breaker, and the record is reconciled to COMPLETED
// (with its storage URL) or FAILED. Finality is observed by querying.
//
// Record stores (memory, Postgres, SQLite) live under repo/ and storage
// operations (memory, filesystem, S3) under storage/.
//
// # Lifecycle
//
// An asset is written exactly twice: the synchronous PENDING write that
// blocks Submit, and one terminal write from the background task. A failed
// terminal write is logged and the record stays PENDING.
package simpleasset

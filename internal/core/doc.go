// Package core provides the business logic for delimited-text table imports.
//
// This package contains all domain logic independent of any UI or transport
// layer. It can be used by the HTTP server, the CLI, or tests without
// modification.
//
// # Import Pipeline
//
// An import turns a header plus raw rows into a typed PostgreSQL table:
//
//  1. Names are normalized by [SanitizeIdentifier] and de-duplicated.
//  2. Each column is typed by [DetermineColumnType] from up to [SampleSize]
//     leading non-empty cells.
//  3. [Importer.Import] opens one transaction, drops any previous table in
//     a savepoint, creates the new table, and inserts rows in batches of
//     [DefaultBatchSize] through pgx.Batch.
//  4. Any failure after the drop rolls the whole transaction back, so the
//     previous table survives untouched.
//
// [Plan] runs steps 1 and 2 only and backs the preview endpoint.
//
// # Type Inference
//
// Values are classified as BOOLEAN, INTEGER, REAL, DATE, or TEXT by
// [ClassifyValue]. A column becomes TEXT as soon as more than 10% of its
// sample is TEXT, BOOLEAN only when the whole sample is boolean, and
// otherwise the first of REAL, INTEGER, DATE that received a vote.
//
// # Concurrency
//
// [Importer] keeps no connection state and may be shared. [Service] bounds
// the number of simultaneous imports with an [ImportLimiter] but does not
// coordinate imports that target the same table; those can interleave.
//
// # Error Handling
//
// Failed imports return *[ImportError]. [MapError] turns any error into a
// [UserMessage] with a support code:
//
//   - IMP001-IMP004: import stages
//   - DB001-DB007: PostgreSQL and connection errors
//   - FILE001-FILE008: input file problems
//   - REQ001-REQ004: busy, cancelled, timed out, bad parameters
//   - TBL001: unknown table
package core

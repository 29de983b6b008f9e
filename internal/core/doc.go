// Package core turns tabular source rows into validated, versioned records.
//
// It contains all domain logic independent of file formats, storage
// engines and transports, so the same code serves the HTTP server, the CLI
// and tests.
//
// # Pipeline
//
// Each source file flows through four stages, strictly in order:
//
//  1. [ColumnMapper] renames source headers to canonical fixed-field names
//     and passes every other column through as a descriptive candidate.
//  2. [FixedSchema] checks that the header carries every required column
//     (file-level) and that each row has non-empty values and valid dates
//     (row-level). An empty product becomes [DefaultProduct].
//  3. [DescriptiveValidator] keeps only candidates declared in the batch's
//     [DescriptiveSchema], drops empty values, and coerces the rest to their
//     declared type.
//  4. [Engine] appends the record to its business key's version chain,
//     merging the descriptive bag over the latest prior version.
//
// [FileProcessor] runs the stages for one file and classifies the results
// into a [FileOutcome]. [Service] runs batches over a [Library] in parallel,
// one sequential row loop per file, and drives notification and file
// disposition from the outcome.
//
// # Versioning
//
// Records are never updated. Every accepted row appends a new
// [CanonicalRecord] whose version is strictly greater than the previous
// one for the same key. [VersionStore.Apply] performs lookup and append as
// one atomic step; it is the only serialization point between files that
// touch the same key.
//
// # Error Handling
//
// Row problems are collected as [ValidationError] values, never returned
// as errors, so one bad row cannot block its siblings. Batch-level failures
// ([ErrSchemaUnavailable]) are returned. [MapError] maps errors to coded
// user-facing messages:
//
//   - SCH001-SCH002: Schema errors
//   - DB004-DB008: Database errors
//   - VAL001-VAL007: Validation errors
//   - FILE001-FILE007: File errors
//   - IMP001-IMP003: Import errors
//
// # Events
//
// One [Event] is emitted per row outcome and per file outcome through an
// [EventSink]; the sink decides how to record it.
package core

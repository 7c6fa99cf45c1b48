// Package core holds the dataset domain: parsing uploaded CSV into a Table,
// deriving a Summary, deciding retention and running the ingest pipeline.
//
// # Ingest
//
// [Service.Ingest] is the only write path:
//
//  1. Acquire a slot from the [IngestLimiter]
//  2. [ParseTable] tokenizes the bytes (BOM stripped, bad UTF-8 replaced)
//  3. [SummaryBuilder.Build] derives the Summary
//  4. The raw bytes go to the [BlobStore]
//  5. Inside [DatasetStore.WithTx] the record is created, the history is
//     listed newest first and [RetentionPolicy.Decide] picks what to evict
//  6. After commit the raw files of evicted records are removed
//
// A failure before commit leaves no record and no raw file behind.
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages with [MapError]. See
// error_messages.go for the code table.
package core

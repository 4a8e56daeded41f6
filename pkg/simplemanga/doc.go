// Package simplemanga provides a local catalog manager for serialized reading
// material (manga, chapters and per-language page sets) with pluggable blob
// and catalog storage backends.
//
// It exposes a single Service that owns the in-memory catalog, keeps it in
// sync with a durable CatalogStore, and manages the lifecycle of page images
// stored in a BlobStore: upload, reference, display handles and cleanup.
// Implementations of catalog stores (memory, bbolt, Postgres) and blob stores
// (memory, filesystem, bbolt, S3) are provided under subpackages.
//
// Image References
//
// Every Page whose content lives in the BlobStore carries an ImageID. The
// Service keeps the reference set and the blob set equal: blobs are deleted
// as soon as the last page referencing them is dropped, and blobs are deleted
// before the catalog record that drops them is written, so a crash can leave
// an orphan blob (see Service.CollectOrphans) but never a dangling reference.
//
// Display Handles
//
// Pages loaded from the BlobStore are displayed through process-local handles
// ("blob:" URLs) managed by a HandleRegistry. Handles are never persisted and
// are released when their page is dropped from memory.
package simplemanga

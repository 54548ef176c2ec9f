// Package persistence keeps racelog state durable without rewriting all of
// it on every change.
//
// State is split into named slices. Mutations mark slices dirty and a
// Persister writes only the dirty ones after a short debounce. Failed writes
// stay dirty and are retried with capped exponential backoff; once the cap
// is reached the failure is reported as a storage-error Event and retrying
// waits for the next mutation. A cron-driven quota probe raises a
// storage-warning Event when usage crosses the configured ratio.
//
// Load reads each slice independently. A missing or corrupt slice falls
// back to its default and is listed in the LoadReport; the other slices
// still load.
//
// Export and DecodeExport handle the JSON snapshot format, including the
// bare-array layout written by schema version 1.
package persistence

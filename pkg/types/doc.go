// Package types defines the shared data model for the genomics file
// search core: located files, scored results, search requests and
// responses. Values here are plain data; GenomicsFile values are
// produced only by the storage search engines and are immutable once
// constructed.
package types

package types

import (
	"strings"
	"time"
)

// FileType is the closed set of genomics file types the engine
// recognizes, including index and dictionary variants.
type FileType string

const (
	FileTypeFastq FileType = "fastq"
	FileTypeFasta FileType = "fasta"
	FileTypeFna   FileType = "fna"
	FileTypeBam   FileType = "bam"
	FileTypeCram  FileType = "cram"
	FileTypeSam   FileType = "sam"
	FileTypeVcf   FileType = "vcf"
	FileTypeGvcf  FileType = "gvcf"
	FileTypeBcf   FileType = "bcf"
	FileTypeBed   FileType = "bed"
	FileTypeGff   FileType = "gff"

	// Index and dictionary variants
	FileTypeBai  FileType = "bai"
	FileTypeCrai FileType = "crai"
	FileTypeFai  FileType = "fai"
	FileTypeDict FileType = "dict"
	FileTypeTbi  FileType = "tbi"
	FileTypeCsi  FileType = "csi"

	// BWA index parts
	FileTypeAmb FileType = "amb"
	FileTypeAnn FileType = "ann"
	FileTypeBwt FileType = "bwt"
	FileTypePac FileType = "pac"
	FileTypeSa  FileType = "sa"
)

// AllFileTypes lists every recognized file type.
var AllFileTypes = []FileType{
	FileTypeFastq, FileTypeFasta, FileTypeFna, FileTypeBam, FileTypeCram,
	FileTypeSam, FileTypeVcf, FileTypeGvcf, FileTypeBcf, FileTypeBed,
	FileTypeGff, FileTypeBai, FileTypeCrai, FileTypeFai, FileTypeDict,
	FileTypeTbi, FileTypeCsi, FileTypeAmb, FileTypeAnn, FileTypeBwt,
	FileTypePac, FileTypeSa,
}

var fileTypeSet = func() map[FileType]bool {
	m := make(map[FileType]bool, len(AllFileTypes))
	for _, ft := range AllFileTypes {
		m[ft] = true
	}
	return m
}()

// ParseFileType parses a file type string (case-insensitive). Returns
// false for anything outside the closed set.
func ParseFileType(s string) (FileType, bool) {
	ft := FileType(strings.ToLower(strings.TrimSpace(s)))
	if fileTypeSet[ft] {
		return ft, true
	}
	// Common aliases seen in object keys
	switch ft {
	case "fq":
		return FileTypeFastq, true
	case "fa":
		return FileTypeFasta, true
	case "gff3":
		return FileTypeGff, true
	case "g.vcf":
		return FileTypeGvcf, true
	}
	return "", false
}

// IsIndex reports whether the file type is an index or dictionary
// variant rather than primary genomics data.
func (ft FileType) IsIndex() bool {
	switch ft {
	case FileTypeBai, FileTypeCrai, FileTypeFai, FileTypeDict,
		FileTypeTbi, FileTypeCsi, FileTypeAmb, FileTypeAnn,
		FileTypeBwt, FileTypePac, FileTypeSa:
		return true
	}
	return false
}

// CompressionSuffixes are the compression extensions stripped when
// decomposing filenames and grouping associated files.
var CompressionSuffixes = []string{"gz", "bz2", "bgz", "zst"}

// DetectFileType determines the FileType for a path, looking through
// any compression suffix. Returns false when the path carries no
// recognized genomics extension.
func DetectFileType(path string) (FileType, bool) {
	name := strings.ToLower(path)
	if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
		name = name[idx+1:]
	}
	for _, cs := range CompressionSuffixes {
		name = strings.TrimSuffix(name, "."+cs)
	}
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		return ParseFileType(name[idx+1:])
	}
	return "", false
}

// GenomicsFile is a located file. Immutable once constructed; produced
// only by a storage search engine.
type GenomicsFile struct {
	Path         string            `json:"path"`
	FileType     FileType          `json:"file_type"`
	SizeBytes    int64             `json:"size_bytes"`
	StorageClass string            `json:"storage_class"`
	LastModified time.Time         `json:"last_modified"`
	Tags         map[string]string `json:"tags,omitempty"`
	SourceSystem string            `json:"source_system"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// GenomicsFileResult is one reported hit: a primary file, the files
// grouped onto it, and how well it matched.
type GenomicsFileResult struct {
	PrimaryFile     GenomicsFile   `json:"primary_file"`
	AssociatedFiles []GenomicsFile `json:"associated_files,omitempty"`
	RelevanceScore  float64        `json:"relevance_score"`
	MatchReasons    []string       `json:"match_reasons,omitempty"`
}

// PaginationInfo describes how to fetch the next page, if any.
type PaginationInfo struct {
	HasMore           bool   `json:"has_more"`
	NextOffset        int    `json:"next_offset,omitempty"`
	ContinuationToken string `json:"continuation_token,omitempty"`
}

// ResponseMetadata carries aggregate information about a result set.
type ResponseMetadata struct {
	FileTypeDistribution     map[string]int `json:"file_type_distribution,omitempty"`
	SourceSystemDistribution map[string]int `json:"source_system_distribution,omitempty"`
	TotalAssociatedFiles     int            `json:"total_associated_files"`
	ResultsWithAssociations  int            `json:"results_with_associations"`
}

// Diagnostics reports how complete the response is. A populated
// response with diagnostics, not an error, is how partial failure is
// communicated.
type Diagnostics struct {
	RequestID    string   `json:"request_id"`
	BackendNotes []string `json:"backend_notes,omitempty"`
}

// SearchResponse is the assembled answer to a search request.
type SearchResponse struct {
	Results                []GenomicsFileResult `json:"results"`
	TotalFound             int                  `json:"total_found"`
	Returned               int                  `json:"returned"`
	Duration               time.Duration        `json:"search_duration"`
	StorageSystemsSearched []string             `json:"storage_systems_searched"`
	Pagination             PaginationInfo       `json:"pagination"`
	Metadata               ResponseMetadata     `json:"metadata"`
	Diagnostics            Diagnostics          `json:"diagnostics"`
}

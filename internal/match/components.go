package match

import (
	"strings"

	"github.com/genomicsearch/genomicsearch/pkg/types"
)

// FilenameComponents is the decomposition of a file path used by both
// filename matching and associated-file grouping.
type FilenameComponents struct {
	FullPath string
	Filename string
	// BaseFilename is the filename with any compression suffix stripped
	// but the type extension retained ("sample1.fastq").
	BaseFilename string
	// BaseName is further stripped of the type extension ("sample1").
	BaseName string
	// Extension is the type extension, compound where a known index
	// extension follows a primary type ("fasta.fai").
	Extension string
	// Compression is the compression suffix without the dot, empty when
	// the file is uncompressed.
	Compression string
	Directory   string
}

// ExtractFilenameComponents decomposes a path. It never fails: a path
// with no recognizable extension yields an empty Extension and a
// BaseName equal to the BaseFilename.
func ExtractFilenameComponents(path string) FilenameComponents {
	c := FilenameComponents{FullPath: path}

	c.Filename = path
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		c.Directory = path[:idx]
		c.Filename = path[idx+1:]
	}

	c.BaseFilename = c.Filename
	lower := strings.ToLower(c.Filename)
	for _, cs := range types.CompressionSuffixes {
		if strings.HasSuffix(lower, "."+cs) {
			c.Compression = cs
			c.BaseFilename = c.Filename[:len(c.Filename)-len(cs)-1]
			break
		}
	}

	c.Extension, c.BaseName = splitTypeExtension(c.BaseFilename)
	return c
}

// splitTypeExtension separates the type extension from the base name,
// recognizing compound extensions where an index extension follows a
// primary type ("reference.fasta.fai" -> "fasta.fai" / "reference").
func splitTypeExtension(name string) (ext, base string) {
	last := strings.LastIndexByte(name, '.')
	if last < 0 {
		return "", name
	}
	ext = strings.ToLower(name[last+1:])
	base = name[:last]

	ft, ok := types.ParseFileType(ext)
	if !ok {
		return ext, base
	}
	if !ft.IsIndex() {
		return ext, base
	}

	// Index extension: fold in the preceding primary extension if any.
	prev := strings.LastIndexByte(base, '.')
	if prev < 0 {
		return ext, base
	}
	inner := strings.ToLower(base[prev+1:])
	if innerType, ok := types.ParseFileType(inner); ok && !innerType.IsIndex() {
		return inner + "." + ext, base[:prev]
	}
	return ext, base
}

// AssociationKey returns the grouping key for associated-file matching:
// the base name with common paired-end read markers stripped, scoped to
// the containing directory so identically named samples in different
// prefixes never group together.
func AssociationKey(path string) string {
	c := ExtractFilenameComponents(path)
	base := strings.ToLower(c.BaseName)
	for _, marker := range []string{"_r1", "_r2", "_1", "_2", ".r1", ".r2"} {
		if strings.HasSuffix(base, marker) {
			base = base[:len(base)-len(marker)]
			break
		}
	}
	return strings.ToLower(c.Directory) + "/" + base
}

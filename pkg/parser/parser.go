package parser

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hondanabooks/hondana/pkg/models"
)

// LooseLeafVolume is the volume label grouping chapters that belong to no
// volume, and all specials.
const LooseLeafVolume = "0"

// DefaultChapter is the chapter label for files that carry no chapter number,
// e.g. a whole-volume archive or a single-file e-book.
const DefaultChapter = "0"

var formatsByExtension = map[string]string{
	".cbz":  models.FormatArchive,
	".cbr":  models.FormatArchive,
	".cb7":  models.FormatArchive,
	".zip":  models.FormatArchive,
	".rar":  models.FormatArchive,
	".7z":   models.FormatArchive,
	".epub": models.FormatEpub,
	".pdf":  models.FormatPdf,
	".png":  models.FormatImage,
	".jpg":  models.FormatImage,
	".jpeg": models.FormatImage,
	".webp": models.FormatImage,
	".gif":  models.FormatImage,
}

// FormatForPath maps a file path to a media format by extension.
func FormatForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if format, ok := formatsByExtension[ext]; ok {
		return format
	}
	return models.FormatUnknown
}

// IsSupported reports whether the path's extension belongs to a scannable
// media format.
func IsSupported(path string) bool {
	return FormatForPath(path) != models.FormatUnknown
}

var blacklistedFolders = []string{
	"__MACOSX",
	"@eaDir",
	"@Recycle",
	"#recycle",
	".caltrash",
	".qpkg",
}

// HasBlacklistedPath reports whether any path segment is an OS or NAS
// bookkeeping folder, or the file is a macOS resource fork.
func HasBlacklistedPath(path string) bool {
	normalized := NormalizePath(path)
	if strings.HasPrefix(filepath.Base(normalized), "._") {
		return true
	}
	for _, segment := range strings.Split(normalized, "/") {
		for _, blacklisted := range blacklistedFolders {
			if strings.EqualFold(segment, blacklisted) {
				return true
			}
		}
	}
	return false
}

// parseRange parses a chapter or volume label, optionally a dashed range
// ("1-3"), into float bounds.
func parseRange(label string) (minNumber, maxNumber float64, ok bool) {
	if label == "" {
		return 0, 0, false
	}
	parts := strings.SplitN(label, "-", 2)
	minNumber, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, false
	}
	maxNumber = minNumber
	if len(parts) == 2 {
		maxNumber, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			maxNumber = minNumber
		}
	}
	return minNumber, maxNumber, true
}

// ParseNumber parses a chapter label as a float for ordering. Ranges order by
// their lower bound.
func ParseNumber(label string) (float64, bool) {
	minNumber, _, ok := parseRange(label)
	return minNumber, ok
}

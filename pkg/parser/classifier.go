package parser

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hondanabooks/hondana/pkg/models"
)

// Classifier turns a file path into a FileRecord. Implementations must be
// safe for concurrent use; the scanner fans classification out across worker
// goroutines for large folders. A nil result means the file could not be
// classified and is excluded from its group.
type Classifier interface {
	Classify(path, folderName, rootPath, libraryType string) *FileRecord
}

// MetadataFunc reads the embedded metadata block out of a file. It is
// optional; classification works from filenames alone without it.
type MetadataFunc func(path string) *Metadata

// DefaultClassifier derives series, volume and chapter labels from filenames,
// falling back to the containing folder for the series name. When a
// MetadataFunc is set, embedded metadata overrides filename-derived fields.
type DefaultClassifier struct {
	ReadMetadata MetadataFunc
}

var (
	volumeRegex  = regexp.MustCompile(`(?i)(?:\b|_)(?:v|vol\.?|volume\s?)(\d+(?:\.\d+)?(?:\s?-\s?\d+(?:\.\d+)?)?)`)
	chapterRegex = regexp.MustCompile(`(?i)(?:\b|_)(?:c|ch\.?|chapter\s?|episode\s?|#)(\d+(?:\.\d+)?(?:\s?-\s?\d+(?:\.\d+)?)?)`)
	// A bare trailing number is a chapter when no explicit marker exists,
	// e.g. "Series Name 012.cbz".
	trailingNumberRegex = regexp.MustCompile(`(?:\s|_)(\d+(?:\.\d+)?(?:\s?-\s?\d+(?:\.\d+)?)?)\s*$`)
	specialRegex        = regexp.MustCompile(`(?i)\b(?:special|specials|omake|one[\s-]?shot|extra|bonus|sp\d+)\b`)
	specialIndexRegex   = regexp.MustCompile(`(?i)\bsp(\d+)\b`)
	bracketRegex        = regexp.MustCompile(`[\[({][^\])}]*[\])}]`)
	separatorRegex      = regexp.MustCompile(`[_\s]+`)
)

func (c *DefaultClassifier) Classify(path, folderName, rootPath, libraryType string) *FileRecord {
	if HasBlacklistedPath(path) || !IsSupported(path) {
		return nil
	}

	filename := filepath.Base(path)
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	cleaned := strings.TrimSpace(bracketRegex.ReplaceAllString(base, " "))

	record := &FileRecord{
		Format:   FormatForPath(path),
		Chapter:  DefaultChapter,
		Filepath: NormalizePath(path),
		Filename: filename,
	}

	remainder := cleaned
	if m := volumeRegex.FindStringSubmatchIndex(remainder); m != nil {
		record.Volume = trimLeadingZeros(remainder[m[2]:m[3]])
		remainder = remainder[:m[0]] + " " + remainder[m[1]:]
	}
	if m := chapterRegex.FindStringSubmatchIndex(remainder); m != nil {
		record.Chapter = trimLeadingZeros(remainder[m[2]:m[3]])
		remainder = remainder[:m[0]] + " " + remainder[m[1]:]
	} else if m := trailingNumberRegex.FindStringSubmatchIndex(remainder); m != nil {
		record.Chapter = trimLeadingZeros(remainder[m[2]:m[3]])
		remainder = remainder[:m[0]]
	}

	// Specials are a manga/comic convention; a novel titled "Bonus" is
	// still just a book.
	if libraryType != models.LibraryTypeBook && specialRegex.MatchString(base) {
		record.IsSpecial = true
		record.Chapter = DefaultChapter
		if m := specialIndexRegex.FindStringSubmatch(base); m != nil {
			if n, _, ok := parseRange(m[1]); ok {
				record.SpecialIndex = int(n)
			}
		}
	}

	record.Series = cleanSeriesName(remainder)
	if record.Series == "" {
		// Whole-folder series: the filename is nothing but numbering, so
		// the folder names the series.
		record.Series = cleanSeriesName(folderName)
	}

	if c.ReadMetadata != nil && record.Format == models.FormatArchive {
		c.applyMetadata(record, path)
	}

	return record
}

func (c *DefaultClassifier) applyMetadata(record *FileRecord, path string) {
	metadata := c.ReadMetadata(path)
	if metadata == nil {
		return
	}
	record.Metadata = metadata
	if metadata.Series != "" {
		record.Series = metadata.Series
	}
	if metadata.SeriesSort != "" {
		record.SortSeries = metadata.SeriesSort
	}
	if metadata.LocalizedSeries != "" {
		record.LocalizedSeries = metadata.LocalizedSeries
	}
	if metadata.Volume != "" {
		record.Volume = metadata.Volume
	}
	if metadata.Number != "" {
		record.Chapter = metadata.Number
	}
}

func cleanSeriesName(name string) string {
	name = separatorRegex.ReplaceAllString(name, " ")
	name = strings.Trim(name, " -–")
	return strings.TrimSpace(name)
}

func trimLeadingZeros(label string) string {
	label = strings.TrimSpace(label)
	trimmed := strings.TrimLeft(label, "0")
	if trimmed == "" || strings.HasPrefix(trimmed, ".") {
		return "0" + trimmed
	}
	if strings.HasPrefix(trimmed, "-") {
		// Preserve ranges like "0-2".
		return "0" + trimmed
	}
	return trimmed
}

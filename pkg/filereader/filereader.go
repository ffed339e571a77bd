package filereader

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/hondanabooks/hondana/pkg/models"
	"github.com/hondanabooks/hondana/pkg/parser"
	"github.com/pkg/errors"
)

// ComicInfo mirrors the ComicInfo.xml schema embedded in comic archives,
// including the community extensions for localized and sorted series names.
type ComicInfo struct {
	XMLName         xml.Name `xml:"ComicInfo"`
	Title           string   `xml:"Title"`
	Series          string   `xml:"Series"`
	SeriesSort      string   `xml:"SeriesSort"`
	LocalizedSeries string   `xml:"LocalizedSeries"`
	Number          string   `xml:"Number"`
	Volume          string   `xml:"Volume"`
	Summary         string   `xml:"Summary"`
	Count           string   `xml:"Count"`
	Year            string   `xml:"Year"`
	Writer          string   `xml:"Writer"`
	Penciller       string   `xml:"Penciller"`
	Inker           string   `xml:"Inker"`
	Colorist        string   `xml:"Colorist"`
	Letterer        string   `xml:"Letterer"`
	CoverArtist     string   `xml:"CoverArtist"`
	Editor          string   `xml:"Editor"`
	Translator      string   `xml:"Translator"`
	Publisher       string   `xml:"Publisher"`
	Genre           string   `xml:"Genre"`
	Tags            string   `xml:"Tags"`
	Characters      string   `xml:"Characters"`
	SeriesGroup     string   `xml:"SeriesGroup"`
	AgeRating       string   `xml:"AgeRating"`
	LanguageISO     string   `xml:"LanguageISO"`
	PageCount       string   `xml:"PageCount"`
}

// FileDetails is what the reconciler records about a file on disk.
type FileDetails struct {
	SizeBytes    int64
	Pages        int
	LastModified time.Time
}

// Reader extracts embedded metadata and physical details from library files.
type Reader interface {
	ReadMetadata(path string) (*parser.Metadata, error)
	ReadDetails(path string) (*FileDetails, error)
}

type ArchiveReader struct{}

func NewArchiveReader() *ArchiveReader {
	return &ArchiveReader{}
}

// ReadMetadata parses ComicInfo.xml out of a zip archive. Non-archive
// formats and archives without a ComicInfo.xml yield (nil, nil).
func (ar *ArchiveReader) ReadMetadata(path string) (*parser.Metadata, error) {
	if parser.FormatForPath(path) != models.FormatArchive {
		return nil, nil
	}

	zr, closer, err := openArchive(path)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	for _, file := range zr.File {
		if strings.ToLower(filepath.Base(file.Name)) != "comicinfo.xml" {
			continue
		}
		r, err := file.Open()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		info, err := parseComicInfo(r)
		if err != nil {
			return nil, err
		}
		return toMetadata(info), nil
	}

	return nil, nil
}

// ReadDetails stats the file and, for archives, counts image pages.
func (ar *ArchiveReader) ReadDetails(path string) (*FileDetails, error) {
	stats, err := os.Stat(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	details := &FileDetails{
		SizeBytes:    stats.Size(),
		LastModified: stats.ModTime(),
	}

	if parser.FormatForPath(path) != models.FormatArchive {
		return details, nil
	}

	zr, closer, err := openArchive(path)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	for _, file := range zr.File {
		if isImageEntry(file.Name) {
			details.Pages++
		}
	}

	return details, nil
}

func openArchive(path string) (*zip.Reader, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}

	stats, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, errors.WithStack(err)
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		f.Close()
		return nil, nil, errors.WithStack(err)
	}
	if !mt.Is("application/zip") {
		f.Close()
		return nil, nil, errors.Errorf("%s is not a zip archive (%s)", path, mt.String())
	}

	zr, err := zip.NewReader(f, stats.Size())
	if err != nil {
		f.Close()
		return nil, nil, errors.WithStack(err)
	}

	return zr, f, nil
}

func parseComicInfo(r io.ReadCloser) (*ComicInfo, error) {
	defer r.Close()

	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	info := &ComicInfo{}
	err = xml.Unmarshal(b, info)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return info, nil
}

func toMetadata(info *ComicInfo) *parser.Metadata {
	m := &parser.Metadata{
		Title:           strings.TrimSpace(info.Title),
		Series:          strings.TrimSpace(info.Series),
		SeriesSort:      strings.TrimSpace(info.SeriesSort),
		LocalizedSeries: strings.TrimSpace(info.LocalizedSeries),
		Number:          strings.TrimSpace(info.Number),
		Volume:          strings.TrimSpace(info.Volume),
		Summary:         strings.TrimSpace(info.Summary),
		Language:        strings.TrimSpace(info.LanguageISO),
		AgeRating:       ageRatingFor(info.AgeRating),
		Genres:          splitList(info.Genre),
		Tags:            splitList(info.Tags),
		Collections:     splitList(info.SeriesGroup),
		Writers:         splitList(info.Writer),
		Pencillers:      splitList(info.Penciller),
		Inkers:          splitList(info.Inker),
		Colorists:       splitList(info.Colorist),
		Letterers:       splitList(info.Letterer),
		CoverArtists:    splitList(info.CoverArtist),
		Editors:         splitList(info.Editor),
		Translators:     splitList(info.Translator),
		Publishers:      splitList(info.Publisher),
		Characters:      splitList(info.Characters),
	}

	if year, err := strconv.Atoi(info.Year); err == nil && year > 0 {
		m.ReleaseYear = year
	}
	if count, err := strconv.Atoi(info.Count); err == nil && count > 0 {
		m.TotalCount = count
	}
	if num, err := strconv.Atoi(info.Number); err == nil && num > 0 {
		m.Count = num
	}

	return m
}

// ageRatingFor maps ComicInfo age rating labels onto the internal scale.
// Unrecognized labels map to unknown rather than failing the read.
func ageRatingFor(label string) int {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "everyone", "g", "rating pending":
		return models.AgeRatingEveryone
	case "everyone 10+", "pg":
		return models.AgeRatingEveryone10Plus
	case "teen", "ma15+":
		return models.AgeRatingTeen
	case "mature 17+", "m", "r18+":
		return models.AgeRatingMature
	case "adults only 18+", "x18+":
		return models.AgeRatingAdultsOnly
	default:
		return models.AgeRatingUnknown
	}
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	seen := map[string]bool{}
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" || seen[trimmed] {
			continue
		}
		result = append(result, trimmed)
		seen[trimmed] = true
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func isImageEntry(name string) bool {
	if strings.HasPrefix(filepath.Base(name), "._") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".avif":
		return true
	}
	return false
}

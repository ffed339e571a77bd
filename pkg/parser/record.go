package parser

import "github.com/hondanabooks/hondana/pkg/models"

// Metadata is the embedded metadata block read out of a file (for archives,
// ComicInfo.xml). All fields are optional; zero values mean "not present".
type Metadata struct {
	Title           string
	Series          string
	SeriesSort      string
	LocalizedSeries string
	Number          string
	Volume          string
	Summary         string
	Language        string
	ReleaseYear     int
	AgeRating       int
	// Count is the number of this issue within the series, TotalCount the
	// declared total number of issues.
	Count      int
	TotalCount int

	Genres      []string
	Tags        []string
	Collections []string

	// People by role, ComicInfo creator fields.
	Writers      []string
	Pencillers   []string
	Inkers       []string
	Colorists    []string
	Letterers    []string
	CoverArtists []string
	Editors      []string
	Translators  []string
	Publishers   []string
	Characters   []string
}

// PeopleByRole returns the creator lists keyed by person role constants.
func (m *Metadata) PeopleByRole() map[string][]string {
	return map[string][]string{
		models.PersonRoleWriter:      m.Writers,
		models.PersonRolePenciller:   m.Pencillers,
		models.PersonRoleInker:       m.Inkers,
		models.PersonRoleColorist:    m.Colorists,
		models.PersonRoleLetterer:    m.Letterers,
		models.PersonRoleCoverArtist: m.CoverArtists,
		models.PersonRoleEditor:      m.Editors,
		models.PersonRoleTranslator:  m.Translators,
		models.PersonRolePublisher:   m.Publishers,
		models.PersonRoleCharacter:   m.Characters,
	}
}

// FileRecord is the classification result for one file. Records are immutable
// after classification; only the grouper reassigns Series and LocalizedSeries
// while folding duplicate names.
type FileRecord struct {
	Series          string
	LocalizedSeries string
	SortSeries      string
	Format          string
	Volume          string
	Chapter         string
	IsSpecial       bool
	SpecialIndex    int
	Filepath        string
	Filename        string
	Metadata        *Metadata
}

// ChapterRange splits a chapter label like "1-3" into its bounds. A plain
// label yields identical bounds. Unparsable labels yield (0, 0, false).
func (r *FileRecord) ChapterRange() (minNumber, maxNumber float64, ok bool) {
	return parseRange(r.Chapter)
}

// VolumeLabel returns the volume grouping key, substituting the loose-leaf
// label when the record carries no volume. Specials always group under the
// loose-leaf volume.
func (r *FileRecord) VolumeLabel() string {
	if r.IsSpecial || r.Volume == "" {
		return LooseLeafVolume
	}
	return r.Volume
}

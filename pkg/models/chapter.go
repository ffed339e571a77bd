package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Chapter struct {
	bun.BaseModel `bun:"table:chapters,alias:c"`

	ID        int       `bun:",pk,nullzero" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	VolumeID  int       `bun:",nullzero" json:"volume_id"`

	// Range is the chapter number string as classified from the file, e.g.
	// "1" or "1-3". It is the lookup key within a volume.
	Range           string     `bun:",nullzero" json:"range"`
	MinNumber       float64    `json:"min_number"`
	MaxNumber       float64    `json:"max_number"`
	SortOrder       float64    `json:"sort_order"`
	SortOrderLocked bool       `json:"sort_order_locked"`
	IsSpecial       bool       `json:"is_special"`
	SpecialIndex    int        `json:"special_index"`
	Title           string     `json:"title"`
	TitleLocked     bool       `json:"title_locked"`
	Summary         string     `json:"summary"`
	SummaryLocked   bool       `json:"summary_locked"`
	Language        string     `json:"language"`
	AgeRating       int        `json:"age_rating"`
	ReleaseDate     *time.Time `json:"release_date,omitempty"`
	PageCount       int        `json:"page_count"`
	TotalCount      int        `json:"total_count"`
	Count           int        `json:"count"`

	Files  []*File          `bun:"rel:has-many,join:id=chapter_id" json:"files,omitempty"`
	Genres []*ChapterGenre  `bun:"rel:has-many,join:id=chapter_id" json:"genres,omitempty"`
	Tags   []*ChapterTag    `bun:"rel:has-many,join:id=chapter_id" json:"tags,omitempty"`
	People []*ChapterPerson `bun:"rel:has-many,join:id=chapter_id" json:"people,omitempty"`
}

type ChapterGenre struct {
	bun.BaseModel `bun:"table:chapter_genres,alias:cg"`

	ID        int    `bun:",pk,nullzero" json:"id"`
	ChapterID int    `bun:",nullzero" json:"chapter_id"`
	GenreID   int    `bun:",nullzero" json:"genre_id"`
	Genre     *Genre `bun:"rel:belongs-to,join:genre_id=id" json:"genre,omitempty"`
}

type ChapterTag struct {
	bun.BaseModel `bun:"table:chapter_tags,alias:ct"`

	ID        int  `bun:",pk,nullzero" json:"id"`
	ChapterID int  `bun:",nullzero" json:"chapter_id"`
	TagID     int  `bun:",nullzero" json:"tag_id"`
	Tag       *Tag `bun:"rel:belongs-to,join:tag_id=id" json:"tag,omitempty"`
}

type ChapterPerson struct {
	bun.BaseModel `bun:"table:chapter_people,alias:cp"`

	ID        int     `bun:",pk,nullzero" json:"id"`
	ChapterID int     `bun:",nullzero" json:"chapter_id"`
	PersonID  int     `bun:",nullzero" json:"person_id"`
	Person    *Person `bun:"rel:belongs-to,join:person_id=id" json:"person,omitempty"`
}

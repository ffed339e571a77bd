package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Age ratings in ascending order of restriction. Aggregation keeps the most
// restrictive rating seen across a series' chapters.
const (
	AgeRatingUnknown        = 0
	AgeRatingEveryone       = 1
	AgeRatingEveryone10Plus = 2
	AgeRatingTeen           = 3
	AgeRatingMature         = 4
	AgeRatingAdultsOnly     = 5
)

const (
	PublicationStatusOngoing   = "ongoing"
	PublicationStatusCompleted = "completed"
	PublicationStatusEnded     = "ended"
)

type SeriesMetadata struct {
	bun.BaseModel `bun:"table:series_metadata,alias:sm"`

	ID        int       `bun:",pk,nullzero" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	SeriesID  int       `bun:",nullzero" json:"series_id"`

	Summary                 string `json:"summary"`
	SummaryLocked           bool   `json:"summary_locked"`
	Language                string `json:"language"`
	LanguageLocked          bool   `json:"language_locked"`
	ReleaseYear             int    `json:"release_year"`
	ReleaseYearLocked       bool   `json:"release_year_locked"`
	AgeRating               int    `json:"age_rating"`
	AgeRatingLocked         bool   `json:"age_rating_locked"`
	TotalCount              int    `json:"total_count"`
	MaxCount                int    `json:"max_count"`
	PublicationStatus       string `bun:",nullzero,default:'ongoing'" json:"publication_status"`
	PublicationStatusLocked bool   `json:"publication_status_locked"`
	GenresLocked            bool   `json:"genres_locked"`
	TagsLocked              bool   `json:"tags_locked"`
	PeopleLocked            bool   `json:"people_locked"`

	Genres []*SeriesMetadataGenre  `bun:"rel:has-many,join:id=series_metadata_id" json:"genres,omitempty"`
	Tags   []*SeriesMetadataTag    `bun:"rel:has-many,join:id=series_metadata_id" json:"tags,omitempty"`
	People []*SeriesMetadataPerson `bun:"rel:has-many,join:id=series_metadata_id" json:"people,omitempty"`
}

type SeriesMetadataGenre struct {
	bun.BaseModel `bun:"table:series_metadata_genres,alias:smg"`

	ID               int    `bun:",pk,nullzero" json:"id"`
	SeriesMetadataID int    `bun:",nullzero" json:"series_metadata_id"`
	GenreID          int    `bun:",nullzero" json:"genre_id"`
	Genre            *Genre `bun:"rel:belongs-to,join:genre_id=id" json:"genre,omitempty"`
}

type SeriesMetadataTag struct {
	bun.BaseModel `bun:"table:series_metadata_tags,alias:smt"`

	ID               int  `bun:",pk,nullzero" json:"id"`
	SeriesMetadataID int  `bun:",nullzero" json:"series_metadata_id"`
	TagID            int  `bun:",nullzero" json:"tag_id"`
	Tag              *Tag `bun:"rel:belongs-to,join:tag_id=id" json:"tag,omitempty"`
}

type SeriesMetadataPerson struct {
	bun.BaseModel `bun:"table:series_metadata_people,alias:smp"`

	ID               int     `bun:",pk,nullzero" json:"id"`
	SeriesMetadataID int     `bun:",nullzero" json:"series_metadata_id"`
	PersonID         int     `bun:",nullzero" json:"person_id"`
	Person           *Person `bun:"rel:belongs-to,join:person_id=id" json:"person,omitempty"`
}

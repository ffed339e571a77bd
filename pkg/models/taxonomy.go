package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Genre struct {
	bun.BaseModel `bun:"table:genres,alias:g"`

	ID             int       `bun:",pk,nullzero" json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Name           string    `bun:",nullzero" json:"name"`
	NormalizedName string    `bun:",nullzero" json:"normalized_name"`
}

type Tag struct {
	bun.BaseModel `bun:"table:tags,alias:t"`

	ID             int       `bun:",pk,nullzero" json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Name           string    `bun:",nullzero" json:"name"`
	NormalizedName string    `bun:",nullzero" json:"normalized_name"`
}

// Person role constants for ComicInfo.xml creator types.
const (
	PersonRoleWriter      = "writer"
	PersonRolePenciller   = "penciller"
	PersonRoleInker       = "inker"
	PersonRoleColorist    = "colorist"
	PersonRoleLetterer    = "letterer"
	PersonRoleCoverArtist = "cover_artist"
	PersonRoleEditor      = "editor"
	PersonRoleTranslator  = "translator"
	PersonRolePublisher   = "publisher"
	PersonRoleCharacter   = "character"
)

// Person identity is the (normalized name, role) pair. The same human
// appearing as both writer and editor is stored as two rows.
type Person struct {
	bun.BaseModel `bun:"table:people,alias:p"`

	ID             int       `bun:",pk,nullzero" json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Name           string    `bun:",nullzero" json:"name"`
	NormalizedName string    `bun:",nullzero" json:"normalized_name"`
	Role           string    `bun:",nullzero" json:"role"`
}

type Collection struct {
	bun.BaseModel `bun:"table:collections,alias:col"`

	ID             int       `bun:",pk,nullzero" json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Name           string    `bun:",nullzero" json:"name"`
	NormalizedName string    `bun:",nullzero" json:"normalized_name"`
	AgeRating      int       `json:"age_rating"`

	Series []*CollectionSeries `bun:"rel:has-many,join:id=collection_id" json:"series,omitempty"`
}

type CollectionSeries struct {
	bun.BaseModel `bun:"table:collection_series,alias:cs"`

	ID           int `bun:",pk,nullzero" json:"id"`
	CollectionID int `bun:",nullzero" json:"collection_id"`
	SeriesID     int `bun:",nullzero" json:"series_id"`
}

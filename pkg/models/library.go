package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Library types. The classifier adjusts its filename heuristics per type;
// book libraries never produce specials.
const (
	LibraryTypeManga = "manga"
	LibraryTypeComic = "comic"
	LibraryTypeBook  = "book"
)

type Library struct {
	bun.BaseModel `bun:"table:libraries,alias:l"`

	ID                int                      `bun:",pk,nullzero" json:"id"`
	CreatedAt         time.Time                `json:"created_at"`
	UpdatedAt         time.Time                `json:"updated_at"`
	Name              string                   `bun:",nullzero" json:"name"`
	Type              string                   `bun:",nullzero,default:'manga'" json:"type"`
	WatchEnabled      bool                     `json:"watch_enabled"`
	ManageCollections bool                     `json:"manage_collections"`
	LastScannedAt     *time.Time               `json:"last_scanned_at,omitempty"`
	Paths             []*LibraryPath           `bun:"rel:has-many" json:"paths,omitempty"`
	ExcludePatterns   []*LibraryExcludePattern `bun:"rel:has-many" json:"exclude_patterns,omitempty"`
	DeletedAt         *time.Time               `bun:",soft_delete" json:"-"`
}

type LibraryPath struct {
	bun.BaseModel `bun:"table:library_paths,alias:lp"`

	ID        int       `bun:",pk,nullzero" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	LibraryID int       `bun:",nullzero" json:"library_id"`
	Filepath  string    `bun:",nullzero" json:"filepath"`
}

// LibraryExcludePattern is a glob matched against paths relative to a library
// path root. Matching directories are skipped during scans.
type LibraryExcludePattern struct {
	bun.BaseModel `bun:"table:library_exclude_patterns,alias:lep"`

	ID        int    `bun:",pk,nullzero" json:"id"`
	LibraryID int    `bun:",nullzero" json:"library_id"`
	Pattern   string `bun:",nullzero" json:"pattern"`
}

package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Series struct {
	bun.BaseModel `bun:"table:series,alias:s"`

	ID                      int        `bun:",pk,nullzero" json:"id"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
	DeletedAt               *time.Time `bun:",soft_delete" json:"-"`
	LibraryID               int        `bun:",nullzero" json:"library_id"`
	Library                 *Library   `bun:"rel:belongs-to" json:"library,omitempty"`
	Name                    string     `bun:",nullzero" json:"name"`
	NormalizedName          string     `bun:",nullzero" json:"normalized_name"`
	OriginalName            string     `bun:",nullzero" json:"original_name"`
	SortName                string     `bun:",nullzero" json:"sort_name"`
	SortNameLocked          bool       `json:"sort_name_locked"`
	LocalizedName           string     `json:"localized_name"`
	NormalizedLocalizedName string     `json:"normalized_localized_name"`
	LocalizedNameLocked     bool       `json:"localized_name_locked"`
	NameLocked              bool       `json:"name_locked"`
	Format                  string     `bun:",nullzero" json:"format"`
	FolderPath              string     `json:"folder_path"`
	LowestFolderPath        string     `json:"lowest_folder_path"`
	LastFolderScannedAt     *time.Time `json:"last_folder_scanned_at,omitempty"`

	Metadata *SeriesMetadata `bun:"rel:has-one,join:id=series_id" json:"metadata,omitempty"`
	Volumes  []*Volume       `bun:"rel:has-many" json:"volumes,omitempty"`
}

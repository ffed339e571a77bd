package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Volume struct {
	bun.BaseModel `bun:"table:volumes,alias:v"`

	ID        int       `bun:",pk,nullzero" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	SeriesID  int       `bun:",nullzero" json:"series_id"`
	Name      string    `bun:",nullzero" json:"name"`
	MinNumber float64   `json:"min_number"`
	MaxNumber float64   `json:"max_number"`

	Chapters []*Chapter `bun:"rel:has-many" json:"chapters,omitempty"`
}

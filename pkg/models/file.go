package models

import (
	"time"

	"github.com/uptrace/bun"
)

type File struct {
	bun.BaseModel `bun:"table:files,alias:f"`

	ID        int       `bun:",pk,nullzero" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ChapterID int       `bun:",nullzero" json:"chapter_id"`

	Filepath      string    `bun:",nullzero" json:"filepath"`
	Format        string    `bun:",nullzero" json:"format"`
	Extension     string    `json:"extension"`
	FilesizeBytes int64     `json:"filesize_bytes"`
	Pages         int       `json:"pages"`
	// LastModified mirrors the filesystem mtime at the last successful read,
	// truncated to whole seconds.
	LastModified time.Time `json:"last_modified"`
	LastAnalyzed time.Time `json:"last_analyzed"`
}

// NeedsReread reports whether the on-disk file changed since this row was
// last read. Comparison truncates both sides to whole seconds because some
// filesystems do not persist sub-second mtimes.
func (f *File) NeedsReread(modTime time.Time) bool {
	if f.Pages == 0 {
		return true
	}
	return modTime.Truncate(time.Second).After(f.LastModified.Truncate(time.Second))
}

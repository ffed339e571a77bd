package models

import (
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

const (
	JobStatusPending    = "pending"
	JobStatusInProgress = "in_progress"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

const (
	JobTypeScanLibrary        = "scan_library"
	JobTypeScanFolder         = "scan_folder"
	JobTypeScanSeries         = "scan_series"
	JobTypeRefreshCollections = "refresh_collections"
)

type Job struct {
	bun.BaseModel `bun:"table:jobs,alias:j"`

	ID         int         `bun:",pk,nullzero" json:"id"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
	Type       string      `bun:",nullzero" json:"type"`
	Status     string      `bun:",nullzero" json:"status"`
	Data       string      `bun:",nullzero" json:"-"`
	DataParsed interface{} `bun:"-" json:"data"`
	Progress   int         `json:"progress"`
	ProcessID  *string     `json:"process_id,omitempty"`
	LibraryID  *int        `json:"library_id,omitempty"`
}

func (job *Job) UnmarshalData() error {
	switch job.Type {
	case JobTypeScanLibrary:
		job.DataParsed = &JobScanLibraryData{}
	case JobTypeScanFolder:
		job.DataParsed = &JobScanFolderData{}
	case JobTypeScanSeries:
		job.DataParsed = &JobScanSeriesData{}
	case JobTypeRefreshCollections:
		job.DataParsed = &JobRefreshCollectionsData{}
	}

	err := json.Unmarshal([]byte(job.Data), job.DataParsed)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

type JobScanLibraryData struct {
	LibraryID int `json:"library_id"`
	// ForceUpdate bypasses directory change detection so every series is
	// reprocessed even when folder mtimes look untouched.
	ForceUpdate bool `json:"force_update"`
}

type JobScanFolderData struct {
	LibraryID  int    `json:"library_id"`
	FolderPath string `json:"folder_path"`
}

type JobScanSeriesData struct {
	LibraryID int `json:"library_id"`
	SeriesID  int `json:"series_id"`
}

type JobRefreshCollectionsData struct {
	SeriesID int `json:"series_id"`
}

package jobs

import (
	"context"
	"database/sql"
	"time"

	"github.com/hondanabooks/hondana/pkg/errcodes"
	"github.com/hondanabooks/hondana/pkg/models"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

type RetrieveJobOptions struct {
	ID *int
}

type ListJobsOptions struct {
	Limit              *int
	Statuses           []string
	Types              []string
	ProcessIDToExclude *string
}

type UpdateJobOptions struct {
	Columns []string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) CreateJob(ctx context.Context, job *models.Job) error {
	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = job.CreatedAt
	if job.Status == "" {
		job.Status = models.JobStatusPending
	}

	if job.Data == "" && job.DataParsed != nil {
		data, err := json.Marshal(job.DataParsed)
		if err != nil {
			return errors.WithStack(err)
		}
		job.Data = string(data)
	}

	_, err := svc.db.
		NewInsert().
		Model(job).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (svc *Service) RetrieveJob(ctx context.Context, opts RetrieveJobOptions) (*models.Job, error) {
	job := &models.Job{}

	q := svc.db.
		NewSelect().
		Model(job)

	if opts.ID != nil {
		q = q.Where("j.id = ?", *opts.ID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Job")
		}
		return nil, errors.WithStack(err)
	}

	if job.Data != "" {
		err := job.UnmarshalData()
		if err != nil {
			return nil, errors.WithStack(err)
		}
	}

	return job, nil
}

func (svc *Service) ListJobs(ctx context.Context, opts ListJobsOptions) ([]*models.Job, error) {
	jobs := []*models.Job{}

	q := svc.db.
		NewSelect().
		Model(&jobs).
		Order("j.created_at ASC")

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Statuses != nil {
		q = q.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			for _, s := range opts.Statuses {
				sq = sq.WhereOr("j.status = ?", s)
			}
			return sq
		})
	}
	if opts.Types != nil {
		q = q.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			for _, t := range opts.Types {
				sq = sq.WhereOr("j.type = ?", t)
			}
			return sq
		})
	}
	if opts.ProcessIDToExclude != nil {
		q = q.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.
				Where("j.process_id IS NULL").
				WhereOr("j.process_id != ?", *opts.ProcessIDToExclude)
		})
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	for _, job := range jobs {
		if job.Data == "" {
			continue
		}
		err := job.UnmarshalData()
		if err != nil {
			return nil, errors.WithStack(err)
		}
	}

	return jobs, nil
}

// HasActiveJobOfTypes reports whether any pending or in-progress job exists
// with one of the given types. The watcher uses this to avoid queueing
// folder scans while a scan is already underway.
func (svc *Service) HasActiveJobOfTypes(ctx context.Context, jobTypes ...string) (bool, error) {
	count, err := svc.db.NewSelect().
		Model((*models.Job)(nil)).
		WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			for _, t := range jobTypes {
				sq = sq.WhereOr("j.type = ?", t)
			}
			return sq
		}).
		WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Where("j.status = ?", models.JobStatusPending).
				WhereOr("j.status = ?", models.JobStatusInProgress)
		}).
		Count(ctx)
	if err != nil {
		return false, errors.WithStack(err)
	}
	return count > 0, nil
}

func (svc *Service) UpdateJob(ctx context.Context, job *models.Job, opts UpdateJobOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	now := time.Now()
	job.UpdatedAt = now
	columns := append(opts.Columns, "updated_at")

	_, err := svc.db.
		NewUpdate().
		Model(job).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFound("Job")
		}
		return errors.WithStack(err)
	}

	return nil
}

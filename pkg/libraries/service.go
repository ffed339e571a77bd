package libraries

import (
	"context"
	"database/sql"
	"time"

	"github.com/hondanabooks/hondana/pkg/errcodes"
	"github.com/hondanabooks/hondana/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type RetrieveLibraryOptions struct {
	ID *int
}

type ListLibrariesOptions struct {
	WatchEnabled   *bool
	IncludeDeleted bool
}

type UpdateLibraryOptions struct {
	Columns               []string
	UpdatePaths           bool
	UpdateExcludePatterns bool
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) CreateLibrary(ctx context.Context, library *models.Library) error {
	now := time.Now()
	if library.CreatedAt.IsZero() {
		library.CreatedAt = now
	}
	library.UpdatedAt = library.CreatedAt

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.
			NewInsert().
			Model(library).
			Returning("*").
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		for _, path := range library.Paths {
			path.LibraryID = library.ID
			path.CreatedAt = library.CreatedAt
		}
		if len(library.Paths) > 0 {
			_, err := tx.
				NewInsert().
				Model(&library.Paths).
				Returning("*").
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}

		for _, pattern := range library.ExcludePatterns {
			pattern.LibraryID = library.ID
		}
		if len(library.ExcludePatterns) > 0 {
			_, err := tx.
				NewInsert().
				Model(&library.ExcludePatterns).
				Returning("*").
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}

		return nil
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (svc *Service) RetrieveLibrary(ctx context.Context, opts RetrieveLibraryOptions) (*models.Library, error) {
	library := &models.Library{}

	q := svc.db.
		NewSelect().
		Model(library).
		Column("l.*").
		Relation("Paths", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Order("filepath ASC")
		}).
		Relation("ExcludePatterns").
		Group("l.id")

	if opts.ID != nil {
		q = q.Where("l.id = ?", *opts.ID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Library")
		}
		return nil, errors.WithStack(err)
	}

	return library, nil
}

func (svc *Service) ListLibraries(ctx context.Context, opts ListLibrariesOptions) ([]*models.Library, error) {
	libraries := []*models.Library{}

	q := svc.db.
		NewSelect().
		Model(&libraries).
		Column("l.*").
		Relation("Paths", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Order("filepath ASC")
		}).
		Relation("ExcludePatterns").
		Group("l.id").
		Order("l.name ASC")

	if opts.WatchEnabled != nil {
		q = q.Where("l.watch_enabled = ?", *opts.WatchEnabled)
	}
	if !opts.IncludeDeleted {
		q = q.Where("deleted_at IS NULL")
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return libraries, nil
}

func (svc *Service) UpdateLibrary(ctx context.Context, library *models.Library, opts UpdateLibraryOptions) error {
	if len(opts.Columns) == 0 && !opts.UpdatePaths && !opts.UpdateExcludePatterns {
		return nil
	}

	now := time.Now()
	library.UpdatedAt = now
	columns := append(opts.Columns, "updated_at")

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.
			NewUpdate().
			Model(library).
			Column(columns...).
			WherePK().
			Exec(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errcodes.NotFound("Library")
			}
			return errors.WithStack(err)
		}

		if opts.UpdatePaths {
			_, err := tx.
				NewDelete().
				Model((*models.LibraryPath)(nil)).
				Where("library_id = ?", library.ID).
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}

			for _, path := range library.Paths {
				path.LibraryID = library.ID
				path.CreatedAt = now
			}
			if len(library.Paths) > 0 {
				_, err := tx.
					NewInsert().
					Model(&library.Paths).
					Returning("*").
					Exec(ctx)
				if err != nil {
					return errors.WithStack(err)
				}
			}
		}

		if opts.UpdateExcludePatterns {
			_, err := tx.
				NewDelete().
				Model((*models.LibraryExcludePattern)(nil)).
				Where("library_id = ?", library.ID).
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}

			for _, pattern := range library.ExcludePatterns {
				pattern.LibraryID = library.ID
			}
			if len(library.ExcludePatterns) > 0 {
				_, err := tx.
					NewInsert().
					Model(&library.ExcludePatterns).
					Returning("*").
					Exec(ctx)
				if err != nil {
					return errors.WithStack(err)
				}
			}
		}

		return nil
	})

	return errors.WithStack(err)
}

// MarkScanned stamps the library's last full scan time.
func (svc *Service) MarkScanned(ctx context.Context, library *models.Library, at time.Time) error {
	library.LastScannedAt = &at
	return svc.UpdateLibrary(ctx, library, UpdateLibraryOptions{Columns: []string{"last_scanned_at"}})
}

// ExcludeGlobs returns the library's exclusion patterns as plain strings.
func ExcludeGlobs(library *models.Library) []string {
	patterns := make([]string, 0, len(library.ExcludePatterns))
	for _, pattern := range library.ExcludePatterns {
		patterns = append(patterns, pattern.Pattern)
	}
	return patterns
}

package series

import (
	"context"
	"database/sql"
	"time"

	"github.com/hondanabooks/hondana/pkg/errcodes"
	"github.com/hondanabooks/hondana/pkg/models"
	"github.com/hondanabooks/hondana/pkg/scanner"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type RetrieveSeriesOptions struct {
	ID         *int
	FolderPath *string
	LibraryID  *int
}

type ListSeriesOptions struct {
	LibraryID *int
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

// FindByNormalizedNames returns every series in the library whose normalized
// name or normalized localized name matches any of the given names, for the
// given format. Callers branch explicitly on 0, 1, or many results; more
// than one match is a catalog collision the caller must surface, never
// resolve by guessing.
func (svc *Service) FindByNormalizedNames(ctx context.Context, libraryID int, format string, normalizedNames []string) ([]*models.Series, error) {
	if len(normalizedNames) == 0 {
		return nil, nil
	}

	matches := []*models.Series{}
	err := svc.db.
		NewSelect().
		Model(&matches).
		Where("s.library_id = ?", libraryID).
		Where("s.format = ?", format).
		Where("s.deleted_at IS NULL").
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("s.normalized_name IN (?)", bun.In(normalizedNames)).
				WhereOr("s.normalized_localized_name IN (?)", bun.In(normalizedNames))
		}).
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return matches, nil
}

// RetrieveSeries loads one series with its full graph: metadata (and its
// taxonomy joins), volumes, chapters, and files.
func (svc *Service) RetrieveSeries(ctx context.Context, opts RetrieveSeriesOptions) (*models.Series, error) {
	s := &models.Series{}

	q := svc.db.
		NewSelect().
		Model(s).
		Relation("Metadata").
		Relation("Metadata.Genres.Genre").
		Relation("Metadata.Tags.Tag").
		Relation("Metadata.People.Person").
		Relation("Volumes").
		Relation("Volumes.Chapters").
		Relation("Volumes.Chapters.Files").
		Relation("Volumes.Chapters.Genres.Genre").
		Relation("Volumes.Chapters.Tags.Tag").
		Relation("Volumes.Chapters.People.Person")

	if opts.ID != nil {
		q = q.Where("s.id = ?", *opts.ID)
	}
	if opts.FolderPath != nil {
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("s.folder_path = ?", *opts.FolderPath).
				WhereOr("s.lowest_folder_path = ?", *opts.FolderPath)
		})
	}
	if opts.LibraryID != nil {
		q = q.Where("s.library_id = ?", *opts.LibraryID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Series")
		}
		return nil, errors.WithStack(err)
	}

	return s, nil
}

func (svc *Service) ListSeries(ctx context.Context, opts ListSeriesOptions) ([]*models.Series, error) {
	list := []*models.Series{}

	q := svc.db.
		NewSelect().
		Model(&list).
		Order("s.name ASC")

	if opts.LibraryID != nil {
		q = q.Where("s.library_id = ?", *opts.LibraryID)
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return list, nil
}

// MembershipCache builds the folder to series map the directory scanner
// uses for change detection. A series appears under both its top folder and
// its lowest folder when they differ.
func (svc *Service) MembershipCache(ctx context.Context, libraryID int) (scanner.MembershipCache, error) {
	list, err := svc.ListSeries(ctx, ListSeriesOptions{LibraryID: &libraryID})
	if err != nil {
		return nil, err
	}

	cache := scanner.MembershipCache{}
	for _, s := range list {
		if s.LastFolderScannedAt == nil {
			continue
		}
		entry := scanner.SeriesMembership{
			SeriesName:       s.Name,
			LowestFolderPath: s.LowestFolderPath,
			LastScanned:      *s.LastFolderScannedAt,
			Format:           s.Format,
		}
		cache[s.FolderPath] = append(cache[s.FolderPath], entry)
		if s.LowestFolderPath != "" && s.LowestFolderPath != s.FolderPath {
			cache[s.LowestFolderPath] = append(cache[s.LowestFolderPath], entry)
		}
	}
	return cache, nil
}

// SaveGraph writes one series' complete graph in a single transaction. The
// incoming graph is authoritative: rows in the store that the graph no
// longer contains are deleted. On any failure the transaction rolls back in
// full, leaving no partial state for the series.
func (svc *Service) SaveGraph(ctx context.Context, s *models.Series) error {
	now := time.Now()

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := upsertSeries(ctx, tx, s, now); err != nil {
			return err
		}
		if err := saveMetadata(ctx, tx, s, now); err != nil {
			return err
		}
		return saveVolumes(ctx, tx, s, now)
	})

	return errors.WithStack(err)
}

func upsertSeries(ctx context.Context, tx bun.Tx, s *models.Series, now time.Time) error {
	s.UpdatedAt = now
	if s.ID == 0 {
		s.CreatedAt = now
		_, err := tx.NewInsert().Model(s).Returning("*").Exec(ctx)
		return errors.WithStack(err)
	}

	_, err := tx.
		NewUpdate().
		Model(s).
		Column("name", "normalized_name", "original_name", "sort_name", "localized_name",
			"normalized_localized_name", "format", "folder_path", "lowest_folder_path",
			"last_folder_scanned_at", "updated_at").
		WherePK().
		Exec(ctx)
	return errors.WithStack(err)
}

func saveMetadata(ctx context.Context, tx bun.Tx, s *models.Series, now time.Time) error {
	metadata := s.Metadata
	if metadata == nil {
		return nil
	}
	metadata.SeriesID = s.ID
	metadata.UpdatedAt = now

	if metadata.ID == 0 {
		metadata.CreatedAt = now
		if _, err := tx.NewInsert().Model(metadata).Returning("*").Exec(ctx); err != nil {
			return errors.WithStack(err)
		}
	} else {
		_, err := tx.
			NewUpdate().
			Model(metadata).
			Column("summary", "language", "release_year", "age_rating", "total_count",
				"max_count", "publication_status", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
	}

	// Join rows are replaced wholesale. The reconciler already respected
	// locked fields when it computed the sets.
	if err := replaceJoins(ctx, tx, (*models.SeriesMetadataGenre)(nil), "series_metadata_id", metadata.ID, len(metadata.Genres), func() error {
		for _, join := range metadata.Genres {
			join.ID = 0
			join.SeriesMetadataID = metadata.ID
		}
		_, err := tx.NewInsert().Model(&metadata.Genres).Exec(ctx)
		return err
	}); err != nil {
		return err
	}
	if err := replaceJoins(ctx, tx, (*models.SeriesMetadataTag)(nil), "series_metadata_id", metadata.ID, len(metadata.Tags), func() error {
		for _, join := range metadata.Tags {
			join.ID = 0
			join.SeriesMetadataID = metadata.ID
		}
		_, err := tx.NewInsert().Model(&metadata.Tags).Exec(ctx)
		return err
	}); err != nil {
		return err
	}
	return replaceJoins(ctx, tx, (*models.SeriesMetadataPerson)(nil), "series_metadata_id", metadata.ID, len(metadata.People), func() error {
		for _, join := range metadata.People {
			join.ID = 0
			join.SeriesMetadataID = metadata.ID
		}
		_, err := tx.NewInsert().Model(&metadata.People).Exec(ctx)
		return err
	})
}

func replaceJoins(ctx context.Context, tx bun.Tx, model any, fkColumn string, fkValue int, count int, insert func() error) error {
	if _, err := tx.NewDelete().Model(model).Where("? = ?", bun.Ident(fkColumn), fkValue).Exec(ctx); err != nil {
		return errors.WithStack(err)
	}
	if count == 0 {
		return nil
	}
	return errors.WithStack(insert())
}

func saveVolumes(ctx context.Context, tx bun.Tx, s *models.Series, now time.Time) error {
	keep := make([]int, 0, len(s.Volumes))
	for _, volume := range s.Volumes {
		volume.SeriesID = s.ID
		volume.UpdatedAt = now
		if volume.ID == 0 {
			volume.CreatedAt = now
			if _, err := tx.NewInsert().Model(volume).Returning("*").Exec(ctx); err != nil {
				return errors.WithStack(err)
			}
		} else {
			_, err := tx.
				NewUpdate().
				Model(volume).
				Column("name", "min_number", "max_number", "updated_at").
				WherePK().
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}
		keep = append(keep, volume.ID)

		if err := saveChapters(ctx, tx, volume, now); err != nil {
			return err
		}
	}

	return deleteAbsent(ctx, tx, (*models.Volume)(nil), "series_id", s.ID, keep)
}

func saveChapters(ctx context.Context, tx bun.Tx, volume *models.Volume, now time.Time) error {
	keep := make([]int, 0, len(volume.Chapters))
	for _, chapter := range volume.Chapters {
		chapter.VolumeID = volume.ID
		chapter.UpdatedAt = now
		if chapter.ID == 0 {
			chapter.CreatedAt = now
			if _, err := tx.NewInsert().Model(chapter).Returning("*").Exec(ctx); err != nil {
				return errors.WithStack(err)
			}
		} else {
			_, err := tx.
				NewUpdate().
				Model(chapter).
				Column("range", "min_number", "max_number", "sort_order", "is_special",
					"special_index", "title", "summary", "language", "age_rating",
					"release_date", "page_count", "total_count", "count", "updated_at").
				WherePK().
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}
		keep = append(keep, chapter.ID)

		if err := saveFiles(ctx, tx, chapter, now); err != nil {
			return err
		}
		if err := saveChapterJoins(ctx, tx, chapter); err != nil {
			return err
		}
	}

	return deleteAbsent(ctx, tx, (*models.Chapter)(nil), "volume_id", volume.ID, keep)
}

func saveFiles(ctx context.Context, tx bun.Tx, chapter *models.Chapter, now time.Time) error {
	keep := make([]int, 0, len(chapter.Files))
	for _, file := range chapter.Files {
		file.ChapterID = chapter.ID
		file.UpdatedAt = now
		if file.ID == 0 {
			file.CreatedAt = now
			if _, err := tx.NewInsert().Model(file).Returning("*").Exec(ctx); err != nil {
				return errors.WithStack(err)
			}
		} else {
			_, err := tx.
				NewUpdate().
				Model(file).
				Column("filepath", "format", "extension", "filesize_bytes", "pages",
					"last_modified", "last_analyzed", "updated_at").
				WherePK().
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}
		keep = append(keep, file.ID)
	}

	return deleteAbsent(ctx, tx, (*models.File)(nil), "chapter_id", chapter.ID, keep)
}

func saveChapterJoins(ctx context.Context, tx bun.Tx, chapter *models.Chapter) error {
	if err := replaceJoins(ctx, tx, (*models.ChapterGenre)(nil), "chapter_id", chapter.ID, len(chapter.Genres), func() error {
		for _, join := range chapter.Genres {
			join.ID = 0
			join.ChapterID = chapter.ID
		}
		_, err := tx.NewInsert().Model(&chapter.Genres).Exec(ctx)
		return err
	}); err != nil {
		return err
	}
	if err := replaceJoins(ctx, tx, (*models.ChapterTag)(nil), "chapter_id", chapter.ID, len(chapter.Tags), func() error {
		for _, join := range chapter.Tags {
			join.ID = 0
			join.ChapterID = chapter.ID
		}
		_, err := tx.NewInsert().Model(&chapter.Tags).Exec(ctx)
		return err
	}); err != nil {
		return err
	}
	return replaceJoins(ctx, tx, (*models.ChapterPerson)(nil), "chapter_id", chapter.ID, len(chapter.People), func() error {
		for _, join := range chapter.People {
			join.ID = 0
			join.ChapterID = chapter.ID
		}
		_, err := tx.NewInsert().Model(&chapter.People).Exec(ctx)
		return err
	})
}

func deleteAbsent(ctx context.Context, tx bun.Tx, model any, fkColumn string, fkValue int, keep []int) error {
	q := tx.NewDelete().Model(model).Where("? = ?", bun.Ident(fkColumn), fkValue)
	if len(keep) > 0 {
		q = q.Where("id NOT IN (?)", bun.In(keep))
	}
	_, err := q.Exec(ctx)
	return errors.WithStack(err)
}

// DeleteSeries soft-deletes a series.
func (svc *Service) DeleteSeries(ctx context.Context, s *models.Series) error {
	_, err := svc.db.NewDelete().Model(s).WherePK().Exec(ctx)
	return errors.WithStack(err)
}

package taxonomy

import (
	"context"
	"strings"
	"time"

	"github.com/hondanabooks/hondana/pkg/errcodes"
	"github.com/hondanabooks/hondana/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// Service is the bun-backed Store implementation.
type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

// isUniqueViolation detects SQLite unique-constraint errors from either the
// cgo or the pure-Go driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed") && strings.Contains(msg, "2067")
}

func (svc *Service) ListGenres(ctx context.Context) ([]*models.Genre, error) {
	genres := []*models.Genre{}
	err := svc.db.NewSelect().Model(&genres).Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return genres, nil
}

func (svc *Service) CreateGenre(ctx context.Context, genre *models.Genre) error {
	now := time.Now()
	if genre.CreatedAt.IsZero() {
		genre.CreatedAt = now
	}
	genre.UpdatedAt = genre.CreatedAt

	_, err := svc.db.
		NewInsert().
		Model(genre).
		Returning("*").
		Exec(ctx)
	if isUniqueViolation(err) {
		return errcodes.Conflict("Genre")
	}
	return errors.WithStack(err)
}

func (svc *Service) ListTags(ctx context.Context) ([]*models.Tag, error) {
	tags := []*models.Tag{}
	err := svc.db.NewSelect().Model(&tags).Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return tags, nil
}

func (svc *Service) CreateTag(ctx context.Context, tag *models.Tag) error {
	now := time.Now()
	if tag.CreatedAt.IsZero() {
		tag.CreatedAt = now
	}
	tag.UpdatedAt = tag.CreatedAt

	_, err := svc.db.
		NewInsert().
		Model(tag).
		Returning("*").
		Exec(ctx)
	if isUniqueViolation(err) {
		return errcodes.Conflict("Tag")
	}
	return errors.WithStack(err)
}

func (svc *Service) ListPeople(ctx context.Context) ([]*models.Person, error) {
	people := []*models.Person{}
	err := svc.db.NewSelect().Model(&people).Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return people, nil
}

func (svc *Service) CreatePerson(ctx context.Context, person *models.Person) error {
	now := time.Now()
	if person.CreatedAt.IsZero() {
		person.CreatedAt = now
	}
	person.UpdatedAt = person.CreatedAt

	_, err := svc.db.
		NewInsert().
		Model(person).
		Returning("*").
		Exec(ctx)
	if isUniqueViolation(err) {
		return errcodes.Conflict("Person")
	}
	return errors.WithStack(err)
}

func (svc *Service) ListCollections(ctx context.Context) ([]*models.Collection, error) {
	collections := []*models.Collection{}
	err := svc.db.NewSelect().Model(&collections).Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return collections, nil
}

func (svc *Service) CreateCollection(ctx context.Context, collection *models.Collection) error {
	now := time.Now()
	if collection.CreatedAt.IsZero() {
		collection.CreatedAt = now
	}
	collection.UpdatedAt = collection.CreatedAt

	_, err := svc.db.
		NewInsert().
		Model(collection).
		Returning("*").
		Exec(ctx)
	if isUniqueViolation(err) {
		return errcodes.Conflict("Collection")
	}
	return errors.WithStack(err)
}

// AttachSeries links a series to a collection. Duplicate links are ignored;
// the unique index on (collection_id, series_id) makes retries idempotent.
func (svc *Service) AttachSeries(ctx context.Context, collectionID, seriesID int) error {
	link := &models.CollectionSeries{
		CollectionID: collectionID,
		SeriesID:     seriesID,
	}

	_, err := svc.db.
		NewInsert().
		Model(link).
		Exec(ctx)
	if isUniqueViolation(err) {
		return nil
	}
	return errors.WithStack(err)
}

// RefreshAgeRatings recomputes every collection's age rating as the most
// restrictive rating among its member series.
func (svc *Service) RefreshAgeRatings(ctx context.Context) error {
	collections, err := svc.ListCollections(ctx)
	if err != nil {
		return err
	}

	for _, collection := range collections {
		var rating int
		err := svc.db.
			NewSelect().
			ColumnExpr("COALESCE(MAX(sm.age_rating), 0)").
			TableExpr("collection_series AS cs").
			Join("JOIN series_metadata AS sm ON sm.series_id = cs.series_id").
			Where("cs.collection_id = ?", collection.ID).
			Scan(ctx, &rating)
		if err != nil {
			return errors.WithStack(err)
		}

		if rating == collection.AgeRating {
			continue
		}
		collection.AgeRating = rating
		collection.UpdatedAt = time.Now()
		_, err = svc.db.
			NewUpdate().
			Model(collection).
			Column("age_rating", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
	}

	return nil
}

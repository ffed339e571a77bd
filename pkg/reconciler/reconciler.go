package reconciler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hondanabooks/hondana/pkg/filereader"
	"github.com/hondanabooks/hondana/pkg/models"
	"github.com/hondanabooks/hondana/pkg/notify"
	"github.com/hondanabooks/hondana/pkg/parser"
	"github.com/hondanabooks/hondana/pkg/scanner"
	"github.com/hondanabooks/hondana/pkg/series"
	"github.com/hondanabooks/hondana/pkg/sortname"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// SeriesStore is the persistence surface the reconciler needs. The series
// service implements it; tests substitute an in-memory fake.
type SeriesStore interface {
	FindByNormalizedNames(ctx context.Context, libraryID int, format string, normalizedNames []string) ([]*models.Series, error)
	RetrieveSeries(ctx context.Context, opts series.RetrieveSeriesOptions) (*models.Series, error)
	ListSeries(ctx context.Context, opts series.ListSeriesOptions) ([]*models.Series, error)
	SaveGraph(ctx context.Context, s *models.Series) error
	DeleteSeries(ctx context.Context, s *models.Series) error
}

// TaxonomyCache interns shared taxonomy entities during a scan generation.
type TaxonomyCache interface {
	GetGenre(ctx context.Context, name string) (*models.Genre, error)
	GetTag(ctx context.Context, name string) (*models.Tag, error)
	GetPerson(ctx context.Context, name, role string) (*models.Person, error)
	GetCollection(ctx context.Context, name string) (*models.Collection, error)
}

// CollectionAttacher links reconciled series to their collections.
type CollectionAttacher interface {
	AttachSeries(ctx context.Context, collectionID, seriesID int) error
}

// JobQueue enqueues follow-up work after a series commit.
type JobQueue interface {
	CreateJob(ctx context.Context, job *models.Job) error
}

// Reconciler folds one scanned series group into the stored series graph.
// Field updates respect the corresponding locked flags so operator edits
// survive rescans; everything for one series commits in one transaction.
type Reconciler struct {
	log         logger.Logger
	store       SeriesStore
	taxonomy    TaxonomyCache
	collections CollectionAttacher
	reader      filereader.Reader
	sink        notify.Sink
	jobQueue    JobQueue
}

func New(log logger.Logger, store SeriesStore, taxonomy TaxonomyCache, collections CollectionAttacher, reader filereader.Reader, sink notify.Sink, jobQueue JobQueue) *Reconciler {
	return &Reconciler{
		log:         log,
		store:       store,
		taxonomy:    taxonomy,
		collections: collections,
		reader:      reader,
		sink:        sink,
		jobQueue:    jobQueue,
	}
}

// ProcessGroup reconciles one series group against the store. It returns the
// committed series, or an error when the group could not be processed; the
// caller moves on to the next group either way.
func (r *Reconciler) ProcessGroup(ctx context.Context, library *models.Library, group *scanner.SeriesGroup) (*models.Series, error) {
	if group == nil || len(group.Records) == 0 {
		return nil, nil
	}

	s, created, err := r.lookupSeries(ctx, library, group)
	if err != nil {
		return nil, err
	}

	r.applySeriesFields(s, library, group)

	orders := scanner.UpdateSortOrder(group.Records)
	if err := r.reconcileVolumes(ctx, s, group, orders); err != nil {
		return nil, err
	}
	r.aggregateMetadata(s)

	now := time.Now()
	s.LastFolderScannedAt = &now

	if err := r.store.SaveGraph(ctx, s); err != nil {
		r.sink.Publish(notify.Event{
			Name:       notify.EventSeriesError,
			LibraryID:  library.ID,
			SeriesID:   s.ID,
			SeriesName: s.Name,
			Error:      err.Error(),
		})
		return nil, err
	}

	if library.ManageCollections {
		if err := r.attachCollections(ctx, s, group); err != nil {
			return nil, err
		}
	}

	event := notify.EventSeriesUpdated
	if created {
		event = notify.EventSeriesAdded
	}
	r.sink.Publish(notify.Event{
		Name:       event,
		LibraryID:  library.ID,
		SeriesID:   s.ID,
		SeriesName: s.Name,
	})

	return s, nil
}

// lookupSeries matches the group against stored series by normalized name
// and format. Zero matches creates a fresh series; one loads the full graph;
// more than one is a catalog collision and the whole group is skipped so a
// wrong merge never happens silently.
func (r *Reconciler) lookupSeries(ctx context.Context, library *models.Library, group *scanner.SeriesGroup) (*models.Series, bool, error) {
	matches, err := r.store.FindByNormalizedNames(ctx, library.ID, group.Format, candidateNames(group))
	if err != nil {
		return nil, false, err
	}

	switch len(matches) {
	case 0:
		return &models.Series{
			LibraryID:    library.ID,
			Name:         group.Name,
			OriginalName: group.Name,
			Format:       group.Format,
			Metadata:     &models.SeriesMetadata{},
		}, true, nil
	case 1:
		id := matches[0].ID
		s, err := r.store.RetrieveSeries(ctx, series.RetrieveSeriesOptions{ID: &id})
		if err != nil {
			return nil, false, err
		}
		if s.Metadata == nil {
			s.Metadata = &models.SeriesMetadata{SeriesID: s.ID}
		}
		return s, false, nil
	default:
		names := make([]string, 0, len(matches))
		for _, match := range matches {
			names = append(names, match.Name)
		}
		r.log.Error("multiple series match scanned group, skipping group", logger.Data{
			"group":      group.Name,
			"format":     group.Format,
			"library_id": library.ID,
			"candidates": strings.Join(names, ", "),
		})
		err := errors.Errorf("series name %q matches existing series: %s", group.Name, strings.Join(names, ", "))
		r.sink.Publish(notify.Event{
			Name:       notify.EventSeriesError,
			LibraryID:  library.ID,
			SeriesName: group.Name,
			Error:      err.Error(),
		})
		return nil, false, err
	}
}

func candidateNames(group *scanner.SeriesGroup) []string {
	names := []string{group.NormalizedName}
	seen := map[string]bool{group.NormalizedName: true}
	for _, record := range group.Records {
		for _, name := range []string{record.LocalizedSeries, record.SortSeries} {
			normalized := parser.Normalize(name)
			if name == "" || normalized == "" || seen[normalized] {
				continue
			}
			names = append(names, normalized)
			seen[normalized] = true
		}
	}
	return names
}

func (r *Reconciler) applySeriesFields(s *models.Series, library *models.Library, group *scanner.SeriesGroup) {
	if !s.NameLocked {
		s.Name = group.Name
		s.NormalizedName = parser.Normalize(s.Name)
	} else if s.NormalizedName == "" {
		// A locked name keeps its stored normalized key so future scans of
		// the same folder keep matching this series.
		s.NormalizedName = parser.Normalize(s.Name)
	}

	localized := ""
	sortSeries := ""
	for _, record := range group.Records {
		if localized == "" && record.LocalizedSeries != "" {
			localized = record.LocalizedSeries
		}
		if sortSeries == "" && record.SortSeries != "" {
			sortSeries = record.SortSeries
		}
	}

	if !s.LocalizedNameLocked && localized != "" {
		s.LocalizedName = localized
	}
	s.NormalizedLocalizedName = parser.Normalize(s.LocalizedName)

	if !s.SortNameLocked {
		switch {
		case sortSeries != "":
			s.SortName = sortSeries
		case s.SortName == "" || s.SortName == sortname.ForTitle(s.OriginalName):
			s.SortName = sortname.ForTitle(s.Name)
		}
	}

	s.FolderPath, s.LowestFolderPath = folderPaths(library, group.Records)
}

// folderPaths derives the series' top-level folder under its library root
// and the deepest directory common to all of its files.
func folderPaths(library *models.Library, records []*parser.FileRecord) (folderPath, lowestFolderPath string) {
	common := ""
	for _, record := range records {
		dir := parser.NormalizePath(filepath.Dir(record.Filepath))
		if common == "" {
			common = dir
			continue
		}
		common = commonDir(common, dir)
	}
	lowestFolderPath = common

	for _, libraryPath := range library.Paths {
		root := strings.TrimRight(parser.NormalizePath(libraryPath.Filepath), "/")
		if common == root {
			return common, common
		}
		if strings.HasPrefix(common, root+"/") {
			rel := strings.TrimPrefix(common, root+"/")
			top := strings.SplitN(rel, "/", 2)[0]
			return root + "/" + top, common
		}
	}
	return common, common
}

func commonDir(a, b string) string {
	if a == b {
		return a
	}
	partsA := strings.Split(a, "/")
	partsB := strings.Split(b, "/")
	n := len(partsA)
	if len(partsB) < n {
		n = len(partsB)
	}
	i := 0
	for i < n && partsA[i] == partsB[i] {
		i++
	}
	return strings.Join(partsA[:i], "/")
}

// attachCollections interns the collections named in the group's embedded
// metadata, links the series to each, and queues an age rating refresh.
func (r *Reconciler) attachCollections(ctx context.Context, s *models.Series, group *scanner.SeriesGroup) error {
	names := map[string]bool{}
	for _, record := range group.Records {
		if record.Metadata == nil {
			continue
		}
		for _, name := range record.Metadata.Collections {
			names[name] = true
		}
	}
	if len(names) == 0 {
		return nil
	}

	attached := false
	for name := range names {
		collection, err := r.taxonomy.GetCollection(ctx, name)
		if err != nil {
			return err
		}
		if collection == nil {
			continue
		}
		if err := r.collections.AttachSeries(ctx, collection.ID, s.ID); err != nil {
			return err
		}
		attached = true
	}
	if !attached {
		return nil
	}

	return r.jobQueue.CreateJob(ctx, &models.Job{
		Type:       models.JobTypeRefreshCollections,
		Status:     models.JobStatusPending,
		DataParsed: &models.JobRefreshCollectionsData{SeriesID: s.ID},
	})
}

// RemoveAbsentSeries deletes series in the library whose folders no longer
// exist on disk. It runs after a full library scan, never after a partial
// one, so a series outside the scanned folder is never removed by mistake.
func (r *Reconciler) RemoveAbsentSeries(ctx context.Context, library *models.Library, seenSeriesIDs map[int]bool) error {
	list, err := r.store.ListSeries(ctx, series.ListSeriesOptions{LibraryID: &library.ID})
	if err != nil {
		return err
	}

	for _, s := range list {
		if seenSeriesIDs[s.ID] {
			continue
		}
		if s.FolderPath != "" {
			if _, err := os.Stat(s.FolderPath); err == nil {
				// Folder still exists but produced no records this scan.
				// Leave the series alone; its files may be unreadable.
				r.log.Warn("series folder exists but yielded no records, keeping series", logger.Data{
					"series_id": s.ID,
					"series":    s.Name,
					"folder":    s.FolderPath,
				})
				continue
			}
		}

		if err := r.store.DeleteSeries(ctx, s); err != nil {
			return err
		}
		r.log.Info("removed series with missing folder", logger.Data{
			"series_id": s.ID,
			"series":    s.Name,
			"folder":    s.FolderPath,
		})
		r.sink.Publish(notify.Event{
			Name:       notify.EventSeriesRemoved,
			LibraryID:  library.ID,
			SeriesID:   s.ID,
			SeriesName: s.Name,
		})
	}

	return nil
}

package worker

import (
	"context"
	"strings"
	"time"

	"github.com/hondanabooks/hondana/pkg/libraries"
	"github.com/hondanabooks/hondana/pkg/models"
	"github.com/hondanabooks/hondana/pkg/notify"
	"github.com/hondanabooks/hondana/pkg/scanner"
	"github.com/hondanabooks/hondana/pkg/series"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// scanRoot is one directory tree to walk, together with the library path it
// belongs to. For full scans the two are the same; for folder and series
// scans the walk is rooted below the library path.
type scanRoot struct {
	path        string
	libraryRoot string
}

// ProcessScanLibraryJob scans every path of a library, reconciles all series
// groups, and removes series whose folders disappeared. Removal only runs
// here: partial scans never see the whole library, so they must never prune.
func (w *Worker) ProcessScanLibraryJob(ctx context.Context, job *models.Job) error {
	data, ok := job.DataParsed.(*models.JobScanLibraryData)
	if !ok {
		return errors.Errorf("unexpected data for job %d", job.ID)
	}

	library, err := w.libraryService.RetrieveLibrary(ctx, libraries.RetrieveLibraryOptions{ID: &data.LibraryID})
	if err != nil {
		return err
	}

	roots := make([]scanRoot, 0, len(library.Paths))
	for _, libraryPath := range library.Paths {
		roots = append(roots, scanRoot{path: libraryPath.Filepath, libraryRoot: libraryPath.Filepath})
	}

	seen, err := w.scanRoots(ctx, library, roots, data.ForceUpdate)
	if err != nil {
		return err
	}

	if err := w.reconciler.RemoveAbsentSeries(ctx, library, seen); err != nil {
		return err
	}

	return w.libraryService.MarkScanned(ctx, library, time.Now())
}

// ProcessScanFolderJob scans one folder inside a library, typically on
// behalf of the filesystem watcher.
func (w *Worker) ProcessScanFolderJob(ctx context.Context, job *models.Job) error {
	data, ok := job.DataParsed.(*models.JobScanFolderData)
	if !ok {
		return errors.Errorf("unexpected data for job %d", job.ID)
	}

	library, err := w.libraryService.RetrieveLibrary(ctx, libraries.RetrieveLibraryOptions{ID: &data.LibraryID})
	if err != nil {
		return err
	}

	root, err := coveringRoot(library, data.FolderPath)
	if err != nil {
		return err
	}

	_, err = w.scanRoots(ctx, library, []scanRoot{{path: data.FolderPath, libraryRoot: root}}, false)
	return err
}

// ProcessScanSeriesJob rescans a single series' folder, bypassing change
// detection so the series is always reprocessed.
func (w *Worker) ProcessScanSeriesJob(ctx context.Context, job *models.Job) error {
	data, ok := job.DataParsed.(*models.JobScanSeriesData)
	if !ok {
		return errors.Errorf("unexpected data for job %d", job.ID)
	}

	library, err := w.libraryService.RetrieveLibrary(ctx, libraries.RetrieveLibraryOptions{ID: &data.LibraryID})
	if err != nil {
		return err
	}

	s, err := w.seriesService.RetrieveSeries(ctx, series.RetrieveSeriesOptions{ID: &data.SeriesID})
	if err != nil {
		return err
	}

	folder := s.LowestFolderPath
	if folder == "" {
		folder = s.FolderPath
	}
	if folder == "" {
		return errors.Errorf("series %d has no folder to scan", s.ID)
	}

	root, err := coveringRoot(library, folder)
	if err != nil {
		return err
	}

	_, err = w.scanRoots(ctx, library, []scanRoot{{path: folder, libraryRoot: root}}, true)
	return err
}

// ProcessRefreshCollectionsJob recomputes collection age ratings after
// series membership changed.
func (w *Worker) ProcessRefreshCollectionsJob(ctx context.Context, job *models.Job) error {
	return w.taxonomyService.RefreshAgeRatings(ctx)
}

// scanRoots runs the scan pipeline over the given roots: walk directories,
// classify changed folders, group records into series, and reconcile each
// group. It returns the IDs of every series confirmed present, whether
// re-processed or skipped as unchanged.
func (w *Worker) scanRoots(ctx context.Context, library *models.Library, roots []scanRoot, forceUpdate bool) (map[int]bool, error) {
	log := logger.FromContext(ctx)

	w.sink.Publish(notify.Event{Name: notify.EventScanStarted, LibraryID: library.ID})
	defer w.sink.Publish(notify.Event{Name: notify.EventScanCompleted, LibraryID: library.ID})

	if err := w.taxonomyCache.Prime(ctx); err != nil {
		return nil, err
	}
	defer w.taxonomyCache.Reset()

	membership, err := w.seriesService.MembershipCache(ctx, library.ID)
	if err != nil {
		return nil, err
	}
	folderIndex, err := w.folderIndex(ctx, library.ID)
	if err != nil {
		return nil, err
	}

	ds, err := scanner.NewDirectoryScanner(log, libraries.ExcludeGlobs(library))
	if err != nil {
		return nil, err
	}
	grouper := scanner.NewGrouper(log)
	seen := map[int]bool{}

	for _, root := range roots {
		units, err := ds.ScanDirectories(root.path, membership, forceUpdate)
		if err != nil {
			// One unreadable root must not sink the rest of the scan.
			log.Err(err).Error("scanning root failed")
			continue
		}
		for _, unit := range units {
			unit.LibraryRoot = root.libraryRoot
		}

		ds.ClassifyUnits(units, w.classifier, library.Type, w.config.ClassifierParallelThreshold)

		for _, unit := range units {
			if !unit.Changed {
				for _, id := range folderIndex[unit.FolderPath] {
					seen[id] = true
				}
				continue
			}
			grouper.MergeLocalizedSeries(unit.Records)
			for _, record := range unit.Records {
				grouper.TrackSeries(record)
			}
		}
	}

	for _, group := range grouper.Groups() {
		s, err := w.reconciler.ProcessGroup(ctx, library, group)
		if err != nil {
			log.Err(err).Error("reconciling series group failed")
			continue
		}
		if s != nil {
			seen[s.ID] = true
		}
	}

	return seen, nil
}

// folderIndex maps each series folder to the series living there, so
// unchanged folders can still confirm their series as present.
func (w *Worker) folderIndex(ctx context.Context, libraryID int) (map[string][]int, error) {
	list, err := w.seriesService.ListSeries(ctx, series.ListSeriesOptions{LibraryID: &libraryID})
	if err != nil {
		return nil, err
	}

	index := map[string][]int{}
	for _, s := range list {
		for _, folder := range []string{s.FolderPath, s.LowestFolderPath} {
			if folder == "" {
				continue
			}
			index[folder] = append(index[folder], s.ID)
		}
	}
	return index, nil
}

// coveringRoot returns the library path that contains folder.
func coveringRoot(library *models.Library, folder string) (string, error) {
	for _, libraryPath := range library.Paths {
		root := strings.TrimRight(libraryPath.Filepath, "/")
		if folder == root || strings.HasPrefix(folder, root+"/") {
			return root, nil
		}
	}
	return "", errors.Errorf("folder %q is outside library %d", folder, library.ID)
}

package watcher

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hondanabooks/hondana/pkg/config"
	"github.com/hondanabooks/hondana/pkg/models"
	"github.com/hondanabooks/hondana/pkg/parser"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// maxWatchErrors is how many watcher errors are tolerated before the watcher
// shuts itself down. A watcher in a tight error loop (network mount gone,
// too many inotify instances) would otherwise spam the log forever.
const maxWatchErrors = 10

// JobService is the slice of the jobs service the watcher needs.
type JobService interface {
	CreateJob(ctx context.Context, job *models.Job) error
	HasActiveJobOfTypes(ctx context.Context, jobTypes ...string) (bool, error)
}

type pendingFolder struct {
	libraryID   int
	lastTouched time.Time
}

// Watcher translates filesystem events under library roots into debounced
// folder scan jobs. Events are keyed by the top-level folder beneath the
// library root: many writes into one series folder collapse into one scan.
// Scans already in flight are never cancelled; new events just queue behind
// them.
type Watcher struct {
	config     *config.Config
	log        logger.Logger
	jobService JobService

	fsw   *fsnotify.Watcher
	roots map[string]int

	mu      sync.Mutex
	pending map[string]pendingFolder

	stop chan struct{}
	done chan struct{}
}

func New(cfg *config.Config, log logger.Logger, jobService JobService) *Watcher {
	return &Watcher{
		config:     cfg,
		log:        log,
		jobService: jobService,
		roots:      map[string]int{},
		pending:    map[string]pendingFolder{},
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start begins watching every path of the given libraries. Libraries with
// watching disabled are skipped.
func (w *Watcher) Start(libraries []*models.Library) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.WithStack(err)
	}
	w.fsw = fsw

	for _, library := range libraries {
		if !library.WatchEnabled {
			continue
		}
		for _, libraryPath := range library.Paths {
			root := strings.TrimRight(parser.NormalizePath(libraryPath.Filepath), "/")
			if err := w.watchTree(root); err != nil {
				fsw.Close()
				return err
			}
			w.roots[root] = library.ID
		}
	}

	go w.loop()
	return nil
}

// watchTree registers every directory under root. Files are reported through
// their parent directory's watch.
func (w *Watcher) watchTree(root string) error {
	return errors.WithStack(filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.log.Warn("skipping unwatchable directory", logger.Data{"path": path, "error": err.Error()})
			return filepath.SkipDir
		}
		if !d.IsDir() || parser.HasBlacklistedPath(path) {
			return nil
		}
		return w.fsw.Add(path)
	}))
}

func (w *Watcher) Stop() {
	close(w.stop)
	<-w.done
	if w.fsw != nil {
		w.fsw.Close()
	}
}

func (w *Watcher) loop() {
	defer close(w.done)

	drain := time.NewTicker(w.config.WatchDrainInterval)
	defer drain.Stop()

	errorCount := 0

	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			errorCount++
			w.log.Err(err).Warn("filesystem watcher error")
			if errorCount >= maxWatchErrors {
				w.log.Error("too many watcher errors, disabling filesystem watching")
				return
			}
		case <-drain.C:
			w.drain()
		}
	}
}

// handleEvent folds one filesystem event into the pending map. Chmod events
// are ignored; browsing a folder fires them constantly.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}

	path := parser.NormalizePath(event.Name)
	if parser.HasBlacklistedPath(path) {
		return
	}

	root, libraryID, ok := w.rootFor(path)
	if !ok {
		return
	}

	// New directories need their own watch before events inside them fire.
	if event.Op&fsnotify.Create == fsnotify.Create {
		if err := w.fsw.Add(path); err == nil {
			w.log.Debug("watching new directory", logger.Data{"path": path})
		}
	}

	folder := topLevelFolder(root, path)

	w.mu.Lock()
	w.pending[folder] = pendingFolder{libraryID: libraryID, lastTouched: time.Now()}
	w.mu.Unlock()
}

func (w *Watcher) rootFor(path string) (root string, libraryID int, ok bool) {
	for candidate, id := range w.roots {
		if path == candidate || strings.HasPrefix(path, candidate+"/") {
			return candidate, id, true
		}
	}
	return "", 0, false
}

// topLevelFolder maps a path to the first folder beneath its library root,
// or the root itself for files sitting directly in it.
func topLevelFolder(root, path string) string {
	if path == root {
		return root
	}
	rel := strings.TrimPrefix(path, root+"/")
	parts := strings.SplitN(rel, "/", 2)
	// A file sitting directly in the root maps to the root itself.
	if len(parts) == 1 && filepath.Ext(parts[0]) != "" {
		return root
	}
	return root + "/" + parts[0]
}

// drain queues a scan job for every pending folder that has been quiet for
// at least the debounce window. While any scan job is pending or running,
// pending folders are dropped instead of queued; the running scan will pick
// the changes up, and queueing more would only stack redundant work.
func (w *Watcher) drain() {
	cutoff := time.Now().Add(-w.config.WatchDebounce)

	w.mu.Lock()
	ready := map[string]pendingFolder{}
	for folder, entry := range w.pending {
		if entry.lastTouched.Before(cutoff) || entry.lastTouched.Equal(cutoff) {
			ready[folder] = entry
			delete(w.pending, folder)
		}
	}
	w.mu.Unlock()

	if len(ready) == 0 {
		return
	}

	ctx := context.Background()
	active, err := w.jobService.HasActiveJobOfTypes(ctx,
		models.JobTypeScanLibrary, models.JobTypeScanFolder, models.JobTypeScanSeries)
	if err != nil {
		w.log.Err(err).Error("checking active scan jobs failed")
		return
	}
	if active {
		w.log.Debug("scan already running, dropping pending folders", logger.Data{
			"folders": len(ready),
		})
		return
	}

	for folder, entry := range ready {
		err := w.jobService.CreateJob(ctx, &models.Job{
			Type:       models.JobTypeScanFolder,
			Status:     models.JobStatusPending,
			LibraryID:  &entry.libraryID,
			DataParsed: &models.JobScanFolderData{LibraryID: entry.libraryID, FolderPath: folder},
		})
		if err != nil {
			w.log.Err(err).Error("queueing folder scan failed")
			continue
		}
		w.log.Info("queued folder scan", logger.Data{
			"folder":     folder,
			"library_id": entry.libraryID,
		})
	}
}

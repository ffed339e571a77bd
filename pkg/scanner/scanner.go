package scanner

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/hondanabooks/hondana/pkg/parser"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// ReservedFolderSuffix marks folders holding supplementary content for their
// parent series. They are never scanned as series roots of their own; the
// parent's deepest-first pass picks their files up.
const ReservedFolderSuffix = "Specials"

// ScanUnit is the outcome of examining one directory. When Changed is false,
// Files stays empty and the caller synthesizes placeholder records from the
// series-membership cache instead of re-reading disk.
type ScanUnit struct {
	FolderPath  string
	LibraryRoot string
	Changed     bool
	Files       []string
	Records     []*parser.FileRecord
}

// SeriesMembership is one cached "this series lives in this folder" entry,
// used purely to decide whether a directory needs re-enumeration.
type SeriesMembership struct {
	SeriesName       string
	LowestFolderPath string
	LastScanned      time.Time
	Format           string
}

// MembershipCache maps a normalized folder path to the series known to
// already live there. Read-only during a scan.
type MembershipCache map[string][]SeriesMembership

type DirectoryScanner struct {
	log      logger.Logger
	excludes []glob.Glob
}

func NewDirectoryScanner(log logger.Logger, excludePatterns []string) (*DirectoryScanner, error) {
	excludes := make([]glob.Glob, 0, len(excludePatterns))
	for _, pattern := range excludePatterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid exclude pattern %q", pattern)
		}
		excludes = append(excludes, g)
	}
	return &DirectoryScanner{log: log, excludes: excludes}, nil
}

func (s *DirectoryScanner) excluded(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}
	rel = parser.NormalizePath(rel)
	for _, g := range s.excludes {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// ScanDirectories walks root deepest-first and produces one ScanUnit per
// directory that is not subsumed by an already-processed deeper directory.
// An unreadable root returns an error; the caller logs it and moves on to
// sibling roots.
func (s *DirectoryScanner) ScanDirectories(root string, membership MembershipCache, forceCheck bool) ([]*ScanUnit, error) {
	root = filepath.Clean(root)
	if _, err := os.Stat(root); err != nil {
		return nil, errors.Wrapf(err, "library root %q is not readable", root)
	}

	var directories []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			s.log.Warn("skipping unreadable directory", logger.Data{"path": path, "error": err.Error()})
			return filepath.SkipDir
		}
		if !d.IsDir() {
			return nil
		}
		if parser.HasBlacklistedPath(path) || s.excluded(root, path) {
			return filepath.SkipDir
		}
		directories = append(directories, parser.NormalizePath(path))
		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	// Deepest first, so a series folder containing a specials subfolder is
	// processed once from the bottom up.
	sort.Slice(directories, func(i, j int) bool {
		return len(directories[i]) > len(directories[j])
	})

	units := make([]*ScanUnit, 0, len(directories))
	processed := make([]string, 0, len(directories))
	normalizedRoot := parser.NormalizePath(root)

	for _, directory := range directories {
		if strings.HasSuffix(directory, ReservedFolderSuffix) {
			continue
		}
		if subsumed(processed, directory) {
			continue
		}
		processed = append(processed, directory)

		unit := &ScanUnit{
			FolderPath:  directory,
			LibraryRoot: normalizedRoot,
		}
		if forceCheck || s.hasChanged(directory, membership) {
			unit.Changed = true
			unit.Files = s.listFiles(normalizedRoot, directory)
		}
		units = append(units, unit)
	}

	return units, nil
}

// subsumed reports whether directory is a strict prefix (ancestor) of a
// directory that was already processed.
func subsumed(processed []string, directory string) bool {
	for _, p := range processed {
		if strings.HasPrefix(p, directory+"/") {
			return true
		}
	}
	return false
}

// hasChanged compares the directory's last-write time against each cached
// series' last-scanned time, both truncated to whole seconds because many
// filesystems store mtimes at second granularity.
func (s *DirectoryScanner) hasChanged(directory string, membership MembershipCache) bool {
	entries, ok := membership[directory]
	if !ok || len(entries) == 0 {
		return true
	}

	info, err := os.Stat(directory)
	if err != nil {
		s.log.Warn("stat failed during change detection", logger.Data{"path": directory, "error": err.Error()})
		return true
	}
	lastWrite := info.ModTime().Truncate(time.Second)

	for _, entry := range entries {
		if entry.LastScanned.Truncate(time.Second).Before(lastWrite) {
			return true
		}
	}
	return false
}

// listFiles enumerates the directory's own files (not recursive), keeping
// only supported media that pass the exclusion matcher.
func (s *DirectoryScanner) listFiles(root, directory string) []string {
	dirEntries, err := os.ReadDir(directory)
	if err != nil {
		s.log.Warn("listing directory failed", logger.Data{"path": directory, "error": err.Error()})
		return nil
	}

	files := make([]string, 0, len(dirEntries))
	for _, entry := range dirEntries {
		if entry.IsDir() {
			// Reserved-suffix subfolders never become series roots, so
			// their files belong to this directory's listing.
			if strings.HasSuffix(entry.Name(), ReservedFolderSuffix) {
				files = append(files, s.listFiles(root, filepath.Join(directory, entry.Name()))...)
			}
			continue
		}
		path := parser.NormalizePath(filepath.Join(directory, entry.Name()))
		if parser.HasBlacklistedPath(path) || !parser.IsSupported(path) || s.excluded(root, path) {
			continue
		}
		files = append(files, path)
	}
	return files
}

// classifyWorkers caps the goroutines (and so the open file handles) used
// for one folder's parallel classification.
const classifyWorkers = 8

// ClassifyUnits runs the classifier over every changed unit's files, filling
// Records. Folders above parallelThreshold files fan out across a fixed pool
// of worker goroutines; smaller folders classify inline since dispatch
// overhead dominates for small batches. Classification failures drop the
// file and keep the scan going.
func (s *DirectoryScanner) ClassifyUnits(units []*ScanUnit, classifier parser.Classifier, libraryType string, parallelThreshold int) {
	for _, unit := range units {
		if !unit.Changed || len(unit.Files) == 0 {
			continue
		}
		folderName := filepath.Base(unit.FolderPath)

		if len(unit.Files) < parallelThreshold {
			for _, file := range unit.Files {
				if record := classifier.Classify(file, folderName, unit.LibraryRoot, libraryType); record != nil {
					unit.Records = append(unit.Records, record)
				}
			}
			continue
		}

		records := make([]*parser.FileRecord, len(unit.Files))
		indexes := make(chan int)
		var wg sync.WaitGroup
		for w := 0; w < classifyWorkers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range indexes {
					records[i] = classifier.Classify(unit.Files[i], folderName, unit.LibraryRoot, libraryType)
				}
			}()
		}
		for i := range unit.Files {
			indexes <- i
		}
		close(indexes)
		wg.Wait()

		for _, record := range records {
			if record != nil {
				unit.Records = append(unit.Records, record)
			}
		}
	}
}

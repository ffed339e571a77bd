package reconciler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hondanabooks/hondana/pkg/filereader"
	"github.com/hondanabooks/hondana/pkg/models"
	"github.com/hondanabooks/hondana/pkg/notify"
	"github.com/hondanabooks/hondana/pkg/parser"
	"github.com/hondanabooks/hondana/pkg/scanner"
	"github.com/hondanabooks/hondana/pkg/series"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	existing []*models.Series
	saved    []*models.Series
	deleted  []*models.Series
	nextID   int
	saveErr  error
}

func (f *fakeStore) FindByNormalizedNames(_ context.Context, libraryID int, format string, normalizedNames []string) ([]*models.Series, error) {
	names := map[string]bool{}
	for _, name := range normalizedNames {
		names[name] = true
	}
	var matches []*models.Series
	for _, s := range f.existing {
		if s.LibraryID != libraryID || s.Format != format {
			continue
		}
		if names[s.NormalizedName] || (s.NormalizedLocalizedName != "" && names[s.NormalizedLocalizedName]) {
			matches = append(matches, s)
		}
	}
	return matches, nil
}

func (f *fakeStore) RetrieveSeries(_ context.Context, opts series.RetrieveSeriesOptions) (*models.Series, error) {
	for _, s := range f.existing {
		if opts.ID != nil && s.ID == *opts.ID {
			return s, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeStore) ListSeries(_ context.Context, opts series.ListSeriesOptions) ([]*models.Series, error) {
	var list []*models.Series
	for _, s := range f.existing {
		if opts.LibraryID != nil && s.LibraryID != *opts.LibraryID {
			continue
		}
		list = append(list, s)
	}
	return list, nil
}

func (f *fakeStore) SaveGraph(_ context.Context, s *models.Series) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	if s.ID == 0 {
		f.nextID++
		s.ID = f.nextID
	}
	f.saved = append(f.saved, s)
	return nil
}

func (f *fakeStore) DeleteSeries(_ context.Context, s *models.Series) error {
	f.deleted = append(f.deleted, s)
	return nil
}

type fakeTaxonomy struct {
	nextID int
}

func (f *fakeTaxonomy) GetGenre(_ context.Context, name string) (*models.Genre, error) {
	if name == "" {
		return nil, nil
	}
	f.nextID++
	return &models.Genre{ID: f.nextID, Name: name, NormalizedName: parser.Normalize(name)}, nil
}

func (f *fakeTaxonomy) GetTag(_ context.Context, name string) (*models.Tag, error) {
	if name == "" {
		return nil, nil
	}
	f.nextID++
	return &models.Tag{ID: f.nextID, Name: name}, nil
}

func (f *fakeTaxonomy) GetPerson(_ context.Context, name, role string) (*models.Person, error) {
	if name == "" {
		return nil, nil
	}
	f.nextID++
	return &models.Person{ID: f.nextID, Name: name, Role: role}, nil
}

func (f *fakeTaxonomy) GetCollection(_ context.Context, name string) (*models.Collection, error) {
	if name == "" {
		return nil, nil
	}
	f.nextID++
	return &models.Collection{ID: f.nextID, Name: name}, nil
}

type fakeAttacher struct {
	attached [][2]int
}

func (f *fakeAttacher) AttachSeries(_ context.Context, collectionID, seriesID int) error {
	f.attached = append(f.attached, [2]int{collectionID, seriesID})
	return nil
}

type fakeReader struct {
	pages int
}

func (f *fakeReader) ReadMetadata(string) (*parser.Metadata, error) {
	return nil, nil
}

func (f *fakeReader) ReadDetails(path string) (*filereader.FileDetails, error) {
	stats, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &filereader.FileDetails{
		SizeBytes:    stats.Size(),
		Pages:        f.pages,
		LastModified: stats.ModTime(),
	}, nil
}

type fakeSink struct {
	events []notify.Event
}

func (f *fakeSink) Publish(event notify.Event) {
	f.events = append(f.events, event)
}

type fakeQueue struct {
	jobs []*models.Job
}

func (f *fakeQueue) CreateJob(_ context.Context, job *models.Job) error {
	f.jobs = append(f.jobs, job)
	return nil
}

type fixture struct {
	reconciler *Reconciler
	store      *fakeStore
	attacher   *fakeAttacher
	sink       *fakeSink
	queue      *fakeQueue
}

func newFixture() *fixture {
	store := &fakeStore{}
	attacher := &fakeAttacher{}
	sink := &fakeSink{}
	queue := &fakeQueue{}
	r := New(logger.New(), store, &fakeTaxonomy{}, attacher, &fakeReader{pages: 10}, sink, queue)
	return &fixture{reconciler: r, store: store, attacher: attacher, sink: sink, queue: queue}
}

func testLibrary(root string) *models.Library {
	return &models.Library{
		ID:                1,
		Name:              "Manga",
		Type:              models.LibraryTypeManga,
		ManageCollections: true,
		Paths:             []*models.LibraryPath{{LibraryID: 1, Filepath: root}},
	}
}

func writeTestFile(t *testing.T, dir, name string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))
	return path
}

func recordFor(t *testing.T, dir, name, seriesName, chapter string) *parser.FileRecord {
	t.Helper()
	return &parser.FileRecord{
		Series:   seriesName,
		Format:   models.FormatArchive,
		Chapter:  chapter,
		Filepath: writeTestFile(t, dir, name),
		Filename: name,
	}
}

func groupFor(name string, records ...*parser.FileRecord) *scanner.SeriesGroup {
	return &scanner.SeriesGroup{
		Name:           name,
		NormalizedName: parser.Normalize(name),
		Format:         models.FormatArchive,
		Records:        records,
	}
}

func TestProcessGroupCreatesSeries(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dir := filepath.Join(root, "Accel World")
	f := newFixture()

	r1 := recordFor(t, dir, "Accel World c001.cbz", "Accel World", "1")
	r1.Metadata = &parser.Metadata{
		Summary:     "In the future.",
		Language:    "en",
		ReleaseYear: 2012,
		Genres:      []string{"Action"},
		Writers:     []string{"Reki Kawahara"},
	}
	r2 := recordFor(t, dir, "Accel World c002.cbz", "Accel World", "2")

	s, err := f.reconciler.ProcessGroup(context.Background(), testLibrary(root), groupFor("Accel World", r1, r2))
	require.NoError(t, err)
	require.NotNil(t, s)
	require.Len(t, f.store.saved, 1)

	assert.Equal(t, "Accel World", s.Name)
	assert.Equal(t, "accelworld", s.NormalizedName)
	assert.Equal(t, dir, s.FolderPath)
	assert.Equal(t, dir, s.LowestFolderPath)
	require.NotNil(t, s.LastFolderScannedAt)

	require.Len(t, s.Volumes, 1)
	assert.Equal(t, parser.LooseLeafVolume, s.Volumes[0].Name)
	require.Len(t, s.Volumes[0].Chapters, 2)

	c1 := s.Volumes[0].Chapters[0]
	assert.Equal(t, "1", c1.Range)
	assert.Equal(t, 1.0, c1.MinNumber)
	assert.Equal(t, 1.0, c1.SortOrder)
	assert.Equal(t, 10, c1.PageCount)
	require.Len(t, c1.Files, 1)
	assert.Equal(t, 10, c1.Files[0].Pages)

	c2 := s.Volumes[0].Chapters[1]
	assert.Equal(t, 2.0, c2.SortOrder)

	require.NotNil(t, s.Metadata)
	assert.Equal(t, "In the future.", s.Metadata.Summary)
	assert.Equal(t, "en", s.Metadata.Language)
	assert.Equal(t, 2012, s.Metadata.ReleaseYear)
	require.Len(t, s.Metadata.Genres, 1)
	require.Len(t, s.Metadata.People, 1)

	require.Len(t, f.sink.events, 1)
	assert.Equal(t, notify.EventSeriesAdded, f.sink.events[0].Name)
}

func TestProcessGroupCollisionSkipsGroup(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	f := newFixture()
	f.store.existing = []*models.Series{
		{ID: 1, LibraryID: 1, Name: "Accel World", NormalizedName: "accelworld", Format: models.FormatArchive},
		{ID: 2, LibraryID: 1, Name: "accel_world", NormalizedName: "accelworld", Format: models.FormatArchive},
	}
	f.store.nextID = 2

	r1 := recordFor(t, filepath.Join(root, "Accel World"), "c001.cbz", "Accel World", "1")
	s, err := f.reconciler.ProcessGroup(context.Background(), testLibrary(root), groupFor("Accel World", r1))

	require.Error(t, err)
	assert.Nil(t, s)
	assert.Empty(t, f.store.saved)

	require.Len(t, f.sink.events, 1)
	event := f.sink.events[0]
	assert.Equal(t, notify.EventSeriesError, event.Name)
	assert.Equal(t, 1, event.LibraryID)
	assert.Equal(t, "Accel World", event.SeriesName)
	assert.Contains(t, event.Error, "Accel World")
	assert.Contains(t, event.Error, "accel_world")
}

func TestProcessGroupSaveFailurePublishesError(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	f := newFixture()
	f.store.saveErr = errors.New("disk full")

	r1 := recordFor(t, filepath.Join(root, "Accel World"), "c001.cbz", "Accel World", "1")
	s, err := f.reconciler.ProcessGroup(context.Background(), testLibrary(root), groupFor("Accel World", r1))

	require.Error(t, err)
	assert.Nil(t, s)

	require.Len(t, f.sink.events, 1)
	event := f.sink.events[0]
	assert.Equal(t, notify.EventSeriesError, event.Name)
	assert.Equal(t, "Accel World", event.SeriesName)
	assert.Contains(t, event.Error, "disk full")
}

func TestProcessGroupRespectsLocks(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dir := filepath.Join(root, "Accel World")
	f := newFixture()

	existing := &models.Series{
		ID:             5,
		LibraryID:      1,
		Name:           "My Custom Name",
		NormalizedName: "accelworld",
		OriginalName:   "Accel World",
		SortName:       "Custom Sort",
		SortNameLocked: true,
		NameLocked:     true,
		Format:         models.FormatArchive,
		Metadata: &models.SeriesMetadata{
			ID:            7,
			SeriesID:      5,
			Summary:       "Curated summary.",
			SummaryLocked: true,
		},
	}
	f.store.existing = []*models.Series{existing}
	f.store.nextID = 5

	r1 := recordFor(t, dir, "c001.cbz", "Accel World", "1")
	r1.Metadata = &parser.Metadata{Summary: "Scanned summary."}

	s, err := f.reconciler.ProcessGroup(context.Background(), testLibrary(root), groupFor("Accel World", r1))
	require.NoError(t, err)

	assert.Equal(t, "My Custom Name", s.Name)
	assert.Equal(t, "Custom Sort", s.SortName)
	assert.Equal(t, "Curated summary.", s.Metadata.Summary)

	require.Len(t, f.sink.events, 1)
	assert.Equal(t, notify.EventSeriesUpdated, f.sink.events[0].Name)
}

func TestProcessGroupDuplicateChaptersUntouched(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dir := filepath.Join(root, "Accel World")
	f := newFixture()

	dup1 := &models.Chapter{ID: 11, VolumeID: 3, Range: "1", MinNumber: 1, MaxNumber: 1, Title: "First"}
	dup2 := &models.Chapter{ID: 12, VolumeID: 3, Range: "1", MinNumber: 1, MaxNumber: 1, Title: "Second"}
	existing := &models.Series{
		ID:             5,
		LibraryID:      1,
		Name:           "Accel World",
		NormalizedName: "accelworld",
		Format:         models.FormatArchive,
		Volumes: []*models.Volume{
			{ID: 3, SeriesID: 5, Name: parser.LooseLeafVolume, Chapters: []*models.Chapter{dup1, dup2}},
		},
	}
	f.store.existing = []*models.Series{existing}
	f.store.nextID = 12

	r1 := recordFor(t, dir, "c001.cbz", "Accel World", "1")
	s, err := f.reconciler.ProcessGroup(context.Background(), testLibrary(root), groupFor("Accel World", r1))
	require.NoError(t, err)

	require.Len(t, s.Volumes, 1)
	require.Len(t, s.Volumes[0].Chapters, 2)
	assert.Equal(t, "First", s.Volumes[0].Chapters[0].Title)
	assert.Equal(t, "Second", s.Volumes[0].Chapters[1].Title)
}

func TestProcessGroupUnchangedFileNotReread(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dir := filepath.Join(root, "Accel World")
	f := newFixture()

	path := writeTestFile(t, dir, "c001.cbz")
	stats, err := os.Stat(path)
	require.NoError(t, err)

	analyzed := time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC)
	existingFile := &models.File{
		ID:           21,
		ChapterID:    11,
		Filepath:     path,
		Format:       models.FormatArchive,
		Pages:        42,
		LastModified: stats.ModTime(),
		LastAnalyzed: analyzed,
	}
	existing := &models.Series{
		ID:             5,
		LibraryID:      1,
		Name:           "Accel World",
		NormalizedName: "accelworld",
		Format:         models.FormatArchive,
		Volumes: []*models.Volume{
			{ID: 3, SeriesID: 5, Name: parser.LooseLeafVolume, Chapters: []*models.Chapter{
				{ID: 11, VolumeID: 3, Range: "1", MinNumber: 1, MaxNumber: 1, Files: []*models.File{existingFile}},
			}},
		},
	}
	f.store.existing = []*models.Series{existing}
	f.store.nextID = 21

	r1 := &parser.FileRecord{
		Series:   "Accel World",
		Format:   models.FormatArchive,
		Chapter:  "1",
		Filepath: path,
		Filename: "c001.cbz",
	}
	s, err := f.reconciler.ProcessGroup(context.Background(), testLibrary(root), groupFor("Accel World", r1))
	require.NoError(t, err)

	file := s.Volumes[0].Chapters[0].Files[0]
	// The fake reader reports 10 pages; 42 proves no reread happened.
	assert.Equal(t, 42, file.Pages)
	assert.Equal(t, analyzed, file.LastAnalyzed)
}

func TestProcessGroupAttachesCollections(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dir := filepath.Join(root, "Accel World")
	f := newFixture()

	r1 := recordFor(t, dir, "c001.cbz", "Accel World", "1")
	r1.Metadata = &parser.Metadata{Collections: []string{"Best Sci-Fi"}}

	s, err := f.reconciler.ProcessGroup(context.Background(), testLibrary(root), groupFor("Accel World", r1))
	require.NoError(t, err)

	require.Len(t, f.attacher.attached, 1)
	assert.Equal(t, s.ID, f.attacher.attached[0][1])

	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, models.JobTypeRefreshCollections, f.queue.jobs[0].Type)
}

func TestRemoveAbsentSeries(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	f := newFixture()

	presentDir := filepath.Join(root, "Present")
	require.NoError(t, os.MkdirAll(presentDir, 0o755))

	gone := &models.Series{ID: 1, LibraryID: 1, Name: "Gone", FolderPath: filepath.Join(root, "Gone")}
	present := &models.Series{ID: 2, LibraryID: 1, Name: "Present", FolderPath: presentDir}
	f.store.existing = []*models.Series{gone, present}

	err := f.reconciler.RemoveAbsentSeries(context.Background(), testLibrary(root), map[int]bool{})
	require.NoError(t, err)

	require.Len(t, f.store.deleted, 1)
	assert.Equal(t, "Gone", f.store.deleted[0].Name)

	require.Len(t, f.sink.events, 1)
	assert.Equal(t, notify.EventSeriesRemoved, f.sink.events[0].Name)
	assert.Equal(t, 1, f.sink.events[0].SeriesID)
}

func TestRemoveAbsentSeriesSkipsSeen(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	f := newFixture()

	gone := &models.Series{ID: 1, LibraryID: 1, Name: "Gone", FolderPath: filepath.Join(root, "Gone")}
	f.store.existing = []*models.Series{gone}

	err := f.reconciler.RemoveAbsentSeries(context.Background(), testLibrary(root), map[int]bool{1: true})
	require.NoError(t, err)
	assert.Empty(t, f.store.deleted)
}

func TestProcessGroupSingleBookCompleted(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dir := filepath.Join(root, "Piranesi")
	f := newFixture()

	r1 := &parser.FileRecord{
		Series:   "Piranesi",
		Format:   models.FormatEpub,
		Chapter:  "1",
		Filepath: writeTestFile(t, dir, "Piranesi.epub"),
		Filename: "Piranesi.epub",
	}
	group := &scanner.SeriesGroup{
		Name:           "Piranesi",
		NormalizedName: parser.Normalize("Piranesi"),
		Format:         models.FormatEpub,
		Records:        []*parser.FileRecord{r1},
	}

	s, err := f.reconciler.ProcessGroup(context.Background(), testLibrary(root), group)
	require.NoError(t, err)

	require.NotNil(t, s.Metadata)
	assert.Equal(t, models.PublicationStatusCompleted, s.Metadata.PublicationStatus)
	assert.Equal(t, 1, s.Metadata.TotalCount)
	assert.Equal(t, 1, s.Metadata.MaxCount)
}

func TestProcessGroupSpecialOnlyCompleted(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dir := filepath.Join(root, "Accel World")
	f := newFixture()

	r1 := &parser.FileRecord{
		Series:       "Accel World",
		Format:       models.FormatArchive,
		IsSpecial:    true,
		SpecialIndex: 1,
		Filepath:     writeTestFile(t, dir, "Accel World SP01.cbz"),
		Filename:     "Accel World SP01.cbz",
	}

	s, err := f.reconciler.ProcessGroup(context.Background(), testLibrary(root), groupFor("Accel World", r1))
	require.NoError(t, err)

	require.NotNil(t, s.Metadata)
	assert.Equal(t, models.PublicationStatusCompleted, s.Metadata.PublicationStatus)
	assert.Equal(t, 1, s.Metadata.TotalCount)
	assert.Equal(t, 1, s.Metadata.MaxCount)
}

func TestProcessGroupAggregatesMetadata(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dir := filepath.Join(root, "Accel World")
	f := newFixture()

	r1 := recordFor(t, dir, "Accel World c001.cbz", "Accel World", "1")
	r1.Metadata = &parser.Metadata{ReleaseYear: 2015, AgeRating: models.AgeRatingTeen, Count: 1, TotalCount: 3}
	r2 := recordFor(t, dir, "Accel World c002.cbz", "Accel World", "2")
	r2.Metadata = &parser.Metadata{ReleaseYear: 5, AgeRating: models.AgeRatingMature, Count: 2}
	r3 := recordFor(t, dir, "Accel World c003.cbz", "Accel World", "3")
	r3.Metadata = &parser.Metadata{ReleaseYear: 2012}

	s, err := f.reconciler.ProcessGroup(context.Background(), testLibrary(root), groupFor("Accel World", r1, r2, r3))
	require.NoError(t, err)

	require.NotNil(t, s.Metadata)
	// The year 5 comes from a mangled tag and must not win the minimum.
	assert.Equal(t, 2012, s.Metadata.ReleaseYear)
	assert.Equal(t, models.AgeRatingMature, s.Metadata.AgeRating)
	assert.Equal(t, 3, s.Metadata.TotalCount)
	assert.Equal(t, 2, s.Metadata.MaxCount)
	assert.Equal(t, models.PublicationStatusEnded, s.Metadata.PublicationStatus)
}

func TestProcessGroupDuplicateFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dir := filepath.Join(root, "SeriesA")
	f := newFixture()

	r1 := recordFor(t, dir, "SeriesA c001.cbz", "SeriesA", "1")
	r2 := recordFor(t, dir, "SeriesA c002.cbz", "SeriesA", "2")
	repeat := &parser.FileRecord{
		Series:   "SeriesA",
		Format:   models.FormatArchive,
		Chapter:  "2",
		Filepath: r2.Filepath,
		Filename: r2.Filename,
	}
	variant := recordFor(t, filepath.Join(dir, "scans"), "SeriesA c002.cbz", "SeriesA", "2")

	s, err := f.reconciler.ProcessGroup(context.Background(), testLibrary(root), groupFor("SeriesA", r1, r2, repeat, variant))
	require.NoError(t, err)

	require.Len(t, s.Volumes, 1)
	require.Len(t, s.Volumes[0].Chapters, 2)

	c2 := s.Volumes[0].Chapters[1]
	assert.Equal(t, "2", c2.Range)
	// The repeated path collapses to one row; the copy under scans/ is a
	// distinct file and stays attached.
	require.Len(t, c2.Files, 2)
	assert.Equal(t, r2.Filepath, c2.Files[0].Filepath)
	assert.Equal(t, variant.Filepath, c2.Files[1].Filepath)
}

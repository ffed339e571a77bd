package reconciler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hondanabooks/hondana/pkg/models"
	"github.com/hondanabooks/hondana/pkg/parser"
	"github.com/hondanabooks/hondana/pkg/scanner"
	"github.com/robinjoseph08/golib/logger"
)

// reconcileVolumes rebuilds the series' volume list from the group's
// records. Volumes are matched by label; volumes left with no chapters are
// dropped from the graph and the drop is logged when their files still exist
// on disk.
func (r *Reconciler) reconcileVolumes(ctx context.Context, s *models.Series, group *scanner.SeriesGroup, orders map[*parser.FileRecord]float64) error {
	labels := []string{}
	byLabel := map[string][]*parser.FileRecord{}
	for _, record := range group.Records {
		label := record.VolumeLabel()
		if _, ok := byLabel[label]; !ok {
			labels = append(labels, label)
		}
		byLabel[label] = append(byLabel[label], record)
	}

	kept := make([]*models.Volume, 0, len(labels))
	keptIDs := map[int]bool{}
	for _, label := range labels {
		volume := findVolume(s.Volumes, label)
		if volume == nil {
			volume = &models.Volume{SeriesID: s.ID, Name: label}
		}
		if num, ok := parser.ParseNumber(label); ok {
			volume.MinNumber = num
			volume.MaxNumber = num
		}

		if err := r.reconcileChapters(ctx, volume, byLabel[label], orders); err != nil {
			return err
		}
		if len(volume.Chapters) == 0 {
			continue
		}
		kept = append(kept, volume)
		keptIDs[volume.ID] = true
	}

	for _, volume := range s.Volumes {
		if volume.ID == 0 || keptIDs[volume.ID] {
			continue
		}
		r.logVolumeRemoval(s, volume)
	}

	s.Volumes = kept
	return nil
}

// logVolumeRemoval warns when a removed volume's files still exist on disk,
// since that usually means the files were reclassified rather than deleted.
func (r *Reconciler) logVolumeRemoval(s *models.Series, volume *models.Volume) {
	onDisk := 0
	for _, chapter := range volume.Chapters {
		for _, file := range chapter.Files {
			if _, err := os.Stat(file.Filepath); err == nil {
				onDisk++
			}
		}
	}

	data := logger.Data{
		"series_id": s.ID,
		"series":    s.Name,
		"volume":    volume.Name,
	}
	if onDisk > 0 {
		data["files_on_disk"] = onDisk
		r.log.Warn("removing volume whose files still exist on disk", data)
		return
	}
	r.log.Info("removing volume with no remaining files", data)
}

func findVolume(volumes []*models.Volume, label string) *models.Volume {
	for _, volume := range volumes {
		if volume.Name == label {
			return volume
		}
	}
	return nil
}

// chapterKey buckets records that belong to the same chapter. Regular
// chapters key on their number range; specials key on their filename, since
// every special carries the same zeroed range.
func chapterKey(record *parser.FileRecord) string {
	if record.IsSpecial {
		return "special:" + baseName(record.Filename)
	}
	return "chapter:" + record.Chapter
}

func baseName(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

func (r *Reconciler) reconcileChapters(ctx context.Context, volume *models.Volume, records []*parser.FileRecord, orders map[*parser.FileRecord]float64) error {
	keys := []string{}
	byKey := map[string][]*parser.FileRecord{}
	for _, record := range records {
		key := chapterKey(record)
		if _, ok := byKey[key]; !ok {
			keys = append(keys, key)
		}
		byKey[key] = append(byKey[key], record)
	}

	kept := make([]*models.Chapter, 0, len(keys))
	for _, key := range keys {
		bucket := byKey[key]
		first := bucket[0]

		rangeLabel := first.Chapter
		minNumber, maxNumber, _ := first.ChapterRange()
		if first.IsSpecial {
			rangeLabel = baseName(first.Filename)
			minNumber, maxNumber = 0, 0
		}

		matches := matchChapters(volume.Chapters, first, rangeLabel, minNumber, maxNumber)
		var chapter *models.Chapter
		switch len(matches) {
		case 0:
			chapter = &models.Chapter{VolumeID: volume.ID}
		case 1:
			chapter = matches[0]
		default:
			r.log.Error("multiple chapters match range, skipping update", logger.Data{
				"volume":  volume.Name,
				"range":   rangeLabel,
				"special": first.IsSpecial,
				"matches": len(matches),
			})
			kept = append(kept, matches...)
			continue
		}

		chapter.Range = rangeLabel
		chapter.MinNumber = minNumber
		chapter.MaxNumber = maxNumber
		chapter.IsSpecial = first.IsSpecial
		chapter.SpecialIndex = first.SpecialIndex
		if !chapter.SortOrderLocked {
			chapter.SortOrder = orders[first]
		}

		r.applyChapterMetadata(chapter, bucket)
		if err := r.applyChapterTaxonomy(ctx, chapter, bucket); err != nil {
			return err
		}
		r.reconcileFiles(chapter, bucket)
		if len(chapter.Files) == 0 {
			continue
		}

		pages := 0
		for _, file := range chapter.Files {
			pages += file.Pages
		}
		chapter.PageCount = pages

		kept = append(kept, chapter)
	}

	for _, chapter := range volume.Chapters {
		if chapter.ID == 0 || containsChapter(kept, chapter) {
			continue
		}
		r.log.Info("removing chapter with no remaining files", logger.Data{
			"volume": volume.Name,
			"range":  chapter.Range,
		})
	}

	volume.Chapters = kept
	return nil
}

func matchChapters(chapters []*models.Chapter, record *parser.FileRecord, rangeLabel string, minNumber, maxNumber float64) []*models.Chapter {
	var matches []*models.Chapter
	for _, chapter := range chapters {
		if chapter.IsSpecial != record.IsSpecial {
			continue
		}
		if record.IsSpecial {
			if chapter.Range == rangeLabel {
				matches = append(matches, chapter)
			}
			continue
		}
		if chapter.MinNumber == minNumber && chapter.MaxNumber == maxNumber {
			matches = append(matches, chapter)
		}
	}
	return matches
}

func containsChapter(chapters []*models.Chapter, chapter *models.Chapter) bool {
	for _, c := range chapters {
		if c == chapter {
			return true
		}
	}
	return false
}

// applyChapterMetadata copies embedded metadata onto the chapter. The first
// record carrying metadata wins; fields under a lock are left alone.
func (r *Reconciler) applyChapterMetadata(chapter *models.Chapter, bucket []*parser.FileRecord) {
	first := bucket[0]

	var metadata *parser.Metadata
	for _, record := range bucket {
		if record.Metadata != nil {
			metadata = record.Metadata
			break
		}
	}

	if !chapter.TitleLocked {
		title := ""
		if metadata != nil {
			title = metadata.Title
		}
		if title == "" {
			if first.IsSpecial {
				title = baseName(first.Filename)
			} else {
				title = chapter.Range
			}
		}
		chapter.Title = title
	}

	if metadata == nil {
		return
	}

	if !chapter.SummaryLocked && metadata.Summary != "" {
		chapter.Summary = metadata.Summary
	}
	if metadata.Language != "" {
		chapter.Language = metadata.Language
	}
	if metadata.AgeRating > chapter.AgeRating {
		chapter.AgeRating = metadata.AgeRating
	}
	if metadata.Count > 0 {
		chapter.Count = metadata.Count
	}
	if metadata.TotalCount > 0 {
		chapter.TotalCount = metadata.TotalCount
	}
	if metadata.ReleaseYear > 0 {
		releaseDate := time.Date(metadata.ReleaseYear, time.January, 1, 0, 0, 0, 0, time.UTC)
		chapter.ReleaseDate = &releaseDate
	}
}

// applyChapterTaxonomy interns the bucket's genres, tags, and people and
// rebuilds the chapter's join rows. A nil entity from the cache means a
// conflict was already logged there; the attachment is skipped.
func (r *Reconciler) applyChapterTaxonomy(ctx context.Context, chapter *models.Chapter, bucket []*parser.FileRecord) error {
	genres := []*models.ChapterGenre{}
	tags := []*models.ChapterTag{}
	people := []*models.ChapterPerson{}
	seenGenres := map[int]bool{}
	seenTags := map[int]bool{}
	seenPeople := map[int]bool{}

	for _, record := range bucket {
		if record.Metadata == nil {
			continue
		}

		for _, name := range record.Metadata.Genres {
			genre, err := r.taxonomy.GetGenre(ctx, name)
			if err != nil {
				return err
			}
			if genre == nil || seenGenres[genre.ID] {
				continue
			}
			seenGenres[genre.ID] = true
			genres = append(genres, &models.ChapterGenre{GenreID: genre.ID, Genre: genre})
		}

		for _, name := range record.Metadata.Tags {
			tag, err := r.taxonomy.GetTag(ctx, name)
			if err != nil {
				return err
			}
			if tag == nil || seenTags[tag.ID] {
				continue
			}
			seenTags[tag.ID] = true
			tags = append(tags, &models.ChapterTag{TagID: tag.ID, Tag: tag})
		}

		for role, names := range record.Metadata.PeopleByRole() {
			for _, name := range names {
				person, err := r.taxonomy.GetPerson(ctx, name, role)
				if err != nil {
					return err
				}
				if person == nil || seenPeople[person.ID] {
					continue
				}
				seenPeople[person.ID] = true
				people = append(people, &models.ChapterPerson{PersonID: person.ID, Person: person})
			}
		}
	}

	chapter.Genres = genres
	chapter.Tags = tags
	chapter.People = people
	return nil
}

// reconcileFiles refreshes the chapter's file rows against disk. Unchanged
// files keep their rows untouched; changed or new files are reread for page
// counts. A file that cannot be read is logged and skipped, keeping its old
// row when one exists.
func (r *Reconciler) reconcileFiles(chapter *models.Chapter, bucket []*parser.FileRecord) {
	kept := make([]*models.File, 0, len(bucket))
	for _, record := range bucket {
		// A parser quirk can hand the same path twice in one bucket; the
		// second occurrence must not become a second row.
		if findFile(kept, record.Filepath) != nil {
			continue
		}
		file := findFile(chapter.Files, record.Filepath)
		if file == nil {
			file = &models.File{Filepath: record.Filepath}
		}
		file.Format = record.Format
		file.Extension = strings.ToLower(filepath.Ext(record.Filepath))

		stats, err := os.Stat(record.Filepath)
		if err != nil {
			r.log.Warn("file unreadable during reconciliation", logger.Data{
				"filepath": record.Filepath,
				"error":    err.Error(),
			})
			if file.ID != 0 {
				kept = append(kept, file)
			}
			continue
		}

		modTime := stats.ModTime().Truncate(time.Second)
		file.FilesizeBytes = stats.Size()

		if file.NeedsReread(modTime) {
			details, err := r.reader.ReadDetails(record.Filepath)
			if err != nil {
				r.log.Warn("failed to read file details, keeping previous values", logger.Data{
					"filepath": record.Filepath,
					"error":    err.Error(),
				})
				if file.ID != 0 {
					kept = append(kept, file)
				}
				continue
			}
			file.Pages = details.Pages
			file.LastModified = modTime
			file.LastAnalyzed = time.Now()
		}

		kept = append(kept, file)
	}
	chapter.Files = kept
}

func findFile(files []*models.File, path string) *models.File {
	for _, file := range files {
		if file.Filepath == path {
			return file
		}
	}
	return nil
}

package reconciler

import (
	"github.com/hondanabooks/hondana/pkg/models"
)

// aggregateMetadata recomputes series level metadata from the reconciled
// chapter graph. Each writable field is guarded by its lock flag; the lock
// checks run through one descriptor table so adding a field cannot forget
// its guard.
func (r *Reconciler) aggregateMetadata(s *models.Series) {
	md := s.Metadata
	if md == nil {
		md = &models.SeriesMetadata{SeriesID: s.ID}
		s.Metadata = md
	}

	summary := ""
	language := ""
	minYear := 0
	maxRating := models.AgeRatingUnknown
	totalCount := 0
	maxCount := 0
	chapterCount := 0
	fileCount := 0
	specialOnly := true

	for _, volume := range s.Volumes {
		for _, chapter := range volume.Chapters {
			chapterCount++
			fileCount += len(chapter.Files)
			if !chapter.IsSpecial {
				specialOnly = false
			}
			if summary == "" && chapter.Summary != "" {
				summary = chapter.Summary
			}
			if language == "" && chapter.Language != "" {
				language = chapter.Language
			}
			if chapter.ReleaseDate != nil {
				year := chapter.ReleaseDate.Year()
				// Years below 1000 are almost always a mangled tag, not a
				// medieval publication.
				if year >= 1000 && (minYear == 0 || year < minYear) {
					minYear = year
				}
			}
			if chapter.AgeRating > maxRating {
				maxRating = chapter.AgeRating
			}
			if chapter.TotalCount > totalCount {
				totalCount = chapter.TotalCount
			}
			if chapter.Count > maxCount {
				maxCount = chapter.Count
			}
		}
	}

	// A single-file book or PDF is the whole work, and a series made of
	// nothing but specials has no run left to finish. Both count as one of
	// one unless the files declared a larger total themselves.
	switch {
	case (s.Format == models.FormatEpub || s.Format == models.FormatPdf) && chapterCount == 1 && fileCount == 1:
		totalCount = 1
		maxCount = 1
	case specialOnly && chapterCount == 1 && totalCount == 0:
		totalCount = 1
		maxCount = 1
	}

	status := models.PublicationStatusOngoing
	switch {
	case totalCount > 0 && maxCount == totalCount:
		status = models.PublicationStatusCompleted
	case totalCount > 0 && maxCount > 0:
		status = models.PublicationStatusEnded
	}

	fields := []struct {
		locked bool
		apply  func()
	}{
		{md.SummaryLocked, func() { md.Summary = summary }},
		{md.LanguageLocked, func() { md.Language = language }},
		{md.ReleaseYearLocked, func() { md.ReleaseYear = minYear }},
		{md.AgeRatingLocked, func() { md.AgeRating = maxRating }},
		{md.PublicationStatusLocked, func() { md.PublicationStatus = status }},
	}
	for _, field := range fields {
		if field.locked {
			continue
		}
		field.apply()
	}

	md.TotalCount = totalCount
	md.MaxCount = maxCount

	r.aggregateTaxonomy(md, s)
}

// aggregateTaxonomy unions the chapter level taxonomy joins up to the
// series. Locked sets are preserved as the operator curated them.
func (r *Reconciler) aggregateTaxonomy(md *models.SeriesMetadata, s *models.Series) {
	if !md.GenresLocked {
		seen := map[int]bool{}
		genres := []*models.SeriesMetadataGenre{}
		for _, volume := range s.Volumes {
			for _, chapter := range volume.Chapters {
				for _, join := range chapter.Genres {
					if seen[join.GenreID] {
						continue
					}
					seen[join.GenreID] = true
					genres = append(genres, &models.SeriesMetadataGenre{GenreID: join.GenreID, Genre: join.Genre})
				}
			}
		}
		md.Genres = genres
	}

	if !md.TagsLocked {
		seen := map[int]bool{}
		tags := []*models.SeriesMetadataTag{}
		for _, volume := range s.Volumes {
			for _, chapter := range volume.Chapters {
				for _, join := range chapter.Tags {
					if seen[join.TagID] {
						continue
					}
					seen[join.TagID] = true
					tags = append(tags, &models.SeriesMetadataTag{TagID: join.TagID, Tag: join.Tag})
				}
			}
		}
		md.Tags = tags
	}

	if !md.PeopleLocked {
		seen := map[int]bool{}
		people := []*models.SeriesMetadataPerson{}
		for _, volume := range s.Volumes {
			for _, chapter := range volume.Chapters {
				for _, join := range chapter.People {
					if seen[join.PersonID] {
						continue
					}
					seen[join.PersonID] = true
					people = append(people, &models.SeriesMetadataPerson{PersonID: join.PersonID, Person: join.Person})
				}
			}
		}
		md.People = people
	}
}

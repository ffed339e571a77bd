package scanner

import (
	"strings"

	"github.com/hondanabooks/hondana/pkg/parser"
	"github.com/robinjoseph08/golib/logger"
)

// SeriesGroup is one logical series and the records filed under it. Identity
// is {NormalizedName, Format}; Name is display-only and first-writer-wins.
type SeriesGroup struct {
	Name           string
	NormalizedName string
	Format         string
	Records        []*parser.FileRecord
}

// Grouper folds classified FileRecords into series-keyed groups. It is not
// safe for concurrent use; each scan batch owns its own Grouper.
type Grouper struct {
	log    logger.Logger
	groups []*SeriesGroup
}

func NewGrouper(log logger.Logger) *Grouper {
	return &Grouper{log: log}
}

// Groups returns the accumulated series groups in first-seen order.
func (g *Grouper) Groups() []*SeriesGroup {
	return g.groups
}

// TrackSeries files one record into a series group. Lookup matches the
// record's normalized series, localized, and sort names against existing
// group keys of the same format. Zero matches creates a new group; exactly
// one appends; more than one is a data-integrity collision and the record is
// dropped rather than attached to an arbitrary group.
func (g *Grouper) TrackSeries(record *parser.FileRecord) {
	if record == nil || strings.TrimSpace(record.Series) == "" {
		return
	}

	g.mergeName(record)

	normalizedSeries := parser.Normalize(record.Series)
	normalizedLocalized := parser.Normalize(record.LocalizedSeries)
	normalizedSort := parser.Normalize(record.SortSeries)

	var matches []*SeriesGroup
	for _, group := range g.groups {
		if group.Format != record.Format {
			continue
		}
		if group.NormalizedName == normalizedSeries ||
			(normalizedLocalized != "" && group.NormalizedName == normalizedLocalized) ||
			(normalizedSort != "" && group.NormalizedName == normalizedSort) {
			matches = append(matches, group)
		}
	}

	switch len(matches) {
	case 0:
		g.groups = append(g.groups, &SeriesGroup{
			Name:           record.Series,
			NormalizedName: normalizedSeries,
			Format:         record.Format,
			Records:        []*parser.FileRecord{record},
		})
	case 1:
		matches[0].Records = append(matches[0].Records, record)
	default:
		names := make([]string, 0, len(matches))
		for _, match := range matches {
			names = append(names, match.Name)
		}
		g.log.Error("series name collision, dropping record", logger.Data{
			"series":     record.Series,
			"filepath":   record.Filepath,
			"candidates": strings.Join(names, ", "),
		})
	}
}

// mergeName rewrites the record's display series onto an existing group's
// canonical name when the two normalize identically, so capitalization and
// romanization variants collapse onto one series.
func (g *Grouper) mergeName(record *parser.FileRecord) {
	normalizedSeries := parser.Normalize(record.Series)
	normalizedLocalized := parser.Normalize(record.LocalizedSeries)

	var matches []*SeriesGroup
	for _, group := range g.groups {
		if group.Format != record.Format {
			continue
		}
		if group.NormalizedName == normalizedSeries ||
			(normalizedLocalized != "" && group.NormalizedName == normalizedLocalized) {
			matches = append(matches, group)
		}
	}

	if len(matches) > 1 {
		g.log.Error("multiple groups match during name merge, keeping original name", logger.Data{
			"series": record.Series,
		})
		return
	}
	if len(matches) == 1 && matches[0].Name != "" && record.Series != matches[0].Name {
		record.Series = matches[0].Name
	}
}

// MergeLocalizedSeries re-points records filed under a localized series name
// onto the canonical series name, before tracking. With one distinct
// non-localized name the choice is forced. With two, the one that does not
// normalize to the localized name is taken as canonical. Three or more is
// ambiguous; names are left alone and the ambiguity is logged.
func (g *Grouper) MergeLocalizedSeries(records []*parser.FileRecord) {
	localizedSeries := ""
	for _, record := range records {
		if !record.IsSpecial && record.LocalizedSeries != "" {
			localizedSeries = record.LocalizedSeries
			break
		}
	}
	if localizedSeries == "" {
		return
	}

	var distinct []string
	seen := map[string]bool{}
	for _, record := range records {
		if record.IsSpecial || seen[record.Series] {
			continue
		}
		seen[record.Series] = true
		distinct = append(distinct, record.Series)
	}

	normalizedLocalized := parser.Normalize(localizedSeries)
	canonical := ""
	switch {
	case len(distinct) == 1:
		canonical = distinct[0]
	case len(distinct) == 2:
		for _, name := range distinct {
			if parser.Normalize(name) != normalizedLocalized {
				canonical = name
			}
		}
	default:
		g.log.Error("ambiguous localized series merge, leaving names unmerged", logger.Data{
			"localized_series": localizedSeries,
			"candidates":       strings.Join(distinct, ", "),
		})
		return
	}
	if canonical == "" {
		return
	}

	normalizedCanonical := parser.Normalize(canonical)
	for _, record := range records {
		if parser.Normalize(record.Series) == normalizedCanonical {
			continue
		}
		record.Series = canonical
		record.LocalizedSeries = localizedSeries
	}
}

package scanner

import (
	"testing"

	"github.com/hondanabooks/hondana/pkg/models"
	"github.com/hondanabooks/hondana/pkg/parser"
	"github.com/robinjoseph08/golib/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(series, format string) *parser.FileRecord {
	return &parser.FileRecord{
		Series:   series,
		Format:   format,
		Chapter:  "1",
		Filepath: "/library/" + series + "/c001.cbz",
		Filename: "c001.cbz",
	}
}

func TestTrackSeriesGroupsEquivalentNames(t *testing.T) {
	t.Parallel()

	g := NewGrouper(logger.New())
	g.TrackSeries(record("Accel World", models.FormatArchive))
	g.TrackSeries(record("accel_world", models.FormatArchive))

	groups := g.Groups()
	require.Len(t, groups, 1)
	assert.Equal(t, "Accel World", groups[0].Name)
	assert.Equal(t, "accelworld", groups[0].NormalizedName)
	assert.Len(t, groups[0].Records, 2)
	// mergeName rewrote the variant onto the canonical display name.
	assert.Equal(t, "Accel World", groups[0].Records[1].Series)
}

func TestTrackSeriesFormatSplitsGroups(t *testing.T) {
	t.Parallel()

	g := NewGrouper(logger.New())
	g.TrackSeries(record("Accel World", models.FormatArchive))
	g.TrackSeries(record("Accel World", models.FormatEpub))

	require.Len(t, g.Groups(), 2)
}

func TestTrackSeriesMatchesLocalizedName(t *testing.T) {
	t.Parallel()

	g := NewGrouper(logger.New())
	g.TrackSeries(record("Accel World", models.FormatArchive))

	localized := record("アクセル・ワールド", models.FormatArchive)
	localized.LocalizedSeries = "Accel World"
	g.TrackSeries(localized)

	groups := g.Groups()
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Records, 2)
}

func TestTrackSeriesCollisionDropsRecord(t *testing.T) {
	t.Parallel()

	g := NewGrouper(logger.New())
	g.TrackSeries(record("Accel World", models.FormatArchive))
	g.TrackSeries(record("アクセル・ワールド", models.FormatArchive))
	require.Len(t, g.Groups(), 2)

	// Matches both existing keys at once: its own name matches one group,
	// its localized name the other.
	colliding := record("Accel World", models.FormatArchive)
	colliding.LocalizedSeries = "アクセル・ワールド"
	g.TrackSeries(colliding)

	groups := g.Groups()
	require.Len(t, groups, 2)
	assert.Len(t, groups[0].Records, 1)
	assert.Len(t, groups[1].Records, 1)
}

func TestTrackSeriesIgnoresBlankAndNil(t *testing.T) {
	t.Parallel()

	g := NewGrouper(logger.New())
	g.TrackSeries(nil)
	g.TrackSeries(record("  ", models.FormatArchive))
	assert.Empty(t, g.Groups())
}

func TestMergeLocalizedSeries(t *testing.T) {
	t.Parallel()

	g := NewGrouper(logger.New())
	localizedOnly := record("World of Acceleration", models.FormatArchive)
	localizedOnly.LocalizedSeries = "World of Acceleration"
	canonical := record("Accel World", models.FormatArchive)
	canonical.LocalizedSeries = "World of Acceleration"
	records := []*parser.FileRecord{localizedOnly, canonical}

	g.MergeLocalizedSeries(records)
	for _, r := range records {
		g.TrackSeries(r)
	}

	groups := g.Groups()
	require.Len(t, groups, 1)
	assert.Equal(t, "Accel World", groups[0].Name)
	for _, r := range records {
		assert.Equal(t, "Accel World", r.Series)
	}
}

func TestMergeLocalizedSeriesSingleName(t *testing.T) {
	t.Parallel()

	g := NewGrouper(logger.New())
	first := record("Accel World", models.FormatArchive)
	first.LocalizedSeries = "アクセル・ワールド"
	second := record("Accel World", models.FormatArchive)
	records := []*parser.FileRecord{first, second}

	g.MergeLocalizedSeries(records)

	assert.Equal(t, "Accel World", first.Series)
	assert.Equal(t, "Accel World", second.Series)
	// Already filed under the canonical name, so nothing is re-pointed.
	assert.Empty(t, second.LocalizedSeries)
}

func TestMergeLocalizedSeriesAmbiguous(t *testing.T) {
	t.Parallel()

	g := NewGrouper(logger.New())
	a := record("Series A", models.FormatArchive)
	a.LocalizedSeries = "Localized Name"
	b := record("Series B", models.FormatArchive)
	c := record("Series C", models.FormatArchive)
	records := []*parser.FileRecord{a, b, c}

	g.MergeLocalizedSeries(records)

	assert.Equal(t, "Series A", a.Series)
	assert.Equal(t, "Series B", b.Series)
	assert.Equal(t, "Series C", c.Series)
}

func TestMergeLocalizedSeriesSkipsSpecials(t *testing.T) {
	t.Parallel()

	g := NewGrouper(logger.New())
	special := record("Some Extra", models.FormatArchive)
	special.IsSpecial = true
	special.LocalizedSeries = "Some Extra"
	records := []*parser.FileRecord{special}

	g.MergeLocalizedSeries(records)
	assert.Equal(t, "Some Extra", special.Series)
}

package scanner

import (
	"testing"

	"github.com/hondanabooks/hondana/pkg/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chapterRecord(chapter, filename string) *parser.FileRecord {
	return &parser.FileRecord{
		Series:   "Series",
		Chapter:  chapter,
		Filename: filename,
		Filepath: "/library/Series/" + filename,
	}
}

func TestUpdateSortOrderAssignsParsedValues(t *testing.T) {
	t.Parallel()

	records := []*parser.FileRecord{
		chapterRecord("1", "c001.cbz"),
		chapterRecord("2", "c002.cbz"),
		chapterRecord("10", "c010.cbz"),
	}

	orders := UpdateSortOrder(records)
	assert.Equal(t, 1.0, orders[records[0]])
	assert.Equal(t, 2.0, orders[records[1]])
	assert.Equal(t, 10.0, orders[records[2]])
}

func TestUpdateSortOrderBumpsDuplicates(t *testing.T) {
	t.Parallel()

	records := []*parser.FileRecord{
		chapterRecord("1", "a.cbz"),
		chapterRecord("1", "b.cbz"),
		chapterRecord("2", "c.cbz"),
	}

	orders := UpdateSortOrder(records)
	assert.Equal(t, 1.0, orders[records[0]])
	assert.InDelta(t, 1.1, orders[records[1]], 1e-9)
	assert.Equal(t, 2.0, orders[records[2]])
}

func TestUpdateSortOrderUnparsableLast(t *testing.T) {
	t.Parallel()

	parsable := chapterRecord("3", "c003.cbz")
	unparsableA := chapterRecord("extras", "extras.cbz")
	unparsableB := chapterRecord("omake", "omake.cbz")
	records := []*parser.FileRecord{unparsableA, parsable, unparsableB}

	orders := UpdateSortOrder(records)
	assert.Equal(t, 3.0, orders[parsable])
	// Unparsable labels sort last and get bumped past the previous order.
	assert.InDelta(t, 3.1, orders[unparsableA], 1e-9)
	assert.InDelta(t, 3.2, orders[unparsableB], 1e-9)
}

func TestUpdateSortOrderSpecialsByIndex(t *testing.T) {
	t.Parallel()

	a := chapterRecord("0", "sp2.cbz")
	a.IsSpecial = true
	a.SpecialIndex = 2
	b := chapterRecord("0", "sp1.cbz")
	b.IsSpecial = true
	b.SpecialIndex = 1

	orders := UpdateSortOrder([]*parser.FileRecord{a, b})
	assert.Equal(t, 0.0, orders[b])
	assert.Equal(t, 1.0, orders[a])
}

func TestUpdateSortOrderSpecialsNaturalOrder(t *testing.T) {
	t.Parallel()

	a := chapterRecord("0", "Extra 10.cbz")
	a.IsSpecial = true
	b := chapterRecord("0", "Extra 2.cbz")
	b.IsSpecial = true

	orders := UpdateSortOrder([]*parser.FileRecord{a, b})
	assert.Equal(t, 0.0, orders[b])
	assert.Equal(t, 1.0, orders[a])
}

func TestUpdateSortOrderPerVolume(t *testing.T) {
	t.Parallel()

	v1 := chapterRecord("1", "v01c01.cbz")
	v1.Volume = "1"
	v2 := chapterRecord("1", "v02c01.cbz")
	v2.Volume = "2"

	orders := UpdateSortOrder([]*parser.FileRecord{v1, v2})
	require.Len(t, orders, 2)
	// Same chapter number in different volumes never collides.
	assert.Equal(t, 1.0, orders[v1])
	assert.Equal(t, 1.0, orders[v2])
}

func TestNaturalLess(t *testing.T) {
	t.Parallel()

	assert.True(t, naturalLess("ch2", "ch10"))
	assert.False(t, naturalLess("ch10", "ch2"))
	assert.True(t, naturalLess("extra 002", "extra 3"))
	assert.True(t, naturalLess("Alpha", "beta"))
	assert.True(t, naturalLess("a", "ab"))
}

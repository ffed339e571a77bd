package filereader

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/hondanabooks/hondana/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArchive(t *testing.T, path string, comicInfo string, pages int) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)

	zw := zip.NewWriter(f)

	for i := 0; i < pages; i++ {
		w, err := zw.Create(fmt.Sprintf("pages/page%03d.jpg", i))
		require.NoError(t, err)
		_, err = w.Write([]byte{0xFF, 0xD8, 0xFF, 0xE0})
		require.NoError(t, err)
	}

	if comicInfo != "" {
		w, err := zw.Create("ComicInfo.xml")
		require.NoError(t, err)
		_, err = w.Write([]byte(comicInfo))
		require.NoError(t, err)
	}

	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestReadMetadata_ComicInfo(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test.cbz")

	writeArchive(t, path, `<?xml version="1.0"?>
<ComicInfo>
  <Title>Chapter One</Title>
  <Series>Test Series</Series>
  <LocalizedSeries>Tesuto</LocalizedSeries>
  <Number>1</Number>
  <Volume>2</Volume>
  <Year>2019</Year>
  <Count>12</Count>
  <Writer>Alice Writer, Bob Writer</Writer>
  <Translator>Carol T</Translator>
  <Genre>Action, Drama, Action</Genre>
  <AgeRating>Teen</AgeRating>
  <LanguageISO>ja</LanguageISO>
</ComicInfo>`, 2)

	reader := NewArchiveReader()
	metadata, err := reader.ReadMetadata(path)
	require.NoError(t, err)
	require.NotNil(t, metadata)

	assert.Equal(t, "Chapter One", metadata.Title)
	assert.Equal(t, "Test Series", metadata.Series)
	assert.Equal(t, "Tesuto", metadata.LocalizedSeries)
	assert.Equal(t, "1", metadata.Number)
	assert.Equal(t, "2", metadata.Volume)
	assert.Equal(t, 2019, metadata.ReleaseYear)
	assert.Equal(t, 12, metadata.TotalCount)
	assert.Equal(t, 1, metadata.Count)
	assert.Equal(t, []string{"Alice Writer", "Bob Writer"}, metadata.Writers)
	assert.Equal(t, []string{"Carol T"}, metadata.Translators)
	assert.Equal(t, []string{"Action", "Drama"}, metadata.Genres)
	assert.Equal(t, models.AgeRatingTeen, metadata.AgeRating)
	assert.Equal(t, "ja", metadata.Language)
}

func TestReadMetadata_NoComicInfo(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test.cbz")
	writeArchive(t, path, "", 3)

	reader := NewArchiveReader()
	metadata, err := reader.ReadMetadata(path)
	require.NoError(t, err)
	assert.Nil(t, metadata)
}

func TestReadMetadata_NonArchive(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "cover.jpg")
	require.NoError(t, os.WriteFile(path, []byte{0xFF, 0xD8, 0xFF, 0xE0}, 0o644))

	reader := NewArchiveReader()
	metadata, err := reader.ReadMetadata(path)
	require.NoError(t, err)
	assert.Nil(t, metadata)
}

func TestReadDetails_CountsPages(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test.cbz")
	writeArchive(t, path, `<?xml version="1.0"?><ComicInfo><Title>x</Title></ComicInfo>`, 4)

	reader := NewArchiveReader()
	details, err := reader.ReadDetails(path)
	require.NoError(t, err)

	assert.Equal(t, 4, details.Pages)
	assert.Greater(t, details.SizeBytes, int64(0))
	assert.False(t, details.LastModified.IsZero())
}

func TestReadDetails_NotAZip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "broken.cbz")
	require.NoError(t, os.WriteFile(path, []byte("not an archive"), 0o644))

	reader := NewArchiveReader()
	_, err := reader.ReadDetails(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a zip archive")
}

func TestAgeRatingFor(t *testing.T) {
	assert.Equal(t, models.AgeRatingEveryone, ageRatingFor("Everyone"))
	assert.Equal(t, models.AgeRatingMature, ageRatingFor("Mature 17+"))
	assert.Equal(t, models.AgeRatingAdultsOnly, ageRatingFor("Adults Only 18+"))
	assert.Equal(t, models.AgeRatingUnknown, ageRatingFor("whatever"))
	assert.Equal(t, models.AgeRatingUnknown, ageRatingFor(""))
}

package storage

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndOpen(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	relPath, size, err := store.Save("photo.JPG", strings.NewReader("image bytes"))
	require.NoError(t, err)
	assert.EqualValues(t, len("image bytes"), size)
	assert.True(t, strings.HasSuffix(relPath, ".jpg"), "extension is kept lowercase: %s", relPath)
	assert.NotContains(t, relPath, "photo", "original name never reaches disk")

	f, err := store.Open(relPath)
	require.NoError(t, err)

	content, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "image bytes", string(content))
}

func TestSaveStripsHostileExtension(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	testCases := []struct {
		name     string
		original string
	}{
		{name: "no extension", original: "README"},
		{name: "traversal in name", original: "../../etc/passwd"},
		{name: "non-alphanumeric extension", original: "file.sh;rm"},
		{name: "oversized extension", original: "file.reallylongextension"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			relPath, _, err := store.Save(tc.original, strings.NewReader("x"))
			require.NoError(t, err)
			assert.NotContains(t, relPath, "..")
			assert.NotContains(t, relPath, ";")
		})
	}
}

func TestPathRejectsEscape(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = store.Path("../outside")
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, err = store.Path("")
	assert.ErrorIs(t, err, ErrInvalidPath)

	// cleaned paths inside the root are fine
	_, err = store.Path("2026/08/abc.png")
	assert.NoError(t, err)
}

func TestOpenMissing(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = store.Open("2026/08/nope.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemove(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	relPath, _, err := store.Save("a.txt", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, store.Remove(relPath))

	_, err = store.Open(relPath)
	assert.ErrorIs(t, err, ErrNotFound)

	// removing twice is not an error
	require.NoError(t, store.Remove(relPath))
}

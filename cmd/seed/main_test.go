package main

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/wisdom-library/internal/config"
	"github.com/yourusername/wisdom-library/internal/library"
	"github.com/yourusername/wisdom-library/internal/storage"
)

const sampleBooks = `[
  {"bookName":"Dune","author":"Frank Herbert","category":"Novel","quantity":3,"rating":4.5,"shortDescription":"spice"},
  {"_id":"ignored","bookName":"The Art of War","author":"Sun Tzu","category":"History","quantity":1}
]`

func TestDecodeBooks(t *testing.T) {
	books, err := decodeBooks(strings.NewReader(sampleBooks))
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "Dune", books[0].BookName)
	assert.Equal(t, "spice", books[0].Extra["shortDescription"])

	_, err = decodeBooks(strings.NewReader(`{"bookName":"not an array"}`))
	assert.Error(t, err)
}

func TestImportBooks(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewSQLStore(config.StoreDriverSQLite, filepath.Join(t.TempDir(), "seed.db"), nil)
	require.NoError(t, err)
	defer store.Close(ctx)

	books, err := decodeBooks(strings.NewReader(sampleBooks))
	require.NoError(t, err)

	var out bytes.Buffer
	n, err := importBooks(ctx, store, books, &out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, out.String(), "Importing: Dune by Frank Herbert")

	all, err := store.FindAllBooks(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, b := range all {
		assert.NotEqual(t, "ignored", b.ID)
	}
}

type failingCloseStore struct {
	library.Store
}

func (failingCloseStore) Close(ctx context.Context) error {
	return errors.New("disconnect failed")
}

func TestCloseStoreLogsError(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	closeStore(failingCloseStore{})
	assert.Contains(t, buf.String(), "failed to close store: disconnect failed")
}

func TestRootCmdDryRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleBooks), 0o600))

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--dry-run", path})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "2 books parsed")
}

func TestRootCmdRequiresFile(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})
	assert.Error(t, cmd.Execute())
}

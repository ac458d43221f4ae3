package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/wisdom-library/internal/config"
	"github.com/yourusername/wisdom-library/internal/library"
)

func newTestSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "wisdom.db")
	store, err := NewSQLStore(config.StoreDriverSQLite, dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	return store
}

func TestSQLStoreBookLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLStore(t)

	res, err := store.InsertBook(ctx, &library.Book{
		BookName: "Dune",
		Category: "Novel",
		Rating:   library.Float(4.5),
		Quantity: library.Int(2),
		Extra:    map[string]any{"shortDescription": "spice"},
	})
	require.NoError(t, err)
	assert.True(t, res.Acknowledged)
	require.NotEmpty(t, res.InsertedID)

	book, err := store.FindBook(ctx, res.InsertedID)
	require.NoError(t, err)
	require.NotNil(t, book)
	assert.Equal(t, res.InsertedID, book.ID)
	assert.Equal(t, "Dune", book.BookName)
	assert.Equal(t, library.Float(4.5), book.Rating)
	assert.Equal(t, "spice", book.Extra["shortDescription"])

	name, category := "Dune Messiah", "Sci-Fi"
	upd, err := store.UpdateBook(ctx, res.InsertedID, library.BookUpdate{BookName: &name, Category: &category, Rating: library.Int(4)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), upd.MatchedCount)

	upd, err = store.AdjustBookQuantity(ctx, res.InsertedID, -3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), upd.ModifiedCount)

	book, err = store.FindBook(ctx, res.InsertedID)
	require.NoError(t, err)
	assert.Equal(t, "Dune Messiah", book.BookName)
	assert.Equal(t, "Sci-Fi", book.Category)
	assert.Equal(t, library.Int(-1), book.Quantity)
	assert.Equal(t, library.Int(4), book.Rating)
	assert.Equal(t, "spice", book.Extra["shortDescription"])
}

func TestSQLStoreKeepsNonNumericValues(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLStore(t)

	res, err := store.InsertBook(ctx, &library.Book{
		BookName: "Dune",
		Rating:   library.NumberOf("4.5"),
		Quantity: library.NumberOf("3"),
	})
	require.NoError(t, err)

	book, err := store.FindBook(ctx, res.InsertedID)
	require.NoError(t, err)
	require.NotNil(t, book)
	assert.Equal(t, library.NumberOf("4.5"), book.Rating)
	assert.Equal(t, library.NumberOf("3"), book.Quantity)
	assert.Empty(t, book.Extra)

	// 数値に更新すると列に戻る
	_, err = store.UpdateBook(ctx, res.InsertedID, library.BookUpdate{Rating: library.Float(3.5)})
	require.NoError(t, err)
	book, err = store.FindBook(ctx, res.InsertedID)
	require.NoError(t, err)
	assert.Equal(t, library.Float(3.5), book.Rating)
	assert.Equal(t, library.NumberOf("3"), book.Quantity)
}

func TestSQLStorePartialUpdateStoresNull(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLStore(t)

	res, err := store.InsertBook(ctx, &library.Book{
		BookName: "Dune", Image: "dune.png", Category: "Novel", Author: "Herbert",
		Rating: library.Float(4.5), Quantity: library.Int(2),
	})
	require.NoError(t, err)

	name := "Dune Messiah"
	upd, err := store.UpdateBook(ctx, res.InsertedID, library.BookUpdate{BookName: &name})
	require.NoError(t, err)
	assert.Equal(t, int64(1), upd.MatchedCount)

	var row bookRow
	require.NoError(t, store.db.Where("id = ?", res.InsertedID).Take(&row).Error)
	require.NotNil(t, row.BookName)
	assert.Equal(t, "Dune Messiah", *row.BookName)
	assert.Nil(t, row.Image)
	assert.Nil(t, row.Category)
	assert.Nil(t, row.Author)
	assert.Nil(t, row.Rating)
	require.NotNil(t, row.Quantity)
	assert.Equal(t, int64(2), *row.Quantity)

	book, err := store.FindBook(ctx, res.InsertedID)
	require.NoError(t, err)
	assert.Equal(t, "", book.Author)
	assert.True(t, book.Rating.IsNull())

	upd, err = store.UpdateBook(ctx, "6f1c1f4e-8d2a-4c59-9a53-0d3f1a2b3c4d", library.BookUpdate{BookName: &name})
	require.NoError(t, err)
	assert.Equal(t, int64(0), upd.MatchedCount)
}

func TestSQLStoreListsBooks(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLStore(t)

	all, err := store.FindAllBooks(ctx)
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)

	for _, b := range []library.Book{
		{BookName: "One", Category: "History"},
		{BookName: "Two", Category: "Drama"},
		{BookName: "Three", Category: "History"},
	} {
		_, err := store.InsertBook(ctx, &b)
		require.NoError(t, err)
	}

	all, err = store.FindAllBooks(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	history, err := store.FindBooksByCategory(ctx, "History")
	require.NoError(t, err)
	assert.Len(t, history, 2)

	none, err := store.FindBooksByCategory(ctx, "Poetry")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestSQLStoreMissingAndInvalidIDs(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLStore(t)

	book, err := store.FindBook(ctx, "6f1c1f4e-8d2a-4c59-9a53-0d3f1a2b3c4d")
	require.NoError(t, err)
	assert.Nil(t, book)

	upd, err := store.AdjustBookQuantity(ctx, "6f1c1f4e-8d2a-4c59-9a53-0d3f1a2b3c4d", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), upd.MatchedCount)

	_, err = store.FindBook(ctx, "not-an-id")
	assert.ErrorIs(t, err, library.ErrInvalidID)
	_, err = store.UpdateBook(ctx, "not-an-id", library.BookUpdate{})
	assert.ErrorIs(t, err, library.ErrInvalidID)
	_, err = store.DeleteBorrowRecord(ctx, "not-an-id", "")
	assert.ErrorIs(t, err, library.ErrInvalidID)
}

func TestSQLStoreBorrowRecords(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLStore(t)

	found, err := store.FindBorrowRecord(ctx, "book-1", "a@x.com")
	require.NoError(t, err)
	assert.Nil(t, found)

	res, err := store.InsertBorrowRecord(ctx, &library.BorrowRecord{
		BorrowedBookID:      "book-1",
		BorrowedPersonEmail: "a@x.com",
		Extra:               map[string]any{"returnDate": "2026-11-01"},
	})
	require.NoError(t, err)
	_, err = store.InsertBorrowRecord(ctx, &library.BorrowRecord{BorrowedBookID: "book-2", BorrowedPersonEmail: "b@x.com"})
	require.NoError(t, err)

	found, err = store.FindBorrowRecord(ctx, "book-1", "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, res.InsertedID, found.ID)
	assert.Equal(t, "2026-11-01", found.Extra["returnDate"])

	// 本IDが一致してもメールが違えば別の記録
	found, err = store.FindBorrowRecord(ctx, "book-1", "b@x.com")
	require.NoError(t, err)
	assert.Nil(t, found)

	records, err := store.FindBorrowRecordsByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Len(t, records, 1)

	// 別の利用者のメールを指定した削除は何も消さない
	del, err := store.DeleteBorrowRecord(ctx, res.InsertedID, "b@x.com")
	require.NoError(t, err)
	assert.Equal(t, int64(0), del.DeletedCount)

	del, err = store.DeleteBorrowRecord(ctx, res.InsertedID, "")
	require.NoError(t, err)
	assert.True(t, del.Acknowledged)
	assert.Equal(t, int64(1), del.DeletedCount)

	records, err = store.FindBorrowRecordsByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestSQLStorePing(t *testing.T) {
	store := newTestSQLStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestNewSQLStoreRejectsUnknownDriver(t *testing.T) {
	_, err := NewSQLStore("oracle", "dsn", nil)
	assert.Error(t, err)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{StoreDriver: "cassandra"}, nil)
	assert.Error(t, err)
}

func TestOpenSQLite(t *testing.T) {
	cfg := &config.Config{
		StoreDriver: config.StoreDriverSQLite,
		DatabaseURL: filepath.Join(t.TempDir(), "open.db"),
	}
	store, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer store.Close(context.Background())
	assert.NoError(t, store.Ping(context.Background()))
}

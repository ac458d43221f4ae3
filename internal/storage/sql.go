package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yourusername/wisdom-library/internal/config"
	"github.com/yourusername/wisdom-library/internal/library"
)

var extraCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// bookRow の rating と quantity は数値で表せるときだけ列に入れ、
// それ以外の値は Extra 側に同じキーで保存します。
type bookRow struct {
	ID        string `gorm:"primaryKey;size:36"`
	BookName  *string
	Image     *string
	Category  *string
	Author    *string
	Rating    *float64
	Quantity  *int64
	Extra     string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (bookRow) TableName() string { return "all_books" }

type borrowRow struct {
	ID                  string `gorm:"primaryKey;size:36"`
	BorrowedBookID      string `gorm:"not null"`
	BorrowedPersonEmail string `gorm:"not null"`
	Extra               string `gorm:"type:text"`
	CreatedAt           time.Time
}

func (borrowRow) TableName() string { return "borrowed_books" }

// SQLStore は gorm 経由で postgres または sqlite を使う library.Store です。
// ID はストア側で採番する UUID 文字列です。
type SQLStore struct {
	db     *gorm.DB
	logger *log.Logger
}

// NewSQLStore は接続を開き、テーブルを AutoMigrate します。
func NewSQLStore(driver, dsn string, stdLogger *log.Logger) (*SQLStore, error) {
	if stdLogger == nil {
		stdLogger = log.Default()
	}

	var dialector gorm.Dialector
	switch driver {
	case config.StoreDriverPostgres:
		dialector = postgres.Open(dsn)
	case config.StoreDriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver: %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(stdLogger, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get database instance: %w", err)
	}
	if driver == config.StoreDriverSQLite {
		// sqlite は書き込みが直列なので接続を1本に絞る
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.AutoMigrate(&bookRow{}, &borrowRow{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	stdLogger.Printf("%s store ready", driver)
	return &SQLStore{db: db, logger: stdLogger}, nil
}

// InsertBook は本を1件追加します。
func (s *SQLStore) InsertBook(ctx context.Context, book *library.Book) (*library.InsertResult, error) {
	row, err := toBookRow(book)
	if err != nil {
		return nil, err
	}
	row.ID = uuid.NewString()
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("insert book: %w", err)
	}
	return &library.InsertResult{Acknowledged: true, InsertedID: row.ID}, nil
}

// FindBook は ID で本を1件取得します。
func (s *SQLStore) FindBook(ctx context.Context, id string) (*library.Book, error) {
	if err := checkUUID(id); err != nil {
		return nil, err
	}
	var row bookRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find book: %w", err)
	}
	book, err := fromBookRow(row)
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// UpdateBook は表示用フィールドだけを更新します。本文に無いフィールドは NULL になります。
func (s *SQLStore) UpdateBook(ctx context.Context, id string, update library.BookUpdate) (*library.UpdateResult, error) {
	if err := checkUUID(id); err != nil {
		return nil, err
	}

	var matched int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row bookRow
		if err := tx.Where("id = ?", id).Take(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		extra, err := decodeExtra(row.Extra)
		if err != nil {
			return err
		}
		if extra == nil {
			extra = map[string]any{}
		}
		rating := splitFloat(update.Rating, "rating", extra)
		encoded, err := encodeExtra(extra)
		if err != nil {
			return err
		}

		res := tx.Model(&bookRow{}).Where("id = ?", id).Updates(map[string]any{
			"book_name": update.BookName,
			"image":     update.Image,
			"category":  update.Category,
			"author":    update.Author,
			"rating":    rating,
			"extra":     encoded,
		})
		if res.Error != nil {
			return res.Error
		}
		matched = res.RowsAffected
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}
	return rowsUpdated(matched), nil
}

// FindBooksByCategory はカテゴリが一致する本を返します。
func (s *SQLStore) FindBooksByCategory(ctx context.Context, category string) ([]library.Book, error) {
	return s.findBooks(s.db.WithContext(ctx).Where("category = ?", category))
}

// FindAllBooks はすべての本を返します。
func (s *SQLStore) FindAllBooks(ctx context.Context) ([]library.Book, error) {
	return s.findBooks(s.db.WithContext(ctx))
}

// AdjustBookQuantity は在庫数に delta を加えます。
func (s *SQLStore) AdjustBookQuantity(ctx context.Context, id string, delta int) (*library.UpdateResult, error) {
	if err := checkUUID(id); err != nil {
		return nil, err
	}
	res := s.db.WithContext(ctx).Model(&bookRow{}).Where("id = ?", id).
		UpdateColumn("quantity", gorm.Expr("quantity + ?", delta))
	if res.Error != nil {
		return nil, fmt.Errorf("adjust quantity: %w", res.Error)
	}
	return rowsUpdated(res.RowsAffected), nil
}

// FindBorrowRecord は本IDと借り手メールの両方が一致する記録を返します。
func (s *SQLStore) FindBorrowRecord(ctx context.Context, bookID, email string) (*library.BorrowRecord, error) {
	var row borrowRow
	err := s.db.WithContext(ctx).
		Where("borrowed_book_id = ? AND borrowed_person_email = ?", bookID, email).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find borrow record: %w", err)
	}
	record, err := fromBorrowRow(row)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// InsertBorrowRecord は貸出記録を1件追加します。
func (s *SQLStore) InsertBorrowRecord(ctx context.Context, record *library.BorrowRecord) (*library.InsertResult, error) {
	extra, err := encodeExtra(record.Extra)
	if err != nil {
		return nil, err
	}
	row := borrowRow{
		ID:                  uuid.NewString(),
		BorrowedBookID:      record.BorrowedBookID,
		BorrowedPersonEmail: record.BorrowedPersonEmail,
		Extra:               extra,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("insert borrow record: %w", err)
	}
	return &library.InsertResult{Acknowledged: true, InsertedID: row.ID}, nil
}

// FindBorrowRecordsByEmail は借り手メールに一致する記録を返します。
func (s *SQLStore) FindBorrowRecordsByEmail(ctx context.Context, email string) ([]library.BorrowRecord, error) {
	var rows []borrowRow
	if err := s.db.WithContext(ctx).Where("borrowed_person_email = ?", email).
		Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find borrow records: %w", err)
	}
	records := make([]library.BorrowRecord, 0, len(rows))
	for _, row := range rows {
		record, err := fromBorrowRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// DeleteBorrowRecord は貸出記録を1件削除します。
func (s *SQLStore) DeleteBorrowRecord(ctx context.Context, id, email string) (*library.DeleteResult, error) {
	if err := checkUUID(id); err != nil {
		return nil, err
	}
	query := s.db.WithContext(ctx).Where("id = ?", id)
	if email != "" {
		query = query.Where("borrowed_person_email = ?", email)
	}
	res := query.Delete(&borrowRow{})
	if res.Error != nil {
		return nil, fmt.Errorf("delete borrow record: %w", res.Error)
	}
	return &library.DeleteResult{Acknowledged: true, DeletedCount: res.RowsAffected}, nil
}

// Ping はデータベースへの疎通を確認します。
func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close は接続を閉じます。
func (s *SQLStore) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLStore) findBooks(query *gorm.DB) ([]library.Book, error) {
	var rows []bookRow
	if err := query.Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find books: %w", err)
	}
	books := make([]library.Book, 0, len(rows))
	for _, row := range rows {
		book, err := fromBookRow(row)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, nil
}

func checkUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return invalidID(id)
	}
	return nil
}

func rowsUpdated(n int64) *library.UpdateResult {
	return &library.UpdateResult{Acknowledged: true, MatchedCount: n, ModifiedCount: n}
}

func encodeExtra(extra map[string]any) (string, error) {
	if len(extra) == 0 {
		return "", nil
	}
	data, err := extraCodec.Marshal(extra)
	if err != nil {
		return "", fmt.Errorf("encode extra fields: %w", err)
	}
	return string(data), nil
}

func decodeExtra(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var extra map[string]any
	if err := extraCodec.UnmarshalFromString(raw, &extra); err != nil {
		return nil, fmt.Errorf("decode extra fields: %w", err)
	}
	return extra, nil
}

func toBookRow(book *library.Book) (bookRow, error) {
	extra := make(map[string]any, len(book.Extra)+2)
	for k, v := range book.Extra {
		extra[k] = v
	}
	row := bookRow{
		BookName: &book.BookName,
		Image:    &book.Image,
		Category: &book.Category,
		Author:   &book.Author,
		Rating:   splitFloat(book.Rating, "rating", extra),
		Quantity: splitInt(book.Quantity, "quantity", extra),
	}
	encoded, err := encodeExtra(extra)
	if err != nil {
		return bookRow{}, err
	}
	row.Extra = encoded
	return row, nil
}

func fromBookRow(row bookRow) (library.Book, error) {
	extra, err := decodeExtra(row.Extra)
	if err != nil {
		return library.Book{}, err
	}
	book := library.Book{
		ID:       row.ID,
		BookName: deref(row.BookName),
		Image:    deref(row.Image),
		Category: deref(row.Category),
		Author:   deref(row.Author),
		Rating:   library.NumberOf(extra["rating"]),
		Quantity: library.NumberOf(extra["quantity"]),
	}
	delete(extra, "rating")
	delete(extra, "quantity")
	if row.Rating != nil {
		book.Rating = library.Float(*row.Rating)
	}
	if row.Quantity != nil {
		book.Quantity = library.Int(*row.Quantity)
	}
	if len(extra) > 0 {
		book.Extra = extra
	}
	return book, nil
}

// splitFloat は数値なら列の値として返し、それ以外の値は extra[key] に移します。
func splitFloat(n library.Number, key string, extra map[string]any) *float64 {
	delete(extra, key)
	if f, ok := n.Float64(); ok {
		return &f
	}
	if !n.IsNull() {
		extra[key] = n.Value()
	}
	return nil
}

// splitInt は整数なら列の値として返し、それ以外の値は extra[key] に移します。
func splitInt(n library.Number, key string, extra map[string]any) *int64 {
	delete(extra, key)
	if i, ok := n.Int64(); ok {
		return &i
	}
	if !n.IsNull() {
		extra[key] = n.Value()
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func fromBorrowRow(row borrowRow) (library.BorrowRecord, error) {
	extra, err := decodeExtra(row.Extra)
	if err != nil {
		return library.BorrowRecord{}, err
	}
	return library.BorrowRecord{
		ID:                  row.ID,
		BorrowedBookID:      row.BorrowedBookID,
		BorrowedPersonEmail: row.BorrowedPersonEmail,
		Extra:               extra,
	}, nil
}

package library

import (
	"context"
	"errors"
)

// ErrInvalidID は ID の形式がストアの識別子として解釈できない場合に返されます。
var ErrInvalidID = errors.New("invalid id")

// Store は蔵書コレクションと貸出コレクションへのアクセスを抽象化します。
// 見つからない場合の単一取得は nil, nil を返します。
type Store interface {
	InsertBook(ctx context.Context, book *Book) (*InsertResult, error)
	FindBook(ctx context.Context, id string) (*Book, error)
	UpdateBook(ctx context.Context, id string, update BookUpdate) (*UpdateResult, error)
	FindBooksByCategory(ctx context.Context, category string) ([]Book, error)
	FindAllBooks(ctx context.Context) ([]Book, error)
	AdjustBookQuantity(ctx context.Context, id string, delta int) (*UpdateResult, error)

	FindBorrowRecord(ctx context.Context, bookID, email string) (*BorrowRecord, error)
	InsertBorrowRecord(ctx context.Context, record *BorrowRecord) (*InsertResult, error)
	FindBorrowRecordsByEmail(ctx context.Context, email string) ([]BorrowRecord, error)
	// DeleteBorrowRecord は email が空でなければ借り手のメールも条件に含めます。
	DeleteBorrowRecord(ctx context.Context, id, email string) (*DeleteResult, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

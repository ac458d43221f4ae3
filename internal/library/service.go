package library

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// ReturnFlag は PUT /all-books/:id の本文で返却を示す値です。
const ReturnFlag = "return"

// Service は Store の上に貸出と在庫調整の手順を載せたものです。
type Service struct {
	store  Store
	logger *log.Logger
}

// NewService は Service を作成します。
func NewService(store Store, logger *log.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is nil")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{store: store, logger: logger}, nil
}

// Store は内部のストアを返します。
func (s *Service) Store() Store {
	return s.store
}

// Borrow は (本, 利用者) の組に未返却の記録がなければ新規に登録します。
// 既に記録がある場合は挿入せず AlreadyBorrowed を返します。
// 確認と挿入の間はトランザクションではないため、同時リクエストでは重複しうる。
func (s *Service) Borrow(ctx context.Context, record *BorrowRecord) (any, error) {
	if record == nil {
		return nil, errors.New("record is nil")
	}

	existing, err := s.store.FindBorrowRecord(ctx, record.BorrowedBookID, record.BorrowedPersonEmail)
	if err != nil {
		return nil, fmt.Errorf("find borrow record: %w", err)
	}
	if existing != nil {
		s.logger.Printf("borrow skipped: book=%s already held by %s", record.BorrowedBookID, record.BorrowedPersonEmail)
		return &AlreadyBorrowed{BookAlreadyHas: true}, nil
	}

	result, err := s.store.InsertBorrowRecord(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("insert borrow record: %w", err)
	}
	s.logger.Printf("borrow recorded: id=%s book=%s", result.InsertedID, record.BorrowedBookID)
	return result, nil
}

// AdjustQuantity は返却なら在庫を1増やし、それ以外は1減らします。下限チェックはしません。
func (s *Service) AdjustQuantity(ctx context.Context, bookID, flag string) (*UpdateResult, error) {
	delta := -1
	if flag == ReturnFlag {
		delta = 1
	}
	result, err := s.store.AdjustBookQuantity(ctx, bookID, delta)
	if err != nil {
		return nil, fmt.Errorf("adjust quantity: %w", err)
	}
	return result, nil
}

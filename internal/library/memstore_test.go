package library

import (
	"context"
	"errors"
	"strconv"
	"sync"
)

// memStore はテスト用のインメモリ Store です。ID は数字の文字列で、それ以外は ErrInvalidID です。
type memStore struct {
	mu      sync.Mutex
	nextID  int
	books   map[string]Book
	records map[string]BorrowRecord
	err     error
}

func newMemStore() *memStore {
	return &memStore{
		books:   make(map[string]Book),
		records: make(map[string]BorrowRecord),
	}
}

func (s *memStore) newID() string {
	s.nextID++
	return strconv.Itoa(s.nextID)
}

func checkID(id string) error {
	if _, err := strconv.Atoi(id); err != nil {
		return ErrInvalidID
	}
	return nil
}

func (s *memStore) InsertBook(ctx context.Context, book *Book) (*InsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	b := *book
	b.ID = s.newID()
	s.books[b.ID] = b
	return &InsertResult{Acknowledged: true, InsertedID: b.ID}, nil
}

func (s *memStore) FindBook(ctx context.Context, id string) (*Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if err := checkID(id); err != nil {
		return nil, err
	}
	b, ok := s.books[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (s *memStore) UpdateBook(ctx context.Context, id string, update BookUpdate) (*UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := checkID(id); err != nil {
		return nil, err
	}
	b, ok := s.books[id]
	if !ok {
		return &UpdateResult{Acknowledged: true}, nil
	}
	b.BookName, b.Image, b.Category, b.Author = deref(update.BookName), deref(update.Image), deref(update.Category), deref(update.Author)
	b.Rating = update.Rating
	s.books[id] = b
	return &UpdateResult{Acknowledged: true, MatchedCount: 1, ModifiedCount: 1}, nil
}

func (s *memStore) FindBooksByCategory(ctx context.Context, category string) ([]Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Book
	for _, b := range s.books {
		if b.Category == category {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *memStore) FindAllBooks(ctx context.Context) ([]Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []Book
	for _, b := range s.books {
		out = append(out, b)
	}
	return out, nil
}

func (s *memStore) AdjustBookQuantity(ctx context.Context, id string, delta int) (*UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := checkID(id); err != nil {
		return nil, err
	}
	b, ok := s.books[id]
	if !ok {
		return &UpdateResult{Acknowledged: true}, nil
	}
	switch {
	case b.Quantity.IsNull():
		b.Quantity = Int(int64(delta))
	default:
		f, ok := b.Quantity.Float64()
		if !ok {
			return nil, errNotNumeric
		}
		b.Quantity = Float(f + float64(delta))
	}
	s.books[id] = b
	return &UpdateResult{Acknowledged: true, MatchedCount: 1, ModifiedCount: 1}, nil
}

func (s *memStore) FindBorrowRecord(ctx context.Context, bookID, email string) (*BorrowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	for _, r := range s.records {
		if r.BorrowedBookID == bookID && r.BorrowedPersonEmail == email {
			return &r, nil
		}
	}
	return nil, nil
}

func (s *memStore) InsertBorrowRecord(ctx context.Context, record *BorrowRecord) (*InsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := *record
	r.ID = s.newID()
	s.records[r.ID] = r
	return &InsertResult{Acknowledged: true, InsertedID: r.ID}, nil
}

func (s *memStore) FindBorrowRecordsByEmail(ctx context.Context, email string) ([]BorrowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []BorrowRecord
	for _, r := range s.records {
		if r.BorrowedPersonEmail == email {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) DeleteBorrowRecord(ctx context.Context, id, email string) (*DeleteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := checkID(id); err != nil {
		return nil, err
	}
	r, ok := s.records[id]
	if !ok || (email != "" && r.BorrowedPersonEmail != email) {
		return &DeleteResult{Acknowledged: true}, nil
	}
	delete(s.records, id)
	return &DeleteResult{Acknowledged: true, DeletedCount: 1}, nil
}

func (s *memStore) Ping(ctx context.Context) error {
	if s.err != nil {
		return s.err
	}
	return nil
}

func (s *memStore) Close(ctx context.Context) error { return nil }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var (
	errStoreDown  = errors.New("store down")
	errNotNumeric = errors.New("cannot apply $inc to a non-numeric value")
)

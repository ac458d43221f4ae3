// Package library は蔵書と貸出記録を扱うドメイン型・サービス・HTTPハンドラーを提供します。
package library

import (
	jsoniter "github.com/json-iterator/go"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Book は蔵書1件を表します。
// クライアントが送った未知のフィールドは Extra に保持され、そのまま返されます。
type Book struct {
	ID       string `json:"_id,omitempty"`
	BookName string `json:"bookName"`
	Image    string `json:"image"`
	Category string `json:"category"`
	Author   string `json:"author"`
	Rating   Number `json:"rating"`
	Quantity Number `json:"quantity"`

	Extra map[string]any `json:"-"`
}

var bookKeys = []string{"_id", "bookName", "image", "category", "author", "rating", "quantity"}

// BookUpdate は PUT /update-books/:id で更新できるフィールドです（quantity は含まない）。
// 本文に無いフィールドは nil のままで、ストアには null として書き込まれます。
type BookUpdate struct {
	BookName *string `json:"bookName"`
	Image    *string `json:"image"`
	Category *string `json:"category"`
	Author   *string `json:"author"`
	Rating   Number  `json:"rating"`
}

// BorrowRecord は利用者1人が本1冊を借りている状態を表します。
type BorrowRecord struct {
	ID                  string `json:"_id,omitempty"`
	BorrowedBookID      string `json:"borrowedBookId"`
	BorrowedPersonEmail string `json:"borrowedPersonEmail"`

	Extra map[string]any `json:"-"`
}

var borrowKeys = []string{"_id", "borrowedBookId", "borrowedPersonEmail"}

// InsertResult は1件挿入の結果です。
type InsertResult struct {
	Acknowledged bool   `json:"acknowledged"`
	InsertedID   string `json:"insertedId"`
}

// UpdateResult は1件更新の結果です。
type UpdateResult struct {
	Acknowledged  bool    `json:"acknowledged"`
	ModifiedCount int64   `json:"modifiedCount"`
	UpsertedID    *string `json:"upsertedId"`
	UpsertedCount int64   `json:"upsertedCount"`
	MatchedCount  int64   `json:"matchedCount"`
}

// DeleteResult は1件削除の結果です。
type DeleteResult struct {
	Acknowledged bool  `json:"acknowledged"`
	DeletedCount int64 `json:"deletedCount"`
}

// AlreadyBorrowed は同じ本を同じ利用者が借りている場合の応答です。
type AlreadyBorrowed struct {
	BookAlreadyHas bool `json:"bookAlreadyHas"`
}

// MarshalJSON は既知フィールドと Extra をひとつのオブジェクトにまとめます。
func (b Book) MarshalJSON() ([]byte, error) {
	type plain Book
	return marshalWithExtra(plain(b), b.Extra)
}

// UnmarshalJSON は既知フィールド以外を Extra に振り分けます。
func (b *Book) UnmarshalJSON(data []byte) error {
	type plain Book
	var p plain
	if err := codec.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := extractExtra(data, bookKeys)
	if err != nil {
		return err
	}
	*b = Book(p)
	b.Extra = extra
	return nil
}

// MarshalJSON は既知フィールドと Extra をひとつのオブジェクトにまとめます。
func (r BorrowRecord) MarshalJSON() ([]byte, error) {
	type plain BorrowRecord
	return marshalWithExtra(plain(r), r.Extra)
}

// UnmarshalJSON は既知フィールド以外を Extra に振り分けます。
func (r *BorrowRecord) UnmarshalJSON(data []byte) error {
	type plain BorrowRecord
	var p plain
	if err := codec.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := extractExtra(data, borrowKeys)
	if err != nil {
		return err
	}
	*r = BorrowRecord(p)
	r.Extra = extra
	return nil
}

func marshalWithExtra(known any, extra map[string]any) ([]byte, error) {
	if len(extra) == 0 {
		return codec.Marshal(known)
	}
	raw, err := codec.Marshal(known)
	if err != nil {
		return nil, err
	}
	merged := make(map[string]any, len(extra)+8)
	for k, v := range extra {
		merged[k] = v
	}
	var fields map[string]any
	if err := codec.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	// 既知フィールドが優先
	for k, v := range fields {
		merged[k] = v
	}
	return codec.Marshal(merged)
}

func extractExtra(data []byte, known []string) (map[string]any, error) {
	var all map[string]any
	if err := codec.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

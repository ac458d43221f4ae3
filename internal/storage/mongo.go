package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"net/url"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/yourusername/wisdom-library/internal/config"
	"github.com/yourusername/wisdom-library/internal/library"
)

const (
	booksCollection    = "allBooks"
	borrowedCollection = "borrowedBooks"
)

// bookDocument は _id 以外をすべて Fields に持ちます。
// 古いドキュメントに型の違う値が入っていても読み込みで失敗しないようにするためです。
type bookDocument struct {
	ID     primitive.ObjectID `bson:"_id,omitempty"`
	Fields bson.M             `bson:",inline"`
}

type borrowDocument struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty"`
	BorrowedBookID      string             `bson:"borrowedBookId"`
	BorrowedPersonEmail string             `bson:"borrowedPersonEmail"`
	Extra               bson.M             `bson:",inline"`
}

// MongoStore は MongoDB の2つのコレクションを使う library.Store です。
type MongoStore struct {
	client   *mongo.Client
	books    *mongo.Collection
	borrowed *mongo.Collection
	logger   *log.Logger
}

// MongoURI は設定から接続URIを組み立てます。MONGODB_URI があればそれを優先します。
func MongoURI(cfg *config.Config) string {
	if cfg.MongoURI != "" {
		return cfg.MongoURI
	}
	u := url.URL{
		Scheme:   "mongodb+srv",
		User:     url.UserPassword(cfg.DBUser, cfg.DBPass),
		Host:     cfg.DBHost,
		Path:     "/",
		RawQuery: "retryWrites=true&w=majority",
	}
	return u.String()
}

// NewMongoStore は Stable API v1 で MongoDB に接続します。
func NewMongoStore(ctx context.Context, uri, dbName string, logger *log.Logger) (*MongoStore, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1).
		SetStrict(true).
		SetDeprecationErrors(true)
	opts := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(serverAPI).
		// 入れ子のドキュメントを bson.M で受け取り、そのまま JSON にできるようにする
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	return newMongoStore(client, dbName, logger), nil
}

func newMongoStore(client *mongo.Client, dbName string, logger *log.Logger) *MongoStore {
	if logger == nil {
		logger = log.Default()
	}
	db := client.Database(dbName)
	return &MongoStore{
		client:   client,
		books:    db.Collection(booksCollection),
		borrowed: db.Collection(borrowedCollection),
		logger:   logger,
	}
}

// InsertBook は本を1件追加します。
func (s *MongoStore) InsertBook(ctx context.Context, book *library.Book) (*library.InsertResult, error) {
	res, err := s.books.InsertOne(ctx, toBookDocument(book))
	if err != nil {
		return nil, fmt.Errorf("insert book: %w", err)
	}
	return insertResult(res), nil
}

// FindBook は ID で本を1件取得します。
func (s *MongoStore) FindBook(ctx context.Context, id string) (*library.Book, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var doc bookDocument
	if err := s.books.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find book: %w", err)
	}
	book := fromBookDocument(doc)
	return &book, nil
}

// UpdateBook は表示用フィールドだけを $set します。
func (s *MongoStore) UpdateBook(ctx context.Context, id string, update library.BookUpdate) (*library.UpdateResult, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	res, err := s.books.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set": bson.M{
			"bookName": update.BookName,
			"image":    update.Image,
			"category": update.Category,
			"author":   update.Author,
			"rating":   mongoValue(update.Rating),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}
	return updateResult(res), nil
}

// FindBooksByCategory はカテゴリが一致する本を返します。
func (s *MongoStore) FindBooksByCategory(ctx context.Context, category string) ([]library.Book, error) {
	return s.findBooks(ctx, bson.M{"category": category})
}

// FindAllBooks はすべての本を返します。
func (s *MongoStore) FindAllBooks(ctx context.Context) ([]library.Book, error) {
	return s.findBooks(ctx, bson.M{})
}

// AdjustBookQuantity は在庫数を $inc します。
func (s *MongoStore) AdjustBookQuantity(ctx context.Context, id string, delta int) (*library.UpdateResult, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	res, err := s.books.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$inc": bson.M{"quantity": delta}})
	if err != nil {
		return nil, fmt.Errorf("adjust quantity: %w", err)
	}
	return updateResult(res), nil
}

// FindBorrowRecord は本IDと借り手メールの両方が一致する記録を返します。
func (s *MongoStore) FindBorrowRecord(ctx context.Context, bookID, email string) (*library.BorrowRecord, error) {
	filter := bson.M{"$and": bson.A{
		bson.M{"borrowedBookId": bookID},
		bson.M{"borrowedPersonEmail": email},
	}}
	var doc borrowDocument
	if err := s.borrowed.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find borrow record: %w", err)
	}
	record := fromBorrowDocument(doc)
	return &record, nil
}

// InsertBorrowRecord は貸出記録を1件追加します。
func (s *MongoStore) InsertBorrowRecord(ctx context.Context, record *library.BorrowRecord) (*library.InsertResult, error) {
	res, err := s.borrowed.InsertOne(ctx, toBorrowDocument(record))
	if err != nil {
		return nil, fmt.Errorf("insert borrow record: %w", err)
	}
	return insertResult(res), nil
}

// FindBorrowRecordsByEmail は借り手メールに一致する記録を返します。
func (s *MongoStore) FindBorrowRecordsByEmail(ctx context.Context, email string) ([]library.BorrowRecord, error) {
	cursor, err := s.borrowed.Find(ctx, bson.M{"borrowedPersonEmail": email})
	if err != nil {
		return nil, fmt.Errorf("find borrow records: %w", err)
	}
	var docs []borrowDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode borrow records: %w", err)
	}
	records := make([]library.BorrowRecord, len(docs))
	for i, doc := range docs {
		records[i] = fromBorrowDocument(doc)
	}
	return records, nil
}

// DeleteBorrowRecord は貸出記録を1件削除します。
func (s *MongoStore) DeleteBorrowRecord(ctx context.Context, id, email string) (*library.DeleteResult, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	filter := bson.M{"_id": oid}
	if email != "" {
		filter["borrowedPersonEmail"] = email
	}
	res, err := s.borrowed.DeleteOne(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("delete borrow record: %w", err)
	}
	return &library.DeleteResult{Acknowledged: true, DeletedCount: res.DeletedCount}, nil
}

// Ping はプライマリへの疎通を確認します。
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close はクライアントを切断します。
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) findBooks(ctx context.Context, filter bson.M) ([]library.Book, error) {
	cursor, err := s.books.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find books: %w", err)
	}
	var docs []bookDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode books: %w", err)
	}
	books := make([]library.Book, len(docs))
	for i, doc := range docs {
		books[i] = fromBookDocument(doc)
	}
	return books, nil
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, invalidID(id)
	}
	return oid, nil
}

func insertResult(res *mongo.InsertOneResult) *library.InsertResult {
	out := &library.InsertResult{Acknowledged: true}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		out.InsertedID = oid.Hex()
	} else if res.InsertedID != nil {
		out.InsertedID = fmt.Sprint(res.InsertedID)
	}
	return out
}

func updateResult(res *mongo.UpdateResult) *library.UpdateResult {
	out := &library.UpdateResult{
		Acknowledged:  true,
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
		UpsertedCount: res.UpsertedCount,
	}
	if oid, ok := res.UpsertedID.(primitive.ObjectID); ok {
		hex := oid.Hex()
		out.UpsertedID = &hex
	}
	return out
}

func toBookDocument(book *library.Book) bookDocument {
	fields := make(bson.M, len(book.Extra)+6)
	for k, v := range book.Extra {
		fields[k] = v
	}
	fields["bookName"] = book.BookName
	fields["image"] = book.Image
	fields["category"] = book.Category
	fields["author"] = book.Author
	// 無い値はフィールドごと省く
	delete(fields, "rating")
	delete(fields, "quantity")
	if !book.Rating.IsNull() {
		fields["rating"] = mongoValue(book.Rating)
	}
	if !book.Quantity.IsNull() {
		fields["quantity"] = mongoValue(book.Quantity)
	}
	return bookDocument{Fields: fields}
}

func fromBookDocument(doc bookDocument) library.Book {
	fields := make(map[string]any, len(doc.Fields))
	for k, v := range doc.Fields {
		fields[k] = v
	}
	book := library.Book{
		ID:       doc.ID.Hex(),
		BookName: takeString(fields, "bookName"),
		Image:    takeString(fields, "image"),
		Category: takeString(fields, "category"),
		Author:   takeString(fields, "author"),
		Rating:   library.NumberOf(take(fields, "rating")),
		Quantity: library.NumberOf(take(fields, "quantity")),
	}
	if len(fields) > 0 {
		book.Extra = fields
	}
	return book
}

// mongoValue は int32 に収まる整数を int32 で保存します（Node ドライバーと同じ型）。
func mongoValue(n library.Number) any {
	if i, ok := n.Int64(); ok && i >= math.MinInt32 && i <= math.MaxInt32 {
		return int32(i)
	}
	return n.Value()
}

func take(fields map[string]any, key string) any {
	v := fields[key]
	delete(fields, key)
	return v
}

// takeString は文字列以外の値を fmt.Sprint で文字列にします。null は空文字です。
func takeString(fields map[string]any, key string) string {
	switch v := take(fields, key).(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func toBorrowDocument(record *library.BorrowRecord) borrowDocument {
	return borrowDocument{
		BorrowedBookID:      record.BorrowedBookID,
		BorrowedPersonEmail: record.BorrowedPersonEmail,
		Extra:               bson.M(record.Extra),
	}
}

func fromBorrowDocument(doc borrowDocument) library.BorrowRecord {
	record := library.BorrowRecord{
		ID:                  doc.ID.Hex(),
		BorrowedBookID:      doc.BorrowedBookID,
		BorrowedPersonEmail: doc.BorrowedPersonEmail,
	}
	if len(doc.Extra) > 0 {
		record.Extra = map[string]any(doc.Extra)
	}
	return record
}

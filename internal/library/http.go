package library

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/wisdom-library/internal/auth"
)

// Error はクライアントに返す入力エラーです。
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func invalidInput(message string) *Error {
	return &Error{Code: "INVALID_INPUT", Message: message}
}

// AddBookHandler は POST /all-books のハンドラーを返します。
func AddBookHandler(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var book Book
		if err := c.ShouldBindJSON(&book); err != nil {
			respondWithError(c, invalidInput("本の情報を JSON で送ってください。"))
			return
		}
		book.ID = ""

		result, err := store.InsertBook(c.Request.Context(), &book)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// GetBookHandler は GET /update-books/:id と GET /book-details/:id のハンドラーを返します。
// 見つからない場合は null を返します。
func GetBookHandler(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		book, err := store.FindBook(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, book)
	}
}

// UpdateBookHandler は PUT /update-books/:id のハンドラーを返します。在庫数は変更しません。
func UpdateBookHandler(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var update BookUpdate
		if err := c.ShouldBindJSON(&update); err != nil {
			respondWithError(c, invalidInput("更新内容を JSON で送ってください。"))
			return
		}

		result, err := store.UpdateBook(c.Request.Context(), c.Param("id"), update)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// BooksByCategoryHandler は GET /books-category/:category のハンドラーを返します。
func BooksByCategoryHandler(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		books, err := store.FindBooksByCategory(c.Request.Context(), c.Param("category"))
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, nonNil(books))
	}
}

// AllBooksHandler は GET /all-books のハンドラーを返します。
func AllBooksHandler(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		books, err := store.FindAllBooks(c.Request.Context())
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, nonNil(books))
	}
}

// BorrowHandler は POST /borrow-book のハンドラーを返します。
// requireOwner が true の場合、本文の借り手メールがトークンのメールと一致しなければ 403 です。
func BorrowHandler(svc *Service, requireOwner bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var record BorrowRecord
		if err := c.ShouldBindJSON(&record); err != nil {
			respondWithError(c, invalidInput("貸出情報を JSON で送ってください。"))
			return
		}
		record.ID = ""

		if requireOwner {
			identity, ok := auth.IdentityFrom(c)
			if !ok {
				auth.AbortUnauthorized(c)
				return
			}
			if !identity.Matches(record.BorrowedPersonEmail) {
				auth.AbortForbidden(c)
				return
			}
		}

		result, err := svc.Borrow(c.Request.Context(), &record)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

type quantityRequest struct {
	Return any `json:"return"`
}

// AdjustQuantityHandler は PUT /all-books/:id のハンドラーを返します。
// 本文の return が "return" なら在庫を戻し、それ以外（本文なしを含む）は減らします。
func AdjustQuantityHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req quantityRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respondWithError(c, invalidInput("本文は JSON で送ってください。"))
			return
		}

		flag, _ := req.Return.(string)
		result, err := svc.AdjustQuantity(c.Request.Context(), c.Param("id"), flag)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// BorrowedBooksHandler は GET /borrowed-books のハンドラーを返します。
func BorrowedBooksHandler(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := store.FindBorrowRecordsByEmail(c.Request.Context(), c.Query("email"))
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, nonNil(records))
	}
}

// DeleteBorrowedHandler は DELETE /borrowed-books のハンドラーを返します。
// scopeToEmail が true の場合は ?email の借り手の記録だけを削除対象にします。
func DeleteBorrowedHandler(store Store, scopeToEmail bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		email := ""
		if scopeToEmail {
			email = c.Query("email")
		}

		result, err := store.DeleteBorrowRecord(c.Request.Context(), c.Query("borrowedId"), email)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// RootHandler は GET / の稼働確認テキストを返します。
func RootHandler(c *gin.Context) {
	c.String(http.StatusOK, "wisdom is running")
}

// HealthHandler は GET /health のハンドラーを返します。ストアへの疎通も確認します。
func HealthHandler(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := store.Ping(c.Request.Context()); err != nil {
			log.Printf("health check failed: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "down",
				"service": "wisdom-library-api",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "wisdom-library-api",
		})
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func respondWithError(c *gin.Context, err error) {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		})
	case errors.Is(err, ErrInvalidID):
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_ID",
			"message": "ID の形式が正しくありません。",
		})
	case errors.Is(err, context.Canceled):
		c.JSON(http.StatusRequestTimeout, gin.H{
			"code":    "REQUEST_CANCELED",
			"message": "リクエストがキャンセルされました。",
		})
	default:
		log.Printf("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "サーバー内部でエラーが発生しました。",
		})
	}
}

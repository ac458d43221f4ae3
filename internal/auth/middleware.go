package auth

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-Id"

// RequestLogger はメソッドと URL を記録するミドルウェアです。常に次へ進みます。
func RequestLogger(logger *log.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = log.Default()
	}
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)
		logger.Printf("log info here: %s %s request_id=%s", c.Request.Method, c.Request.URL.RequestURI(), requestID)
		c.Next()
	}
}

// RequireToken はクッキーのトークンを検証するミドルウェアを返します。
func (m *Manager) RequireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(CookieName)
		if err != nil || token == "" {
			AbortUnauthorized(c)
			return
		}

		claims, err := m.Verify(c.Request.Context(), token)
		if err != nil {
			m.logger.Printf("token rejected: %v", err)
			AbortUnauthorized(c)
			return
		}

		c.Set(ContextIdentityKey, claims.Identity())
		c.Next()
	}
}

// EmailSource は呼び出し側が名乗るメールアドレスをリクエストから取り出します。
type EmailSource func(c *gin.Context) string

// QueryEmail は ?email= の値を返します。
func QueryEmail(c *gin.Context) string {
	return c.Query("email")
}

// RequireEmailMatch はトークンのメールと呼び出し側のメールが一致しなければ 403 を返します。
// RequireToken の後に置く必要があります。
func RequireEmailMatch(source EmailSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		if !ok {
			AbortUnauthorized(c)
			return
		}
		if !identity.Matches(source(c)) {
			AbortForbidden(c)
			return
		}
		c.Next()
	}
}

// IdentityFrom は RequireToken が格納した Identity を返します。
func IdentityFrom(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(ContextIdentityKey)
	if !ok {
		return Identity{}, false
	}
	identity, ok := v.(Identity)
	return identity, ok
}

// AbortUnauthorized は固定メッセージの 401 で処理を打ち切ります。
func AbortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": unauthorizedMessage})
}

// AbortForbidden は固定メッセージの 403 で処理を打ち切ります。
func AbortForbidden(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": forbiddenMessage})
}

package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// IssueToken は POST /jwt のハンドラーです。
func (m *Manager) IssueToken(c *gin.Context) {
	var identity Identity
	if err := c.ShouldBindJSON(&identity); err != nil || identity.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_INPUT",
			"message": "email を含む JSON を送ってください",
		})
		return
	}

	token, _, err := m.Issue(identity)
	if err != nil {
		m.logger.Printf("token issue failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "TOKEN_GENERATION_FAILED",
			"message": "トークンの生成に失敗しました",
		})
		return
	}

	m.setTokenCookie(c, token, int(m.ttl.Seconds()))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Logout は POST /logout のハンドラーです。
// 本文は記録のためだけに読み、内容が無くても失敗にはしません。
func (m *Manager) Logout(c *gin.Context) {
	var user map[string]any
	_ = c.ShouldBindJSON(&user)
	m.logger.Printf("logging out user: %v", user)

	if token, err := c.Cookie(CookieName); err == nil && token != "" {
		if claims, err := m.Verify(c.Request.Context(), token); err == nil {
			if err := m.Revoke(c.Request.Context(), claims); err != nil {
				m.logger.Printf("token revoke failed jti=%s: %v", claims.ID, err)
			}
		}
	}

	m.setTokenCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// setTokenCookie はクロスサイトで送られる HttpOnly/Secure クッキーを設定します。
// maxAge が負ならクッキーは即時に削除されます（Max-Age=0）。
func (m *Manager) setTokenCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(CookieName, value, maxAge, "/", "", true, true)
}

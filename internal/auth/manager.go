// Package auth はトークンの発行・検証と、それを使うアクセス制御ミドルウェアを提供します。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/yourusername/wisdom-library/internal/config"
)

const (
	// CookieName はトークンを運ぶクッキー名です。
	CookieName = "token"

	// ContextIdentityKey は検証済み Identity を gin.Context に格納するキーです。
	ContextIdentityKey = "auth.identity"

	unauthorizedMessage = "Unauthorized Access"
	forbiddenMessage    = "forbidden Access"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrUnauthorized はトークンが無い・壊れている・期限切れ・失効済みの場合に返されます。
var ErrUnauthorized = errors.New("unauthorized")

// Identity はトークンから復元される利用者情報です。
// POST /jwt で送られた email 以外のフィールドは Extra に入り、そのままトークンに署名されます。
type Identity struct {
	Email string         `json:"email"`
	Extra map[string]any `json:"-"`
}

// UnmarshalJSON は email 以外のフィールドを Extra に振り分けます。
func (i *Identity) UnmarshalJSON(data []byte) error {
	var fields map[string]any
	if err := codec.Unmarshal(data, &fields); err != nil {
		return err
	}
	email, _ := fields["email"].(string)
	delete(fields, "email")
	*i = Identity{Email: email}
	if len(fields) > 0 {
		i.Extra = fields
	}
	return nil
}

// Matches は呼び出し側が名乗ったメールがトークンのものと一致するかを返します。
func (i Identity) Matches(email string) bool {
	return email != "" && email == i.Email
}

// Claims はトークンに埋め込む内容です。Extra は登録済みクレームと同じ階層に並びます。
type Claims struct {
	Email string         `json:"email"`
	Extra map[string]any `json:"-"`
	jwt.RegisteredClaims
}

// 利用者の値で上書きさせないキー
var reservedClaims = []string{"email", "iss", "sub", "aud", "exp", "nbf", "iat", "jti"}

// Identity は Claims から Identity を取り出します。
func (c *Claims) Identity() Identity {
	return Identity{Email: c.Email, Extra: c.Extra}
}

// MarshalJSON は Extra を登録済みクレームと同じオブジェクトに並べます。
func (c Claims) MarshalJSON() ([]byte, error) {
	type plain Claims
	raw, err := codec.Marshal(plain(c))
	if err != nil || len(c.Extra) == 0 {
		return raw, err
	}
	var known map[string]any
	if err := codec.Unmarshal(raw, &known); err != nil {
		return nil, err
	}
	merged := make(map[string]any, len(c.Extra)+len(known))
	for k, v := range c.Extra {
		merged[k] = v
	}
	for k, v := range known {
		merged[k] = v
	}
	return codec.Marshal(merged)
}

// UnmarshalJSON は予約済み以外のクレームを Extra に振り分けます。
func (c *Claims) UnmarshalJSON(data []byte) error {
	type plain Claims
	var p plain
	if err := codec.Unmarshal(data, &p); err != nil {
		return err
	}
	var fields map[string]any
	if err := codec.Unmarshal(data, &fields); err != nil {
		return err
	}
	for _, k := range reservedClaims {
		delete(fields, k)
	}
	*c = Claims(p)
	c.Extra = nil
	if len(fields) > 0 {
		c.Extra = fields
	}
	return nil
}

// Revoker はログアウト済みトークンを記録します。
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Manager はトークンの発行と検証をまとめた構造体です。
type Manager struct {
	secret  []byte
	ttl     time.Duration
	revoker Revoker
	logger  *log.Logger
	now     func() time.Time
}

// NewManager は認証マネージャーを作成します。revoker は nil でも構いません。
func NewManager(cfg *config.Config, revoker Revoker, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		secret:  []byte(cfg.AccessTokenSecret),
		ttl:     time.Duration(cfg.TokenTTLMinutes) * time.Minute,
		revoker: revoker,
		logger:  logger,
		now:     time.Now,
	}
}

// TTL はトークンとクッキーの有効期間を返します。
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue は Identity を埋め込んだ署名付きトークンを発行します。
func (m *Manager) Issue(identity Identity) (string, *Claims, error) {
	now := m.now()
	claims := &Claims{
		Email: identity.Email,
		Extra: withoutReserved(identity.Extra),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return token, claims, nil
}

// Verify はトークンを検証し Claims を返します。
// 失敗した場合は常に ErrUnauthorized をラップしたエラーを返します。
func (m *Manager) Verify(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	claims, err := m.parse(token)
	if err != nil {
		return nil, err
	}

	if m.revoker != nil && claims.ID != "" {
		revoked, err := m.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: revocation lookup failed: %v", ErrUnauthorized, err)
		}
		if revoked {
			return nil, fmt.Errorf("%w: token revoked", ErrUnauthorized)
		}
	}
	return claims, nil
}

// Revoke はトークンを失効させます。失効リストが無い場合は何もしません。
func (m *Manager) Revoke(ctx context.Context, claims *Claims) error {
	if m.revoker == nil || claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	return m.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

func (m *Manager) parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if !parsed.Valid {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

func withoutReserved(extra map[string]any) map[string]any {
	if len(extra) == 0 {
		return nil
	}
	out := make(map[string]any, len(extra))
	for k, v := range extra {
		out[k] = v
	}
	for _, k := range reservedClaims {
		delete(out, k)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ストアドライバーの種類
const (
	StoreDriverMongo    = "mongo"
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

const defaultCORSAllowedOrigins = "http://localhost:5173,https://wisdom-cca7e.web.app,https://wisdom-cca7e.firebaseapp.com"

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port    string // APIサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// トークン設定
	AccessTokenSecret string // JWT署名用の秘密鍵（デフォルトなし）
	TokenTTLMinutes   int    // トークンとクッキーの有効期限（分）

	// ストア設定
	StoreDriver  string // mongo / postgres / sqlite
	DBUser       string // MongoDB ユーザー名
	DBPass       string // MongoDB パスワード
	DBHost       string // MongoDB クラスタのホスト名
	DBName       string // データベース名
	MongoURI     string // 接続URIを直接指定する場合に使用
	DatabaseURL  string // postgres の DSN または sqlite のファイルパス
	RedisURL     string // トークン失効リスト用（任意）
	HardenRoutes bool   // 本人確認をすべての利用者系ルートに適用するか
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	loadEnvFile()

	config := &Config{
		Port:    getEnv("PORT", "5000"),
		GinMode: getEnv("GIN_MODE", "debug"),

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", defaultCORSAllowedOrigins),

		AccessTokenSecret: getEnv("ACCESS_TOKEN_SECRET", ""),
		TokenTTLMinutes:   getEnvAsInt("TOKEN_TTL_MINUTES", 60),

		StoreDriver:  strings.ToLower(getEnv("STORE_DRIVER", StoreDriverMongo)),
		DBUser:       getEnv("DB_USER", ""),
		DBPass:       getEnv("DB_PASS", ""),
		DBHost:       getEnv("DB_HOST", "cluster0.f46fr3f.mongodb.net"),
		DBName:       getEnv("DB_NAME", "wisdomDB"),
		MongoURI:     getEnv("MONGODB_URI", ""),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		RedisURL:     getEnv("REDIS_URL", ""),
		HardenRoutes: getEnvAsBool("HARDEN_IDENTITY_ROUTES", false),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
// 秘密情報にはデフォルト値を持たせないため、モードに関係なく必須です。
func (c *Config) Validate() error {
	if c.AccessTokenSecret == "" {
		return fmt.Errorf("ACCESS_TOKEN_SECRET is required")
	}
	if c.TokenTTLMinutes <= 0 {
		return fmt.Errorf("TOKEN_TTL_MINUTES must be positive")
	}

	switch c.StoreDriver {
	case StoreDriverMongo:
		if c.MongoURI == "" && (c.DBUser == "" || c.DBPass == "") {
			return fmt.Errorf("DB_USER and DB_PASS are required for the mongo store (or set MONGODB_URI)")
		}
	case StoreDriverPostgres, StoreDriverSQLite:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s store", c.StoreDriver)
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER: %q", c.StoreDriver)
	}

	return nil
}

// AllowedOrigins は CORS 許可オリジンを配列で返します。
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool は環境変数を真偽値として取得します。
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/wisdom-library/internal/auth"
	"github.com/yourusername/wisdom-library/internal/config"
	"github.com/yourusername/wisdom-library/internal/library"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	logger := log.Default()

	// ストアと失効リストの準備
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	deps, err := setupDependencies(ctx, cfg, logger)
	cancel()
	if err != nil {
		log.Fatalf("Failed to initialize dependencies: %v", err)
	}
	defer deps.Close()

	router := newRouter(cfg, deps, logger)

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Printf("Starting API server on %s (mode: %s, store: %s)", addr, cfg.GinMode, cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down API server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
}

// newRouter はミドルウェアとルートを組み立てた Gin エンジンを返します。
func newRouter(cfg *config.Config, deps *dependencies, logger *log.Logger) *gin.Engine {
	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()

	// CORSミドルウェアの設定（クッキーを送れるよう credentials を許可）
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowedOrigins()
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
	}
	corsConfig.ExposeHeaders = []string{"X-Request-Id"}
	router.Use(cors.New(corsConfig))

	setupRoutes(router, cfg, deps, logger)
	return router
}

// setupRoutes は公開ルートと認証付きルートの配線を行います。
func setupRoutes(router *gin.Engine, cfg *config.Config, deps *dependencies, logger *log.Logger) {
	store := deps.service.Store()
	authManager := deps.authManager

	router.GET("/", library.RootHandler)
	router.GET("/health", library.HealthHandler(store))

	// トークンの発行と破棄
	router.POST("/jwt", authManager.IssueToken)
	router.POST("/logout", authManager.Logout)

	// 蔵書一覧と追加はトークンと ?email の一致が必要
	ownerOnly := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		return []gin.HandlerFunc{
			auth.RequestLogger(logger),
			authManager.RequireToken(),
			auth.RequireEmailMatch(auth.QueryEmail),
			handler,
		}
	}
	router.GET("/all-books", ownerOnly(library.AllBooksHandler(store))...)
	router.POST("/all-books", ownerOnly(library.AddBookHandler(store))...)

	router.PUT("/all-books/:id", library.AdjustQuantityHandler(deps.service))
	router.GET("/update-books/:id", library.GetBookHandler(store))
	router.PUT("/update-books/:id", library.UpdateBookHandler(store))
	router.GET("/book-details/:id", library.GetBookHandler(store))
	router.GET("/books-category/:category", library.BooksByCategoryHandler(store))

	if !cfg.HardenRoutes {
		router.POST("/borrow-book", library.BorrowHandler(deps.service, false))
		router.GET("/borrowed-books", library.BorrowedBooksHandler(store))
		router.DELETE("/borrowed-books", library.DeleteBorrowedHandler(store, false))
		return
	}

	// HARDEN_IDENTITY_ROUTES=true のときは貸出系もトークン必須にする
	logger.Println("identity hardening enabled for borrow routes")
	router.POST("/borrow-book",
		authManager.RequireToken(),
		library.BorrowHandler(deps.service, true),
	)
	router.GET("/borrowed-books", ownerOnly(library.BorrowedBooksHandler(store))...)
	router.DELETE("/borrowed-books", ownerOnly(library.DeleteBorrowedHandler(store, true))...)
}

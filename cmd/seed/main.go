// Package main は蔵書を JSON ファイルから一括登録するコマンドです。
//
//	seed books.json
//	seed --dry-run books.json
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/yourusername/wisdom-library/internal/config"
	"github.com/yourusername/wisdom-library/internal/library"
	"github.com/yourusername/wisdom-library/internal/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		dryRun  bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "seed <books.json>",
		Short: "Import a JSON array of books into the configured store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			books, err := readBooksFile(args[0])
			if err != nil {
				return err
			}
			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "%d books parsed (dry run)\n", len(books))
				return nil
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			store, err := storage.Open(ctx, cfg, log.Default())
			if err != nil {
				return err
			}
			defer closeStore(store)

			count, err := importBooks(ctx, store, books, cmd.OutOrStdout())
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d/%d books\n", count, len(books))
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse the file without writing to the store")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall deadline for the import")
	return cmd
}

// closeStore はストアを閉じ、失敗したらログに残します。
func closeStore(store library.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Close(ctx); err != nil {
		log.Printf("failed to close store: %v", err)
	}
}

func readBooksFile(path string) ([]library.Book, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return decodeBooks(f)
}

func decodeBooks(r io.Reader) ([]library.Book, error) {
	var books []library.Book
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.NewDecoder(r).Decode(&books); err != nil {
		return nil, fmt.Errorf("decode books: %w", err)
	}
	return books, nil
}

// importBooks は本を順に登録します。最初のエラーで止まり、それまでの件数を返します。
func importBooks(ctx context.Context, store library.Store, books []library.Book, out io.Writer) (int, error) {
	for i := range books {
		book := books[i]
		// ID はストアが採番する
		book.ID = ""
		res, err := store.InsertBook(ctx, &book)
		if err != nil {
			return i, fmt.Errorf("insert %q: %w", book.BookName, err)
		}
		fmt.Fprintf(out, "Importing: %s by %s... %s\n", book.BookName, book.Author, res.InsertedID)
	}
	return len(books), nil
}

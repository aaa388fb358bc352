package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/yourusername/lihee-search/pkg/catalog"
	"github.com/yourusername/lihee-search/pkg/index"
	"github.com/yourusername/lihee-search/pkg/provider"
)

const indexBatchSize = 500

func newIndexCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "index <file>",
		Short: "Load newline-delimited JSON books into the local index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			m, err := index.NewManager(path)
			if err != nil {
				return err
			}
			defer m.Close()

			n, err := loadBooks(m, f)
			if err != nil {
				return err
			}
			total, err := m.Count()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d books (%d in index)\n", n, total)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "lihee.bleve", "index directory")
	return cmd
}

func loadBooks(m *index.Manager, f *os.File) (int, error) {
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		batch []index.Document
		total int
		line  int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := m.IndexBooks(batch); err != nil {
			return err
		}
		total += len(batch)
		slog.Info("indexed batch", "size", len(batch), "total", total)
		batch = batch[:0]
		return nil
	}

	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var b catalog.Book
		if err := json.Unmarshal(sc.Bytes(), &b); err != nil {
			return total, fmt.Errorf("line %d: %w", line, err)
		}
		if b.ID == "" {
			return total, fmt.Errorf("line %d: book has no id", line)
		}
		batch = append(batch, provider.BookToDocument(b))
		if len(batch) == indexBatchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return total, err
	}
	return total, flush()
}

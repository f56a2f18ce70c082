package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/balakganesh2k3/gitRAG/internal/app"
	"github.com/balakganesh2k3/gitRAG/internal/config"
	"github.com/balakganesh2k3/gitRAG/internal/domain"
	"github.com/balakganesh2k3/gitRAG/internal/ingest"
	"github.com/balakganesh2k3/gitRAG/internal/log"
)

// maxIngestFileSize caps individual files read from disk.
const maxIngestFileSize = 8 << 20

var ingestCmd = &cobra.Command{
	Use:   "ingest <repository-id> <path>...",
	Short: "Chunk, embed, and store documents for a repository",
	Long: `Reads the given files or directories, classifies each file by
extension, and runs the full ingestion pipeline. The repository must
already be registered.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd.Context(), args[0], args[1:])
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(parent context.Context, rawID string, paths []string) error {
	repoID, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("repository id must be a UUID: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{Level: slog.LevelInfo})

	a, err := app.Setup(parent, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	docs, err := collectDocuments(paths)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no readable documents under %v", paths)
	}

	if err := a.Ingest.Ingest(parent, repoID, docs); err != nil {
		return fmt.Errorf("ingesting documents: %w", err)
	}

	logger.Info("ingestion finished", "repository_id", repoID, "documents", len(docs))
	return nil
}

// collectDocuments walks paths and reads every regular file into a
// Document. Hidden directories (including .git) are skipped.
func collectDocuments(paths []string) ([]ingest.Document, error) {
	var docs []ingest.Document

	for _, root := range paths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			name := d.Name()
			if d.IsDir() {
				if strings.HasPrefix(name, ".") && path != root {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasPrefix(name, ".") {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return err
			}
			if info.Size() > maxIngestFileSize {
				return nil
			}

			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}

			rel, err := filepath.Rel(root, path)
			if err != nil || rel == "." {
				rel = name
			}

			docs = append(docs, ingest.Document{
				FileName: filepath.ToSlash(rel),
				Class:    classify(name),
				Content:  string(content),
			})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
	}
	return docs, nil
}

// classify maps a file name to its content class by extension.
func classify(name string) domain.ContentClass {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown", ".rst", ".txt", ".adoc":
		return domain.ClassDocs
	default:
		return domain.ClassCode
	}
}

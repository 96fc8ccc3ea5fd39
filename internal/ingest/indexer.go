package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog/log"

	"github.com/coursepilot/coursepilot/internal/store"
)

// FileSystemWalker defines the interface for walking directories
type FileSystemWalker interface {
	Walk(root string, options *godirwalk.Options) error
}

// FileReader defines the interface for reading files
type FileReader interface {
	ReadFile(filename string) ([]byte, error)
}

// DefaultFileSystemWalker implements FileSystemWalker using godirwalk
type DefaultFileSystemWalker struct{}

func (d *DefaultFileSystemWalker) Walk(root string, options *godirwalk.Options) error {
	return godirwalk.Walk(root, options)
}

// DefaultFileReader implements FileReader using os
type DefaultFileReader struct{}

func (d *DefaultFileReader) ReadFile(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

// Indexer walks a docs folder and loads each course document into the
// store. One file is one course; already-indexed courses are skipped
// unless Rebuild is set.
type Indexer struct {
	Store      store.IndexStore
	DocsRoot   string
	Processor  *Processor
	Rebuild    bool
	Walker     FileSystemWalker
	FileReader FileReader
}

// New creates a new Indexer instance.
func New(s store.IndexStore, docsRoot string, proc *Processor) *Indexer {
	return &Indexer{
		Store:      s,
		DocsRoot:   docsRoot,
		Processor:  proc,
		Walker:     &DefaultFileSystemWalker{},
		FileReader: &DefaultFileReader{},
	}
}

// Run indexes every course document under DocsRoot.
func (ix *Indexer) Run(ctx context.Context) error {
	if ix.Rebuild {
		log.Info().Msg("rebuild requested, clearing existing data")
		if err := ix.Store.ClearAll(ctx); err != nil {
			return err
		}
	}

	titles, err := ix.Store.CourseTitles(ctx)
	if err != nil {
		return err
	}
	existing := make(map[string]bool, len(titles))
	for _, t := range titles {
		existing[t] = true
	}

	var indexed, skipped int
	walkErr := ix.Walker.Walk(ix.DocsRoot, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de != nil && de.IsDir() {
				return nil
			}
			if !isCourseDocument(path) {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			b, err := ix.FileReader.ReadFile(path)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("failed to read file")
				return nil
			}

			name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			course, chunks, err := ix.Processor.Process(name, string(b))
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("failed to parse course document")
				return nil
			}
			if existing[course.Title] {
				log.Debug().Str("course", course.Title).Msg("course already indexed, skipping")
				skipped++
				return nil
			}

			if err := ix.Store.AddCourse(ctx, course); err != nil {
				log.Error().Err(err).Str("course", course.Title).Msg("failed to add course")
				return nil
			}
			if err := ix.Store.AddChunks(ctx, chunks); err != nil {
				log.Error().Err(err).Str("course", course.Title).Msg("failed to add chunks")
				return nil
			}
			existing[course.Title] = true
			indexed++
			log.Info().Str("course", course.Title).Int("lessons", len(course.Lessons)).
				Int("chunks", len(chunks)).Msg("indexed course")
			return nil
		},
	})

	log.Info().Int("indexed", indexed).Int("skipped", skipped).Msg("ingestion complete")
	return walkErr
}

// isCourseDocument returns true for file types the processor handles.
func isCourseDocument(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return true
	}
	return false
}

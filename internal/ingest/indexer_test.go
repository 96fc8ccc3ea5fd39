package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog"

	"github.com/coursepilot/coursepilot/pkg/models"
)

func init() {
	// Suppress logs during testing
	zerolog.SetGlobalLevel(zerolog.Disabled)
}

// MockIndexStore implements store.IndexStore for testing
type MockIndexStore struct {
	CourseTitlesFunc func(ctx context.Context) ([]string, error)
	AddCourseFunc    func(ctx context.Context, c models.Course) error
	AddChunksFunc    func(ctx context.Context, chunks []models.Chunk) error
	ClearAllFunc     func(ctx context.Context) error

	AddedCourses []models.Course
	AddedChunks  [][]models.Chunk
	Cleared      bool
}

func (m *MockIndexStore) CourseTitles(ctx context.Context) ([]string, error) {
	if m.CourseTitlesFunc != nil {
		return m.CourseTitlesFunc(ctx)
	}
	return nil, nil
}

func (m *MockIndexStore) AddCourse(ctx context.Context, c models.Course) error {
	m.AddedCourses = append(m.AddedCourses, c)
	if m.AddCourseFunc != nil {
		return m.AddCourseFunc(ctx, c)
	}
	return nil
}

func (m *MockIndexStore) AddChunks(ctx context.Context, chunks []models.Chunk) error {
	m.AddedChunks = append(m.AddedChunks, chunks)
	if m.AddChunksFunc != nil {
		return m.AddChunksFunc(ctx, chunks)
	}
	return nil
}

func (m *MockIndexStore) ClearAll(ctx context.Context) error {
	m.Cleared = true
	if m.ClearAllFunc != nil {
		return m.ClearAllFunc(ctx)
	}
	return nil
}

// MockWalker feeds a fixed path list through the indexer's callback
type MockWalker struct {
	Paths     []string
	WalkError error
}

func (m *MockWalker) Walk(root string, options *godirwalk.Options) error {
	if m.WalkError != nil {
		return m.WalkError
	}
	for _, p := range m.Paths {
		if err := options.Callback(p, nil); err != nil {
			return err
		}
	}
	return nil
}

// MockReader serves file contents from a map
type MockReader struct {
	Files map[string]string
}

func (m *MockReader) ReadFile(filename string) ([]byte, error) {
	content, ok := m.Files[filename]
	if !ok {
		return nil, errors.New("file not found: " + filename)
	}
	return []byte(content), nil
}

func newTestIndexer(t *testing.T, store *MockIndexStore, paths []string, files map[string]string) *Indexer {
	t.Helper()
	proc, err := NewProcessor(800, 100)
	if err != nil {
		t.Fatalf("NewProcessor failed: %v", err)
	}
	ix := New(store, "/docs", proc)
	ix.Walker = &MockWalker{Paths: paths}
	ix.FileReader = &MockReader{Files: files}
	return ix
}

func TestIndexer_IndexesCourseDocuments(t *testing.T) {
	store := &MockIndexStore{}
	ix := newTestIndexer(t, store,
		[]string{"/docs/intro.txt", "/docs/notes.pdf", "/docs/advanced.md"},
		map[string]string{
			"/docs/intro.txt":   "Course Title: Intro\n\nLesson 1: Start\nSome content here.",
			"/docs/advanced.md": "Course Title: Advanced\n\nLesson 1: Deep Dive\nMore content here.",
			"/docs/notes.pdf":   "binary junk",
		},
	)

	if err := ix.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(store.AddedCourses) != 2 {
		t.Fatalf("Expected 2 courses indexed, got %d", len(store.AddedCourses))
	}
	if store.AddedCourses[0].Title != "Intro" || store.AddedCourses[1].Title != "Advanced" {
		t.Errorf("Unexpected course titles: %q, %q", store.AddedCourses[0].Title, store.AddedCourses[1].Title)
	}
	if len(store.AddedChunks) != 2 {
		t.Errorf("Expected chunks for 2 courses, got %d", len(store.AddedChunks))
	}
	if store.Cleared {
		t.Error("Expected no clear without rebuild")
	}
}

func TestIndexer_SkipsExistingCourses(t *testing.T) {
	store := &MockIndexStore{
		CourseTitlesFunc: func(ctx context.Context) ([]string, error) {
			return []string{"Intro"}, nil
		},
	}
	ix := newTestIndexer(t, store,
		[]string{"/docs/intro.txt"},
		map[string]string{"/docs/intro.txt": "Course Title: Intro\n\nLesson 1: Start\nContent."},
	)

	if err := ix.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(store.AddedCourses) != 0 {
		t.Errorf("Expected existing course to be skipped, got %d additions", len(store.AddedCourses))
	}
}

func TestIndexer_RebuildClearsFirst(t *testing.T) {
	store := &MockIndexStore{
		CourseTitlesFunc: func(ctx context.Context) ([]string, error) {
			// After a clear nothing is indexed
			return nil, nil
		},
	}
	ix := newTestIndexer(t, store,
		[]string{"/docs/intro.txt"},
		map[string]string{"/docs/intro.txt": "Course Title: Intro\n\nLesson 1: Start\nContent."},
	)
	ix.Rebuild = true

	if err := ix.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !store.Cleared {
		t.Error("Expected rebuild to clear existing data")
	}
	if len(store.AddedCourses) != 1 {
		t.Errorf("Expected course re-indexed after clear, got %d", len(store.AddedCourses))
	}
}

func TestIndexer_UnreadableFileSkipped(t *testing.T) {
	store := &MockIndexStore{}
	ix := newTestIndexer(t, store,
		[]string{"/docs/missing.txt", "/docs/intro.txt"},
		map[string]string{"/docs/intro.txt": "Course Title: Intro\n\nLesson 1: Start\nContent."},
	)

	if err := ix.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(store.AddedCourses) != 1 {
		t.Errorf("Expected the readable course indexed, got %d", len(store.AddedCourses))
	}
}

func TestIndexer_StoreErrorDoesNotAbortWalk(t *testing.T) {
	store := &MockIndexStore{
		AddCourseFunc: func(ctx context.Context, c models.Course) error {
			if c.Title == "Intro" {
				return errors.New("insert failed")
			}
			return nil
		},
	}
	ix := newTestIndexer(t, store,
		[]string{"/docs/intro.txt", "/docs/advanced.md"},
		map[string]string{
			"/docs/intro.txt":   "Course Title: Intro\n\nLesson 1: Start\nContent.",
			"/docs/advanced.md": "Course Title: Advanced\n\nLesson 1: Deep Dive\nContent.",
		},
	)

	if err := ix.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// Intro failed at AddCourse, so only Advanced got chunks
	if len(store.AddedChunks) != 1 {
		t.Errorf("Expected chunks only for the successful course, got %d", len(store.AddedChunks))
	}
}

func TestIndexer_CancelledContext(t *testing.T) {
	store := &MockIndexStore{}
	ix := newTestIndexer(t, store,
		[]string{"/docs/intro.txt"},
		map[string]string{"/docs/intro.txt": "Course Title: Intro\n\nLesson 1: Start\nContent."},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ix.Run(ctx); err == nil {
		t.Error("Expected error from cancelled context")
	}
	if len(store.AddedCourses) != 0 {
		t.Errorf("Expected no courses indexed after cancellation, got %d", len(store.AddedCourses))
	}
}

func TestIsCourseDocument(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/docs/course.txt", true},
		{"/docs/course.md", true},
		{"/docs/course.TXT", true},
		{"/docs/course.pdf", false},
		{"/docs/course", false},
	}
	for _, tt := range tests {
		if got := isCourseDocument(tt.path); got != tt.want {
			t.Errorf("isCourseDocument(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

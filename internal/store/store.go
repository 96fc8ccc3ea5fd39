package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"

	"github.com/coursepilot/coursepilot/pkg/models"
)

// Embedder turns text into a vector. Satisfied by ai.Client.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CourseStore defines the retrieval surface the search tools consume.
type CourseStore interface {
	Search(ctx context.Context, query string, opts SearchOptions) SearchResults
	ResolveCourseName(ctx context.Context, name string) (string, error)
	GetCourse(ctx context.Context, title string) (models.Course, error)
	GetLessonLink(ctx context.Context, courseTitle string, lessonNumber int) (string, error)
}

// IndexStore defines the ingestion surface the indexer consumes.
type IndexStore interface {
	CourseTitles(ctx context.Context) ([]string, error)
	AddCourse(ctx context.Context, c models.Course) error
	AddChunks(ctx context.Context, chunks []models.Chunk) error
	ClearAll(ctx context.Context) error
}

// SearchOptions narrows a content search. CourseName may be a fuzzy,
// user-typed name; it is resolved to a canonical title before filtering.
// LessonNumber and Limit distinguish "absent" (nil) from an explicit
// zero, which is honored literally.
type SearchOptions struct {
	CourseName   string
	LessonNumber *int
	Limit        *int
}

// ChunkMeta is the metadata carried alongside each matched document.
type ChunkMeta struct {
	CourseTitle  string
	LessonNumber *int
}

// SearchResults is the adapter's response to one query. Documents,
// Metadata and Distances are parallel slices of equal length. Error is
// set instead of returning a Go error so callers can surface retrieval
// failures as tool output.
type SearchResults struct {
	Documents []string
	Metadata  []ChunkMeta
	Distances []float64
	Error     string
}

// IsEmpty reports whether the search matched nothing.
func (r SearchResults) IsEmpty() bool {
	return len(r.Documents) == 0
}

// Store is a pgvector-backed index over course chunks plus a catalog of
// course metadata used for name resolution and outline assembly.
type Store struct {
	pool       *pgxpool.Pool
	embedder   Embedder
	maxResults int
	log        zerolog.Logger
}

// New creates a Store. maxResults is the default result count for
// searches without an explicit limit; non-positive values are a
// configuration error, caught here rather than surfacing later as
// silently empty result sets.
func New(ctx context.Context, url string, embedder Embedder, maxResults int, log zerolog.Logger) (*Store, error) {
	if maxResults <= 0 {
		return nil, fmt.Errorf("max results must be positive, got %d", maxResults)
	}
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{pool: p, embedder: embedder, maxResults: maxResults, log: log}, nil
}

func (s *Store) Close() { s.pool.Close() }

// Ping checks the database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

// Migrate applies the schema. dim is the embedding dimensionality.
func (s *Store) Migrate(ctx context.Context, dim int) error {
	q := `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS courses (
  title      TEXT PRIMARY KEY,
  link       TEXT NOT NULL DEFAULT '',
  instructor TEXT NOT NULL DEFAULT '',
  lessons    JSONB NOT NULL DEFAULT '[]',
  title_vec  vector(%d),
  created_at TIMESTAMP WITH TIME ZONE DEFAULT now()
);

CREATE TABLE IF NOT EXISTS chunks (
  id            TEXT PRIMARY KEY,
  course_title  TEXT NOT NULL REFERENCES courses(title) ON DELETE CASCADE,
  lesson_number INT,
  chunk_index   INT NOT NULL,
  content       TEXT NOT NULL,
  content_vec   vector(%d),
  created_at    TIMESTAMP WITH TIME ZONE DEFAULT now()
);

CREATE INDEX IF NOT EXISTS chunks_course_title_idx
  ON chunks (course_title);

CREATE INDEX IF NOT EXISTS chunks_content_vec_idx
  ON chunks USING ivfflat (content_vec vector_cosine_ops) WITH (lists = 100);
`
	_, err := s.pool.Exec(ctx, fmt.Sprintf(q, dim, dim))
	return err
}

// limit returns the result count to request: an explicit override wins,
// including an explicit zero, otherwise the configured default.
func (s *Store) limit(opts SearchOptions) int {
	if opts.Limit != nil {
		return *opts.Limit
	}
	return s.maxResults
}

// Search runs a semantic search over chunk content. A supplied course
// name is resolved to a canonical title first; both filters combine with
// AND. Failures of any kind come back in the Error field, never as a
// panic or Go error.
func (s *Store) Search(ctx context.Context, query string, opts SearchOptions) SearchResults {
	courseTitle := ""
	if opts.CourseName != "" {
		title, err := s.ResolveCourseName(ctx, opts.CourseName)
		if err != nil {
			s.log.Error().Err(err).Str("course_name", opts.CourseName).Msg("course name resolution failed")
			return SearchResults{Error: fmt.Sprintf("Search error: %v", err)}
		}
		if title == "" {
			return SearchResults{Error: fmt.Sprintf("No course found matching '%s'", opts.CourseName)}
		}
		courseTitle = title
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.log.Error().Err(err).Msg("query embedding failed")
		return SearchResults{Error: fmt.Sprintf("Search error: %v", err)}
	}

	args := []any{pgvector.NewVector(vec)}
	where := "TRUE"
	ai := 2
	if courseTitle != "" {
		where += fmt.Sprintf(" AND course_title = $%d", ai)
		args = append(args, courseTitle)
		ai++
	}
	if opts.LessonNumber != nil {
		where += fmt.Sprintf(" AND lesson_number = $%d", ai)
		args = append(args, *opts.LessonNumber)
	}

	q := fmt.Sprintf(`
SELECT content, course_title, lesson_number, content_vec <=> $1 AS distance
FROM chunks
WHERE %s
ORDER BY distance
LIMIT %d;`, where, s.limit(opts))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		s.log.Error().Err(err).Msg("chunk search query failed")
		return SearchResults{Error: fmt.Sprintf("Search error: %v", err)}
	}
	defer rows.Close()

	var out SearchResults
	for rows.Next() {
		var doc, title string
		var lesson *int
		var dist float64
		if err := rows.Scan(&doc, &title, &lesson, &dist); err != nil {
			s.log.Error().Err(err).Msg("chunk row scan failed")
			return SearchResults{Error: fmt.Sprintf("Search error: %v", err)}
		}
		out.Documents = append(out.Documents, doc)
		out.Metadata = append(out.Metadata, ChunkMeta{CourseTitle: title, LessonNumber: lesson})
		out.Distances = append(out.Distances, dist)
	}
	if err := rows.Err(); err != nil {
		return SearchResults{Error: fmt.Sprintf("Search error: %v", err)}
	}
	return out
}

// ResolveCourseName maps a user-typed course name to the canonical
// catalog title. An exact match wins; otherwise the best single match by
// title-vector similarity is used. Returns "" when nothing resolves.
func (s *Store) ResolveCourseName(ctx context.Context, name string) (string, error) {
	var title string
	err := s.pool.QueryRow(ctx, `SELECT title FROM courses WHERE title = $1`, name).Scan(&title)
	if err == nil {
		return title, nil
	}
	if err != pgx.ErrNoRows {
		return "", fmt.Errorf("catalog lookup: %w", err)
	}

	vec, err := s.embedder.Embed(ctx, name)
	if err != nil {
		return "", fmt.Errorf("embed course name: %w", err)
	}
	err = s.pool.QueryRow(ctx, `
SELECT title FROM courses
WHERE title_vec IS NOT NULL
ORDER BY title_vec <=> $1
LIMIT 1`, pgvector.NewVector(vec)).Scan(&title)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("catalog similarity lookup: %w", err)
	}
	return title, nil
}

// GetCourse returns the full catalog record for a canonical title.
func (s *Store) GetCourse(ctx context.Context, title string) (models.Course, error) {
	var c models.Course
	var lessonsJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT title, link, instructor, lessons FROM courses WHERE title = $1`, title).
		Scan(&c.Title, &c.Link, &c.Instructor, &lessonsJSON)
	if err != nil {
		if err == pgx.ErrNoRows {
			return models.Course{}, fmt.Errorf("course not found: %s", title)
		}
		return models.Course{}, fmt.Errorf("course lookup: %w", err)
	}
	if err := json.Unmarshal(lessonsJSON, &c.Lessons); err != nil {
		return models.Course{}, fmt.Errorf("decode lessons for %s: %w", title, err)
	}
	return c, nil
}

// GetLessonLink returns the link for one lesson of a course, or "" when
// the lesson has no link.
func (s *Store) GetLessonLink(ctx context.Context, courseTitle string, lessonNumber int) (string, error) {
	c, err := s.GetCourse(ctx, courseTitle)
	if err != nil {
		return "", err
	}
	for _, l := range c.Lessons {
		if l.Number == lessonNumber {
			return l.Link, nil
		}
	}
	return "", nil
}

// AddCourse inserts or replaces a catalog record, embedding the title
// for fuzzy name resolution.
func (s *Store) AddCourse(ctx context.Context, c models.Course) error {
	lessonsJSON, err := json.Marshal(c.Lessons)
	if err != nil {
		return fmt.Errorf("encode lessons: %w", err)
	}
	var tv any
	if vec, err := s.embedder.Embed(ctx, c.Title); err != nil {
		s.log.Warn().Err(err).Str("course", c.Title).Msg("title embedding failed, fuzzy resolution disabled for course")
		tv = (*pgvector.Vector)(nil)
	} else {
		tv = pgvector.NewVector(vec)
	}

	const q = `
INSERT INTO courses (title, link, instructor, lessons, title_vec)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (title) DO UPDATE SET
  link       = EXCLUDED.link,
  instructor = EXCLUDED.instructor,
  lessons    = EXCLUDED.lessons,
  title_vec  = EXCLUDED.title_vec;`
	_, err = s.pool.Exec(ctx, q, c.Title, c.Link, c.Instructor, lessonsJSON, tv)
	return err
}

// AddChunks embeds and upserts content chunks.
func (s *Store) AddChunks(ctx context.Context, chunks []models.Chunk) error {
	for _, ch := range chunks {
		vec, err := s.embedder.Embed(ctx, ch.Content)
		if err != nil {
			return fmt.Errorf("embed chunk %s: %w", ch.ID, err)
		}
		const q = `
INSERT INTO chunks (id, course_title, lesson_number, chunk_index, content, content_vec)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
  lesson_number = EXCLUDED.lesson_number,
  chunk_index   = EXCLUDED.chunk_index,
  content       = EXCLUDED.content,
  content_vec   = EXCLUDED.content_vec;`
		if _, err := s.pool.Exec(ctx, q, ch.ID, ch.CourseTitle, ch.LessonNumber, ch.ChunkIndex, ch.Content, pgvector.NewVector(vec)); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", ch.ID, err)
		}
	}
	return nil
}

// CourseTitles returns all canonical titles in the catalog.
func (s *Store) CourseTitles(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT title FROM courses ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		titles = append(titles, t)
	}
	return titles, rows.Err()
}

// CourseCount returns the number of courses in the catalog.
func (s *Store) CourseCount(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM courses`).Scan(&n)
	return n, err
}

// ClearAll drops all indexed data. Used by the indexer's rebuild mode.
func (s *Store) ClearAll(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE chunks, courses`)
	return err
}

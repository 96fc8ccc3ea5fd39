package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/coursepilot/coursepilot/internal/store"
	"github.com/coursepilot/coursepilot/pkg/models"
)

// ContentSearchTool searches course content with fuzzy course-name
// matching and lesson filtering. It records one source citation per
// match; the citations belong to the most recent execution, so each
// in-flight query needs its own tool instance.
type ContentSearchTool struct {
	store   store.CourseStore
	log     zerolog.Logger
	sources []models.Source
}

func NewContentSearchTool(s store.CourseStore, log zerolog.Logger) *ContentSearchTool {
	return &ContentSearchTool{store: s, log: log}
}

func (t *ContentSearchTool) Schema() models.ToolSchema {
	return models.ToolSchema{
		Name:        "search_course_content",
		Description: "Search course materials with smart course name matching and lesson filtering",
		InputSchema: models.InputSchema{
			Type: "object",
			Properties: map[string]models.Property{
				"query": {
					Type:        "string",
					Description: "What to search for in the course content",
				},
				"course_name": {
					Type:        "string",
					Description: "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
				},
				"lesson_number": {
					Type:        "integer",
					Description: "Specific lesson number to search within (e.g. 1, 2, 3)",
				},
			},
			Required: []string{"query"},
		},
	}
}

func (t *ContentSearchTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	query := stringParam(params, "query")
	if query == "" {
		return "", fmt.Errorf("query parameter is required")
	}
	courseName := stringParam(params, "course_name")
	lessonNumber := intParam(params, "lesson_number")

	t.sources = nil

	results := t.store.Search(ctx, query, store.SearchOptions{
		CourseName:   courseName,
		LessonNumber: lessonNumber,
	})
	if results.Error != "" {
		return results.Error, nil
	}
	if results.IsEmpty() {
		var filters strings.Builder
		if courseName != "" {
			fmt.Fprintf(&filters, " in course '%s'", courseName)
		}
		if lessonNumber != nil {
			fmt.Fprintf(&filters, " in lesson %d", *lessonNumber)
		}
		return fmt.Sprintf("No relevant content found%s.", filters.String()), nil
	}

	return t.formatResults(ctx, results), nil
}

type match struct {
	doc  string
	meta store.ChunkMeta
}

// formatResults renders matches as [Course - Lesson N] headers followed
// by the chunk text, recording one citation per match.
func (t *ContentSearchTool) formatResults(ctx context.Context, results store.SearchResults) string {
	matches := make([]match, len(results.Documents))
	for i := range results.Documents {
		matches[i] = match{doc: results.Documents[i], meta: results.Metadata[i]}
	}

	// Lesson-less chunks sort first. Lesson numbers are never negative
	// (the ingester rejects them), so -1 cannot collide with real data.
	sort.SliceStable(matches, func(i, j int) bool {
		return lessonOrSentinel(matches[i].meta) < lessonOrSentinel(matches[j].meta)
	})

	var formatted []string
	var sources []models.Source
	for _, m := range matches {
		header := "[" + m.meta.CourseTitle
		text := m.meta.CourseTitle
		if m.meta.LessonNumber != nil {
			header += fmt.Sprintf(" - Lesson %d", *m.meta.LessonNumber)
			text += fmt.Sprintf(" - Lesson %d", *m.meta.LessonNumber)
		}
		header += "]"

		sources = append(sources, models.Source{
			Text: text,
			Link: t.lessonLink(ctx, m.meta),
		})
		formatted = append(formatted, header+"\n"+m.doc)
	}

	t.sources = sources
	return strings.Join(formatted, "\n\n")
}

// lessonLink is a best-effort catalog lookup; failure degrades to no
// link rather than failing the search.
func (t *ContentSearchTool) lessonLink(ctx context.Context, meta store.ChunkMeta) *string {
	if meta.LessonNumber == nil {
		return nil
	}
	link, err := t.store.GetLessonLink(ctx, meta.CourseTitle, *meta.LessonNumber)
	if err != nil {
		t.log.Warn().Err(err).Str("course", meta.CourseTitle).Int("lesson", *meta.LessonNumber).
			Msg("could not fetch lesson link")
		return nil
	}
	if link == "" {
		return nil
	}
	return &link
}

func lessonOrSentinel(meta store.ChunkMeta) int {
	if meta.LessonNumber == nil {
		return -1
	}
	return *meta.LessonNumber
}

func (t *ContentSearchTool) LastSources() []models.Source {
	return t.sources
}

func (t *ContentSearchTool) ResetSources() {
	t.sources = nil
}

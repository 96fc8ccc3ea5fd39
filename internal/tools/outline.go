package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/coursepilot/coursepilot/internal/store"
	"github.com/coursepilot/coursepilot/pkg/models"
)

// OutlineTool retrieves a complete course outline: title, link and the
// ordered lesson list.
type OutlineTool struct {
	store store.CourseStore
	log   zerolog.Logger
}

func NewOutlineTool(s store.CourseStore, log zerolog.Logger) *OutlineTool {
	return &OutlineTool{store: s, log: log}
}

func (t *OutlineTool) Schema() models.ToolSchema {
	return models.ToolSchema{
		Name: "get_course_outline",
		Description: "Get the complete course outline including course title, course link, and all lessons " +
			"with their numbers and titles. Use this when users ask about course structure, lesson list, " +
			"or what lessons are available in a course.",
		InputSchema: models.InputSchema{
			Type: "object",
			Properties: map[string]models.Property{
				"course_name": {
					Type:        "string",
					Description: "Course title or partial course name to get the outline for",
				},
			},
			Required: []string{"course_name"},
		},
	}
}

func (t *OutlineTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	courseName := stringParam(params, "course_name")
	if courseName == "" {
		return "", fmt.Errorf("course_name parameter is required")
	}

	title, err := t.store.ResolveCourseName(ctx, courseName)
	if err != nil {
		t.log.Error().Err(err).Str("course_name", courseName).Msg("outline name resolution failed")
		return fmt.Sprintf("Error retrieving course outline: %v", err), nil
	}
	if title == "" {
		return fmt.Sprintf("No course found matching '%s'", courseName), nil
	}

	course, err := t.store.GetCourse(ctx, title)
	if err != nil {
		t.log.Error().Err(err).Str("course", title).Msg("outline metadata lookup failed")
		return fmt.Sprintf("Error retrieving course outline: %v", err), nil
	}

	var out strings.Builder
	fmt.Fprintf(&out, "**Course:** %s\n", course.Title)
	link := course.Link
	if link == "" {
		link = "No link available"
	}
	fmt.Fprintf(&out, "**Course Link:** %s\n\n", link)
	out.WriteString("**Course Outline:**\n")
	for _, l := range course.Lessons {
		fmt.Fprintf(&out, "- Lesson %d: %s\n", l.Number, l.Title)
	}
	return out.String(), nil
}

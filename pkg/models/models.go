package models

// Lesson is one entry in a course's ordered lesson list.
type Lesson struct {
	Number int    `json:"lesson_number"`
	Title  string `json:"lesson_title"`
	Link   string `json:"lesson_link,omitempty"`
}

// Course is the catalog record for one course. Title is the canonical
// name and acts as the primary key.
type Course struct {
	Title      string   `json:"title"`
	Link       string   `json:"course_link,omitempty"`
	Instructor string   `json:"instructor,omitempty"`
	Lessons    []Lesson `json:"lessons"`
}

// Chunk is one unit of indexed course content. LessonNumber is nil for
// text that precedes the first lesson marker.
type Chunk struct {
	ID           string `json:"id"`
	CourseTitle  string `json:"course_title"`
	LessonNumber *int   `json:"lesson_number,omitempty"`
	ChunkIndex   int    `json:"chunk_index"`
	Content      string `json:"content"`
}

// Source is a display-ready citation for material that grounded part of
// an answer. Link is nil when no lesson link could be resolved.
type Source struct {
	Text string  `json:"text"`
	Link *string `json:"link"`
}

// ToolSchema describes a callable capability to the model.
type ToolSchema struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

// InputSchema is the JSON-schema object describing a tool's parameters.
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required"`
}

// Property describes a single named tool parameter.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

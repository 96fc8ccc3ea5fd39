// Package ingest parses course documents into catalog records and
// content chunks, and feeds them to the store.
package ingest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/coursepilot/coursepilot/pkg/models"
)

// Course documents start with a three-line header followed by lesson
// sections:
//
//	Course Title: <title>
//	Course Link: <url>
//	Course Instructor: <name>
//
//	Lesson 0: Introduction
//	Lesson Link: <url>
//	<content...>
var lessonMarker = regexp.MustCompile(`^Lesson (\d+):\s*(.*)$`)

// Processor splits course documents into overlapping, sentence-aligned
// chunks. Sizes are in characters.
type Processor struct {
	chunkSize    int
	chunkOverlap int
}

func NewProcessor(chunkSize, chunkOverlap int) (*Processor, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, chunk size), got %d", chunkOverlap)
	}
	return &Processor{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Process parses one course document. name is used as the fallback
// course title when the document carries no header. Lesson numbers are
// taken from `Lesson N:` markers and are therefore never negative,
// which keeps them clear of the missing-lesson sort sentinel.
func (p *Processor) Process(name, content string) (models.Course, []models.Chunk, error) {
	lines := strings.Split(content, "\n")

	course := models.Course{Title: name}
	idx := 0
header:
	for ; idx < len(lines) && idx < 4; idx++ {
		line := strings.TrimSpace(lines[idx])
		switch {
		case strings.HasPrefix(line, "Course Title:"):
			course.Title = strings.TrimSpace(strings.TrimPrefix(line, "Course Title:"))
		case strings.HasPrefix(line, "Course Link:"):
			course.Link = strings.TrimSpace(strings.TrimPrefix(line, "Course Link:"))
		case strings.HasPrefix(line, "Course Instructor:"):
			course.Instructor = strings.TrimSpace(strings.TrimPrefix(line, "Course Instructor:"))
		case line == "":
		default:
			break header
		}
	}
	if course.Title == "" {
		return models.Course{}, nil, fmt.Errorf("document %s has no course title", name)
	}

	var chunks []models.Chunk
	chunkIndex := 0
	addChunks := func(text string, lesson *int) {
		for _, piece := range p.chunkText(text) {
			prefix := fmt.Sprintf("Course %s content: ", course.Title)
			if lesson != nil {
				prefix = fmt.Sprintf("Course %s Lesson %d content: ", course.Title, *lesson)
			}
			chunks = append(chunks, models.Chunk{
				ID:           fmt.Sprintf("%s_%d", course.Title, chunkIndex),
				CourseTitle:  course.Title,
				LessonNumber: lesson,
				ChunkIndex:   chunkIndex,
				Content:      prefix + piece,
			})
			chunkIndex++
		}
	}

	var currentLesson *models.Lesson
	var buf []string
	flush := func() {
		text := strings.TrimSpace(strings.Join(buf, "\n"))
		buf = nil
		if text == "" {
			return
		}
		if currentLesson == nil {
			addChunks(text, nil)
			return
		}
		n := currentLesson.Number
		addChunks(text, &n)
	}

	for ; idx < len(lines); idx++ {
		line := strings.TrimSpace(lines[idx])
		if m := lessonMarker.FindStringSubmatch(line); m != nil {
			flush()
			if currentLesson != nil {
				course.Lessons = append(course.Lessons, *currentLesson)
			}
			num := 0
			fmt.Sscanf(m[1], "%d", &num)
			currentLesson = &models.Lesson{Number: num, Title: strings.TrimSpace(m[2])}
			continue
		}
		if currentLesson != nil && len(buf) == 0 && strings.HasPrefix(line, "Lesson Link:") {
			currentLesson.Link = strings.TrimSpace(strings.TrimPrefix(line, "Lesson Link:"))
			continue
		}
		buf = append(buf, lines[idx])
	}
	flush()
	if currentLesson != nil {
		course.Lessons = append(course.Lessons, *currentLesson)
	}

	return course, chunks, nil
}

// chunkText splits text into chunks of at most chunkSize characters on
// sentence boundaries, carrying roughly chunkOverlap characters of
// trailing sentences into the next chunk.
func (p *Processor) chunkText(text string) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	i := 0
	for i < len(sentences) {
		total := 0
		j := i
		for j < len(sentences) {
			add := len(sentences[j])
			if j > i {
				add++ // joining space
			}
			if total+add > p.chunkSize && j > i {
				break
			}
			total += add
			j++
		}
		chunks = append(chunks, strings.Join(sentences[i:j], " "))
		if j >= len(sentences) {
			break
		}

		// Step back over trailing sentences worth up to chunkOverlap
		// characters, always advancing by at least one sentence.
		next := j
		carried := 0
		for next > i+1 && carried+len(sentences[next-1]) <= p.chunkOverlap {
			carried += len(sentences[next-1]) + 1
			next--
		}
		i = next
	}
	return chunks
}

// splitSentences breaks text on terminal punctuation followed by
// whitespace. Whitespace runs collapse to single spaces.
func splitSentences(text string) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}

	var sentences []string
	start := 0
	for i := 0; i < len(text)-1; i++ {
		if (text[i] == '.' || text[i] == '!' || text[i] == '?') && text[i+1] == ' ' {
			sentences = append(sentences, text[start:i+1])
			start = i + 2
		}
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}
	return sentences
}

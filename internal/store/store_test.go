package store

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew_RejectsNonPositiveMaxResults(t *testing.T) {
	tests := []struct {
		name       string
		maxResults int
	}{
		{"zero", 0},
		{"negative", -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), "postgres://localhost:5432/coursepilot", nil, tt.maxResults, zerolog.Nop())
			if err == nil {
				t.Fatal("Expected configuration error")
			}
			if !strings.Contains(err.Error(), "max results must be positive") {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New(context.Background(), "not a dsn ://", nil, 5, zerolog.Nop())
	if err == nil {
		t.Fatal("Expected error for malformed database URL")
	}
}

func TestStore_Limit(t *testing.T) {
	s := &Store{maxResults: 5}

	zero := 0
	seven := 7
	tests := []struct {
		name string
		opts SearchOptions
		want int
	}{
		{"default", SearchOptions{}, 5},
		{"explicit override", SearchOptions{Limit: &seven}, 7},
		{"explicit zero honored", SearchOptions{Limit: &zero}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.limit(tt.opts); got != tt.want {
				t.Errorf("limit(%+v) = %d, want %d", tt.opts, got, tt.want)
			}
		})
	}
}

func TestSearchResults_IsEmpty(t *testing.T) {
	if !(SearchResults{}).IsEmpty() {
		t.Error("Expected zero-value results to be empty")
	}
	if !(SearchResults{Error: "Search error: boom"}).IsEmpty() {
		t.Error("Expected error-only results to be empty")
	}
	r := SearchResults{
		Documents: []string{"doc"},
		Metadata:  []ChunkMeta{{CourseTitle: "Go Basics"}},
		Distances: []float64{0.2},
	}
	if r.IsEmpty() {
		t.Error("Expected populated results to be non-empty")
	}
}

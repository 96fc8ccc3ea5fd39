package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/spf13/pflag"

	"github.com/coursepilot/coursepilot/internal/ai"
	"github.com/coursepilot/coursepilot/internal/config"
	"github.com/coursepilot/coursepilot/internal/orchestrator"
	"github.com/coursepilot/coursepilot/internal/session"
	"github.com/coursepilot/coursepilot/internal/store"
	"github.com/coursepilot/coursepilot/internal/tools"
	"github.com/coursepilot/coursepilot/pkg/models"
)

type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

type queryResponse struct {
	Answer    string          `json:"answer"`
	Sources   []models.Source `json:"sources"`
	SessionID string          `json:"session_id"`
}

type coursesResponse struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

func main() {
	// .env is optional; real deployments configure through the environment
	_ = godotenv.Load()

	fs := pflag.NewFlagSet("coursepilot-api", pflag.ExitOnError)

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	logger.Info().Str("provider", cfg.Provider).Str("log_level", cfg.LogLevel).Msg("starting coursepilot api")

	clientConfig, err := buildClientConfig(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx := context.Background()
	client, err := ai.NewClient(clientConfig)
	if err != nil {
		log.Fatalf("Failed to create AI client: %v", err)
	}

	st, err := store.New(ctx, cfg.Database, client, cfg.MaxResults, logger)
	if err != nil {
		log.Fatalf("Failed to create store: %v", err)
	}
	defer st.Close()

	dim := client.Dim()
	logger.Info().Int("embedding_dim", dim).Str("chat_model", clientConfig.ChatModel).Msg("AI client initialized")

	if err := st.Migrate(ctx, dim); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	sessions := session.NewManager(cfg.MaxHistory)
	gen := orchestrator.New(client, cfg.MaxToolRounds, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/api/courses", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		titles, err := st.CourseTitles(ctx)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		if titles == nil {
			titles = []string{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(coursesResponse{
			TotalCourses: len(titles),
			CourseTitles: titles,
		}); err != nil {
			http.Error(w, "Failed to encode courses", 500)
		}
	})

	mux.HandleFunc("/api/query", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		start := time.Now()

		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Query) == "" {
			http.Error(w, "missing query", http.StatusBadRequest)
			return
		}
		sessionID := req.SessionID
		if sessionID == "" {
			sessionID = sessions.Create()
		}

		// One tool set per request: citation state never crosses
		// concurrent queries.
		registry := tools.NewRegistry(logger)
		if err := registry.Register(tools.NewContentSearchTool(st, logger)); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		if err := registry.Register(tools.NewOutlineTool(st, logger)); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		registry.ResetSources()

		answer := gen.Generate(r.Context(), req.Query, sessions.History(sessionID), registry.Schemas(), registry)
		sources := registry.LastSources()
		if sources == nil {
			sources = []models.Source{}
		}
		registry.ResetSources()

		sessions.AddExchange(sessionID, req.Query, answer)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(queryResponse{
			Answer:    answer,
			Sources:   sources,
			SessionID: sessionID,
		}); err != nil {
			http.Error(w, "Failed to encode response", 500)
			return
		}

		hlog.FromRequest(r).Info().Str("path", "/api/query").Str("session_id", sessionID).
			Dur("dur", time.Since(start)).Msg("served")
	})

	mux.HandleFunc("/api/sessions/clear", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			SessionID string `json:"session_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
			http.Error(w, "missing session_id", http.StatusBadRequest)
			return
		}
		sessions.Clear(req.SessionID)
		w.WriteHeader(http.StatusOK)
	})

	handler := hlog.NewHandler(logger)(
		hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
			logger.Info().Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Int("size", size).Dur("dur", dur).Msg("http")
		})(mux),
	)

	address := fmt.Sprintf(":%d", cfg.Port)
	s := &http.Server{Addr: address, Handler: handler}
	logger.Info().Str("addr", s.Addr).Msg("api server listening")
	log.Fatal(s.ListenAndServe())
}

func buildClientConfig(cfg config.Specification) (*ai.ClientConfig, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return &ai.ClientConfig{
			APIKey:     cfg.APIKey,
			ChatModel:  cfg.ChatModel,
			EmbedModel: cfg.EmbedModel,
			Dim:        cfg.Dim,
			ProjectID:  cfg.ProjectID,
			Provider:   ai.ProviderOpenAI,
		}, nil
	case "gemini", "vertexai", "google":
		return &ai.ClientConfig{
			APIKey:     cfg.APIKey,
			ChatModel:  cfg.ChatModel,
			EmbedModel: cfg.EmbedModel,
			Dim:        cfg.Dim,
			ProjectID:  cfg.ProjectID,
			Location:   cfg.Location,
			Provider:   ai.ProviderGemini,
		}, nil
	case "stub":
		return &ai.ClientConfig{
			Dim:      cfg.Dim,
			Provider: ai.ProviderStub,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

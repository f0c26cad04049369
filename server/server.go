// Package server exposes the pipeline and the knowledge log over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nexxia-ai/pentagon"
	"github.com/nexxia-ai/pentagon/document"
	"github.com/nexxia-ai/pentagon/export"
	"github.com/nexxia-ai/pentagon/knowledge"
	"github.com/nexxia-ai/pentagon/present"
)

// Runner executes a task. *pentagon.Pipeline implements it.
type Runner interface {
	Execute(ctx context.Context, task pentagon.Task) (*pentagon.Run, error)
}

// Config for the HTTP API handler.
type Config struct {
	Runner     Runner
	Knowledge  knowledge.Log
	RecentRuns int
	// TrustedProxies lists peer IPs whose X-Requester header names the requester.
	// Requests from any other peer are keyed on the peer IP.
	TrustedProxies []string
	Logger         *slog.Logger
}

type requesterKey struct{}

type server struct {
	runner    Runner
	knowledge knowledge.Log
	runs      *lru.Cache[string, *pentagon.Run]
	logger    *slog.Logger
}

// New returns an HTTP handler exposing the pentagon API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Runner == nil {
		return nil, errors.New("server: runner is required")
	}
	size := cfg.RecentRuns
	if size <= 0 {
		size = 256
	}
	runs, err := lru.New[string, *pentagon.Run](size)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &server{runner: cfg.Runner, knowledge: cfg.Knowledge, runs: runs, logger: logger.With("component", "server")}

	router := chi.NewRouter()
	trusted := make(map[string]bool, len(cfg.TrustedProxies))
	for _, ip := range cfg.TrustedProxies {
		trusted[ip] = true
	}
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requesterKey{}, requester(r, trusted))))
		})
	})
	api := humachi.New(router, huma.DefaultConfig("Pentagon API", "1.0.0"))

	registerHealth(api)
	s.registerRuns(api)
	s.registerKnowledge(api)
	return router, nil
}

// requester is the peer IP, or X-Requester when the peer is a trusted proxy.
func requester(r *http.Request, trusted map[string]bool) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if trusted[host] {
		if h := strings.TrimSpace(r.Header.Get("X-Requester")); h != "" {
			return h
		}
	}
	return host
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

type documentInput struct {
	Filename string `json:"filename" minLength:"1"`
	MimeType string `json:"mime_type,omitempty"`
	Data     []byte `json:"data"`
}

type createRunInput struct {
	Body struct {
		Task      string          `json:"task" minLength:"1"`
		Documents []documentInput `json:"documents,omitempty"`
	}
}

type runOutput struct {
	Status int
	Body   present.View
}

type runPath struct {
	ID string `path:"id"`
}

type pdfOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

func (s *server) registerRuns(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-run",
		Method:        http.MethodPost,
		Path:          "/runs",
		Summary:       "Run the pipeline over a task and documents",
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *createRunInput) (*runOutput, error) {
		task := pentagon.Task{Text: input.Body.Task}
		task.Requester, _ = ctx.Value(requesterKey{}).(string)
		for _, d := range input.Body.Documents {
			doc := document.NewDocument(d.Filename, d.Data)
			if d.MimeType != "" {
				doc.MimeType = d.MimeType
			}
			task.Documents = append(task.Documents, doc)
		}

		run, err := s.runner.Execute(ctx, task)
		if run == nil {
			return nil, huma.Error500InternalServerError("run did not start", err)
		}
		s.runs.Add(run.ID, run)

		out := &runOutput{Status: http.StatusOK, Body: present.Render(run)}
		switch run.Status {
		case pentagon.StatusBlocked:
			out.Status = http.StatusForbidden
		case pentagon.StatusFailed:
			s.logger.Warn("run failed", "run", run.ID, "error", err)
			out.Status = http.StatusBadGateway
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-run",
		Method:      http.MethodGet,
		Path:        "/runs/{id}",
		Summary:     "Fetch a recent run",
	}, func(ctx context.Context, input *runPath) (*runOutput, error) {
		run, ok := s.runs.Get(input.ID)
		if !ok {
			return nil, huma.Error404NotFound("run not found")
		}
		return &runOutput{Status: http.StatusOK, Body: present.Render(run)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-verdict-pdf",
		Method:      http.MethodGet,
		Path:        "/runs/{id}/verdict.pdf",
		Summary:     "Download the verdict of a completed run",
	}, func(ctx context.Context, input *runPath) (*pdfOutput, error) {
		run, ok := s.runs.Get(input.ID)
		if !ok {
			return nil, huma.Error404NotFound("run not found")
		}
		if !run.Completed() {
			return nil, huma.Error409Conflict("run has no verdict")
		}
		data, err := export.Verdict(export.VerdictDoc{CaseID: run.CaseID, Text: run.Verdict(), At: run.FinishedAt})
		if err != nil {
			return nil, huma.Error500InternalServerError("export failed", err)
		}
		return &pdfOutput{
			ContentType:        "application/pdf",
			ContentDisposition: `attachment; filename="` + export.FileName(run.CaseID) + `"`,
			Body:               data,
		}, nil
	})
}

type entryBody struct {
	ID        string    `json:"id,omitempty"`
	Title     string    `json:"title" minLength:"1"`
	Content   string    `json:"content" minLength:"1"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

func toEntryBody(e knowledge.Entry) entryBody {
	return entryBody{ID: e.ID, Title: e.Title, Content: e.Content, CreatedAt: e.CreatedAt}
}

func (s *server) registerKnowledge(api huma.API) {
	if s.knowledge == nil {
		return
	}
	huma.Register(api, huma.Operation{
		OperationID: "list-knowledge",
		Method:      http.MethodGet,
		Path:        "/knowledge",
		Summary:     "List knowledge entries in append order",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []entryBody `json:"body"`
	}, error) {
		entries, err := s.knowledge.All(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("read knowledge", err)
		}
		out := &struct {
			Body []entryBody `json:"body"`
		}{Body: make([]entryBody, 0, len(entries))}
		for _, e := range entries {
			out.Body = append(out.Body, toEntryBody(e))
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "append-knowledge",
		Method:        http.MethodPost,
		Path:          "/knowledge",
		Summary:       "Append a knowledge entry",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body struct {
			Title   string `json:"title" minLength:"1"`
			Content string `json:"content" minLength:"1"`
		}
	}) (*struct {
		Body entryBody `json:"body"`
	}, error) {
		e, err := s.knowledge.Append(ctx, knowledge.Entry{Title: input.Body.Title, Content: input.Body.Content})
		if err != nil {
			if errors.Is(err, knowledge.ErrEmptyTitle) || errors.Is(err, knowledge.ErrEmptyContent) {
				return nil, huma.Error400BadRequest(err.Error())
			}
			return nil, huma.Error500InternalServerError("append knowledge", err)
		}
		return &struct {
			Body entryBody `json:"body"`
		}{Body: toEntryBody(e)}, nil
	})
}

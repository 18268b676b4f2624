// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kordes/flowstudio/internal/domain"
	"github.com/kordes/flowstudio/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type renameRequest struct {
	Name string `json:"name"`
}

type appRefRequest struct {
	AppID string `json:"app_id"`
}

type messageRequest struct {
	Text string `json:"text"`
}

func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics.Init()
	version := valueOrDefault(deps.Version, "dev")
	commit := valueOrDefault(deps.Commit, "none")
	buildDate := valueOrDefault(deps.BuildDate, "unknown")

	r := chi.NewRouter()
	r.Use(requestIDMiddleware())
	r.Use(requestLoggingMiddleware(logger))

	// ---------------- HEALTH ----------------

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("health check hit")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// ---------------- METRICS ----------------

	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// ---------------- VERSION ----------------

	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version":    version,
			"commit":     commit,
			"build_date": buildDate,
		})
	})

	// ---------------- APP CATALOG ----------------

	r.Get("/apps", func(w http.ResponseWriter, r *http.Request) {
		search := r.URL.Query().Get("search")
		category := r.URL.Query().Get("category")

		var apps []domain.AppDescriptor
		if search == "" && (category == "" || category == "all") {
			apps = deps.Catalog.List()
		} else {
			apps = deps.Catalog.Search(search, category)
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"apps": apps,
		})
	})

	r.Get("/apps/categories", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"categories": deps.Catalog.Categories(),
		})
	})

	r.Get("/apps/{id}", func(w http.ResponseWriter, r *http.Request) {
		app, err := deps.Catalog.Find(chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, "app not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, app)
	})

	// ---------------- WORKFLOWS ----------------

	r.Get("/workflows", func(w http.ResponseWriter, r *http.Request) {
		filter := r.URL.Query().Get("status")
		if filter == "" {
			filter = "all"
		}

		workflows, err := deps.Workflows.List(r.Context(), filter)
		if err != nil {
			http.Error(w, "unknown status filter", http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"workflows": workflows,
		})
	})

	r.Post("/workflows", func(w http.ResponseWriter, r *http.Request) {
		var wf domain.Workflow
		if err := decodeJSON(r, &wf); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		if wf.ID == "" {
			wf.ID = uuid.NewString()
		}
		if wf.Status == "" {
			wf.Status = domain.StatusDraft
		}
		now := time.Now()
		if wf.CreatedAt.IsZero() {
			wf.CreatedAt = now
		}
		if wf.LastModified.IsZero() {
			wf.LastModified = now
		}

		if err := deps.Workflows.Create(r.Context(), wf); err != nil {
			writeDomainError(w, logger, err, "create workflow")
			return
		}
		writeJSON(w, http.StatusCreated, wf)
	})

	r.Get("/workflows/{id}", func(w http.ResponseWriter, r *http.Request) {
		wf, err := deps.Workflows.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainError(w, logger, err, "get workflow")
			return
		}
		writeJSON(w, http.StatusOK, wf)
	})

	r.Put("/workflows/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var wf domain.Workflow
		if err := decodeJSON(r, &wf); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		if err := deps.Workflows.Update(r.Context(), id, wf); err != nil {
			writeDomainError(w, logger, err, "update workflow")
			return
		}

		updated, err := deps.Workflows.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, logger, err, "get workflow")
			return
		}
		writeJSON(w, http.StatusOK, updated)
	})

	r.Delete("/workflows/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		if err := deps.Workflows.Delete(r.Context(), id); err != nil {
			writeDomainError(w, logger, err, "delete workflow")
			return
		}

		logger.Info("workflow deleted via API", "workflow_id", id)
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/workflows/{id}/toggle", func(w http.ResponseWriter, r *http.Request) {
		wf, err := deps.Workflows.ToggleStatus(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainError(w, logger, err, "toggle workflow")
			return
		}
		writeJSON(w, http.StatusOK, wf)
	})

	r.Post("/workflows/{id}/rename", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req renameRequest
		if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Name) == "" {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		wf, err := deps.Workflows.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, logger, err, "get workflow")
			return
		}

		wf.Name = strings.TrimSpace(req.Name)
		if err := deps.Workflows.Update(r.Context(), id, wf); err != nil {
			writeDomainError(w, logger, err, "rename workflow")
			return
		}

		updated, _ := deps.Workflows.Get(r.Context(), id)
		writeJSON(w, http.StatusOK, updated)
	})

	// ---------------- WORKFLOW STEP EDITING ----------------

	r.Post("/workflows/{id}/steps", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req appRefRequest
		if err := decodeJSON(r, &req); err != nil || req.AppID == "" {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		app, err := deps.Catalog.Find(req.AppID)
		if err != nil {
			http.Error(w, "unknown app", http.StatusBadRequest)
			return
		}

		wf, err := deps.Workflows.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, logger, err, "get workflow")
			return
		}

		kind := domain.StepAction
		if len(wf.Steps) == 0 {
			kind = domain.StepTrigger
		}
		wf.Steps = append(wf.Steps, domain.NewStep(app, kind))

		if err := deps.Workflows.Update(r.Context(), id, wf); err != nil {
			writeDomainError(w, logger, err, "add step")
			return
		}

		updated, _ := deps.Workflows.Get(r.Context(), id)
		writeJSON(w, http.StatusOK, updated)
	})

	r.Delete("/workflows/{id}/steps/{stepID}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		stepID := chi.URLParam(r, "stepID")

		wf, err := deps.Workflows.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, logger, err, "get workflow")
			return
		}

		found := false
		steps := wf.Steps[:0]
		for _, s := range wf.Steps {
			if s.ID == stepID {
				found = true
				continue
			}
			steps = append(steps, s)
		}
		if !found {
			http.Error(w, "step not found", http.StatusNotFound)
			return
		}
		wf.Steps = steps

		if err := deps.Workflows.Update(r.Context(), id, wf); err != nil {
			writeDomainError(w, logger, err, "remove step")
			return
		}

		updated, _ := deps.Workflows.Get(r.Context(), id)
		writeJSON(w, http.StatusOK, updated)
	})

	r.Put("/workflows/{id}/steps/{stepID}/config", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		stepID := chi.URLParam(r, "stepID")

		var config map[string]string
		if err := decodeJSON(r, &config); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		wf, err := deps.Workflows.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, logger, err, "get workflow")
			return
		}

		found := false
		for i := range wf.Steps {
			if wf.Steps[i].ID == stepID {
				wf.Steps[i].Config = config
				found = true
				break
			}
		}
		if !found {
			http.Error(w, "step not found", http.StatusNotFound)
			return
		}

		if err := deps.Workflows.Update(r.Context(), id, wf); err != nil {
			writeDomainError(w, logger, err, "update step config")
			return
		}

		updated, _ := deps.Workflows.Get(r.Context(), id)
		writeJSON(w, http.StatusOK, updated)
	})

	// ---------------- EXECUTION HISTORY ----------------

	r.Get("/workflows/{id}/executions", func(w http.ResponseWriter, r *http.Request) {
		records, err := deps.Executions.ListFor(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			logger.Error("list executions failed", "error", err)
			http.Error(w, "failed to list executions", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"executions": records,
		})
	})

	r.Get("/executions/recent", func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		records, err := deps.Executions.Recent(r.Context(), limit)
		if err != nil {
			logger.Error("list recent executions failed", "error", err)
			http.Error(w, "failed to list executions", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"executions": records,
		})
	})

	// ---------------- AUTHORING SESSION ----------------

	if deps.Sessions != nil {
		r.Route("/session", func(session chi.Router) {
			session.Post("/", func(w http.ResponseWriter, r *http.Request) {
				opened, err := deps.Sessions.Open()
				if err != nil {
					writeDomainError(w, logger, err, "open session")
					return
				}
				logger.Info("authoring session opened")
				writeJSON(w, http.StatusCreated, opened.Snapshot())
			})

			session.Get("/", func(w http.ResponseWriter, r *http.Request) {
				current, ok := deps.Sessions.Current()
				if !ok {
					http.Error(w, "no authoring session", http.StatusNotFound)
					return
				}
				writeJSON(w, http.StatusOK, current.Snapshot())
			})

			session.Delete("/", func(w http.ResponseWriter, r *http.Request) {
				deps.Sessions.Close()
				logger.Info("authoring session closed")
				w.WriteHeader(http.StatusNoContent)
			})

			session.Post("/message", func(w http.ResponseWriter, r *http.Request) {
				current, ok := deps.Sessions.Current()
				if !ok {
					http.Error(w, "no authoring session", http.StatusNotFound)
					return
				}

				var req messageRequest
				if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Text) == "" {
					http.Error(w, "invalid request body", http.StatusBadRequest)
					return
				}

				if err := current.SendMessage(r.Context(), req.Text); err != nil {
					writeDomainError(w, logger, err, "send message")
					return
				}
				writeJSON(w, http.StatusOK, current.Snapshot())
			})

			session.Post("/name", func(w http.ResponseWriter, r *http.Request) {
				current, ok := deps.Sessions.Current()
				if !ok {
					http.Error(w, "no authoring session", http.StatusNotFound)
					return
				}

				var req renameRequest
				if err := decodeJSON(r, &req); err != nil {
					http.Error(w, "invalid request body", http.StatusBadRequest)
					return
				}

				if err := current.SetName(strings.TrimSpace(req.Name)); err != nil {
					writeDomainError(w, logger, err, "set draft name")
					return
				}
				writeJSON(w, http.StatusOK, current.Snapshot())
			})

			session.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
				current, ok := deps.Sessions.Current()
				if !ok {
					http.Error(w, "no authoring session", http.StatusNotFound)
					return
				}

				var req appRefRequest
				if err := decodeJSON(r, &req); err != nil || req.AppID == "" {
					http.Error(w, "invalid request body", http.StatusBadRequest)
					return
				}

				if err := current.SetTrigger(req.AppID); err != nil {
					writeDomainError(w, logger, err, "set trigger")
					return
				}
				writeJSON(w, http.StatusOK, current.Snapshot())
			})

			session.Post("/actions", func(w http.ResponseWriter, r *http.Request) {
				current, ok := deps.Sessions.Current()
				if !ok {
					http.Error(w, "no authoring session", http.StatusNotFound)
					return
				}

				var req appRefRequest
				if err := decodeJSON(r, &req); err != nil || req.AppID == "" {
					http.Error(w, "invalid request body", http.StatusBadRequest)
					return
				}

				if err := current.AddAction(req.AppID); err != nil {
					writeDomainError(w, logger, err, "add action")
					return
				}
				writeJSON(w, http.StatusOK, current.Snapshot())
			})

			session.Delete("/actions/{appID}", func(w http.ResponseWriter, r *http.Request) {
				current, ok := deps.Sessions.Current()
				if !ok {
					http.Error(w, "no authoring session", http.StatusNotFound)
					return
				}

				if err := current.RemoveAction(chi.URLParam(r, "appID")); err != nil {
					writeDomainError(w, logger, err, "remove action")
					return
				}
				writeJSON(w, http.StatusOK, current.Snapshot())
			})

			session.Post("/advance", func(w http.ResponseWriter, r *http.Request) {
				current, ok := deps.Sessions.Current()
				if !ok {
					http.Error(w, "no authoring session", http.StatusNotFound)
					return
				}

				if err := current.Advance(r.Context()); err != nil {
					writeDomainError(w, logger, err, "advance stage")
					return
				}
				writeJSON(w, http.StatusOK, current.Snapshot())
			})

			session.Post("/back", func(w http.ResponseWriter, r *http.Request) {
				current, ok := deps.Sessions.Current()
				if !ok {
					http.Error(w, "no authoring session", http.StatusNotFound)
					return
				}

				if err := current.Back(); err != nil {
					writeDomainError(w, logger, err, "step back")
					return
				}
				writeJSON(w, http.StatusOK, current.Snapshot())
			})
		})
	}

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDomainError maps the domain error taxonomy onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, logger *slog.Logger, err error, what string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrSessionOpen),
		errors.Is(err, domain.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrInvalidWorkflow):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		logger.Error(what+" failed", "error", err)
		http.Error(w, "failed to "+what, http.StatusInternalServerError)
	}
}

func decodeJSON(r *http.Request, v any) error {
	if r == nil || r.Body == nil || r.Body == http.NoBody {
		return errors.New("empty request body")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}

	// Ensure there is only one JSON object.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain exactly one JSON object")
	}
	return nil
}

func valueOrDefault(value, defaultValue string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return defaultValue
	}
	return trimmed
}

// Package api is the backend's HTTP surface: passwordless sign-in under
// /auth/v1 and per-table record access under /rest/v1.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sadopc/timesheet/internal/gateway"
	"github.com/sadopc/timesheet/internal/identity"
	"github.com/sadopc/timesheet/internal/model"
)

type ctxKey int

const sessionKey ctxKey = iota

// Server wires the record store and the identity issuer to chi routes.
type Server struct {
	records gateway.Gateway
	issuer  *identity.Issuer
	apiKey  string
	logger  *slog.Logger
}

func New(records gateway.Gateway, issuer *identity.Issuer, apiKey string, logger *slog.Logger) *Server {
	return &Server{records: records, issuer: issuer, apiKey: apiKey, logger: logger}
}

// Router builds the handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireAPIKey)

		r.Route("/auth/v1", func(r chi.Router) {
			r.Post("/otp", s.handleSendLink)
			r.Post("/verify", s.handleVerify)
			r.With(s.requireSession).Get("/session", s.handleGetSession)
			r.With(s.requireSession).Post("/logout", s.handleLogout)
		})

		r.Route("/rest/v1", func(r chi.Router) {
			// Signed-out clients may check a single address before asking
			// for a link; the full list needs a session.
			r.Get("/authorized_emails", s.handleListAuthorizedEmails)

			r.Group(func(r chi.Router) {
				r.Use(s.requireSession)

				r.Get("/users", s.handleListUsers)
				r.Put("/users", s.handleUpsertUser)

				r.Get("/projects", s.handleListProjects)
				r.Post("/projects", s.handleInsertProject)
				r.Get("/projects/{id}", s.handleGetProject)
				r.Patch("/projects/{id}", s.handleUpdateProject)
				r.Delete("/projects/{id}", s.handleDeleteProject)

				r.Get("/tasks", s.handleListTasks)
				r.Post("/tasks", s.handleInsertTask)
				r.Get("/tasks/{id}", s.handleGetTask)
				r.Patch("/tasks/{id}", s.handleUpdateTask)
				r.Delete("/tasks/{id}", s.handleDeleteTask)

				r.Get("/time_entries", s.handleListEntries)
				r.Post("/time_entries", s.handleInsertEntry)
				r.Patch("/time_entries/{id}", s.handleUpdateEntry)
				r.Delete("/time_entries/{id}", s.handleDeleteEntry)
			})
		})
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("apikey")
		if s.apiKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing session")
			return
		}
		sess, err := s.issuer.Lookup(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "session expired or revoked")
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(ctx context.Context) *model.Session {
	sess, _ := ctx.Value(sessionKey).(*model.Session)
	return sess
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps a store error onto a status code and logs anything unexpected.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, gateway.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, gateway.ErrConstraint):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func isNotFound(err error) bool {
	return errors.Is(err, gateway.ErrNotFound)
}

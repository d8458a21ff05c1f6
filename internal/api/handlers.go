package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sadopc/timesheet/internal/identity"
	"github.com/sadopc/timesheet/internal/model"
)

// --- auth ---

func (s *Server) handleSendLink(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if !decode(w, r, &body) {
		return
	}
	err := s.issuer.SendLink(r.Context(), body.Email)
	if errors.Is(err, identity.ErrNotAllowed) {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}
	if err != nil {
		s.logger.Warn("send link failed", "error", err)
		writeError(w, http.StatusBadRequest, "could not send sign-in link")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if !decode(w, r, &body) {
		return
	}
	sess, err := s.issuer.Redeem(r.Context(), strings.TrimSpace(body.Token))
	if errors.Is(err, identity.ErrInvalidToken) {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r.Context()))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.issuer.Revoke(r.Context(), sessionFrom(r.Context()).ID); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- users and allow-list ---

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if email := r.URL.Query().Get("email"); email != "" {
		u, err := s.records.GetUserByEmail(r.Context(), email)
		if err != nil {
			s.listOfOne(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, []model.User{*u})
		return
	}
	users, err := s.records.ListUsers(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(users))
}

// handleUpsertUser only lets a session write its own profile row. The role
// always comes from the caller's allow-list entry.
func (s *Server) handleUpsertUser(w http.ResponseWriter, r *http.Request) {
	var u model.User
	if !decode(w, r, &u) {
		return
	}
	email := sessionFrom(r.Context()).Email
	if model.NormalizeEmail(u.Email) != email {
		writeError(w, http.StatusForbidden, "can only upsert your own user")
		return
	}
	allowed, err := s.records.GetAuthorizedEmail(r.Context(), email)
	if isNotFound(err) {
		writeError(w, http.StatusForbidden, "email is not on the allow-list")
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	u.Role = allowed.Role
	out, err := s.records.UpsertUser(r.Context(), u)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListAuthorizedEmails(w http.ResponseWriter, r *http.Request) {
	if email := r.URL.Query().Get("email"); email != "" {
		a, err := s.records.GetAuthorizedEmail(r.Context(), email)
		if err != nil {
			s.listOfOne(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, []model.AuthorizedEmail{*a})
		return
	}
	s.requireSession(http.HandlerFunc(s.listAllAuthorizedEmails)).ServeHTTP(w, r)
}

func (s *Server) listAllAuthorizedEmails(w http.ResponseWriter, r *http.Request) {
	list, err := s.records.ListAuthorizedEmails(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

// listOfOne answers an equality filter that matched nothing with an empty
// array, the way a filtered select does.
func (s *Server) listOfOne(w http.ResponseWriter, r *http.Request, err error) {
	if isNotFound(err) {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	s.fail(w, r, err)
}

// --- projects ---

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.records.ListProjects(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(projects))
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.records.GetProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleInsertProject(w http.ResponseWriter, r *http.Request) {
	var p model.Project
	if !decode(w, r, &p) {
		return
	}
	if p.Name == "" || p.Client == "" {
		writeError(w, http.StatusBadRequest, "name and client are required")
		return
	}
	out, err := s.records.InsertProject(r.Context(), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var p model.Project
	if !decode(w, r, &p) {
		return
	}
	p.ID = chi.URLParam(r, "id")
	if p.Name == "" || p.Client == "" {
		writeError(w, http.StatusBadRequest, "name and client are required")
		return
	}
	out, err := s.records.UpdateProject(r.Context(), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.records.DeleteProject(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- tasks ---

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	f := model.TaskFilter{ProjectID: r.URL.Query().Get("project_id")}
	tasks, err := s.records.ListTasks(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(tasks))
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.records.GetTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleInsertTask(w http.ResponseWriter, r *http.Request) {
	var t model.Task
	if !decode(w, r, &t) {
		return
	}
	if t.Name == "" || t.ProjectID == "" {
		writeError(w, http.StatusBadRequest, "name and project_id are required")
		return
	}
	out, err := s.records.InsertTask(r.Context(), t)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var t model.Task
	if !decode(w, r, &t) {
		return
	}
	t.ID = chi.URLParam(r, "id")
	if t.Name == "" || t.ProjectID == "" {
		writeError(w, http.StatusBadRequest, "name and project_id are required")
		return
	}
	out, err := s.records.UpdateTask(r.Context(), t)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.records.DeleteTask(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- time entries ---

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.EntryFilter{UserID: q.Get("user_id"), From: q.Get("from"), To: q.Get("to")}
	if f.UserID == "" {
		u, err := s.records.GetUserByEmail(r.Context(), sessionFrom(r.Context()).Email)
		if err != nil {
			s.listOfOne(w, r, err)
			return
		}
		f.UserID = u.ID
	}
	entries, err := s.records.ListTimeEntries(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(entries))
}

func (s *Server) handleInsertEntry(w http.ResponseWriter, r *http.Request) {
	var e model.TimeEntry
	if !decode(w, r, &e) {
		return
	}
	if msg := checkEntry(e, true); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	out, err := s.records.InsertTimeEntry(r.Context(), e)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	var e model.TimeEntry
	if !decode(w, r, &e) {
		return
	}
	e.ID = chi.URLParam(r, "id")
	if msg := checkEntry(e, false); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	out, err := s.records.UpdateTimeEntry(r.Context(), e)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := s.records.DeleteTimeEntry(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func checkEntry(e model.TimeEntry, create bool) string {
	if e.ProjectID == "" {
		return "project_id is required"
	}
	if create && (e.UserID == "" || e.Date == "") {
		return "user_id and date are required"
	}
	if _, err := model.Duration(e.StartTime, e.EndTime); err != nil {
		return err.Error()
	}
	return ""
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/daveminay/cohoscrape/internal/components/assert"
	"github.com/daveminay/cohoscrape/internal/components/telemetry"
	"github.com/daveminay/cohoscrape/internal/gate"
	"github.com/daveminay/cohoscrape/internal/registry"
	"github.com/daveminay/cohoscrape/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const CookieName = "cohoscrape_session"

const (
	report_server_request = "server.request"
	report_server_session = "server.session"
)

type Server struct {
	manager *session.Manager
	tel     telemetry.API
}

// New returns the router for the http surface. Metrics are registered on reg
// and served from /metrics.
func New(manager *session.Manager, reg *prometheus.Registry, tel telemetry.API) http.Handler {
	assert.NotNil(manager)
	assert.NotNil(reg)
	assert.NotNil(tel)

	s := Server{
		manager: manager,
		tel:     telemetry.NewScopedAPI("server", tel),
	}
	metrics := newHttpMetrics(reg)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(metrics.middleware)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	router.Post("/login", s.login)
	router.Post("/logout", s.logout)
	router.Get("/session", s.get)
	router.Post("/search", s.search)
	router.Post("/select", s.selectCompany)
	router.Post("/extract", s.extract)
	router.Get("/archive", s.archive)
	router.Post("/reset", s.reset)

	return router
}

// sessionView is what clients see of a session.
type sessionView struct {
	session.Session
	Authorized       bool `json:"authorized"`
	ArchiveAvailable bool `json:"archive_available"`
}

type errorResponse struct {
	Error   string       `json:"error"`
	Session *sessionView `json:"session,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, session.ErrUnauthorized), errors.Is(err, gate.ErrDenied):
		return http.StatusUnauthorized
	case errors.Is(err, session.ErrInvalidTransition), errors.Is(err, session.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, session.ErrInvalidCompany), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrExtractionFailed):
		return http.StatusBadGateway
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s Server) writeError(w http.ResponseWriter, r *http.Request, err error, view *sessionView) {
	status := statusOf(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.tel.ReportBroken(report_server_request, r.URL.Path, middleware.GetReqID(r.Context()), err)
		message = "internal error"
	}
	if errors.Is(err, session.ErrExtractionFailed) && view != nil {
		message = fmt.Sprintf("%s: %s", session.ErrExtractionFailed, view.Error)
	}
	writeJSON(w, status, errorResponse{Error: message, Session: view})
}

var errBadRequest = errors.New("bad request")

func decode(r *http.Request, out any) error {
	err := json.NewDecoder(r.Body).Decode(out)
	if err != nil {
		return fmt.Errorf("%w: malformed body: %w", errBadRequest, err)
	}
	return nil
}

// current returns the caller's session. A missing cookie, or one naming a
// session this server does not know, gets a new session under a server
// issued id and the cookie is replaced.
func (s Server) current(w http.ResponseWriter, r *http.Request) (session.Session, error) {
	ctx := r.Context()
	cookie, err := r.Cookie(CookieName)
	if err == nil && cookie.Value != "" {
		existing, err := s.manager.Get(ctx, cookie.Value)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, session.ErrNotFound) {
			return session.Session{}, err
		}
	}

	created, err := s.manager.Create(ctx)
	if err != nil {
		return session.Session{}, err
	}
	s.tel.ReportDebug("created session", created.ID)
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    created.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return created, nil
}

func (s Server) view(ctx context.Context, sess session.Session) *sessionView {
	authorized, err := s.manager.Authorized(ctx, sess.ID)
	if err != nil {
		s.tel.ReportBroken(report_server_session, err)
	}
	return &sessionView{
		Session:          sess,
		Authorized:       authorized,
		ArchiveAvailable: sess.Stage == session.StageComplete && len(sess.Archive) > 0,
	}
}

func (s Server) respond(w http.ResponseWriter, r *http.Request, sess session.Session, err error) {
	if err != nil {
		var view *sessionView
		if sess.ID != "" {
			view = s.view(r.Context(), sess)
		}
		s.writeError(w, r, err, view)
		return
	}
	writeJSON(w, http.StatusOK, s.view(r.Context(), sess))
}

type loginRequest struct {
	Password string `json:"password"`
}

func (s Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	err := decode(r, &req)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	sess, err := s.current(w, r)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	err = s.manager.Authorize(r.Context(), sess.ID, req.Password)
	s.respond(w, r, sess, err)
}

func (s Server) logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(CookieName)
	if err == nil && cookie.Value != "" {
		err = s.manager.Logout(r.Context(), cookie.Value)
		if err != nil {
			s.writeError(w, r, err, nil)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s Server) get(w http.ResponseWriter, r *http.Request) {
	sess, err := s.current(w, r)
	s.respond(w, r, sess, err)
}

type searchRequest struct {
	Term string `json:"term"`
}

func (s Server) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	err := decode(r, &req)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	sess, err := s.current(w, r)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	sess, err = s.manager.Search(r.Context(), sess.ID, req.Term)
	s.respond(w, r, sess, err)
}

type selectRequest struct {
	CompanyNumber string `json:"company_number"`
}

func (s Server) selectCompany(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	err := decode(r, &req)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	sess, err := s.current(w, r)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	sess, err = s.manager.Select(r.Context(), sess.ID, registry.CompanyID(req.CompanyNumber))
	s.respond(w, r, sess, err)
}

// extract runs to completion even if the client goes away, so the result
// can be picked up from /session and /archive afterwards.
func (s Server) extract(w http.ResponseWriter, r *http.Request) {
	sess, err := s.current(w, r)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	sess, err = s.manager.Extract(context.WithoutCancel(r.Context()), sess.ID)
	s.respond(w, r, sess, err)
}

func (s Server) archive(w http.ResponseWriter, r *http.Request) {
	sess, err := s.current(w, r)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	view := s.view(r.Context(), sess)
	if !view.Authorized {
		s.writeError(w, r, session.ErrUnauthorized, nil)
		return
	}
	if !view.ArchiveAvailable {
		s.writeError(w, r, fmt.Errorf("%w: no archive while %s", session.ErrInvalidTransition, sess.Stage), view)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, sess.ArchiveName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(sess.Archive)
}

func (s Server) reset(w http.ResponseWriter, r *http.Request) {
	sess, err := s.current(w, r)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	sess, err = s.manager.Reset(r.Context(), sess.ID)
	s.respond(w, r, sess, err)
}

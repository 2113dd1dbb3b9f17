// Package api serves the LolaT status endpoints.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/dougalf/lolat/internal/db"
	"github.com/dougalf/lolat/internal/httputil"
	"github.com/dougalf/lolat/internal/monitoring"
	"github.com/dougalf/lolat/internal/poller"
	"github.com/dougalf/lolat/internal/version"
)

// Limits for /api/readings. The default is one day at the default poll
// interval.
const (
	DefaultReadingsLimit = 96
	MaxReadingsLimit     = 1000
)

// LatestSource reports the most recent polling cycle.
type LatestSource interface {
	Latest() (poller.Result, bool)
}

// ReadingLog lists logged readings, newest first.
type ReadingLog interface {
	RecentReadings(ctx context.Context, limit int) ([]db.Reading, error)
}

type Server struct {
	latest LatestSource
	log    ReadingLog
}

// NewServer returns a server. log may be nil when the reading log is
// disabled; /api/readings then answers 404.
func NewServer(latest LatestSource, log ReadingLog) *Server {
	return &Server{latest: latest, log: log}
}

// Router returns the API routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/latest", s.showLatest).Methods(http.MethodGet)
	r.HandleFunc("/api/readings", s.listReadings).Methods(http.MethodGet)
	r.HandleFunc("/api/chart", s.showChart).Methods(http.MethodGet)
	r.HandleFunc("/api/version", showVersion).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.NotFound(w, "no such endpoint")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// Handler returns the routes wrapped with request logging and panic
// recovery.
func (s *Server) Handler() http.Handler {
	recovered := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{}),
		handlers.PrintRecoveryStack(false),
	)(s.Router())
	return LoggingMiddleware(recovered)
}

type recoveryLogger struct{}

func (recoveryLogger) Println(v ...interface{}) {
	monitoring.Logf("api: recovered: %s", fmt.Sprint(v...))
}

type latestResponse struct {
	Reading int       `json:"reading"`
	Volume  int       `json:"volume"`
	At      time.Time `json:"at"`
	OK      bool      `json:"ok"`
	Error   string    `json:"error,omitempty"`
}

func (s *Server) showLatest(w http.ResponseWriter, r *http.Request) {
	res, ok := s.latest.Latest()
	if !ok {
		httputil.NotFound(w, "no readings yet")
		return
	}
	resp := latestResponse{Reading: res.Reading, Volume: res.Volume, At: res.At, OK: res.OK()}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) listReadings(w http.ResponseWriter, r *http.Request) {
	if s.log == nil {
		httputil.NotFound(w, "reading log is disabled")
		return
	}
	limit, err := httputil.QueryInt(r, "limit", DefaultReadingsLimit, MaxReadingsLimit)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	readings, err := s.log.RecentReadings(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, err)
		return
	}
	httputil.WriteJSONOK(w, readings)
}

func showVersion(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
	})
}

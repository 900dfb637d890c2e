// Package server exposes the proofreading pipeline over HTTP.
//
// POST /api/proofread accepts a transcript either as the "file" field of a
// multipart form or as a raw text/plain body (with ?fileName=), and answers
// with a JSON envelope:
//
//	{"success": true, "result": {...}, "htmlReport": "<!DOCTYPE html>..."}
//	{"success": false, "error": "..."}
//
// Send Accept: text/html or ?format=html to get the report document itself.
// Input rejections answer 400, oversized uploads 413, and anything else 500.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrWong99/stenoproof/internal/events"
	"github.com/MrWong99/stenoproof/internal/health"
	"github.com/MrWong99/stenoproof/internal/observe"
	"github.com/MrWong99/stenoproof/internal/proofread"
	"github.com/MrWong99/stenoproof/internal/report"
	"github.com/MrWong99/stenoproof/internal/transcript"
)

// Defaults.
const (
	DefaultMaxUploadBytes = 50 << 20
	DefaultFileName       = "transcript.txt"

	// multipartMemory is the part of a multipart upload held in memory; the
	// rest spills to temp files.
	multipartMemory = 8 << 20
)

// Proofreader runs the proofreading pipeline on a parsed transcript.
// [*proofread.Pipeline] implements it.
type Proofreader interface {
	Run(ctx context.Context, parsed *transcript.Parsed) (*proofread.Result, error)
}

// Publisher receives run-completed events. [*events.Publisher] implements
// it.
type Publisher interface {
	PublishRunCompleted(ctx context.Context, ev events.RunCompleted) error
}

var (
	_ Proofreader = (*proofread.Pipeline)(nil)
	_ Publisher   = (*events.Publisher)(nil)
)

// Server holds the HTTP handlers of the proofreading API.
type Server struct {
	proofreader    Proofreader
	publisher      Publisher
	health         *health.Handler
	metricsPath    string
	metricsHandler http.Handler
	metrics        *observe.Metrics
	maxUpload      int64
	requestTimeout time.Duration
	logger         *slog.Logger
	now            func() time.Time
}

// Option configures a [Server].
type Option func(*Server)

// WithMaxUploadBytes caps the request body size. Default: 50 MiB.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// WithRequestTimeout bounds a whole proofreading request. Zero disables
// the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.requestTimeout = d }
}

// WithPublisher sets the run-completed event publisher.
func WithPublisher(p Publisher) Option {
	return func(s *Server) { s.publisher = p }
}

// WithHealth mounts the liveness and readiness probes.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetricsHandler mounts h at path, normally the Prometheus scrape
// handler.
func WithMetricsHandler(path string, h http.Handler) Option {
	return func(s *Server) {
		s.metricsPath = path
		s.metricsHandler = h
	}
}

// WithMetrics sets the metrics used by the request middleware.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithClock sets the time source for report and event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a Server around p.
func New(p Proofreader, opts ...Option) *Server {
	s := &Server{
		proofreader: p,
		maxUpload:   DefaultMaxUploadBytes,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	if s.health != nil {
		s.health.Register(r)
	}
	if s.metricsHandler != nil {
		r.Method(http.MethodGet, s.metricsPath, s.metricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(observe.Middleware(s.metrics))
		r.Use(s.recoverEnvelope)
		r.Post("/proofread", s.handleProofread)
	})
	return r
}

// Response is the JSON envelope of /api/proofread.
type Response struct {
	Success    bool              `json:"success"`
	Result     *proofread.Result `json:"result,omitempty"`
	Error      string            `json:"error,omitempty"`
	HTMLReport string            `json:"htmlReport,omitempty"`
}

// upload is a decoded transcript upload.
type upload struct {
	fileName string
	text     string
}

// requestError carries the status an upload problem is answered with.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error { return &requestError{status: http.StatusBadRequest, msg: msg} }

func (s *Server) handleProofread(w http.ResponseWriter, r *http.Request) {
	log := observe.LoggerFrom(r.Context(), s.logger).With("request_id", middleware.GetReqID(r.Context()))

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	up, err := s.readUpload(r)
	if err != nil {
		s.fail(w, log, err)
		return
	}

	parsed, err := transcript.Parse(up.text, up.fileName, transcript.WithLogger(log))
	if err != nil {
		s.fail(w, log, err)
		return
	}

	ctx := r.Context()
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}
	res, err := s.proofreader.Run(ctx, parsed)
	if err != nil {
		s.fail(w, log, err)
		return
	}

	html, err := report.HTML(res, report.Meta{FileName: up.fileName, RunID: res.RunID, GeneratedAt: s.now()})
	if err != nil {
		s.fail(w, log, err)
		return
	}

	if s.publisher != nil {
		ev := events.NewRunCompleted(up.fileName, res, s.now())
		if err := s.publisher.PublishRunCompleted(context.WithoutCancel(r.Context()), ev); err != nil {
			log.Warn("server: publish run completed", "run_id", res.RunID, "err", err)
		}
	}

	log.Info("server: transcript proofread",
		"file", up.fileName,
		"run_id", res.RunID,
		"pages", res.PagesProcessed,
		"errors", res.Summary.TotalErrors,
		"failed_chunks", res.FailedChunks,
	)

	if wantsHTML(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, html)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Result: res, HTMLReport: html})
}

// readUpload extracts the transcript from a multipart "file" field or from
// the raw body.
func (s *Server) readUpload(r *http.Request) (upload, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		data []byte
		name string
		err  error
	)
	if mediaType == "multipart/form-data" {
		data, name, err = readMultipartFile(r)
	} else {
		name = r.URL.Query().Get("fileName")
		data, err = io.ReadAll(r.Body)
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return upload{}, &requestError{
				status: http.StatusRequestEntityTooLarge,
				msg:    fmt.Sprintf("File too large. The maximum upload size is %d bytes.", tooLarge.Limit),
			}
		}
		var re *requestError
		if errors.As(err, &re) {
			return upload{}, err
		}
		return upload{}, badRequest("Could not read upload: " + err.Error())
	}

	text, err := transcript.Decode(data)
	if err != nil {
		return upload{}, badRequest("Could not decode transcript text: " + err.Error())
	}
	if name == "" {
		name = DefaultFileName
	}
	return upload{fileName: name, text: text}, nil
}

func readMultipartFile(r *http.Request) ([]byte, string, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, "", err
	}
	defer r.MultipartForm.RemoveAll()

	f, hdr, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, "", badRequest("No file provided")
	}
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", err
	}
	return data, hdr.Filename, nil
}

// fail answers err with the failure envelope and the matching status.
func (s *Server) fail(w http.ResponseWriter, log *slog.Logger, err error) {
	status, msg := http.StatusInternalServerError, err.Error()

	var re *requestError
	switch {
	case errors.As(err, &re):
		status, msg = re.status, re.msg
	case errors.Is(err, transcript.ErrEmptyInput):
		status, msg = http.StatusBadRequest, "The uploaded transcript is empty."
	case errors.Is(err, transcript.ErrNoPages):
		status, msg = http.StatusBadRequest, "Could not parse transcript. Please ensure it's in standard court transcript format."
	}

	if status >= http.StatusInternalServerError {
		log.Error("server: proofread failed", "err", err)
	} else {
		log.Info("server: upload rejected", "status", status, "reason", msg)
	}
	writeJSON(w, status, Response{Success: false, Error: msg})
}

// recoverEnvelope answers panics inside API handlers with the failure
// envelope instead of a bare 500.
func (s *Server) recoverEnvelope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			s.logger.Error("server: panic in handler", "path", r.URL.Path, "panic", rec)
			writeJSON(w, http.StatusInternalServerError, Response{Success: false, Error: fmt.Sprintf("internal error: %v", rec)})
		}()
		next.ServeHTTP(w, r)
	})
}

// wantsHTML reports whether the client asked for the report document.
func wantsHTML(r *http.Request) bool {
	if f := r.URL.Query().Get("format"); f != "" {
		return strings.EqualFold(f, "html")
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

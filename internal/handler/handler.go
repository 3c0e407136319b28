// Package handler exposes the guided conversation as a JSON API. Each
// session is identified by an opaque ID; requests against the same session
// are serialized so its history stays consistent.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/studyaide/internal/audio"
	"github.com/pavelanni/studyaide/internal/conversation"
	"github.com/pavelanni/studyaide/internal/i18n"
	"github.com/pavelanni/studyaide/internal/llm"
	"github.com/pavelanni/studyaide/internal/model"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	machine    *conversation.Machine
	synth      *audio.Synthesizer
	registry   *Registry
	askTimeout time.Duration
}

// New creates a new Handler. synth may be nil when speech is disabled.
func New(m *conversation.Machine, synth *audio.Synthesizer, askTimeout time.Duration) *Handler {
	if askTimeout <= 0 {
		askTimeout = 60 * time.Second
	}
	return &Handler{
		machine:    m,
		synth:      synth,
		registry:   NewRegistry(),
		askTimeout: askTimeout,
	}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Get("/session/{sessionID}", h.handleGetSession)
	r.Post("/session/{sessionID}/path", h.handleSelectPath)
	r.Post("/session/{sessionID}/auth", h.handleAuthenticate)
	r.Post("/session/{sessionID}/module", h.handleSelectModule)
	r.Post("/session/{sessionID}/module/change", h.handleChangeModule)
	r.Post("/session/{sessionID}/documents", h.handleSelectDocuments)
	r.Post("/session/{sessionID}/coursework", h.handleSelectCoursework)
	r.Post("/session/{sessionID}/ask", h.handleAsk)
	r.Post("/session/{sessionID}/reset", h.handleReset)
	r.Post("/session/{sessionID}/language", h.handleSetLanguage)
	r.Post("/session/{sessionID}/speak", h.handleSpeak)
	r.Delete("/session/{sessionID}", h.handleDeleteSession)
}

// stateResponse is the session view returned after every operation.
type stateResponse struct {
	SessionID  string              `json:"session_id"`
	Step       conversation.Step   `json:"step"`
	Language   string              `json:"language"`
	Voice      string              `json:"voice"`
	Path       model.Topic         `json:"path,omitempty"`
	StudentID  string              `json:"student_id,omitempty"`
	Programme  string              `json:"programme,omitempty"`
	Modules    []string            `json:"modules,omitempty"`
	Module     string              `json:"module,omitempty"`
	Available  []model.DocumentRef `json:"available_documents,omitempty"`
	Documents  []model.DocumentRef `json:"selected_documents,omitempty"`
	Coursework *courseworkView     `json:"coursework,omitempty"`
	History    []model.Exchange    `json:"history,omitempty"`
	Answer     string              `json:"answer,omitempty"`
	Warnings   []string            `json:"warnings,omitempty"`
}

type courseworkView struct {
	Kind        model.CourseworkKind `json:"kind,omitempty"`
	Title       string               `json:"title,omitempty"`
	Description string               `json:"description,omitempty"`
	Examples    []string             `json:"example_questions,omitempty"`
}

type errorResponse struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Reason:  "bad_request",
			Message: "invalid JSON: " + err.Error(),
		})
		return false
	}
	return true
}

func (h *Handler) state(ctx context.Context, id string, s *conversation.Session, res conversation.Result) stateResponse {
	resp := stateResponse{
		SessionID: id,
		Step:      s.Step,
		Language:  s.Language,
		Voice:     s.Voice,
		Path:      s.Path,
		Module:    s.Module,
		Available: s.AvailableDocs,
		Documents: s.Documents,
		History:   s.History,
		Answer:    res.Answer,
		Warnings:  localizedWarnings(ctx, s.Language, res.Warnings),
	}
	if s.Student != nil {
		resp.StudentID = s.Student.ID
		resp.Programme = s.Student.Programme
		for m := range s.Student.Modules {
			resp.Modules = append(resp.Modules, m)
		}
		sort.Strings(resp.Modules)
	}
	if s.Coursework != "" {
		resp.Coursework = &courseworkView{
			Kind:        s.Coursework,
			Title:       s.Coursework.Title(),
			Description: s.Coursework.Description(),
			Examples:    model.ExampleQuestions(s.Coursework),
		}
	}
	return resp
}

// acquire locks the requested session. On unknown IDs it writes the 404
// itself and returns ok=false.
func (h *Handler) acquire(w http.ResponseWriter, r *http.Request) (id string, s *conversation.Session, release func(), ok bool) {
	id = chi.URLParam(r, "sessionID")
	s, release, ok = h.registry.Acquire(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{
			Reason:  "unknown_session",
			Message: "no session with that ID",
		})
	}
	return id, s, release, ok
}

// localizedWarnings renders degraded-answer warnings in the session's
// language.
func localizedWarnings(ctx context.Context, lang string, warnings []conversation.Warning) []string {
	if len(warnings) == 0 {
		return nil
	}
	lctx := i18n.WithLocalizer(ctx, i18n.NewLocalizer(lang))
	out := make([]string, 0, len(warnings))
	for _, warn := range warnings {
		switch warn.Code {
		case conversation.WarnDocumentFailed:
			out = append(out, i18n.Td(lctx, "WarnDocumentFailed", map[string]any{"File": warn.File}))
		case conversation.WarnTruncated:
			out = append(out, i18n.T(lctx, "WarnTruncated"))
		default:
			out = append(out, warn.Code)
		}
	}
	return out
}

// localized picks the message for a rejection reason in the session's
// language. Unmapped reasons fall back to the rejection's own message.
func localized(ctx context.Context, lang string, rej *conversation.Rejection) string {
	msgID, ok := reasonMessages[rej.Reason]
	if !ok {
		return rej.Message
	}
	return i18n.T(i18n.WithLocalizer(ctx, i18n.NewLocalizer(lang)), msgID)
}

var reasonMessages = map[conversation.Reason]string{
	conversation.ReasonWrongStep:           "ErrWrongStep",
	conversation.ReasonUnknownTopic:        "ErrUnknownTopic",
	conversation.ReasonInvalidCredentials:  "ErrInvalidCredentials",
	conversation.ReasonNoDocuments:         "ErrNoDocuments",
	conversation.ReasonUnknownDocument:     "ErrUnknownDocument",
	conversation.ReasonNoSelection:         "ErrNoSelection",
	conversation.ReasonUnknownCoursework:   "ErrUnknownCoursework",
	conversation.ReasonEmptyQuestion:       "ErrEmptyQuestion",
	conversation.ReasonUnsupportedLanguage: "ErrUnsupportedLanguage",
}

func rejectionStatus(reason conversation.Reason) int {
	switch reason {
	case conversation.ReasonWrongStep:
		return http.StatusConflict
	case conversation.ReasonInvalidCredentials:
		return http.StatusUnauthorized
	default:
		return http.StatusBadRequest
	}
}

// respond writes either the rejection or the updated session state.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, id string, s *conversation.Session, res conversation.Result) {
	if res.Rejection != nil {
		writeJSON(w, rejectionStatus(res.Rejection.Reason), errorResponse{
			Reason:  string(res.Rejection.Reason),
			Message: localized(r.Context(), s.Language, res.Rejection),
		})
		return
	}
	writeJSON(w, http.StatusOK, h.state(r.Context(), id, s, res))
}

// respondError maps the error taxonomy onto HTTP statuses with localized
// user-facing messages.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, lang string, err error) {
	ctx := i18n.WithLocalizer(r.Context(), i18n.NewLocalizer(lang))

	var gwErr *llm.GatewayError
	switch {
	case errors.Is(err, conversation.ErrDocumentUnavailable):
		slog.Error("documents unavailable", "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Reason:  "document_unavailable",
			Message: i18n.T(ctx, "ErrDocumentUnavailable"),
		})
	case errors.As(err, &gwErr):
		slog.Error("gateway failure", "kind", gwErr.Kind, "error", err)
		switch gwErr.Kind {
		case llm.FailureTimeout:
			writeJSON(w, http.StatusGatewayTimeout, errorResponse{
				Reason:  "gateway_timeout",
				Message: i18n.T(ctx, "ErrGatewayTimeout"),
			})
		case llm.FailureQuota:
			writeJSON(w, http.StatusTooManyRequests, errorResponse{
				Reason:  "gateway_quota",
				Message: i18n.T(ctx, "ErrGatewayQuota"),
			})
		default:
			writeJSON(w, http.StatusBadGateway, errorResponse{
				Reason:  "gateway_failure",
				Message: i18n.T(ctx, "ErrGatewayFailure"),
			})
		}
	default:
		slog.Error("internal error", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Reason:  "internal",
			Message: i18n.T(ctx, "ErrInternal"),
		})
	}
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.machine.NewSession()
	res := h.machine.Start(s)
	id := h.registry.Add(s)
	slog.Info("session created", "session_id", id)
	writeJSON(w, http.StatusCreated, h.state(r.Context(), id, s, res))
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, s, release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()
	writeJSON(w, http.StatusOK, h.state(r.Context(), id, s, conversation.Result{Step: s.Step}))
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	h.registry.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSelectPath(w http.ResponseWriter, r *http.Request) {
	id, s, release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()

	var req struct {
		Topic string `json:"topic"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	h.respond(w, r, id, s, h.machine.SelectPath(s, req.Topic))
}

func (h *Handler) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	id, s, release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()

	var req struct {
		StudentID string `json:"student_id"`
		Code      string `json:"code"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.machine.Authenticate(s, req.StudentID, req.Code)
	if err != nil {
		h.respondError(w, r, s.Language, err)
		return
	}
	h.respond(w, r, id, s, res)
}

func (h *Handler) handleSelectModule(w http.ResponseWriter, r *http.Request) {
	id, s, release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()

	var req struct {
		Module string `json:"module"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.machine.SelectModule(s, req.Module)
	if err != nil {
		h.respondError(w, r, s.Language, err)
		return
	}
	h.respond(w, r, id, s, res)
}

func (h *Handler) handleChangeModule(w http.ResponseWriter, r *http.Request) {
	id, s, release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()
	h.respond(w, r, id, s, h.machine.ChangeModule(s))
}

func (h *Handler) handleSelectDocuments(w http.ResponseWriter, r *http.Request) {
	id, s, release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()

	var req struct {
		Files []string `json:"files"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	h.respond(w, r, id, s, h.machine.SelectDocuments(s, req.Files))
}

func (h *Handler) handleSelectCoursework(w http.ResponseWriter, r *http.Request) {
	id, s, release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()

	var req struct {
		Kind string `json:"kind"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	h.respond(w, r, id, s, h.machine.SelectCourseworkType(s, req.Kind))
}

func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	id, s, release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()

	var req struct {
		Question string `json:"question"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.askTimeout)
	defer cancel()

	res, err := h.machine.Ask(ctx, s, req.Question)
	if err != nil {
		h.respondError(w, r, s.Language, err)
		return
	}
	h.respond(w, r, id, s, res)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	id, s, release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()
	h.respond(w, r, id, s, h.machine.Reset(s))
}

func (h *Handler) handleSetLanguage(w http.ResponseWriter, r *http.Request) {
	id, s, release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()

	var req struct {
		Language string `json:"language"`
		Voice    string `json:"voice"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	res := h.machine.SetLanguage(s, req.Language)
	if res.Rejection == nil && req.Voice != "" && audio.ValidVoice(req.Voice) {
		s.Voice = req.Voice
	}
	h.respond(w, r, id, s, res)
}

// handleSpeak renders the last answer (or the posted text) as MP3 audio.
func (h *Handler) handleSpeak(w http.ResponseWriter, r *http.Request) {
	_, s, release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()

	if h.synth == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{
			Reason:  "speech_disabled",
			Message: "speech generation is not enabled",
		})
		return
	}

	var req struct {
		Text  string `json:"text"`
		Voice string `json:"voice"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	text := req.Text
	if text == "" && len(s.History) > 0 {
		text = s.History[len(s.History)-1].Answer
	}
	if text == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Reason:  "no_text",
			Message: "nothing to speak yet",
		})
		return
	}
	voice := req.Voice
	if voice == "" {
		voice = s.Voice
	}

	data, err := h.synth.Speak(r.Context(), text, voice)
	if err != nil {
		h.respondError(w, r, s.Language, err)
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Error("write audio", "error", err)
	}
}

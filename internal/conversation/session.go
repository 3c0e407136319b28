// Package conversation implements the guided-conversation state machine:
// which step a session is on, what must be present before advancing, and how
// chat questions are grounded and answered.
package conversation

import (
	"fmt"

	"github.com/pavelanni/studyaide/internal/docs"
	"github.com/pavelanni/studyaide/internal/model"
)

// Step is a session's position in the guided flow.
type Step string

const (
	StepStart                Step = "start"
	StepPathSelect           Step = "path_select"
	StepAuth                 Step = "auth"
	StepModuleSelect         Step = "module_select"
	StepDocumentSelect       Step = "document_select"
	StepCourseworkTypeSelect Step = "coursework_type_select"
	StepEthicsChat           Step = "ethics_chat"
	StepCourseworkChat       Step = "coursework_chat"
)

// Action names a session-facing operation.
type Action string

const (
	ActionStart                Action = "start"
	ActionSelectPath           Action = "select_path"
	ActionAuthenticate         Action = "authenticate"
	ActionSelectModule         Action = "select_module"
	ActionSelectDocuments      Action = "select_documents"
	ActionSelectCourseworkType Action = "select_coursework_type"
	ActionAsk                  Action = "ask"
	ActionChangeModule         Action = "change_module"
	ActionReset                Action = "reset"
	ActionSetLanguage          Action = "set_language"
)

// transitions is the exhaustive table of step-specific actions. Reset and
// SetLanguage are accepted from every step and checked separately.
var transitions = map[Step]map[Action]bool{
	StepStart:                {ActionStart: true},
	StepPathSelect:           {ActionSelectPath: true},
	StepAuth:                 {ActionAuthenticate: true},
	StepModuleSelect:         {ActionSelectModule: true},
	StepDocumentSelect:       {ActionSelectDocuments: true, ActionChangeModule: true},
	StepCourseworkTypeSelect: {ActionSelectCourseworkType: true, ActionChangeModule: true},
	StepEthicsChat:           {ActionAsk: true},
	StepCourseworkChat:       {ActionAsk: true, ActionChangeModule: true},
}

// Reason is a machine-readable rejection code.
type Reason string

const (
	ReasonWrongStep           Reason = "wrong_step"
	ReasonUnknownTopic        Reason = "unknown_topic"
	ReasonInvalidCredentials  Reason = "invalid_credentials"
	ReasonNoDocuments         Reason = "no_documents"
	ReasonUnknownDocument     Reason = "unknown_document"
	ReasonNoSelection         Reason = "no_selection"
	ReasonUnknownCoursework   Reason = "unknown_coursework_type"
	ReasonEmptyQuestion       Reason = "empty_question"
	ReasonUnsupportedLanguage Reason = "unsupported_language"
)

// Rejection is the normal negative result of a transition attempt. The
// session is left unchanged when one is returned.
type Rejection struct {
	Reason  Reason `json:"reason"`
	Message string `json:"message"`
}

// Warning codes surfaced alongside a successful answer.
const (
	WarnDocumentFailed = "document_failed"
	WarnTruncated      = "truncated"
)

// Warning flags a degraded answer: a document that could not be loaded or
// grounding text cut to the size limit. Presentation is the caller's job.
type Warning struct {
	Code string `json:"code"`
	File string `json:"file,omitempty"`
}

// Result is the outcome of one session operation.
type Result struct {
	Step      Step       `json:"step"`
	Rejection *Rejection `json:"rejection,omitempty"`
	Answer    string     `json:"answer,omitempty"`
	Warnings  []Warning  `json:"warnings,omitempty"`
}

// Session is the caller-owned conversation state. It is mutated only by
// Machine operations, one at a time per session.
type Session struct {
	Step          Step
	Path          model.Topic
	Student       *model.Student
	Module        string
	AvailableDocs []model.DocumentRef
	Documents     []model.DocumentRef
	Coursework    model.CourseworkKind
	History       []model.Exchange
	Language      string
	Voice         string

	// resolved document sets, keyed by ordered file list, session lifetime
	docCache map[string]*docs.Resolved
}

// NewSession creates a session at the start step.
func NewSession(language, voice string) *Session {
	return &Session{
		Step:     StepStart,
		Language: language,
		Voice:    voice,
		docCache: make(map[string]*docs.Resolved),
	}
}

func (s *Session) can(a Action) *Rejection {
	if transitions[s.Step][a] {
		return nil
	}
	return &Rejection{
		Reason:  ReasonWrongStep,
		Message: fmt.Sprintf("action %s is not available at step %s", a, s.Step),
	}
}

// reset clears everything except the language and voice preferences.
func (s *Session) reset() {
	s.Step = StepStart
	s.Path = ""
	s.Student = nil
	s.clearModule()
}

// clearModule drops the module selection and everything downstream of it.
func (s *Session) clearModule() {
	s.Module = ""
	s.AvailableDocs = nil
	s.Documents = nil
	s.Coursework = ""
	s.History = nil
	s.docCache = make(map[string]*docs.Resolved)
}

func (s *Session) cachedResolve(key string) (*docs.Resolved, bool) {
	if s.docCache == nil {
		return nil, false
	}
	r, ok := s.docCache[key]
	return r, ok
}

func (s *Session) storeResolve(key string, r *docs.Resolved) {
	if s.docCache == nil {
		s.docCache = make(map[string]*docs.Resolved)
	}
	s.docCache[key] = r
}

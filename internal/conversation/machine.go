package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pavelanni/studyaide/internal/docs"
	"github.com/pavelanni/studyaide/internal/model"
	"github.com/pavelanni/studyaide/internal/prompt"
	"github.com/pavelanni/studyaide/internal/store"
)

// ErrDocumentUnavailable means no selected document could be read, so the
// question cannot be grounded at all.
var ErrDocumentUnavailable = errors.New("grounding documents unavailable")

// SupportedLanguages are the response languages the assistant accepts.
var SupportedLanguages = []string{"en", "ar", "fr", "es"}

// RosterIndex answers credential and document lookups.
type RosterIndex interface {
	Lookup(studentID, code string) (*model.Student, error)
	DocumentsFor(studentID, module string) ([]model.DocumentRef, error)
}

// Resolver turns document references into extracted text.
type Resolver interface {
	Resolve(refs []model.DocumentRef) (*docs.Resolved, error)
}

// Gateway produces generated text for a composed prompt payload.
type Gateway interface {
	Generate(ctx context.Context, p *prompt.Payload) (string, error)
}

// Machine validates transitions and orchestrates the resolve, compose, and
// generate chain for chat steps. It holds no per-session state.
type Machine struct {
	roster   RosterIndex
	resolver Resolver
	composer *prompt.Composer
	gateway  Gateway
	cfg      model.AppConfig
}

// NewMachine creates a Machine with its collaborators.
func NewMachine(roster RosterIndex, resolver Resolver, composer *prompt.Composer, gateway Gateway, cfg model.AppConfig) *Machine {
	return &Machine{
		roster:   roster,
		resolver: resolver,
		composer: composer,
		gateway:  gateway,
		cfg:      cfg,
	}
}

// NewSession creates a session with the machine's default preferences.
func (m *Machine) NewSession() *Session {
	return NewSession(m.cfg.DefaultLanguage, m.cfg.DefaultVoice)
}

func rejected(s *Session, r *Rejection) Result {
	return Result{Step: s.Step, Rejection: r}
}

// Start moves a fresh session to path selection.
func (m *Machine) Start(s *Session) Result {
	if rej := s.can(ActionStart); rej != nil {
		return rejected(s, rej)
	}
	s.Step = StepPathSelect
	return Result{Step: s.Step}
}

// SelectPath picks the ethics or coursework path. Ethics goes straight to
// chat; coursework requires authentication first.
func (m *Machine) SelectPath(s *Session, topic string) Result {
	if rej := s.can(ActionSelectPath); rej != nil {
		return rejected(s, rej)
	}
	if !model.ValidTopic(topic) {
		return rejected(s, &Rejection{
			Reason:  ReasonUnknownTopic,
			Message: fmt.Sprintf("unknown topic %q", topic),
		})
	}
	s.Path = model.Topic(topic)
	if s.Path == model.TopicEthics {
		s.Step = StepEthicsChat
	} else {
		s.Step = StepAuth
	}
	return Result{Step: s.Step}
}

// Authenticate validates credentials against the roster. A failed lookup
// leaves the session unchanged so the student can re-prompt.
func (m *Machine) Authenticate(s *Session, studentID, code string) (Result, error) {
	if rej := s.can(ActionAuthenticate); rej != nil {
		return rejected(s, rej), nil
	}
	student, err := m.roster.Lookup(studentID, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.Info("authentication failed", "student_id", store.NormalizeID(studentID))
			return rejected(s, &Rejection{
				Reason:  ReasonInvalidCredentials,
				Message: "invalid student ID or access code",
			}), nil
		}
		return rejected(s, nil), fmt.Errorf("roster lookup: %w", err)
	}
	s.Student = student
	s.Step = StepModuleSelect
	return Result{Step: s.Step}, nil
}

// SelectModule picks a module. Modules with no documents are rejected.
func (m *Machine) SelectModule(s *Session, module string) (Result, error) {
	if rej := s.can(ActionSelectModule); rej != nil {
		return rejected(s, rej), nil
	}
	refs, err := m.roster.DocumentsFor(s.Student.ID, module)
	if err != nil {
		return rejected(s, nil), fmt.Errorf("list documents: %w", err)
	}
	if len(refs) == 0 {
		return rejected(s, &Rejection{
			Reason:  ReasonNoDocuments,
			Message: fmt.Sprintf("no documents found for module %q", module),
		}), nil
	}
	s.Module = module
	s.AvailableDocs = refs
	s.Step = StepDocumentSelect
	return Result{Step: s.Step}, nil
}

// SelectDocuments picks one or more of the module's documents. The selection
// keeps the roster's file-listing order regardless of request order.
func (m *Machine) SelectDocuments(s *Session, files []string) Result {
	if rej := s.can(ActionSelectDocuments); rej != nil {
		return rejected(s, rej)
	}
	if len(files) == 0 {
		return rejected(s, &Rejection{
			Reason:  ReasonNoSelection,
			Message: "select at least one document",
		})
	}
	wanted := make(map[string]bool, len(files))
	for _, f := range files {
		wanted[f] = true
	}
	var selected []model.DocumentRef
	for _, ref := range s.AvailableDocs {
		if wanted[ref.File] {
			selected = append(selected, ref)
			delete(wanted, ref.File)
		}
	}
	for f := range wanted {
		return rejected(s, &Rejection{
			Reason:  ReasonUnknownDocument,
			Message: fmt.Sprintf("document %q is not part of module %q", f, s.Module),
		})
	}
	s.Documents = selected
	s.Step = StepCourseworkTypeSelect
	return Result{Step: s.Step}
}

// SelectCourseworkType picks the kind of help wanted and enters the chat.
func (m *Machine) SelectCourseworkType(s *Session, kind string) Result {
	if rej := s.can(ActionSelectCourseworkType); rej != nil {
		return rejected(s, rej)
	}
	if !model.ValidCourseworkKind(kind) {
		return rejected(s, &Rejection{
			Reason:  ReasonUnknownCoursework,
			Message: fmt.Sprintf("unknown coursework type %q", kind),
		})
	}
	s.Coursework = model.CourseworkKind(kind)
	s.Step = StepCourseworkChat
	return Result{Step: s.Step}
}

// Ask answers a question in a chat step. On gateway failure the history is
// left untouched and the typed error is returned for caller-driven retry; on
// success exactly one question/answer exchange is appended.
func (m *Machine) Ask(ctx context.Context, s *Session, question string) (Result, error) {
	if rej := s.can(ActionAsk); rej != nil {
		return rejected(s, rej), nil
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return rejected(s, &Rejection{
			Reason:  ReasonEmptyQuestion,
			Message: "enter a question first",
		}), nil
	}

	resolved, warnings, err := m.grounding(s)
	if err != nil {
		return rejected(s, nil), err
	}

	payload, err := m.composer.Compose(s.topic(), s.Language, resolved, s.promptContext(), s.History, question)
	if err != nil {
		return rejected(s, nil), fmt.Errorf("compose prompt: %w", err)
	}

	askedAt := time.Now()
	answer, err := m.gateway.Generate(ctx, payload)
	if err != nil {
		// History stays untouched so the caller can resubmit the question.
		return rejected(s, nil), err
	}

	s.History = append(s.History, model.Exchange{
		Question:   question,
		Answer:     answer,
		AskedAt:    askedAt,
		AnsweredAt: time.Now(),
	})
	return Result{Step: s.Step, Answer: answer, Warnings: warnings}, nil
}

// ChangeModule returns an authenticated session to module selection, keeping
// the login but dropping the module, documents, and chat history.
func (m *Machine) ChangeModule(s *Session) Result {
	if rej := s.can(ActionChangeModule); rej != nil {
		return rejected(s, rej)
	}
	s.clearModule()
	s.Step = StepModuleSelect
	return Result{Step: s.Step}
}

// Reset is accepted from any step and clears everything except the language
// and voice preferences.
func (m *Machine) Reset(s *Session) Result {
	s.reset()
	return Result{Step: s.Step}
}

// SetLanguage changes the response language. Accepted from any step.
func (m *Machine) SetLanguage(s *Session, code string) Result {
	for _, lang := range SupportedLanguages {
		if code == lang {
			s.Language = code
			return Result{Step: s.Step}
		}
	}
	return rejected(s, &Rejection{
		Reason:  ReasonUnsupportedLanguage,
		Message: fmt.Sprintf("unsupported language %q", code),
	})
}

func (s *Session) topic() model.Topic {
	if s.Step == StepEthicsChat {
		return model.TopicEthics
	}
	return model.TopicCoursework
}

func (s *Session) promptContext() prompt.Context {
	info := prompt.Context{
		Module:     s.Module,
		Coursework: s.Coursework.Title(),
	}
	if s.Student != nil {
		info.StudentID = s.Student.ID
		info.Programme = s.Student.Programme
	}
	return info
}

// grounding resolves the session's grounding documents, using the per-session
// cache. Ethics always targets the single fixed ethics document.
func (m *Machine) grounding(s *Session) (*docs.Resolved, []Warning, error) {
	var refs []model.DocumentRef
	if s.topic() == model.TopicEthics {
		refs = []model.DocumentRef{{
			File:           m.cfg.EthicsFile,
			Type:           model.DocTypeForFile(m.cfg.EthicsFile),
			Module:         "Ethics",
			CourseworkType: "Ethics Guidance",
			DisplayName:    model.DisplayNameForFile(m.cfg.EthicsFile),
		}}
	} else {
		refs = s.Documents
	}

	key := docs.CacheKey(refs)
	resolved, ok := s.cachedResolve(key)
	if !ok {
		var err error
		resolved, err = m.resolver.Resolve(refs)
		if err != nil {
			var all *docs.AllFailedError
			if errors.As(err, &all) {
				return nil, nil, fmt.Errorf("%w: %v", ErrDocumentUnavailable, err)
			}
			return nil, nil, fmt.Errorf("resolve documents: %w", err)
		}
		s.storeResolve(key, resolved)
	}

	var warnings []Warning
	for _, f := range resolved.Failed {
		warnings = append(warnings, Warning{Code: WarnDocumentFailed, File: f.Ref.File})
	}
	if resolved.Truncated {
		warnings = append(warnings, Warning{Code: WarnTruncated})
	}
	return resolved, warnings, nil
}

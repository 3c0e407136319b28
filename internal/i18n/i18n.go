package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

var jsonUnmarshal = json.Unmarshal

//go:embed locales/*.json
var localeFS embed.FS

type ctxKey struct{}

var bundle *i18n.Bundle

// requiredMessages are the IDs every locale file must define. Missing entries
// fail Init so a broken translation pack is caught at startup, not when a
// student hits the error.
var requiredMessages = []string{
	"AppTitle",
	"ErrWrongStep",
	"ErrUnknownTopic",
	"ErrInvalidCredentials",
	"ErrNoDocuments",
	"ErrUnknownDocument",
	"ErrNoSelection",
	"ErrUnknownCoursework",
	"ErrEmptyQuestion",
	"ErrUnsupportedLanguage",
	"ErrDocumentUnavailable",
	"ErrGatewayTimeout",
	"ErrGatewayQuota",
	"ErrGatewayFailure",
	"ErrInternal",
	"WarnDocumentFailed",
	"WarnTruncated",
}

// Init loads and validates the translation bundle. The given language is the
// fallback for sessions without an explicit preference.
func Init(lang string) error {
	tag, err := language.Parse(lang)
	if err != nil {
		return fmt.Errorf("parse language %q: %w", lang, err)
	}

	bundle = i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("json", jsonUnmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return fmt.Errorf("read locales dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			return fmt.Errorf("read locale file %s: %w", e.Name(), err)
		}
		if err := checkRequired(e.Name(), data); err != nil {
			return err
		}
		bundle.MustParseMessageFileBytes(data, e.Name())
		slog.Info("loaded locale file", "file", e.Name())
	}

	return nil
}

// checkRequired verifies a locale file defines every required message ID.
func checkRequired(name string, data []byte) error {
	var messages map[string]json.RawMessage
	if err := jsonUnmarshal(data, &messages); err != nil {
		return fmt.Errorf("parse locale file %s: %w", name, err)
	}
	for _, id := range requiredMessages {
		if _, ok := messages[id]; !ok {
			return fmt.Errorf("locale file %s: missing message %q", name, id)
		}
	}
	return nil
}

// NewLocalizer creates a localizer for the given language.
func NewLocalizer(lang string) *i18n.Localizer {
	return i18n.NewLocalizer(bundle, lang)
}

// WithLocalizer stores a localizer in the context.
func WithLocalizer(ctx context.Context, loc *i18n.Localizer) context.Context {
	return context.WithValue(ctx, ctxKey{}, loc)
}

// localizerFromCtx retrieves the localizer from context.
func localizerFromCtx(ctx context.Context) *i18n.Localizer {
	if loc, ok := ctx.Value(ctxKey{}).(*i18n.Localizer); ok {
		return loc
	}
	// Fallback: return English localizer.
	return i18n.NewLocalizer(bundle, "en")
}

// T translates a message by ID.
func T(ctx context.Context, msgID string) string {
	loc := localizerFromCtx(ctx)
	s, err := loc.Localize(&i18n.LocalizeConfig{MessageID: msgID})
	if err != nil {
		slog.Warn("missing translation", "id", msgID, "error", err)
		return msgID
	}
	return s
}

// Td translates a message by ID with template data.
func Td(ctx context.Context, msgID string, data map[string]any) string {
	loc := localizerFromCtx(ctx)
	s, err := loc.Localize(&i18n.LocalizeConfig{
		MessageID:    msgID,
		TemplateData: data,
	})
	if err != nil {
		slog.Warn("missing translation", "id", msgID, "error", err)
		return msgID
	}
	return s
}

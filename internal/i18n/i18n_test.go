package i18n

import (
	"context"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "AppTitle")
	if got != "Study Aide" {
		t.Errorf("T(AppTitle) = %q, want 'Study Aide'", got)
	}

	got = T(ctx, "ErrEmptyQuestion")
	if got != "Please enter a question first." {
		t.Errorf("T(ErrEmptyQuestion) = %q", got)
	}
}

func TestTranslateArabic(t *testing.T) {
	ctx := initLang(t, "ar")

	got := T(ctx, "AppTitle")
	if got != "المساعد الدراسي" {
		t.Errorf("T(AppTitle) = %q", got)
	}
}

func TestTranslateFallsBackToDefault(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	// An unknown language falls back to the bundle default.
	ctx := WithLocalizer(context.Background(), NewLocalizer("de"))
	got := T(ctx, "AppTitle")
	if got != "Study Aide" {
		t.Errorf("T(AppTitle) = %q, want English fallback", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "WarnDocumentFailed", map[string]any{"File": "notes.pdf"})
	if got != "Document notes.pdf could not be loaded." {
		t.Errorf("Td(WarnDocumentFailed) = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestEveryLocaleCoversRequiredMessages(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	for _, lang := range []string{"en", "ar", "fr", "es"} {
		ctx := WithLocalizer(context.Background(), NewLocalizer(lang))
		for _, id := range requiredMessages {
			if got := T(ctx, id); got == id {
				t.Errorf("%s: message %q not translated", lang, id)
			}
		}
	}
}

// Package audio turns assistant answers into spoken audio using the
// OpenAI text-to-speech endpoint.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Voices lists the selectable voices in menu order.
var Voices = []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"}

// ValidVoice reports whether v is a known voice name.
func ValidVoice(v string) bool {
	for _, voice := range Voices {
		if v == voice {
			return true
		}
	}
	return false
}

// Synthesizer converts text into MP3 speech.
type Synthesizer struct {
	api          *openai.Client
	model        openai.SpeechModel
	defaultVoice string
}

// NewSynthesizer wraps an OpenAI client for speech generation.
func NewSynthesizer(api *openai.Client, defaultVoice string) *Synthesizer {
	if !ValidVoice(defaultVoice) {
		defaultVoice = Voices[0]
	}
	return &Synthesizer{
		api:          api,
		model:        openai.TTSModel1,
		defaultVoice: defaultVoice,
	}
}

// Speak generates MP3 audio for the given text. Markdown formatting is
// stripped first so the voice does not read asterisks and backticks aloud.
func (s *Synthesizer) Speak(ctx context.Context, text, voice string) ([]byte, error) {
	clean := CleanText(text)
	if clean == "" {
		return nil, errors.New("no text to speak")
	}
	if !ValidVoice(voice) {
		voice = s.defaultVoice
	}

	resp, err := s.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          s.model,
		Input:          clean,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("create speech: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read speech response: %w", err)
	}
	return data, nil
}

var (
	boldRe      = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicRe    = regexp.MustCompile(`\*(.*?)\*`)
	underRe     = regexp.MustCompile(`_(.*?)_`)
	headerRe    = regexp.MustCompile(`(?m)^#+\s*`)
	codeBlockRe = regexp.MustCompile(`(?s)` + "```.*?```")
	inlineRe    = regexp.MustCompile("`([^`]+)`")
	linkRe      = regexp.MustCompile(`\[([^\]]+)\]\([^\)]+\)`)
	newlineRe   = regexp.MustCompile(`\n+`)
	spaceRe     = regexp.MustCompile(`\s+`)
)

// CleanText strips markdown formatting so the result reads naturally as
// speech. Line breaks become sentence pauses.
func CleanText(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	text = boldRe.ReplaceAllString(text, "$1")
	text = italicRe.ReplaceAllString(text, "$1")
	text = underRe.ReplaceAllString(text, "$1")
	text = headerRe.ReplaceAllString(text, "")
	text = codeBlockRe.ReplaceAllString(text, "")
	text = inlineRe.ReplaceAllString(text, "$1")
	text = linkRe.ReplaceAllString(text, "$1")
	text = newlineRe.ReplaceAllString(text, ". ")
	text = spaceRe.ReplaceAllString(text, " ")

	text = strings.TrimSpace(text)
	if text != "" && !strings.HasSuffix(text, ".") && !strings.HasSuffix(text, "!") && !strings.HasSuffix(text, "?") {
		text += "."
	}
	return text
}

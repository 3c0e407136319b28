package model

import (
	"path/filepath"
	"strings"
	"time"
)

// Topic selects which instruction template and grounding source apply.
type Topic string

const (
	// TopicEthics grounds answers in the fixed ethics document.
	TopicEthics Topic = "ethics"
	// TopicCoursework grounds answers in the student's selected module documents.
	TopicCoursework Topic = "coursework"
)

// ValidTopic reports whether s names a known topic.
func ValidTopic(s string) bool {
	t := Topic(s)
	return t == TopicEthics || t == TopicCoursework
}

// DocType is a supported document format.
type DocType string

const (
	DocTypePDF  DocType = "pdf"
	DocTypeDOCX DocType = "docx"
)

// DocTypeForFile derives the document type from a file name extension.
// Unsupported extensions return an empty DocType.
func DocTypeForFile(file string) DocType {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".pdf":
		return DocTypePDF
	case ".docx":
		return DocTypeDOCX
	}
	return ""
}

// DocumentRef identifies one coursework file under the documents directory.
type DocumentRef struct {
	File           string  `json:"file"`
	Type           DocType `json:"type"`
	Module         string  `json:"module"`
	CourseworkType string  `json:"coursework_type"`
	DisplayName    string  `json:"display_name"`
}

// Student is one roster entry: identity plus the modules the student is
// enrolled in and the documents each module carries, in file-listing order.
type Student struct {
	ID        string
	Programme string
	Modules   map[string][]DocumentRef
}

// Exchange is one question/answer pair in a session's chat history.
type Exchange struct {
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	AskedAt    time.Time `json:"asked_at"`
	AnsweredAt time.Time `json:"answered_at"`
}

// RosterStats summarizes the loaded roster.
type RosterStats struct {
	Students   int
	Programmes int
	Modules    int
}

// AppConfig holds runtime parameters set via CLI flags.
type AppConfig struct {
	DocsDir          string // directory holding coursework and ethics files
	EthicsFile       string // file name of the fixed ethics document
	MaxContentLength int    // combined grounding text cap in characters
	HistoryLimit     int    // most recent exchanges included in prompts
	DefaultLanguage  string // response language when the session sets none
	DefaultVoice     string // text-to-speech voice
}

var courseworkPatterns = []struct {
	substr string
	label  string
}{
	{"coursework1", "Coursework 1"},
	{"coursework2", "Coursework 2"},
	{"coursework3", "Coursework 3"},
	{"assignment1", "Assignment 1"},
	{"assignment2", "Assignment 2"},
	{"assignment3", "Assignment 3"},
	{"exam", "Exam Material"},
	{"lecture", "Lecture Notes"},
	{"reading", "Reading Material"},
}

// CourseworkTypeForFile derives a coursework label from a file name.
func CourseworkTypeForFile(file string) string {
	lower := strings.ToLower(file)
	for _, p := range courseworkPatterns {
		if strings.Contains(lower, p.substr) {
			return p.label
		}
	}
	return "Course Materials"
}

// DisplayNameForFile turns a file name into a user-facing document title.
func DisplayNameForFile(file string) string {
	name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == ' ' || r == '-'
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

package model

import "testing"

func TestDocTypeForFile(t *testing.T) {
	tests := []struct {
		file string
		want DocType
	}{
		{"notes.pdf", DocTypePDF},
		{"NOTES.PDF", DocTypePDF},
		{"report.docx", DocTypeDOCX},
		{"report.doc", ""},
		{"readme.txt", ""},
		{"noext", ""},
	}
	for _, tt := range tests {
		if got := DocTypeForFile(tt.file); got != tt.want {
			t.Errorf("DocTypeForFile(%q) = %q, want %q", tt.file, got, tt.want)
		}
	}
}

func TestCourseworkTypeForFile(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"ML_coursework1.pdf", "Coursework 1"},
		{"DB_Coursework2_brief.docx", "Coursework 2"},
		{"stats_assignment1.pdf", "Assignment 1"},
		{"final_exam_guide.pdf", "Exam Material"},
		{"week3_lecture.pdf", "Lecture Notes"},
		{"core_reading_list.pdf", "Reading Material"},
		{"syllabus.pdf", "Course Materials"},
	}
	for _, tt := range tests {
		if got := CourseworkTypeForFile(tt.file); got != tt.want {
			t.Errorf("CourseworkTypeForFile(%q) = %q, want %q", tt.file, got, tt.want)
		}
	}
}

func TestDisplayNameForFile(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"ML_coursework1.pdf", "Ml Coursework1"},
		{"reforming_modernity.pdf", "Reforming Modernity"},
		{"intro-to-databases.docx", "Intro To Databases"},
		{"Exam Guide.pdf", "Exam Guide"},
	}
	for _, tt := range tests {
		if got := DisplayNameForFile(tt.file); got != tt.want {
			t.Errorf("DisplayNameForFile(%q) = %q, want %q", tt.file, got, tt.want)
		}
	}
}

func TestValidTopic(t *testing.T) {
	if !ValidTopic("ethics") || !ValidTopic("coursework") {
		t.Error("known topics rejected")
	}
	if ValidTopic("astrology") || ValidTopic("") {
		t.Error("unknown topic accepted")
	}
}

func TestCourseworkKindCatalog(t *testing.T) {
	for _, k := range CourseworkKinds {
		if !ValidCourseworkKind(string(k)) {
			t.Errorf("catalog kind %q not valid", k)
		}
		if k.Title() == "" || k.Description() == "" {
			t.Errorf("kind %q missing title or description", k)
		}
		if len(ExampleQuestions(k)) == 0 {
			t.Errorf("kind %q has no example questions", k)
		}
	}
	if ValidCourseworkKind("homework") {
		t.Error("unknown kind accepted")
	}
	if got := ExampleQuestions("homework"); len(got) == 0 {
		t.Error("unknown kind should fall back to general examples")
	}
}

package model

// CourseworkKind is the kind of coursework help a student asks for.
type CourseworkKind string

const (
	KindAssignment CourseworkKind = "assignment"
	KindReading    CourseworkKind = "reading"
	KindConcepts   CourseworkKind = "concepts"
	KindExam       CourseworkKind = "exam"
	KindGeneral    CourseworkKind = "general"
)

// CourseworkKinds lists the kinds in menu order.
var CourseworkKinds = []CourseworkKind{KindAssignment, KindReading, KindConcepts, KindExam, KindGeneral}

var courseworkKinds = map[CourseworkKind]struct {
	title       string
	description string
}{
	KindAssignment: {"Assignment Questions", "Help understanding assignment requirements and questions"},
	KindReading:    {"Reading Materials", "Assistance with course readings and materials"},
	KindConcepts:   {"Concepts & Theory", "Explanation of key concepts and theories"},
	KindExam:       {"Exam Preparation", "Help preparing for examinations"},
	KindGeneral:    {"General Questions", "Any other questions about the module"},
}

// ValidCourseworkKind reports whether s names a known coursework kind.
func ValidCourseworkKind(s string) bool {
	_, ok := courseworkKinds[CourseworkKind(s)]
	return ok
}

// Title returns the user-facing title for the kind, or the raw value if unknown.
func (k CourseworkKind) Title() string {
	if info, ok := courseworkKinds[k]; ok {
		return info.title
	}
	return string(k)
}

// Description returns the one-line description for the kind.
func (k CourseworkKind) Description() string {
	return courseworkKinds[k].description
}

var exampleQuestions = map[CourseworkKind][]string{
	KindAssignment: {
		"What are the key requirements for this assignment?",
		"How should I structure my report?",
		"What citation format should I use?",
		"What are the assessment criteria?",
	},
	KindReading: {
		"Can you summarize the main concepts in this module?",
		"What are the key theories I should understand?",
		"Which readings are most important for the exam?",
		"How do these concepts relate to practical applications?",
	},
	KindConcepts: {
		"Can you explain [specific concept] in simple terms?",
		"How does [theory A] relate to [theory B]?",
		"What are some real-world examples of this concept?",
		"Why is this concept important in the field?",
	},
	KindExam: {
		"What topics are likely to be on the exam?",
		"How should I prepare for this type of assessment?",
		"Can you create practice questions for me?",
		"What are the key points I should remember?",
	},
	KindGeneral: {
		"What are the learning objectives for this module?",
		"How can I improve my understanding of this subject?",
		"What additional resources do you recommend?",
		"How does this module connect to my overall programme?",
	},
}

// ExampleQuestions returns sample questions for the kind. Unknown kinds fall
// back to the general list.
func ExampleQuestions(k CourseworkKind) []string {
	if qs, ok := exampleQuestions[k]; ok {
		return qs
	}
	return exampleQuestions[KindGeneral]
}

package model

// Section is one of the four fixed question groupings. Every session draws a
// mandated quota from each section.
type Section string

const (
	SectionObjects  Section = "objects"
	SectionClasses  Section = "classes"
	SectionBuiltins Section = "builtins"
	SectionAdvFunc  Section = "advfunc"
)

// Sections lists all sections in their canonical reporting order.
var Sections = []Section{SectionObjects, SectionClasses, SectionBuiltins, SectionAdvFunc}

// Valid reports whether s names a known section.
func (s Section) Valid() bool {
	for _, known := range Sections {
		if s == known {
			return true
		}
	}
	return false
}

// QuestionType distinguishes exactly-one-correct from multiple-correct questions.
type QuestionType string

const (
	QuestionTypeSingle QuestionType = "single"
	QuestionTypeMulti  QuestionType = "multi"
)

// Question is one entry in the read-mostly question bank.
type Question struct {
	ID             int64        `json:"id"`
	Section        Section      `json:"section"`
	Type           QuestionType `json:"type"`
	Text           string       `json:"text"`
	CodeSnippet    *string      `json:"code_snippet,omitempty"`
	Explanation    *string      `json:"explanation,omitempty"`
	ReferenceURL   *string      `json:"reference_url,omitempty"`
	ReferenceTitle *string      `json:"reference_title,omitempty"`
	Active         bool         `json:"active"`
}

// AnswerOption is one selectable option of a question. OrderIndex gives the
// stable presentation order; IsCorrect is never exposed to takers.
type AnswerOption struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"-"`
	OrderIndex int    `json:"order_index"`
}

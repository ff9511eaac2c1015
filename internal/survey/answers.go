package survey

import "unicode/utf8"

// Answer is one entry of the submitted answer set. Exactly one of
// NumericValue and AnswerText is set.
type Answer struct {
	QuestionID   QuestionID
	NumericValue *int
	AnswerText   *string
}

// Unanswered returns the questions of step that have no entry at all.
// Explicit opt-outs count as answered.
func Unanswered(s Session, step int) []QuestionID {
	st, ok := StepAt(step)
	if !ok {
		return nil
	}
	var missing []QuestionID
	for _, q := range st.Questions {
		if _, answered := s.Answers[q.ID]; !answered {
			missing = append(missing, q.ID)
		}
	}
	return missing
}

// BuildAnswers converts a session into the answer set sent to the backend.
// Opt-outs are dropped, ratings are ordered by question id, and the text and
// satisfaction entries are appended under their reserved ids when non-empty.
func BuildAnswers(s Session) []Answer {
	answers := make([]Answer, 0, len(s.Answers)+2)
	for _, id := range answeredIDs(s.Answers) {
		v := s.Answers[id]
		if v == nil {
			continue
		}
		n := *v
		answers = append(answers, Answer{QuestionID: id, NumericValue: &n})
	}
	if s.TextFeedback != "" {
		text := s.TextFeedback
		answers = append(answers, Answer{QuestionID: TextFeedbackQuestion, AnswerText: &text})
	}
	if s.Satisfaction != "" {
		choice := string(s.Satisfaction)
		answers = append(answers, Answer{QuestionID: SatisfactionQuestion, AnswerText: &choice})
	}
	return answers
}

// TextLength counts characters the way the closing page does.
func TextLength(text string) int {
	return utf8.RuneCountInString(text)
}

// CanSubmit is the closing-page gate: a satisfaction choice and at least
// MinTextFeedbackLength characters of text.
func CanSubmit(s Session) bool {
	return s.Satisfaction != "" && TextLength(s.TextFeedback) >= MinTextFeedbackLength
}

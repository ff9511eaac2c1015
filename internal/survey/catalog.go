// Package survey holds the taste-survey (맛평) catalog, the persisted
// in-progress session, and the wizard state machine that walks a respondent
// through it.
package survey

import "slices"

// QuestionID identifies one question of the survey catalog.
type QuestionID int

// Reserved answer ids. They carry the closing step's free text and
// satisfaction choice and never appear in the rating catalog.
const (
	TextFeedbackQuestion QuestionID = 9
	SatisfactionQuestion QuestionID = 10
)

const (
	// RatingSteps is the number of slider pages before the closing page.
	RatingSteps = 4
	// ClosingStep is the index of the free text + satisfaction page.
	ClosingStep = 4

	MinScore     = 0
	MaxScore     = 100
	DefaultScore = 50

	MinTextFeedbackLength = 20
	MaxTextFeedbackLength = 500
)

// Satisfaction is the closing-step single choice. The empty value means
// nothing has been chosen yet.
type Satisfaction string

const (
	VerySatisfied    Satisfaction = "very_satisfied"
	Satisfied        Satisfaction = "satisfied"
	Neutral          Satisfaction = "neutral"
	Dissatisfied     Satisfaction = "dissatisfied"
	VeryDissatisfied Satisfaction = "very_dissatisfied"
)

// SatisfactionOption pairs a choice with its display label.
type SatisfactionOption struct {
	Value Satisfaction
	Label string
}

// SatisfactionOptions lists the choices in display order.
var SatisfactionOptions = []SatisfactionOption{
	{VerySatisfied, "매우 만족"},
	{Satisfied, "만족"},
	{Neutral, "보통"},
	{Dissatisfied, "불만족"},
	{VeryDissatisfied, "매우 불만족"},
}

// Valid reports whether s is one of the known choices.
func (s Satisfaction) Valid() bool {
	for _, opt := range SatisfactionOptions {
		if opt.Value == s {
			return true
		}
	}
	return false
}

// Labels are the captions under the two ends and the middle of a slider.
type Labels struct {
	Start  string
	Middle string
	End    string
}

// Question is one slider question.
type Question struct {
	ID     QuestionID
	Text   string
	Labels Labels
}

// Step is one page of the wizard.
type Step struct {
	Index     int
	Title     string
	Subtitle  string
	Questions []Question
	// AllowOptOut enables the "hard to judge" checkbox, which records an
	// explicit null answer.
	AllowOptOut bool
}

var catalog = []Step{
	{
		Index:       0,
		Title:       "맛 평가",
		Subtitle:    "확인이 어렵다면 왼쪽 체크박스를 눌러주세요.",
		AllowOptOut: true,
		Questions: []Question{
			{ID: 1, Text: "음식의 맵기는 어떠셨나요?", Labels: Labels{"매운맛 부족", "적당", "너무 매움"}},
			{ID: 3, Text: "음식의 간은 어떠셨나요?", Labels: Labels{"싱거움", "적당", "너무 짬"}},
			{ID: 2, Text: "음식의 달기는 어떠셨나요?", Labels: Labels{"단맛 부족", "적당", "너무 달음"}},
			{ID: 4, Text: "음식의 신맛은 어떠셨나요?", Labels: Labels{"신맛 부족", "적당", "너무 시큼"}},
		},
	},
	{
		Index:    1,
		Title:    "음식 양 평가",
		Subtitle: "나의 평소 식사량 : 1인분",
		Questions: []Question{
			{ID: 5, Text: "오늘 음식의 양은 어떠셨나요?", Labels: Labels{"훨씬 적음", "적당", "훨씬 많았음"}},
		},
	},
	{
		Index:    2,
		Title:    "가격 평가",
		Subtitle: "나의 평소 예산 : 만원~2만원",
		Questions: []Question{
			{ID: 6, Text: "오늘 음식의 가격은 어떻게 느끼셨나요?", Labels: Labels{"훨씬 저렴", "적당", "훨씬 비쌈"}},
		},
	},
	{
		Index:    3,
		Title:    "추천도 평가",
		Subtitle: "항상 긍정적인 답변보다 솔직한 답변이 더 좋아요.",
		Questions: []Question{
			{ID: 7, Text: "이 음식을 다른 사람에게 추천할 의향이 얼마나 있으신가요?", Labels: Labels{"추천안함", "보통(5점)", "적극추천"}},
			{ID: 8, Text: "이 가게에서 메뉴를 다시 주문할 의향이 얼마나 있으신가요?", Labels: Labels{"주문안함", "보통(5점)", "무조건 재주문"}},
		},
	},
	{
		Index:    4,
		Title:    "마지막 한마디",
		Subtitle: "사장님에게 소중한 조언을 전달해보세요.",
	},
}

// Catalog returns a copy of the static step/question catalog.
func Catalog() []Step {
	out := make([]Step, len(catalog))
	for i, st := range catalog {
		out[i] = st
		out[i].Questions = slices.Clone(st.Questions)
	}
	return out
}

// StepAt returns the catalog step with the given index.
func StepAt(index int) (Step, bool) {
	if index < 0 || index >= len(catalog) {
		return Step{}, false
	}
	st := catalog[index]
	st.Questions = slices.Clone(st.Questions)
	return st, true
}

// StepOf returns the index of the step that asks question id.
func StepOf(id QuestionID) (int, bool) {
	for _, st := range catalog {
		for _, q := range st.Questions {
			if q.ID == id {
				return st.Index, true
			}
		}
	}
	return 0, false
}

// QuestionIDs returns every rating question id in presentation order.
func QuestionIDs() []QuestionID {
	var ids []QuestionID
	for _, st := range catalog {
		for _, q := range st.Questions {
			ids = append(ids, q.ID)
		}
	}
	return ids
}

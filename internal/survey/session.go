package survey

import (
	"maps"
	"slices"
)

// Target identifies what is being reviewed.
type Target struct {
	StoreID    int64 `json:"storeId"`
	FoodItemID int64 `json:"foodItemId"`
}

// PhotoFile is a locally selected photo that has not been uploaded yet.
type PhotoFile struct {
	Path        string `json:"path"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Session is the persisted in-progress survey. A nil StoreID and FoodItemID
// mean no survey is active.
type Session struct {
	StoreID     *int64 `json:"storeId"`
	FoodItemID  *int64 `json:"foodItemId"`
	CurrentStep int    `json:"currentStep"`
	// Answers maps a question to a score in [MinScore, MaxScore]. A present
	// key with a nil value is an explicit "could not judge"; an absent key is
	// unanswered.
	Answers      map[QuestionID]*int `json:"answers"`
	Photos       []string            `json:"photos"`
	PhotoFiles   []PhotoFile         `json:"photoFiles"`
	TextFeedback string              `json:"textFeedback"`
	Satisfaction Satisfaction        `json:"satisfaction"`
}

// EmptySession returns the initial state.
func EmptySession() Session {
	return Session{
		Answers:    map[QuestionID]*int{},
		Photos:     []string{},
		PhotoFiles: []PhotoFile{},
	}
}

// Target returns the session's target, if any.
func (s Session) Target() (Target, bool) {
	if s.StoreID == nil || s.FoodItemID == nil {
		return Target{}, false
	}
	return Target{StoreID: *s.StoreID, FoodItemID: *s.FoodItemID}, true
}

// Active reports whether a survey is in progress.
func (s Session) Active() bool {
	_, ok := s.Target()
	return ok
}

// Answer returns the stored answer for id. ok is false when the question is
// unanswered; value is nil for an explicit opt-out.
func (s Session) Answer(id QuestionID) (value *int, ok bool) {
	value, ok = s.Answers[id]
	return value, ok
}

// Clone returns a deep copy.
func (s Session) Clone() Session {
	out := s
	if s.StoreID != nil {
		v := *s.StoreID
		out.StoreID = &v
	}
	if s.FoodItemID != nil {
		v := *s.FoodItemID
		out.FoodItemID = &v
	}
	out.Answers = make(map[QuestionID]*int, len(s.Answers))
	for id, v := range s.Answers {
		if v != nil {
			n := *v
			v = &n
		}
		out.Answers[id] = v
	}
	out.Photos = slices.Clone(s.Photos)
	if out.Photos == nil {
		out.Photos = []string{}
	}
	out.PhotoFiles = slices.Clone(s.PhotoFiles)
	if out.PhotoFiles == nil {
		out.PhotoFiles = []PhotoFile{}
	}
	return out
}

// normalize repairs a decoded session: nil collections become empty and an
// out-of-range step is clamped.
func (s *Session) normalize() {
	if s.Answers == nil {
		s.Answers = map[QuestionID]*int{}
	}
	if s.Photos == nil {
		s.Photos = []string{}
	}
	if s.PhotoFiles == nil {
		s.PhotoFiles = []PhotoFile{}
	}
	s.CurrentStep = min(max(s.CurrentStep, 0), ClosingStep)
}

// Score returns a pointer to v, for use as an answer value.
func Score(v int) *int {
	return &v
}

// answeredIDs lists the keys of answers in ascending order.
func answeredIDs(answers map[QuestionID]*int) []QuestionID {
	return slices.Sorted(maps.Keys(answers))
}

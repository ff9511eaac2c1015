package report

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/chefriend/chefriend-cli/internal/api"
	"github.com/chefriend/chefriend-cli/internal/survey"
)

const schemaVersion = "1.0"

// JSONReporter outputs structured JSON.
type JSONReporter struct {
	// Compact outputs single-line JSON when true (no indentation).
	Compact bool
}

// Format returns "json".
func (r *JSONReporter) Format() string {
	return "json"
}

type jsonHeader struct {
	SchemaVersion string `json:"schema_version"`
	Tool          string `json:"tool"`
	Kind          string `json:"kind"`
}

func header(kind string) jsonHeader {
	return jsonHeader{SchemaVersion: schemaVersion, Tool: "chefriend", Kind: kind}
}

type jsonStatus struct {
	jsonHeader
	Active       bool         `json:"active"`
	StoreID      *int64       `json:"store_id"`
	FoodItemID   *int64       `json:"food_item_id"`
	Step         int          `json:"step"`
	State        string       `json:"state"`
	Answers      []jsonAnswer `json:"answers"`
	Photos       jsonPhotos   `json:"photos"`
	TextLength   int          `json:"text_length"`
	Satisfaction string       `json:"satisfaction,omitempty"`
	CanSubmit    bool         `json:"can_submit"`
	Blockers     []string     `json:"blockers,omitempty"`
	Profile      string       `json:"profile,omitempty"`
	UpdatedAt    *time.Time   `json:"updated_at,omitempty"`
}

type jsonAnswer struct {
	QuestionID int  `json:"question_id"`
	Step       int  `json:"step"`
	Value      *int `json:"value"`
	Skipped    bool `json:"skipped,omitempty"`
}

type jsonPhotos struct {
	Staged     int      `json:"staged"`
	StagedSize uint64   `json:"staged_bytes"`
	Uploaded   []string `json:"uploaded"`
}

// Status writes the survey status as JSON. Unanswered questions are omitted;
// opt-outs appear with a null value and skipped=true.
func (r *JSONReporter) Status(ctx context.Context, v *StatusView, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := v.Session
	out := jsonStatus{
		jsonHeader:   header("status"),
		Active:       s.Active(),
		StoreID:      s.StoreID,
		FoodItemID:   s.FoodItemID,
		Step:         s.CurrentStep,
		State:        v.State.String(),
		Answers:      []jsonAnswer{},
		TextLength:   survey.TextLength(s.TextFeedback),
		Satisfaction: string(s.Satisfaction),
		CanSubmit:    v.CanSubmit,
		Profile:      v.Profile,
		Photos: jsonPhotos{
			Staged:     len(s.PhotoFiles),
			StagedSize: stagedBytes(s.PhotoFiles),
			Uploaded:   append([]string{}, s.Photos...),
		},
	}
	if !v.UpdatedAt.IsZero() {
		t := v.UpdatedAt
		out.UpdatedAt = &t
	}
	if s.Active() && !v.CanSubmit && s.CurrentStep == survey.ClosingStep {
		out.Blockers = submitBlockers(s)
	}
	for _, id := range survey.QuestionIDs() {
		val, ok := s.Answer(id)
		if !ok {
			continue
		}
		step, _ := survey.StepOf(id)
		out.Answers = append(out.Answers, jsonAnswer{QuestionID: int(id), Step: step, Value: val, Skipped: val == nil})
	}
	return r.encode(w, out)
}

type jsonHistory struct {
	jsonHeader
	Page          int            `json:"page"`
	TotalPages    int            `json:"total_pages"`
	TotalElements int            `json:"total_elements"`
	Feedback      []api.Feedback `json:"feedback"`
}

// History writes a page of past feedback as JSON.
func (r *JSONReporter) History(ctx context.Context, page *api.Page[api.Feedback], w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	out := jsonHistory{
		jsonHeader:    header("history"),
		Page:          page.Page,
		TotalPages:    page.TotalPages,
		TotalElements: page.TotalElements,
		Feedback:      page.Content,
	}
	if out.Feedback == nil {
		out.Feedback = []api.Feedback{}
	}
	return r.encode(w, out)
}

type jsonRewards struct {
	jsonHeader
	Rewards     []api.Reward     `json:"rewards,omitempty"`
	Active      []api.Redemption `json:"active,omitempty"`
	Redemptions []api.Redemption `json:"redemptions,omitempty"`
}

// Rewards writes rewards and redemptions as JSON.
func (r *JSONReporter) Rewards(ctx context.Context, v *RewardsView, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.encode(w, jsonRewards{
		jsonHeader:  header("rewards"),
		Rewards:     v.Rewards,
		Active:      v.Active,
		Redemptions: v.Redemptions,
	})
}

func (r *JSONReporter) encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	if !r.Compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

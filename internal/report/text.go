package report

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/chefriend/chefriend-cli/internal/api"
	"github.com/chefriend/chefriend-cli/internal/survey"
)

const (
	doubleLine = "\u2550" // ═
	singleLine = "\u2500" // ─
	lineWidth  = 50
)

// TextReporter outputs plain terminal text.
type TextReporter struct{}

// Format returns "text".
func (r *TextReporter) Format() string {
	return "text"
}

func bars() (string, string) {
	return strings.Repeat(doubleLine, lineWidth), strings.Repeat(singleLine, lineWidth)
}

// Status writes the survey status screen.
func (r *TextReporter) Status(ctx context.Context, v *StatusView, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doubleBar, singleBar := bars()
	b := &strings.Builder{}
	s := v.Session

	fmt.Fprintln(b, doubleBar)
	fmt.Fprintln(b, "chefriend - Survey Status")
	fmt.Fprintln(b, doubleBar)

	t, ok := s.Target()
	if !ok {
		fmt.Fprintln(b, "No survey in progress.")
		fmt.Fprintln(b, doubleBar)
		_, err := io.WriteString(w, b.String())
		return err
	}

	steps := v.steps()
	fmt.Fprintf(b, "Target:  store %d, menu %d\n", t.StoreID, t.FoodItemID)
	stepTitle := ""
	if s.CurrentStep < len(steps) {
		stepTitle = steps[s.CurrentStep].Title
	}
	fmt.Fprintf(b, "Page:    %d of %d (%s) [%s]\n", s.CurrentStep+1, len(steps), stepTitle, v.State)
	fmt.Fprintf(b, "Photos:  %d staged (%s), %d uploaded\n",
		len(s.PhotoFiles), humanize.IBytes(stagedBytes(s.PhotoFiles)), len(s.Photos))
	if !v.UpdatedAt.IsZero() {
		fmt.Fprintf(b, "Saved:   %s\n", humanize.RelTime(v.UpdatedAt, v.now(), "ago", "from now"))
	}
	if v.Profile != "" {
		fmt.Fprintf(b, "Profile: %s\n", v.Profile)
	}

	for _, st := range steps {
		if len(st.Questions) == 0 {
			continue
		}
		fmt.Fprintln(b, singleBar)
		marker := " "
		if st.Index == s.CurrentStep {
			marker = ">"
		}
		fmt.Fprintf(b, "%s %d. %s", marker, st.Index+1, st.Title)
		if st.Subtitle != "" {
			fmt.Fprintf(b, " (%s)", st.Subtitle)
		}
		fmt.Fprintln(b)
		for _, q := range st.Questions {
			fmt.Fprintf(b, "    Q%-2d %-8s %s\n", q.ID, answerText(s, q.ID), q.Text)
		}
	}

	fmt.Fprintln(b, singleBar)
	fmt.Fprintf(b, "Comment:      %d/%d characters\n", survey.TextLength(s.TextFeedback), survey.MaxTextFeedbackLength)
	satisfaction := string(s.Satisfaction)
	if satisfaction == "" {
		satisfaction = "-"
	}
	fmt.Fprintf(b, "Satisfaction: %s\n", satisfaction)

	fmt.Fprintln(b, doubleBar)
	if v.CanSubmit {
		fmt.Fprintln(b, "Ready to submit.")
	} else if s.CurrentStep == survey.ClosingStep {
		fmt.Fprintf(b, "Not ready: %s\n", strings.Join(submitBlockers(s), ", "))
	} else {
		fmt.Fprintf(b, "%d page(s) to go.\n", survey.ClosingStep-s.CurrentStep)
	}
	fmt.Fprintln(b, doubleBar)

	_, err := io.WriteString(w, b.String())
	return err
}

func answerText(s survey.Session, id survey.QuestionID) string {
	v, ok := s.Answer(id)
	switch {
	case !ok:
		return "-"
	case v == nil:
		return "skipped"
	default:
		return fmt.Sprintf("%d", *v)
	}
}

// History writes a page of past feedback, newest first as returned.
func (r *TextReporter) History(ctx context.Context, page *api.Page[api.Feedback], w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doubleBar, singleBar := bars()
	b := &strings.Builder{}

	fmt.Fprintln(b, doubleBar)
	fmt.Fprintln(b, "chefriend - My Feedback")
	fmt.Fprintln(b, doubleBar)

	if len(page.Content) == 0 {
		fmt.Fprintln(b, "No feedback yet.")
	}
	for _, fb := range page.Content {
		fmt.Fprintln(b, singleBar)
		fmt.Fprintf(b, "#%d %s - %s\n", fb.FeedbackID, fb.StoreName, fb.FoodName)
		if !fb.CreatedAt.IsZero() {
			fmt.Fprintf(b, "  Date:    %s (%s)\n", fb.CreatedAt.Format("2006. 01. 02"), humanize.Time(fb.CreatedAt.Time))
		}
		if text := feedbackComment(fb); text != "" {
			fmt.Fprintf(b, "  Comment: %s\n", text)
		}
		fmt.Fprintf(b, "  Answers: %d, Photos: %d\n", len(fb.SurveyAnswers), len(fb.PhotoURLs))
	}

	fmt.Fprintln(b, doubleBar)
	fmt.Fprintf(b, "Page %d of %d (%s total)\n", page.Page+1, max(page.TotalPages, 1), humanize.Comma(int64(page.TotalElements)))
	fmt.Fprintln(b, doubleBar)

	_, err := io.WriteString(w, b.String())
	return err
}

// feedbackComment returns the free-text answer, if any.
func feedbackComment(fb api.Feedback) string {
	for _, a := range fb.SurveyAnswers {
		if a.QuestionID == int(survey.TextFeedbackQuestion) && a.AnswerText != nil {
			return *a.AnswerText
		}
	}
	return ""
}

// Rewards writes the reward catalog and redemptions.
func (r *TextReporter) Rewards(ctx context.Context, v *RewardsView, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doubleBar, singleBar := bars()
	b := &strings.Builder{}

	fmt.Fprintln(b, doubleBar)
	fmt.Fprintln(b, "chefriend - Rewards")
	fmt.Fprintln(b, doubleBar)

	if v.Rewards != nil {
		fmt.Fprintln(b, "Available:")
		if len(v.Rewards) == 0 {
			fmt.Fprintln(b, "  (none)")
		}
		for _, rw := range v.Rewards {
			status := ""
			if !rw.IsActive {
				status = " [inactive]"
			}
			fmt.Fprintf(b, "  [%d] %s - %s feedback(s) needed%s\n", rw.ID, rw.RewardName, humanize.Comma(int64(rw.RequiredCount)), status)
			if rw.Description != "" {
				fmt.Fprintf(b, "      %s\n", rw.Description)
			}
		}
	}
	writeRedemptions(b, singleBar, "Active:", v.Active)
	writeRedemptions(b, singleBar, "History:", v.Redemptions)

	fmt.Fprintln(b, doubleBar)
	_, err := io.WriteString(w, b.String())
	return err
}

func writeRedemptions(b *strings.Builder, bar, title string, rs []api.Redemption) {
	if rs == nil {
		return
	}
	fmt.Fprintln(b, bar)
	fmt.Fprintln(b, title)
	if len(rs) == 0 {
		fmt.Fprintln(b, "  (none)")
	}
	for _, rd := range rs {
		fmt.Fprintf(b, "  #%d %s x%d [%s]", rd.ID, rd.RewardName, rd.RewardCount, rd.Status)
		if rd.DiscountRate != nil {
			fmt.Fprintf(b, " %s%% off", humanize.Ftoa(*rd.DiscountRate))
		}
		if rd.ExpiresAt != nil && !rd.ExpiresAt.IsZero() {
			fmt.Fprintf(b, " expires %s", rd.ExpiresAt.Format("2006-01-02"))
		}
		fmt.Fprintln(b)
	}
}

// Package report renders survey status, feedback history and rewards for
// the terminal or as JSON.
package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chefriend/chefriend-cli/internal/api"
	"github.com/chefriend/chefriend-cli/internal/survey"
)

// Reporter writes views in a specific format.
type Reporter interface {
	// Format returns the format name (e.g., "text", "json").
	Format() string

	// Status writes the in-progress survey.
	Status(ctx context.Context, v *StatusView, w io.Writer) error

	// History writes a page of past feedback.
	History(ctx context.Context, page *api.Page[api.Feedback], w io.Writer) error

	// Rewards writes rewards and redemptions. Nil sections are omitted.
	Rewards(ctx context.Context, v *RewardsView, w io.Writer) error
}

// StatusView is everything the status screen shows.
type StatusView struct {
	Session   survey.Session
	State     survey.State
	Steps     []survey.Step
	CanSubmit bool
	// Profile is how the step subtitles were phrased ("loaded",
	// "missing", ...). Empty when no profile was requested.
	Profile string
	// UpdatedAt is when the session was last saved. Zero if unknown.
	UpdatedAt time.Time
	// Now anchors relative times. Zero means time.Now().
	Now time.Time
}

// RewardsView groups the reward listings.
type RewardsView struct {
	Rewards     []api.Reward
	Active      []api.Redemption
	Redemptions []api.Redemption
}

// New creates a reporter by format name ("text" or "json").
// The format name is case-insensitive.
func New(format string) (Reporter, error) {
	switch strings.ToLower(format) {
	case "text":
		return &TextReporter{}, nil
	case "json":
		return &JSONReporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported report format: %q", format)
	}
}

func (v *StatusView) now() time.Time {
	if v.Now.IsZero() {
		return time.Now()
	}
	return v.Now
}

func (v *StatusView) steps() []survey.Step {
	if len(v.Steps) > 0 {
		return v.Steps
	}
	return survey.Catalog()
}

// stagedBytes sums the size of staged photo files.
func stagedBytes(files []survey.PhotoFile) uint64 {
	var n uint64
	for _, f := range files {
		if f.Size > 0 {
			n += uint64(f.Size)
		}
	}
	return n
}

// submitBlockers explains why the closing page cannot be submitted yet.
func submitBlockers(s survey.Session) []string {
	var out []string
	if s.Satisfaction == "" {
		out = append(out, "choose a satisfaction")
	}
	if n := survey.TextLength(s.TextFeedback); n < survey.MinTextFeedbackLength {
		out = append(out, fmt.Sprintf("write %d more character(s)", survey.MinTextFeedbackLength-n))
	}
	return out
}

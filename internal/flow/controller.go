// Package flow drives the survey wizard: it starts or resumes a session,
// validates answers, backfills defaults when a page is left, and runs the
// two-phase submit (upload photos, then create the feedback record).
package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chefriend/chefriend-cli/internal/api"
	"github.com/chefriend/chefriend-cli/internal/survey"
)

// Backend is the part of the API the controller calls.
type Backend interface {
	CreateFeedback(ctx context.Context, req *api.CreateFeedbackRequest) (*api.CreatedFeedback, error)
	TasteProfile(ctx context.Context) (*api.TasteProfile, error)
}

// Uploader turns staged photo files into remote references, in input order.
type Uploader interface {
	Upload(ctx context.Context, files []survey.PhotoFile) ([]string, error)
}

// StartOutcome tells the caller what Start did.
type StartOutcome int

const (
	// Started means a fresh survey (or one still on its first page) is ready.
	Started StartOutcome = iota
	// ResumePrompt means saved progress exists for this target; the caller
	// must choose Resume or Restart.
	ResumePrompt
)

// BackOutcome tells the caller what Back did.
type BackOutcome int

const (
	// BackMoved means the wizard moved one page back.
	BackMoved BackOutcome = iota
	// BackCancel means the user is on the first page; going back leaves the
	// survey. Progress stays saved.
	BackCancel
)

// ProfileStatus records how the taste profile was obtained.
type ProfileStatus int

const (
	ProfileDefault ProfileStatus = iota
	ProfileLoaded
	// ProfileMissing means the user has never set a profile.
	ProfileMissing
	// ProfileUnavailable means the fetch failed; defaults are shown.
	ProfileUnavailable
)

func (s ProfileStatus) String() string {
	switch s {
	case ProfileLoaded:
		return "loaded"
	case ProfileMissing:
		return "missing"
	case ProfileUnavailable:
		return "unavailable"
	default:
		return "default"
	}
}

// Controller runs one survey at a time over a survey.Store. It is not safe
// for concurrent use.
type Controller struct {
	store    *survey.Store
	backend  Backend
	uploader Uploader
	wizard   *survey.Wizard
	logger   *slog.Logger

	pending       *survey.Target
	profile       survey.TasteProfile
	profileStatus ProfileStatus

	onProgress func(msg string)
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithUploader sets the photo uploader used during submit.
func WithUploader(u Uploader) Option {
	return func(c *Controller) {
		c.uploader = u
	}
}

// WithProgressCallback sets a function called with human-readable progress
// messages during submit.
func WithProgressCallback(fn func(msg string)) Option {
	return func(c *Controller) {
		c.onProgress = fn
	}
}

// New returns a controller positioned at the stored session's step.
func New(store *survey.Store, backend Backend, opts ...Option) *Controller {
	c := &Controller{
		store:   store,
		backend: backend,
		logger:  slog.New(slog.DiscardHandler),
		profile: survey.DefaultTasteProfile(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.wizard = survey.NewWizard(survey.StateForStep(store.Snapshot().CurrentStep))
	return c
}

func (c *Controller) progress(format string, args ...any) {
	if c.onProgress != nil {
		c.onProgress(fmt.Sprintf(format, args...))
	}
}

// Session returns a copy of the current session.
func (c *Controller) Session() survey.Session {
	return c.store.Snapshot()
}

// State returns the wizard state.
func (c *Controller) State() survey.State {
	return c.wizard.State()
}

// CanSubmit reports whether the closing page's submit gate is open.
func (c *Controller) CanSubmit() bool {
	return survey.CanSubmit(c.store.Snapshot())
}

// Steps returns the page titles phrased for the loaded taste profile.
func (c *Controller) Steps() []survey.Step {
	return survey.Steps(c.profile)
}

// --------------------------------------------------------------------------
// Entry
// --------------------------------------------------------------------------

// Start enters the survey for t. If the stored session is for t and past its
// first page, nothing changes and ResumePrompt is returned. Otherwise the
// session is initialized for t, which discards progress for any other
// target.
func (c *Controller) Start(ctx context.Context, t survey.Target) (StartOutcome, error) {
	snap := c.store.Snapshot()
	if cur, ok := snap.Target(); ok && cur == t && snap.CurrentStep > 0 {
		c.pending = &t
		c.wizard.Reset(survey.StateForStep(snap.CurrentStep))
		c.logger.Info("saved survey found", "store_id", t.StoreID, "food_item_id", t.FoodItemID, "step", snap.CurrentStep)
		return ResumePrompt, nil
	}

	c.pending = nil
	if err := c.store.Initialize(ctx, t); err != nil {
		return Started, err
	}
	c.wizard.Reset(survey.StateForStep(c.store.Snapshot().CurrentStep))
	c.logger.Info("survey started", "store_id", t.StoreID, "food_item_id", t.FoodItemID)
	return Started, nil
}

// Resume keeps the saved progress after a ResumePrompt.
func (c *Controller) Resume() {
	c.pending = nil
}

// Restart discards the saved progress after a ResumePrompt and starts over
// on the same target.
func (c *Controller) Restart(ctx context.Context) error {
	snap := c.store.Snapshot()
	t, ok := snap.Target()
	if c.pending != nil {
		t, ok = *c.pending, true
	}
	if !ok {
		return ErrNoActiveSurvey
	}
	c.pending = nil
	if err := c.store.Reset(ctx); err != nil {
		return err
	}
	if err := c.store.Initialize(ctx, t); err != nil {
		return err
	}
	c.wizard.Reset(survey.StateForStep(0))
	c.logger.Info("survey restarted", "store_id", t.StoreID, "food_item_id", t.FoodItemID)
	return nil
}

// Cancel abandons the survey and clears the saved session.
func (c *Controller) Cancel(ctx context.Context) error {
	c.pending = nil
	if err := c.store.Reset(ctx); err != nil {
		return err
	}
	c.wizard.Reset(survey.StateForStep(0))
	return nil
}

// StagePhotos replaces the photo files attached to the survey.
func (c *Controller) StagePhotos(ctx context.Context, files []survey.PhotoFile) error {
	if err := c.requireActive(); err != nil {
		return err
	}
	return c.store.SetPhotoFiles(ctx, files)
}

// --------------------------------------------------------------------------
// Answers
// --------------------------------------------------------------------------

// Answer records a score for a rating question.
func (c *Controller) Answer(ctx context.Context, id survey.QuestionID, value int) error {
	if err := c.requireActive(); err != nil {
		return err
	}
	if _, ok := survey.StepOf(id); !ok {
		return fmt.Errorf("%w: %d", ErrUnknownQuestion, id)
	}
	if value < survey.MinScore || value > survey.MaxScore {
		return fmt.Errorf("%w: %d not in %d..%d", ErrOutOfRange, value, survey.MinScore, survey.MaxScore)
	}
	return c.store.SaveAnswer(ctx, id, survey.Score(value))
}

// OptOut records "could not judge" for a question whose page allows it.
func (c *Controller) OptOut(ctx context.Context, id survey.QuestionID) error {
	if err := c.requireActive(); err != nil {
		return err
	}
	idx, ok := survey.StepOf(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownQuestion, id)
	}
	if st, _ := survey.StepAt(idx); !st.AllowOptOut {
		return fmt.Errorf("%w: %d", ErrOptOutNotAllowed, id)
	}
	return c.store.SaveAnswer(ctx, id, nil)
}

// SetText replaces the free-text comment.
func (c *Controller) SetText(ctx context.Context, text string) error {
	if err := c.requireActive(); err != nil {
		return err
	}
	if n := survey.TextLength(text); n > survey.MaxTextFeedbackLength {
		return fmt.Errorf("%w: %d characters (max %d)", ErrTextTooLong, n, survey.MaxTextFeedbackLength)
	}
	return c.store.SetTextFeedback(ctx, text)
}

// SetSatisfaction records the overall satisfaction choice. An empty choice
// clears it.
func (c *Controller) SetSatisfaction(ctx context.Context, choice survey.Satisfaction) error {
	if err := c.requireActive(); err != nil {
		return err
	}
	if choice != "" && !choice.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSatisfaction, choice)
	}
	return c.store.SetSatisfaction(ctx, choice)
}

// --------------------------------------------------------------------------
// Navigation
// --------------------------------------------------------------------------

// Advance leaves the current page. On a rating page every question without
// an entry is set to the default score first; on the closing page Advance
// submits.
func (c *Controller) Advance(ctx context.Context) (*api.CreatedFeedback, error) {
	if err := c.requireActive(); err != nil {
		return nil, err
	}
	state := c.wizard.State()
	switch state.Phase() {
	case survey.PhaseRating:
		if err := c.backfill(ctx, state.Step()); err != nil {
			return nil, err
		}
		if _, err := c.wizard.Fire(ctx, survey.EventNext); err != nil {
			return nil, err
		}
		return nil, c.store.NextStep(ctx)
	case survey.PhaseClosing, survey.PhaseFailed:
		return c.Submit(ctx)
	default:
		return nil, fmt.Errorf("%w: advance from %s", survey.ErrIllegalTransition, state)
	}
}

func (c *Controller) backfill(ctx context.Context, step int) error {
	for _, id := range survey.Unanswered(c.store.Snapshot(), step) {
		if err := c.store.SaveAnswer(ctx, id, survey.Score(survey.DefaultScore)); err != nil {
			return err
		}
		c.logger.Debug("answer defaulted", "question", id, "value", survey.DefaultScore)
	}
	return nil
}

// Back moves one page back. On the first rating page it returns BackCancel
// and changes nothing.
func (c *Controller) Back(ctx context.Context) (BackOutcome, error) {
	if err := c.requireActive(); err != nil {
		return BackMoved, err
	}
	state := c.wizard.State()
	if state.Phase() == survey.PhaseRating && state.Step() == 0 {
		return BackCancel, nil
	}
	if _, err := c.wizard.Fire(ctx, survey.EventBack); err != nil {
		return BackMoved, err
	}
	if state.Phase() == survey.PhaseFailed {
		return BackMoved, nil
	}
	return BackMoved, c.store.PrevStep(ctx)
}

// --------------------------------------------------------------------------
// Submit
// --------------------------------------------------------------------------

// Submit uploads staged photos, then creates the feedback record. On success
// the session is cleared. On failure it is left as it was so the user can
// retry; photos are uploaded again on every attempt.
func (c *Controller) Submit(ctx context.Context) (*api.CreatedFeedback, error) {
	snap := c.store.Snapshot()
	target, ok := snap.Target()
	if !ok {
		return nil, ErrNoActiveSurvey
	}
	if phase := c.wizard.State().Phase(); phase != survey.PhaseClosing && phase != survey.PhaseFailed {
		return nil, fmt.Errorf("%w: still on %s", ErrNotReady, c.wizard.State())
	}
	if !survey.CanSubmit(snap) {
		return nil, fmt.Errorf("%w: choose a satisfaction and write at least %d characters",
			ErrNotReady, survey.MinTextFeedbackLength)
	}
	if _, err := c.wizard.Fire(ctx, survey.EventSubmit); err != nil {
		return nil, err
	}

	photoRefs := []string{}
	if len(snap.PhotoFiles) > 0 {
		if c.uploader == nil {
			return nil, c.fail(ctx, ErrUploadFailed, fmt.Errorf("no uploader configured"))
		}
		c.progress("Uploading %d photo(s)", len(snap.PhotoFiles))
		refs, err := c.uploader.Upload(ctx, snap.PhotoFiles)
		if err != nil {
			return nil, c.fail(ctx, ErrUploadFailed, err)
		}
		photoRefs = refs
		if err := c.store.SetPhotos(ctx, refs); err != nil {
			c.logger.Warn("persist uploaded photo refs", "error", err)
		}
	}

	req := &api.CreateFeedbackRequest{
		StoreID:       target.StoreID,
		FoodItemID:    target.FoodItemID,
		SurveyAnswers: toAPIAnswers(survey.BuildAnswers(snap)),
		PhotoURLs:     photoRefs,
	}
	c.progress("Submitting feedback for store %d, menu %d", target.StoreID, target.FoodItemID)
	created, err := c.backend.CreateFeedback(ctx, req)
	if err != nil {
		return nil, c.fail(ctx, ErrCreateFailed, err)
	}

	if _, err := c.wizard.Fire(ctx, survey.EventSucceed); err != nil {
		return nil, err
	}
	if err := c.store.Reset(ctx); err != nil {
		c.logger.Warn("clear submitted survey", "error", err)
	}
	c.logger.Info("feedback submitted", "feedback_id", created.FeedbackID, "answers", len(req.SurveyAnswers))
	c.progress("Feedback #%d submitted", created.FeedbackID)
	return created, nil
}

func (c *Controller) fail(ctx context.Context, kind, cause error) error {
	if _, err := c.wizard.Fire(ctx, survey.EventFail); err != nil {
		c.logger.Error("wizard fail transition", "error", err)
	}
	c.logger.Warn("submit failed", "kind", kind, "error", cause)
	return fmt.Errorf("%w: %w", kind, cause)
}

func toAPIAnswers(answers []survey.Answer) []api.SurveyAnswer {
	out := make([]api.SurveyAnswer, len(answers))
	for i, a := range answers {
		out[i] = api.SurveyAnswer{
			QuestionID:   int(a.QuestionID),
			AnswerText:   a.AnswerText,
			NumericValue: a.NumericValue,
		}
	}
	return out
}

// --------------------------------------------------------------------------
// Profile
// --------------------------------------------------------------------------

// LoadProfile fetches the taste profile used to phrase page subtitles. It
// never fails: defaults stand in and the status says why.
func (c *Controller) LoadProfile(ctx context.Context) (survey.TasteProfile, ProfileStatus) {
	p, err := c.backend.TasteProfile(ctx)
	switch {
	case err == nil:
		c.profile = survey.TasteProfile{SpicyLevel: p.SpicyLevel, MealAmount: p.MealAmount, MealSpending: p.MealSpending}
		c.profileStatus = ProfileLoaded
	case api.IsNotFound(err):
		c.profile = survey.DefaultTasteProfile()
		c.profileStatus = ProfileMissing
		c.logger.Info("no taste profile yet, using defaults")
	default:
		c.profile = survey.DefaultTasteProfile()
		c.profileStatus = ProfileUnavailable
		c.logger.Warn("taste profile unavailable, using defaults", "error", err)
	}
	return c.profile, c.profileStatus
}

// ProfileStatus reports how the current profile was obtained.
func (c *Controller) ProfileStatus() ProfileStatus {
	return c.profileStatus
}

func (c *Controller) requireActive() error {
	if !c.store.Snapshot().Active() {
		return ErrNoActiveSurvey
	}
	return nil
}

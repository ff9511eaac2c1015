package flow

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chefriend/chefriend-cli/internal/api"
	"github.com/chefriend/chefriend-cli/internal/auth"
	"github.com/chefriend/chefriend-cli/internal/photo"
	"github.com/chefriend/chefriend-cli/internal/session"
	"github.com/chefriend/chefriend-cli/internal/survey"
	"github.com/chefriend/chefriend-cli/internal/testutil"
	"github.com/chefriend/chefriend-cli/internal/transport"
)

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

type fixture struct {
	backend  *testutil.Backend
	client   *api.Client
	store    *survey.Store
	ctrl     *Controller
	progress []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, nil)
}

func newFixtureWithStore(t *testing.T, store *survey.Store) *fixture {
	t.Helper()
	ctx := context.Background()

	backend := testutil.NewBackend()
	t.Cleanup(backend.Close)

	tokens, err := auth.NewStore(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, tokens.Set(ctx, auth.Credentials{
		AccessToken:  testutil.InitialAccessToken,
		RefreshToken: testutil.InitialRefreshToken,
	}))

	httpClient, err := transport.NewClient(transport.ClientOptions{Timeout: 5 * time.Second})
	require.NoError(t, err)
	client, err := api.New(httpClient, api.Options{BaseURL: backend.URL(), Tokens: tokens})
	require.NoError(t, err)

	if store == nil {
		store, err = survey.NewStore(ctx, nil)
		require.NoError(t, err)
	}

	f := &fixture{backend: backend, client: client, store: store}
	f.ctrl = New(store, client,
		WithUploader(photo.NewUploader(client)),
		WithProgressCallback(func(msg string) { f.progress = append(f.progress, msg) }),
	)
	return f
}

func (f *fixture) startAt(t *testing.T, storeID, foodID int64) {
	t.Helper()
	outcome, err := f.ctrl.Start(context.Background(), survey.Target{StoreID: storeID, FoodItemID: foodID})
	require.NoError(t, err)
	require.Equal(t, Started, outcome)
}

// advanceToClosing leaves every rating page with whatever has been answered.
func (f *fixture) advanceToClosing(t *testing.T) {
	t.Helper()
	for f.ctrl.State().Phase() == survey.PhaseRating {
		_, err := f.ctrl.Advance(context.Background())
		require.NoError(t, err)
	}
	require.Equal(t, survey.PhaseClosing, f.ctrl.State().Phase())
}

func (f *fixture) fillClosing(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.ctrl.SetText(ctx, strings.Repeat("맛", 25)))
	require.NoError(t, f.ctrl.SetSatisfaction(ctx, survey.Satisfied))
}

type sentFeedback struct {
	StoreID       int64 `json:"storeId"`
	FoodItemID    int64 `json:"foodItemId"`
	SurveyAnswers []struct {
		QuestionID   int     `json:"questionId"`
		AnswerText   *string `json:"answerText"`
		NumericValue *int    `json:"numericValue"`
	} `json:"surveyAnswers"`
	PhotoURLs []string `json:"photoUrls"`
}

func decodeSent(t *testing.T, fb testutil.Feedback) sentFeedback {
	t.Helper()
	var s sentFeedback
	require.NoError(t, json.Unmarshal(fb.Body, &s))
	return s
}

func writePNG(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), 0o600))
	return p
}

// ---------------------------------------------------------------------------
// End-to-end submit
// ---------------------------------------------------------------------------

func TestSubmitEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.startAt(t, 7, 42)
	require.NoError(t, f.ctrl.Answer(ctx, 1, 80))
	require.NoError(t, f.ctrl.Answer(ctx, 3, 20))

	_, err := f.ctrl.Advance(ctx)
	require.NoError(t, err)
	sess := f.ctrl.Session()
	assert.Equal(t, 1, sess.CurrentStep)
	for _, id := range []survey.QuestionID{2, 4} {
		v, ok := sess.Answer(id)
		require.True(t, ok, "question %d should be backfilled", id)
		assert.Equal(t, survey.DefaultScore, *v)
	}

	f.advanceToClosing(t)
	assert.False(t, f.ctrl.CanSubmit())
	f.fillClosing(t)
	assert.True(t, f.ctrl.CanSubmit())

	created, err := f.ctrl.Advance(ctx)
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, survey.PhaseDone, f.ctrl.State().Phase())

	feedbacks := f.backend.Feedbacks()
	require.Len(t, feedbacks, 1)
	sent := decodeSent(t, feedbacks[0])
	assert.Equal(t, int64(7), sent.StoreID)
	assert.Equal(t, int64(42), sent.FoodItemID)
	assert.NotNil(t, sent.PhotoURLs)
	assert.Empty(t, sent.PhotoURLs)

	var ids []int
	values := map[int]int{}
	for _, a := range sent.SurveyAnswers {
		ids = append(ids, a.QuestionID)
		if a.NumericValue != nil {
			values[a.QuestionID] = *a.NumericValue
		}
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, ids)
	assert.Equal(t, map[int]int{1: 80, 2: 50, 3: 20, 4: 50, 5: 50, 6: 50, 7: 50, 8: 50}, values)
	assert.Equal(t, "satisfied", *sent.SurveyAnswers[9].AnswerText)

	after := f.ctrl.Session()
	assert.False(t, after.Active())
	assert.Equal(t, 0, after.CurrentStep)
	assert.Empty(t, after.Answers)
	assert.Empty(t, after.TextFeedback)
	assert.Empty(t, after.Satisfaction)

	require.NotEmpty(t, f.progress)
	assert.Contains(t, f.progress[len(f.progress)-1], "submitted")
}

func TestBackfillKeepsOptOutsAndExplicitAnswers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startAt(t, 1, 1)

	require.NoError(t, f.ctrl.Answer(ctx, 1, 70))
	require.NoError(t, f.ctrl.OptOut(ctx, 2))
	_, err := f.ctrl.Advance(ctx)
	require.NoError(t, err)

	sess := f.ctrl.Session()
	v1, _ := sess.Answer(1)
	assert.Equal(t, 70, *v1)
	v2, ok := sess.Answer(2)
	assert.True(t, ok)
	assert.Nil(t, v2, "opt-out must survive backfill")
	v3, _ := sess.Answer(3)
	v4, _ := sess.Answer(4)
	assert.Equal(t, 50, *v3)
	assert.Equal(t, 50, *v4)
	_, ok = sess.Answer(5)
	assert.False(t, ok, "later pages are not backfilled early")
}

func TestOptOutNeverSent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startAt(t, 2, 3)

	require.NoError(t, f.ctrl.OptOut(ctx, 3))
	f.advanceToClosing(t)
	f.fillClosing(t)
	_, err := f.ctrl.Submit(ctx)
	require.NoError(t, err)

	sent := decodeSent(t, f.backend.Feedbacks()[0])
	for _, a := range sent.SurveyAnswers {
		assert.NotEqual(t, 3, a.QuestionID)
	}
	assert.Len(t, sent.SurveyAnswers, 9)
}

// ---------------------------------------------------------------------------
// Failure and retry
// ---------------------------------------------------------------------------

func TestUploadFailureLeavesSessionAndRetries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startAt(t, 7, 42)

	dir := t.TempDir()
	files, err := photo.Stage([]string{writePNG(t, dir, "a.png"), writePNG(t, dir, "b.png")})
	require.NoError(t, err)
	require.NoError(t, f.ctrl.StagePhotos(ctx, files))

	require.NoError(t, f.ctrl.Answer(ctx, 1, 90))
	f.advanceToClosing(t)
	f.fillClosing(t)
	before := f.ctrl.Session()

	f.backend.FailUploadAt = 1
	_, err = f.ctrl.Submit(ctx)
	require.ErrorIs(t, err, ErrUploadFailed)
	assert.NotErrorIs(t, err, ErrCreateFailed)

	assert.Empty(t, f.backend.CallsTo(http.MethodPost, "/api/customer-feedback"))
	after := f.ctrl.Session()
	assert.Equal(t, before.Answers, after.Answers)
	assert.Equal(t, before.TextFeedback, after.TextFeedback)
	assert.Equal(t, before.Satisfaction, after.Satisfaction)
	assert.Empty(t, after.Photos)
	assert.Len(t, after.PhotoFiles, 2)
	assert.Equal(t, survey.PhaseFailed, f.ctrl.State().Phase())

	// The 1st PUT already failed; later PUTs succeed.
	created, err := f.ctrl.Submit(ctx)
	require.NoError(t, err)
	require.NotNil(t, created)

	sent := decodeSent(t, f.backend.Feedbacks()[0])
	require.Len(t, sent.PhotoURLs, 2)
	assert.Contains(t, sent.PhotoURLs[0], "a.png")
	assert.Contains(t, sent.PhotoURLs[1], "b.png")
	for _, key := range sent.PhotoURLs {
		_, ok := f.backend.Uploaded(key)
		assert.True(t, ok, "key %s should have been uploaded", key)
	}
}

func TestCreateFailureLeavesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startAt(t, 7, 42)
	f.advanceToClosing(t)
	f.fillClosing(t)
	before := f.ctrl.Session()

	f.backend.FailCreate = true
	_, err := f.ctrl.Advance(ctx)
	require.ErrorIs(t, err, ErrCreateFailed)
	assert.True(t, api.IsServerError(err))
	assert.Equal(t, before.Answers, f.ctrl.Session().Answers)
	assert.True(t, f.ctrl.Session().Active())

	// Back from the failure returns to the closing page without moving the
	// stored step.
	outcome, err := f.ctrl.Back(ctx)
	require.NoError(t, err)
	assert.Equal(t, BackMoved, outcome)
	assert.Equal(t, survey.PhaseClosing, f.ctrl.State().Phase())
	assert.Equal(t, survey.ClosingStep, f.ctrl.Session().CurrentStep)

	f.backend.FailCreate = false
	_, err = f.ctrl.Advance(ctx)
	require.NoError(t, err)
	assert.Len(t, f.backend.Feedbacks(), 1)
}

func TestSubmitNotReady(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ctrl.Submit(ctx)
	assert.ErrorIs(t, err, ErrNoActiveSurvey)

	f.startAt(t, 1, 1)
	_, err = f.ctrl.Submit(ctx)
	assert.ErrorIs(t, err, ErrNotReady, "rating pages cannot submit")

	f.advanceToClosing(t)
	require.NoError(t, f.ctrl.SetText(ctx, strings.Repeat("a", 19)))
	require.NoError(t, f.ctrl.SetSatisfaction(ctx, survey.Satisfied))
	_, err = f.ctrl.Advance(ctx)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Equal(t, survey.PhaseClosing, f.ctrl.State().Phase())
	assert.Empty(t, f.backend.Feedbacks())
}

// ---------------------------------------------------------------------------
// Entry, resume, navigation
// ---------------------------------------------------------------------------

func TestResumeAndRestart(t *testing.T) {
	ctx := context.Background()
	docs, err := session.NewSQLStore(session.DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer docs.Close()

	store, err := survey.NewStore(ctx, &survey.DocumentPersister{Docs: docs})
	require.NoError(t, err)
	f := newFixtureWithStore(t, store)
	f.startAt(t, 7, 42)
	require.NoError(t, f.ctrl.Answer(ctx, 1, 10))
	_, err = f.ctrl.Advance(ctx)
	require.NoError(t, err)

	// A new process over the same storage.
	reloaded, err := survey.NewStore(ctx, &survey.DocumentPersister{Docs: docs})
	require.NoError(t, err)
	g := newFixtureWithStore(t, reloaded)

	outcome, err := g.ctrl.Start(ctx, survey.Target{StoreID: 7, FoodItemID: 42})
	require.NoError(t, err)
	assert.Equal(t, ResumePrompt, outcome)
	assert.Equal(t, 1, g.ctrl.State().Step())

	g.ctrl.Resume()
	v, _ := g.ctrl.Session().Answer(1)
	assert.Equal(t, 10, *v)

	require.NoError(t, g.ctrl.Restart(ctx))
	sess := g.ctrl.Session()
	assert.Empty(t, sess.Answers)
	assert.Equal(t, 0, sess.CurrentStep)
	tgt, ok := sess.Target()
	require.True(t, ok)
	assert.Equal(t, survey.Target{StoreID: 7, FoodItemID: 42}, tgt)
	assert.Equal(t, 0, g.ctrl.State().Step())
}

func TestStartOnFirstPageDoesNotPrompt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startAt(t, 7, 42)
	require.NoError(t, f.ctrl.Answer(ctx, 1, 33))

	outcome, err := f.ctrl.Start(ctx, survey.Target{StoreID: 7, FoodItemID: 42})
	require.NoError(t, err)
	assert.Equal(t, Started, outcome)
	v, _ := f.ctrl.Session().Answer(1)
	assert.Equal(t, 33, *v, "same target keeps answers")
}

func TestStartDifferentTargetResets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startAt(t, 7, 42)
	require.NoError(t, f.ctrl.Answer(ctx, 1, 33))
	_, err := f.ctrl.Advance(ctx)
	require.NoError(t, err)

	f.startAt(t, 8, 1)
	sess := f.ctrl.Session()
	assert.Empty(t, sess.Answers)
	assert.Equal(t, 0, sess.CurrentStep)
	assert.Equal(t, 0, f.ctrl.State().Step())
}

func TestBackAtFirstPageCancels(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startAt(t, 7, 42)
	require.NoError(t, f.ctrl.Answer(ctx, 1, 60))
	before := f.ctrl.Session()

	outcome, err := f.ctrl.Back(ctx)
	require.NoError(t, err)
	assert.Equal(t, BackCancel, outcome)
	assert.Equal(t, before, f.ctrl.Session())

	_, err = f.ctrl.Advance(ctx)
	require.NoError(t, err)
	outcome, err = f.ctrl.Back(ctx)
	require.NoError(t, err)
	assert.Equal(t, BackMoved, outcome)
	assert.Equal(t, 0, f.ctrl.Session().CurrentStep)
}

func TestCancelClearsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startAt(t, 7, 42)
	require.NoError(t, f.ctrl.Cancel(ctx))
	assert.False(t, f.ctrl.Session().Active())
	assert.ErrorIs(t, f.ctrl.Answer(ctx, 1, 10), ErrNoActiveSurvey)
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

func TestAnswerValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startAt(t, 1, 1)

	assert.ErrorIs(t, f.ctrl.Answer(ctx, 9, 50), ErrUnknownQuestion)
	assert.ErrorIs(t, f.ctrl.Answer(ctx, 99, 50), ErrUnknownQuestion)
	assert.ErrorIs(t, f.ctrl.Answer(ctx, 1, 101), ErrOutOfRange)
	assert.ErrorIs(t, f.ctrl.Answer(ctx, 1, -1), ErrOutOfRange)
	assert.NoError(t, f.ctrl.Answer(ctx, 1, 0))
	assert.NoError(t, f.ctrl.Answer(ctx, 1, 100))

	assert.ErrorIs(t, f.ctrl.OptOut(ctx, 5), ErrOptOutNotAllowed)
	assert.ErrorIs(t, f.ctrl.OptOut(ctx, 10), ErrUnknownQuestion)
	assert.NoError(t, f.ctrl.OptOut(ctx, 4))

	assert.ErrorIs(t, f.ctrl.SetText(ctx, strings.Repeat("가", survey.MaxTextFeedbackLength+1)), ErrTextTooLong)
	assert.NoError(t, f.ctrl.SetText(ctx, strings.Repeat("가", survey.MaxTextFeedbackLength)))

	assert.ErrorIs(t, f.ctrl.SetSatisfaction(ctx, "ecstatic"), ErrInvalidSatisfaction)
	assert.NoError(t, f.ctrl.SetSatisfaction(ctx, survey.Neutral))
	assert.NoError(t, f.ctrl.SetSatisfaction(ctx, ""))
}

// ---------------------------------------------------------------------------
// Profile
// ---------------------------------------------------------------------------

func TestLoadProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("loaded", func(t *testing.T) {
		f := newFixture(t)
		f.backend.SetProfile(1, 3, 1)
		p, status := f.ctrl.LoadProfile(ctx)
		assert.Equal(t, ProfileLoaded, status)
		assert.Equal(t, 3, p.MealAmount)
		steps := f.ctrl.Steps()
		assert.Equal(t, "나의 평소 식사량 : 1.5인분", steps[1].Subtitle)
		assert.Equal(t, "나의 평소 예산 : 만원 이하", steps[2].Subtitle)
	})

	t.Run("missing", func(t *testing.T) {
		f := newFixture(t)
		p, status := f.ctrl.LoadProfile(ctx)
		assert.Equal(t, ProfileMissing, status)
		assert.Equal(t, survey.DefaultTasteProfile(), p)
		assert.Equal(t, "missing", f.ctrl.ProfileStatus().String())
	})

	t.Run("unavailable", func(t *testing.T) {
		f := newFixture(t)
		f.backend.FailProfile = true
		p, status := f.ctrl.LoadProfile(ctx)
		assert.Equal(t, ProfileUnavailable, status)
		assert.Equal(t, survey.DefaultTasteProfile(), p)
		assert.Equal(t, "나의 평소 식사량 : 1인분", f.ctrl.Steps()[1].Subtitle)
	})
}

// ---------------------------------------------------------------------------
// Target resolution
// ---------------------------------------------------------------------------

func TestResolveTarget(t *testing.T) {
	tests := []struct {
		name    string
		store   string
		food    string
		strict  bool
		want    survey.Target
		wantErr bool
	}{
		{name: "valid", store: "7", food: "42", want: survey.Target{StoreID: 7, FoodItemID: 42}},
		{name: "spaces", store: " 7 ", food: "42", want: survey.Target{StoreID: 7, FoodItemID: 42}},
		{name: "missing falls back", store: "", food: "42", want: survey.Target{StoreID: 1, FoodItemID: 42}},
		{name: "garbage falls back", store: "7", food: "abc", want: survey.Target{StoreID: 7, FoodItemID: 1}},
		{name: "zero falls back", store: "0", food: "-3", want: survey.Target{StoreID: 1, FoodItemID: 1}},
		{name: "strict rejects", store: "x", food: "42", strict: true, wantErr: true},
		{name: "strict accepts valid", store: "3", food: "4", strict: true, want: survey.Target{StoreID: 3, FoodItemID: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveTarget(tt.store, tt.food, tt.strict, nil)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTarget)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

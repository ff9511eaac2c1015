package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chefriend/chefriend-cli/internal/api"
	"github.com/chefriend/chefriend-cli/internal/flow"
	"github.com/chefriend/chefriend-cli/internal/photo"
	"github.com/chefriend/chefriend-cli/internal/survey"
)

func newSurveyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "survey",
		Short: "Fill in and submit a taste survey",
		Long: `Fill in and submit a taste survey.

A survey has four rating pages and a closing page. Each rating question takes
a score from 0 to 100; questions left unanswered are set to 50 when the page
is left. The closing page needs a satisfaction choice and a comment of at
least 20 characters.`,
	}

	start := &cobra.Command{
		Use:   "start",
		Short: "Start (or continue) a survey for a menu item",
		Args:  cobra.NoArgs,
		RunE:  withApp(runSurveyStart),
	}
	addTargetFlags(start)

	run := &cobra.Command{
		Use:   "run",
		Short: "Walk through the survey interactively",
		Args:  cobra.NoArgs,
		RunE:  withApp(runWizard),
	}
	addTargetFlags(run)

	cmd.AddCommand(
		start,
		run,
		&cobra.Command{
			Use:   "answer QID VALUE",
			Short: "Score a question (0-100)",
			Args:  cobra.ExactArgs(2),
			RunE: withApp(func(ctx context.Context, a *app, args []string) error {
				id, err := parseQuestionID(args[0])
				if err != nil {
					return err
				}
				v, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("invalid score %q", args[1])
				}
				if err := a.flow.Answer(ctx, id, v); err != nil {
					return err
				}
				a.info("Q%d = %d", id, v)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "skip QID",
			Short: "Mark a question as hard to judge",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(func(ctx context.Context, a *app, args []string) error {
				id, err := parseQuestionID(args[0])
				if err != nil {
					return err
				}
				if err := a.flow.OptOut(ctx, id); err != nil {
					return err
				}
				a.info("Q%d skipped", id)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "next",
			Short: "Go to the next page (submits on the last page)",
			Args:  cobra.NoArgs,
			RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
				created, err := a.flow.Advance(ctx)
				if err != nil {
					return submitError(err)
				}
				if created == nil {
					printPageHeader(a)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "back",
			Short: "Go to the previous page",
			Args:  cobra.NoArgs,
			RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
				outcome, err := a.flow.Back(ctx)
				if err != nil {
					return err
				}
				if outcome == flow.BackCancel {
					a.info("Already on the first page (use 'chefriend survey cancel' to leave the survey)")
					return nil
				}
				printPageHeader(a)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "text TEXT...",
			Short: "Set the comment for the owner",
			Args:  cobra.MinimumNArgs(1),
			RunE: withApp(func(ctx context.Context, a *app, args []string) error {
				text := strings.Join(args, " ")
				if err := a.flow.SetText(ctx, text); err != nil {
					return err
				}
				a.info("Comment saved (%d/%d characters)", survey.TextLength(text), survey.MaxTextFeedbackLength)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "satisfaction CHOICE",
			Short: "Choose overall satisfaction (1-5 or very_satisfied ... very_dissatisfied)",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(func(ctx context.Context, a *app, args []string) error {
				choice, err := parseSatisfaction(args[0])
				if err != nil {
					return err
				}
				if err := a.flow.SetSatisfaction(ctx, choice); err != nil {
					return err
				}
				a.info("Satisfaction: %s", satisfactionLabel(choice))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the survey in progress",
			Args:  cobra.NoArgs,
			RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
				return a.printStatus(ctx)
			}),
		},
		&cobra.Command{
			Use:   "submit",
			Short: "Upload photos and send the feedback",
			Args:  cobra.NoArgs,
			RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
				_, err := a.flow.Submit(ctx)
				return submitError(err)
			}),
		},
		&cobra.Command{
			Use:   "cancel",
			Short: "Abandon the survey and discard saved progress",
			Args:  cobra.NoArgs,
			RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
				if err := a.flow.Cancel(ctx); err != nil {
					return err
				}
				a.info("Survey cancelled")
				return nil
			}),
		},
	)
	return cmd
}

func addTargetFlags(cmd *cobra.Command) {
	cmd.Flags().String("store", "", "Store id")
	cmd.Flags().String("food", "", "Menu item id")
	cmd.Flags().StringArray("photo", nil, "Photo to attach (repeatable, max 10 MiB each)")
	cmd.Flags().Bool("restart", false, "Discard saved progress for this menu item")
	cmd.Flags().Bool("strict", false, "Reject a missing or invalid id instead of falling back to 1")
}

func runSurveyStart(ctx context.Context, a *app, _ []string) error {
	resumed, err := enterSurvey(ctx, a, func(int) bool { return true })
	if err != nil {
		return err
	}
	if resumed {
		a.info("Continuing saved survey (use --restart to start over)")
	}
	return a.printStatus(ctx)
}

// enterSurvey resolves the target flags, starts the survey, stages photos
// and loads the taste profile. resume decides what happens to saved
// progress when --restart is not given; it receives the saved page index.
func enterSurvey(ctx context.Context, a *app, resume func(page int) bool) (resumed bool, err error) {
	flags := a.cmd.Flags()
	storeRaw, _ := flags.GetString("store")
	foodRaw, _ := flags.GetString("food")
	photos, _ := flags.GetStringArray("photo")
	restart, _ := flags.GetBool("restart")
	strict, _ := flags.GetBool("strict")

	target, err := flow.ResolveTarget(storeRaw, foodRaw, strict, a.logger)
	if err != nil {
		return false, err
	}

	// Stage first so a bad path does not leave a half-started survey.
	var files []survey.PhotoFile
	if len(photos) > 0 {
		if files, err = photo.Stage(photos); err != nil {
			return false, err
		}
	}

	outcome, err := a.flow.Start(ctx, target)
	if err != nil {
		return false, err
	}
	// Start only prompts past the first page; --restart clears page 0 too.
	switch {
	case restart:
		if err := a.flow.Restart(ctx); err != nil {
			return false, err
		}
	case outcome == flow.ResumePrompt && resume(a.flow.Session().CurrentStep):
		a.flow.Resume()
		resumed = true
	case outcome == flow.ResumePrompt:
		if err := a.flow.Restart(ctx); err != nil {
			return false, err
		}
	}
	if files != nil {
		if err := a.flow.StagePhotos(ctx, files); err != nil {
			return resumed, err
		}
		a.info("%d photo(s) attached", len(files))
	}

	if a.tokens.Current().SignedIn() {
		a.flow.LoadProfile(ctx)
	}
	return resumed, nil
}

func printPageHeader(a *app) {
	s := a.flow.Session()
	steps := a.flow.Steps()
	if s.CurrentStep >= len(steps) {
		return
	}
	a.info("Page %d of %d: %s", s.CurrentStep+1, len(steps), steps[s.CurrentStep].Title)
}

func parseQuestionID(raw string) (survey.QuestionID, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(strings.ToUpper(raw), "Q"))
	if err != nil {
		return 0, fmt.Errorf("invalid question id %q", raw)
	}
	return survey.QuestionID(n), nil
}

// parseSatisfaction accepts a 1-based position in the option list, the
// option value, or its label.
func parseSatisfaction(raw string) (survey.Satisfaction, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		if n < 1 || n > len(survey.SatisfactionOptions) {
			return "", fmt.Errorf("%w: %d (choose 1-%d)", flow.ErrInvalidSatisfaction, n, len(survey.SatisfactionOptions))
		}
		return survey.SatisfactionOptions[n-1].Value, nil
	}
	for _, opt := range survey.SatisfactionOptions {
		if strings.EqualFold(string(opt.Value), raw) || opt.Label == raw {
			return opt.Value, nil
		}
	}
	return "", fmt.Errorf("%w: %q", flow.ErrInvalidSatisfaction, raw)
}

func satisfactionLabel(s survey.Satisfaction) string {
	for _, opt := range survey.SatisfactionOptions {
		if opt.Value == s {
			return opt.Label
		}
	}
	return string(s)
}

// submitError adds a retry hint to submit failures.
func submitError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, flow.ErrUploadFailed), errors.Is(err, flow.ErrCreateFailed):
		if errors.Is(err, api.ErrUnauthorized) {
			return fmt.Errorf("%w (sign in again, your answers are saved)", err)
		}
		return fmt.Errorf("%w (your answers are saved, run 'chefriend survey submit' to retry)", err)
	default:
		return err
	}
}

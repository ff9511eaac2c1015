package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chefriend/chefriend-cli/internal/flow"
	"github.com/chefriend/chefriend-cli/internal/survey"
)

// action is what the user asked for at the end of a page.
type action int

const (
	actNext action = iota
	actBack
	actStay
	actQuit
	actDone
)

var errBadInput = errors.New("enter a number from 0 to 100")

// prompter reads one answer per line.
type prompter struct {
	sc  *bufio.Scanner
	out io.Writer
}

// ask prints a prompt and returns the trimmed reply. io.EOF means the input
// ended.
func (p *prompter) ask(format string, args ...any) (string, error) {
	fmt.Fprintf(p.out, format, args...)
	if !p.sc.Scan() {
		if err := p.sc.Err(); err != nil {
			return "", err
		}
		fmt.Fprintln(p.out)
		return "", io.EOF
	}
	return strings.TrimSpace(p.sc.Text()), nil
}

// runWizard walks the survey page by page on stdin/stdout. Every answer is
// saved as it is given; quitting keeps the progress.
func runWizard(ctx context.Context, a *app, _ []string) error {
	p := &prompter{sc: bufio.NewScanner(a.in), out: a.out}
	flags := a.cmd.Flags()

	if flags.Changed("store") || flags.Changed("food") || !a.flow.Session().Active() {
		var askErr error
		_, err := enterSurvey(ctx, a, func(page int) bool {
			line, err := p.ask("Saved progress found on page %d. Resume? [Y/n] ", page+1)
			if err != nil {
				askErr = err
				return true
			}
			return !strings.EqualFold(line, "n")
		})
		if err != nil {
			return err
		}
		if askErr != nil {
			return quit(a, askErr)
		}
	} else if a.tokens.Current().SignedIn() {
		a.flow.LoadProfile(ctx)
	}

	for {
		if err := ctx.Err(); err != nil {
			return quit(a, err)
		}

		var (
			act action
			err error
		)
		state := a.flow.State()
		switch state.Phase() {
		case survey.PhaseRating:
			act, err = ratingPage(ctx, a, p, state.Step())
		case survey.PhaseClosing, survey.PhaseFailed:
			act, err = closingPage(ctx, a, p)
		default:
			return nil
		}
		if err != nil {
			return quit(a, err)
		}

		switch act {
		case actNext:
			if _, err := a.flow.Advance(ctx); err != nil {
				return err
			}
		case actBack:
			outcome, err := a.flow.Back(ctx)
			if err != nil {
				return err
			}
			if outcome == flow.BackCancel {
				a.info("Left the survey. Progress is saved.")
				return nil
			}
		case actQuit:
			return quit(a, nil)
		case actDone:
			return nil
		}
	}
}

// quit ends the wizard keeping progress. Running out of input is not an
// error.
func quit(a *app, err error) error {
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	a.info("Progress saved. Run 'chefriend survey run' to continue.")
	return nil
}

func pageHeader(a *app, p *prompter, step int) survey.Step {
	steps := a.flow.Steps()
	st := steps[step]
	fmt.Fprintln(p.out)
	fmt.Fprintf(p.out, "[%d/%d] %s\n", step+1, len(steps), st.Title)
	if st.Subtitle != "" {
		fmt.Fprintf(p.out, "      %s\n", st.Subtitle)
	}
	return st
}

func ratingPage(ctx context.Context, a *app, p *prompter, step int) (action, error) {
	st := pageHeader(a, p, step)
	hint := "0-100, blank keeps the shown value, b back, q quit"
	if st.AllowOptOut {
		hint = "0-100, - if hard to judge, blank keeps the shown value, b back, q quit"
	}
	fmt.Fprintf(p.out, "      (%s)\n", hint)

	for _, q := range st.Questions {
	retry:
		for {
			line, err := p.ask("  Q%d %s\n      %s / %s / %s [%s]: ",
				q.ID, q.Text, q.Labels.Start, q.Labels.Middle, q.Labels.End, shownValue(a.flow.Session(), q.ID))
			if err != nil {
				return actQuit, err
			}

			switch strings.ToLower(line) {
			case "":
				break retry
			case "b":
				return actBack, nil
			case "q":
				return actQuit, nil
			case "-":
				err = a.flow.OptOut(ctx, q.ID)
			default:
				v, convErr := strconv.Atoi(line)
				if convErr != nil {
					err = errBadInput
				} else {
					err = a.flow.Answer(ctx, q.ID, v)
				}
			}
			if err == nil {
				break
			}
			if !isInputError(err) {
				return actQuit, err
			}
			fmt.Fprintf(p.out, "      %v\n", err)
		}
	}
	return actNext, nil
}

func closingPage(ctx context.Context, a *app, p *prompter) (action, error) {
	pageHeader(a, p, survey.ClosingStep)

	for {
		cur := a.flow.Session().TextFeedback
		keep := ""
		if cur != "" {
			keep = ", blank keeps the saved comment"
		}
		line, err := p.ask("  Comment for the owner (%d-%d characters%s): ",
			survey.MinTextFeedbackLength, survey.MaxTextFeedbackLength, keep)
		if err != nil {
			return actQuit, err
		}
		if act, ok := navigation(line); ok {
			return act, nil
		}
		if line == "" {
			break
		}
		if err := a.flow.SetText(ctx, line); err != nil {
			if !isInputError(err) {
				return actQuit, err
			}
			fmt.Fprintf(p.out, "      %v\n", err)
			continue
		}
		break
	}

	for i, opt := range survey.SatisfactionOptions {
		fmt.Fprintf(p.out, "    %d) %s\n", i+1, opt.Label)
	}
	for {
		shown := "-"
		if s := a.flow.Session().Satisfaction; s != "" {
			shown = satisfactionLabel(s)
		}
		line, err := p.ask("  Overall satisfaction [%s]: ", shown)
		if err != nil {
			return actQuit, err
		}
		if act, ok := navigation(line); ok {
			return act, nil
		}
		if line == "" {
			break
		}
		choice, err := parseSatisfaction(line)
		if err == nil {
			err = a.flow.SetSatisfaction(ctx, choice)
		}
		if err != nil {
			if !isInputError(err) {
				return actQuit, err
			}
			fmt.Fprintf(p.out, "      %v\n", err)
			continue
		}
		break
	}

	if !a.flow.CanSubmit() {
		fmt.Fprintf(p.out, "      Choose a satisfaction and write at least %d characters (now %d).\n",
			survey.MinTextFeedbackLength, survey.TextLength(a.flow.Session().TextFeedback))
		return actStay, nil
	}

	line, err := p.ask("  Submit now? [Y/n] ")
	if err != nil {
		return actQuit, err
	}
	if act, ok := navigation(line); ok {
		return act, nil
	}
	if strings.EqualFold(line, "n") {
		return actQuit, nil
	}

	for {
		_, err := a.flow.Submit(ctx)
		if err == nil {
			return actDone, nil
		}
		if !errors.Is(err, flow.ErrUploadFailed) && !errors.Is(err, flow.ErrCreateFailed) {
			return actQuit, err
		}
		a.warn("%v", err)
		line, err := p.ask("  Retry? [Y/n, b to edit] ")
		if err != nil {
			return actQuit, err
		}
		switch strings.ToLower(line) {
		case "n", "q":
			return actQuit, nil
		case "b":
			return actBack, nil
		}
	}
}

// navigation recognizes the page-level commands.
func navigation(line string) (action, bool) {
	switch strings.ToLower(line) {
	case "b":
		return actBack, true
	case "q":
		return actQuit, true
	}
	return 0, false
}

func shownValue(s survey.Session, id survey.QuestionID) string {
	v, ok := s.Answer(id)
	switch {
	case !ok:
		return strconv.Itoa(survey.DefaultScore)
	case v == nil:
		return "hard to judge"
	default:
		return strconv.Itoa(*v)
	}
}

func isInputError(err error) bool {
	for _, target := range []error{
		errBadInput,
		flow.ErrOutOfRange,
		flow.ErrOptOutNotAllowed,
		flow.ErrTextTooLong,
		flow.ErrInvalidSatisfaction,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chefriend/chefriend-cli/internal/api"
	"github.com/chefriend/chefriend-cli/internal/report"
	"github.com/chefriend/chefriend-cli/internal/survey"
)

// --------------------------------------------------------------------------
// history
// --------------------------------------------------------------------------

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the feedback you have sent",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			if err := a.requireSignIn(); err != nil {
				return err
			}
			pg, _ := a.cmd.Flags().GetInt("page")
			size, _ := a.cmd.Flags().GetInt("size")
			page, err := a.client.MyFeedbacks(ctx, api.Pageable{Page: pg, Size: size})
			if err != nil {
				return err
			}
			return a.reporter.History(ctx, page, a.out)
		}),
	}
	cmd.Flags().Int("page", 0, "Page number (0-based)")
	cmd.Flags().Int("size", 20, "Page size")
	return cmd
}

// --------------------------------------------------------------------------
// rewards
// --------------------------------------------------------------------------

func newRewardsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rewards",
		Short: "Show rewards and active coupons",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			return showRewards(ctx, a, true, true, false)
		}),
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List the rewards you can redeem",
			Args:  cobra.NoArgs,
			RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
				return showRewards(ctx, a, true, false, false)
			}),
		},
		&cobra.Command{
			Use:   "active",
			Short: "List unused coupons",
			Args:  cobra.NoArgs,
			RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
				return showRewards(ctx, a, false, true, false)
			}),
		},
		&cobra.Command{
			Use:   "redemptions",
			Short: "List every redemption",
			Args:  cobra.NoArgs,
			RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
				return showRewards(ctx, a, false, false, true)
			}),
		},
		&cobra.Command{
			Use:   "redeem ID",
			Short: "Redeem a reward",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(func(ctx context.Context, a *app, args []string) error {
				if err := a.requireSignIn(); err != nil {
					return err
				}
				id, err := parseID("reward", args[0])
				if err != nil {
					return err
				}
				r, err := a.client.Redeem(ctx, id)
				if err != nil {
					return err
				}
				a.info("Redeemed %s (redemption #%d, %s)", r.RewardName, r.ID, r.Status)
				return showRewards(ctx, a, false, true, false)
			}),
		},
	)
	return cmd
}

func showRewards(ctx context.Context, a *app, rewards, active, all bool) error {
	if err := a.requireSignIn(); err != nil {
		return err
	}
	v := &report.RewardsView{}
	var err error
	if rewards {
		if v.Rewards, err = a.client.MyRewards(ctx); err != nil {
			return err
		}
		if v.Rewards == nil {
			v.Rewards = []api.Reward{}
		}
	}
	if active {
		if v.Active, err = a.client.ActiveRedemptions(ctx); err != nil {
			return err
		}
		if v.Active == nil {
			v.Active = []api.Redemption{}
		}
	}
	if all {
		if v.Redemptions, err = a.client.MyRedemptions(ctx); err != nil {
			return err
		}
		if v.Redemptions == nil {
			v.Redemptions = []api.Redemption{}
		}
	}
	return a.reporter.Rewards(ctx, v, a.out)
}

// --------------------------------------------------------------------------
// profile
// --------------------------------------------------------------------------

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or change your taste profile",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show your taste profile",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			if err := a.requireSignIn(); err != nil {
				return err
			}
			p, err := a.client.TasteProfile(ctx)
			if api.IsNotFound(err) {
				a.info("No taste profile set yet (use 'chefriend profile set')")
				return nil
			}
			if err != nil {
				return err
			}
			return printProfile(a, p)
		}),
	})

	set := &cobra.Command{
		Use:   "set",
		Short: "Change your taste profile (levels 1-3)",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			if err := a.requireSignIn(); err != nil {
				return err
			}
			flags := a.cmd.Flags()
			if !flags.Changed("spicy") && !flags.Changed("amount") && !flags.Changed("spending") {
				return fmt.Errorf("nothing to change (use --spicy, --amount or --spending)")
			}

			d := survey.DefaultTasteProfile()
			cur := api.TasteProfile{SpicyLevel: d.SpicyLevel, MealAmount: d.MealAmount, MealSpending: d.MealSpending}
			if p, err := a.client.TasteProfile(ctx); err == nil {
				cur = *p
			} else if !api.IsNotFound(err) {
				return err
			}

			for _, f := range []struct {
				name string
				dst  *int
			}{
				{"spicy", &cur.SpicyLevel},
				{"amount", &cur.MealAmount},
				{"spending", &cur.MealSpending},
			} {
				if !flags.Changed(f.name) {
					continue
				}
				v, _ := flags.GetInt(f.name)
				if v < 1 || v > 3 {
					return fmt.Errorf("--%s must be 1, 2 or 3, got %d", f.name, v)
				}
				*f.dst = v
			}

			p, err := a.client.UpdateTasteProfile(ctx, cur)
			if err != nil {
				return err
			}
			a.info("Taste profile updated")
			return printProfile(a, p)
		}),
	}
	set.Flags().Int("spicy", 0, "Spicy tolerance (1 mild - 3 hot)")
	set.Flags().Int("amount", 0, "Usual portion (1 small - 3 large)")
	set.Flags().Int("spending", 0, "Usual budget (1 low - 3 high)")
	cmd.AddCommand(set)
	return cmd
}

func printProfile(a *app, p *api.TasteProfile) error {
	if a.reporter.Format() == "json" {
		return writeJSON(a, p)
	}
	tp := survey.TasteProfile{SpicyLevel: p.SpicyLevel, MealAmount: p.MealAmount, MealSpending: p.MealSpending}
	fmt.Fprintf(a.out, "Spicy level:   %d/3\n", tp.SpicyLevel)
	fmt.Fprintf(a.out, "Meal amount:   %s\n", tp.MealAmountText())
	fmt.Fprintf(a.out, "Meal spending: %s\n", tp.MealSpendingText())
	return nil
}

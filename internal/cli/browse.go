package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/chefriend/chefriend-cli/internal/api"
)

func newStoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Look up restaurants",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show ID",
		Short: "Show a restaurant",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			id, err := parseID("store", args[0])
			if err != nil {
				return err
			}
			s, err := a.client.GetStore(ctx, id)
			if err != nil {
				return err
			}
			if a.reporter.Format() == "json" {
				return writeJSON(a, s)
			}
			fmt.Fprintf(a.out, "#%d %s\n", s.StoreID, s.StoreName)
			fmt.Fprintf(a.out, "  Address: %s\n", s.Address)
			if s.Description != "" {
				fmt.Fprintf(a.out, "  %s\n", s.Description)
			}
			for _, link := range []struct{ name, url string }{
				{"Baemin", s.BaeminLink},
				{"Yogiyo", s.YogiyoLink},
				{"Coupang Eats", s.CoupangEatsLink},
			} {
				if link.url != "" {
					fmt.Fprintf(a.out, "  %s: %s\n", link.name, link.url)
				}
			}
			return nil
		}),
	})
	return cmd
}

func newMenuCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "menu",
		Short: "Look up menu items",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show ID",
		Short: "Show a menu item",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			id, err := parseID("menu", args[0])
			if err != nil {
				return err
			}
			f, err := a.client.GetFood(ctx, id)
			if err != nil {
				return err
			}
			if a.reporter.Format() == "json" {
				return writeJSON(a, f)
			}
			fmt.Fprintf(a.out, "#%d %s (store %d)\n", f.FoodItemID, f.FoodName, f.StoreID)
			fmt.Fprintf(a.out, "  Price: %s원\n", humanize.Comma(f.Price))
			if f.CategoryName != "" {
				fmt.Fprintf(a.out, "  Category: %s\n", f.CategoryName)
			}
			if f.Description != "" {
				fmt.Fprintf(a.out, "  %s\n", f.Description)
			}
			if !f.IsActive {
				fmt.Fprintln(a.out, "  (not currently sold)")
			}
			return nil
		}),
	})

	photos := &cobra.Command{
		Use:   "photos ID",
		Short: "List published photos of a menu item",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			id, err := parseID("menu", args[0])
			if err != nil {
				return err
			}
			pg, _ := a.cmd.Flags().GetInt("page")
			size, _ := a.cmd.Flags().GetInt("size")
			page, err := a.client.FoodPhotos(ctx, id, api.Pageable{Page: pg, Size: size})
			if err != nil {
				return err
			}
			if a.reporter.Format() == "json" {
				return writeJSON(a, page)
			}
			if len(page.Content) == 0 {
				fmt.Fprintln(a.out, "No photos yet.")
				return nil
			}
			for _, p := range page.Content {
				fmt.Fprintf(a.out, "#%d %s  %dx%d  %s  %s\n",
					p.PhotoID, p.FileName, p.ImageWidth, p.ImageHeight,
					humanize.IBytes(uint64(max(p.FileSize, 0))), p.ImageURL)
			}
			fmt.Fprintf(a.out, "Page %d of %d (%d photos)\n", page.Page+1, max(page.TotalPages, 1), page.TotalElements)
			return nil
		}),
	}
	photos.Flags().Int("page", 0, "Page number (0-based)")
	photos.Flags().Int("size", 20, "Page size")
	cmd.AddCommand(photos)
	return cmd
}

func parseID(kind, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, raw)
	}
	return id, nil
}

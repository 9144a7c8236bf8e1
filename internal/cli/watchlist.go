package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"deedwatch/internal/app"
)

var (
	watchAdd   app.WatchlistAddOptions
	watchLimit int
)

var watchlistCmd = &cobra.Command{
	Use:   "watchlist",
	Short: "Manage monitored parcels",
}

var watchlistAddCmd = &cobra.Command{
	Use:   "add <apn>",
	Short: "Add or update a monitored parcel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := watchAdd
		opts.APN = strings.TrimSpace(args[0])
		if opts.APN == "" {
			return fmt.Errorf("apn must not be empty")
		}
		if opts.ListingPrice > 0 && !opts.Listed {
			opts.Listed = true
		}
		return getApp().AddWatchlistEntry(cmd.Context(), opts)
	},
}

var watchlistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List monitored parcels",
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}
		return getApp().ListWatchlist(cmd.Context(), app.ShowOptions{Limit: watchLimit})
	},
}

func init() {
	f := watchlistAddCmd.Flags()
	f.StringVar(&watchAdd.Address, "address", "", "Street address")
	f.StringVar(&watchAdd.City, "city", "", "City")
	f.StringVar(&watchAdd.State, "state", "", "State (defaults to monitor.state)")
	f.StringVar(&watchAdd.Zip, "zip", "", "ZIP code")
	f.StringVar(&watchAdd.County, "county", "", "County (defaults to monitor.county)")
	f.Float64Var(&watchAdd.AssessedTotal, "assessed", 0, "Total assessed value")
	f.BoolVar(&watchAdd.Listed, "listed", false, "Parcel is listed for sale")
	f.Float64Var(&watchAdd.ListingPrice, "listing-price", 0, "Current listing price")
	f.StringVar(&watchAdd.ListingBroker, "broker", "", "Listing broker")

	watchlistListCmd.Flags().IntVar(&watchLimit, "limit", 100, "Number of parcels to display")

	watchlistCmd.AddCommand(watchlistAddCmd)
	watchlistCmd.AddCommand(watchlistListCmd)
}

package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"deedwatch/internal/app"
)

var simulate app.SimulateOptions

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Send a synthetic sale alert through the configured channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulate.TransferTax < 0 {
			return errors.New("--dtt must not be negative")
		}
		return getApp().SimulateAlert(cmd.Context(), simulate)
	},
}

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&simulate.APN, "apn", "360-384-05", "Parcel number")
	f.StringVar(&simulate.Address, "address", "123 Test St", "Street address")
	f.Float64Var(&simulate.TransferTax, "dtt", 2860, "Documentary transfer tax; 0 simulates an exempt transfer")
	f.BoolVar(&simulate.Listed, "listed", false, "Parcel was listed for sale")
	f.Float64Var(&simulate.Listing, "listing-price", 0, "Listing price")
	f.Float64Var(&simulate.Assessed, "assessed", 0, "Assessed value")
}

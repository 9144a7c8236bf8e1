package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"deedwatch/internal/storage"
)

// WatchlistAddOptions describe a parcel added from the command line.
type WatchlistAddOptions struct {
	APN           string
	Address       string
	City          string
	State         string
	Zip           string
	County        string
	AssessedTotal float64
	Listed        bool
	ListingPrice  float64
	ListingBroker string
}

// AddWatchlistEntry upserts a monitored parcel keyed by APN.
func (a *App) AddWatchlistEntry(ctx context.Context, opts WatchlistAddOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	county := opts.County
	if county == "" {
		county = a.Config.Monitor.County
	}
	state := opts.State
	if state == "" {
		state = a.Config.Monitor.State
	}

	entry, err := store.UpsertWatchlistEntry(ctx, storage.WatchlistEntry{
		APN:             opts.APN,
		Address:         opts.Address,
		City:            opts.City,
		State:           state,
		Zip:             opts.Zip,
		County:          county,
		AssessedTotal:   positiveDecimal(opts.AssessedTotal),
		IsListedForSale: opts.Listed,
		ListingPrice:    positiveDecimal(opts.ListingPrice),
		ListingBroker:   opts.ListingBroker,
		IsActive:        true,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "watching %s (%s) as %s\n", entry.APN, entry.APNNormalized, entry.ID)
	return nil
}

// ListWatchlist prints monitored parcels.
func (a *App) ListWatchlist(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	entries, err := store.ListWatchlist(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stdout, "watchlist is empty")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "APN\tAddress\tCity\tCounty\tListed\tLast Sale\tLast Price\tActive")
	for _, e := range entries {
		lastSale := "-"
		if e.LastSaleDate != nil {
			lastSale = e.LastSaleDate.Format("2006-01-02")
		}
		lastPrice := "-"
		if e.LastSalePrice.Valid {
			lastPrice = formatPrice(e.LastSalePrice)
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.APN,
			sanitizeInline(e.Address),
			e.City,
			e.County,
			yesNo(e.IsListedForSale),
			lastSale,
			lastPrice,
			yesNo(e.IsActive),
		)
	}
	return writer.Flush()
}

func positiveDecimal(v float64) decimal.NullDecimal {
	if v <= 0 {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(v))
}

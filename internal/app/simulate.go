package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"deedwatch/internal/alertgen"
	"deedwatch/internal/alerting"
	"deedwatch/internal/pricing"
	"deedwatch/internal/storage"
)

// SimulateOptions describe a synthetic sale.
type SimulateOptions struct {
	APN         string
	Address     string
	TransferTax float64
	Listed      bool
	Listing     float64
	Assessed    float64
}

// SimulateAlert renders and dispatches a synthetic sale alert through the
// configured channels. Nothing is persisted.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is disabled")
	}

	dispatcher, closeDispatcher, err := a.newDispatcher()
	if err != nil {
		return err
	}
	defer closeDispatcher()
	if dispatcher == nil {
		return alerting.ErrNoDispatchers
	}

	alert := a.syntheticAlert(opts)
	fmt.Fprintln(os.Stdout, alerting.RenderMessage(alert))

	delivery, err := dispatcher.Dispatch(ctx, alert)
	if err != nil {
		return err
	}
	a.Logger.Info().Str("channel", delivery.Channel).Msg("simulated alert delivered")
	return nil
}

func (a *App) syntheticAlert(opts SimulateOptions) storage.SaleAlert {
	county := a.Config.Monitor.County
	calc := pricing.NewCalculatorFromFloats(a.Config.Pricing.DefaultRate, a.Config.Pricing.Rates)
	dtt := positiveDecimal(opts.TransferTax)

	rec := storage.DeedRecording{
		ID:                     uuid.New(),
		DocNumber:              "SIMULATED",
		RecordingDate:          storage.Day(time.Now()),
		DocType:                "Grant Deed",
		County:                 county,
		APN:                    opts.APN,
		Grantor:                "Simulated Seller LLC",
		Grantee:                "Simulated Buyer LP",
		DocumentaryTransferTax: dtt,
		IsExempt:               !dtt.Valid,
	}
	entry := storage.WatchlistEntry{
		ID:              uuid.New(),
		APN:             opts.APN,
		Address:         opts.Address,
		County:          county,
		AssessedTotal:   positiveDecimal(opts.Assessed),
		IsListedForSale: opts.Listed,
		ListingPrice:    positiveDecimal(opts.Listing),
		IsActive:        true,
	}

	threshold := decimal.NewFromFloat(a.Config.Alerting.HighPriceThreshold)
	if !threshold.IsPositive() {
		threshold = alertgen.DefaultHighPriceThreshold
	}
	alert, _ := alertgen.Build(rec, entry, calc.CalculateSalePrice(dtt, county), threshold)
	alert.ID = uuid.New()
	alert.CreatedAt = time.Now().UTC()
	return alert
}

package app

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"deedwatch/internal/storage"
)

// Export renders sale alerts of a date range as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxRows = a.Config.ResolveMaxRows(opts.MaxRows)

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}
	from := to.AddDate(0, 0, -90)
	if opts.From != nil {
		from = opts.From.UTC()
	}
	if to.Before(from) {
		return errors.New("from must not be after to")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	alerts, err := store.ListAlertsBetween(ctx, storage.Day(from), storage.Day(to), opts.MaxRows)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		a.Logger.Info().Msg("no alerts found for export window")
		return nil
	}
	a.Logger.Info().Int("alerts", len(alerts)).Msg("exporting alerts")

	if opts.CSVPath != "" {
		if err := writeAlertsCSV(opts.CSVPath, alerts); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeAlertsPNG(opts.PNGPath, alerts); err != nil {
			return err
		}
	}

	return nil
}

func writeAlertsCSV(path string, alerts []storage.SaleAlert) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"alert_id", "sale_date", "priority", "apn", "address", "city", "sale_price", "buyer", "seller",
		"was_listed", "listing_price", "price_vs_listing_pct", "assessed_value", "price_vs_assessed", "sent", "acknowledged"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, alert := range alerts {
		record := []string{
			alert.ID.String(),
			alert.SaleDate.Format("2006-01-02"),
			string(alert.Priority),
			alert.APN,
			alert.Address,
			alert.City,
			nullString(alert.SalePrice, 0),
			alert.Buyer,
			alert.Seller,
			yesNo(alert.WasListed),
			nullString(alert.ListingPrice, 0),
			nullString(alert.PriceVsListing, 2),
			nullString(alert.AssessedValue, 0),
			nullString(alert.PriceVsAssessed, 2),
			yesNo(alert.NotificationSent),
			yesNo(alert.Acknowledged),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

// writeAlertsPNG plots priced sales over time. Exempt transfers have no price
// and are left out of the chart.
func writeAlertsPNG(path string, alerts []storage.SaleAlert) error {
	var (
		x      []time.Time
		prices []float64
	)
	for _, alert := range alerts {
		if !alert.SalePrice.Valid {
			continue
		}
		x = append(x, alert.SaleDate)
		prices = append(prices, alert.SalePrice.Decimal.InexactFloat64())
	}
	if len(x) < 2 {
		return errors.New("need at least two priced sales to draw a chart")
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	millions := func(v interface{}) string {
		if f, ok := v.(float64); ok {
			return chart.FloatValueFormatterWithFormat(f/1e6, "$%.1fM")
		}
		return ""
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Sale price",
			ValueFormatter: millions,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Sale price",
				XValues: x,
				YValues: prices,
				Style: chart.Style{
					StrokeWidth: chart.Disabled,
					DotWidth:    4,
				},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func nullString(d decimal.NullDecimal, places int32) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(places)
}

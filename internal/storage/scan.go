package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

func scanWatchlistEntry(row rowScanner) (WatchlistEntry, error) {
	var (
		e                   WatchlistEntry
		assessed, lastPrice sql.NullString
		listing, lastDocNum sql.NullString
	)
	if err := row.Scan(
		&e.ID,
		&e.APN,
		&e.APNNormalized,
		&e.Address,
		&e.City,
		&e.State,
		&e.Zip,
		&e.County,
		&e.BuildingSF,
		&e.LotSF,
		&e.Zoning,
		&assessed,
		&e.AssessedYear,
		&e.LastSaleDate,
		&lastPrice,
		&lastDocNum,
		&e.IsListedForSale,
		&listing,
		&e.ListingBroker,
		&e.ParcelRef,
		&e.IsActive,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		return WatchlistEntry{}, err
	}

	err := decimalFields{
		{"assessed_total", assessed, &e.AssessedTotal},
		{"last_sale_price", lastPrice, &e.LastSalePrice},
		{"listing_price", listing, &e.ListingPrice},
	}.parse()
	if err != nil {
		return WatchlistEntry{}, err
	}
	e.LastSaleDocNumber = stringPtr(lastDocNum)
	return e, nil
}

func scanDeedRecording(row rowScanner) (DeedRecording, error) {
	var (
		r          DeedRecording
		dtt, price sql.NullString
		confidence sql.NullFloat64
		raw        []byte
	)
	if err := row.Scan(
		&r.ID,
		&r.DocNumber,
		&r.RecordingDate,
		&r.DocType,
		&r.County,
		&r.APN,
		&r.APNNormalized,
		&r.Address,
		&r.City,
		&r.Grantor,
		&r.Grantee,
		&dtt,
		&price,
		&r.IsExempt,
		&r.MatchedWatchlistID,
		&confidence,
		&raw,
		&r.Source,
		&r.ProcessedAt,
		&r.CreatedAt,
	); err != nil {
		return DeedRecording{}, err
	}

	err := decimalFields{
		{"documentary_transfer_tax", dtt, &r.DocumentaryTransferTax},
		{"calculated_sale_price", price, &r.CalculatedSalePrice},
	}.parse()
	if err != nil {
		return DeedRecording{}, err
	}
	if confidence.Valid {
		v := confidence.Float64
		r.MatchConfidence = &v
	}
	if len(raw) > 0 {
		r.RawData = json.RawMessage(raw)
	}
	return r, nil
}

func scanSaleAlert(row rowScanner) (SaleAlert, error) {
	var (
		a                                   SaleAlert
		priority                            string
		salePrice, listing, vsListing       sql.NullString
		assessed, vsAssessed, channel, note sql.NullString
	)
	if err := row.Scan(
		&a.ID,
		&a.WatchlistID,
		&a.DeedID,
		&priority,
		&a.APN,
		&a.Address,
		&a.City,
		&salePrice,
		&a.SaleDate,
		&a.Buyer,
		&a.Seller,
		&a.WasListed,
		&listing,
		&vsListing,
		&assessed,
		&vsAssessed,
		&a.NotificationSent,
		&channel,
		&a.NotificationSentAt,
		&a.Acknowledged,
		&a.AcknowledgedAt,
		&note,
		&a.CreatedAt,
	); err != nil {
		return SaleAlert{}, err
	}

	err := decimalFields{
		{"sale_price", salePrice, &a.SalePrice},
		{"listing_price", listing, &a.ListingPrice},
		{"price_vs_listing", vsListing, &a.PriceVsListing},
		{"assessed_value", assessed, &a.AssessedValue},
		{"price_vs_assessed", vsAssessed, &a.PriceVsAssessed},
	}.parse()
	if err != nil {
		return SaleAlert{}, err
	}
	switch Priority(priority) {
	case PriorityHigh, PriorityNormal, PriorityLow:
		a.Priority = Priority(priority)
	default:
		return SaleAlert{}, fmt.Errorf("unknown alert priority %q", priority)
	}
	a.NotificationChannel = stringPtr(channel)
	a.AcknowledgeNote = stringPtr(note)
	return a, nil
}

func scanMonitorRun(row rowScanner) (MonitorRun, error) {
	var (
		run    MonitorRun
		status string
		errMsg sql.NullString
	)
	if err := row.Scan(
		&run.ID,
		&run.StartedAt,
		&run.CompletedAt,
		&run.County,
		&run.RangeStart,
		&run.RangeEnd,
		&run.RecordsFetched,
		&run.RecordsStored,
		&run.RecordsSkipped,
		&run.PagesFailed,
		&run.RecordsMatched,
		&run.AlertsCreated,
		&status,
		&errMsg,
		&run.DurationMs,
	); err != nil {
		return MonitorRun{}, err
	}
	run.Status = RunStatus(status)
	run.ErrorMessage = stringPtr(errMsg)
	return run, nil
}

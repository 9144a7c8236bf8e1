package storage

// Queries are written with $N placeholders and portable casts so the same text
// runs on PostgreSQL and, after rebind, on SQLite.
const (
	watchlistColumns = `id,
        apn,
        apn_normalized,
        COALESCE(address, ''),
        COALESCE(city, ''),
        COALESCE(state, ''),
        COALESCE(zip, ''),
        COALESCE(county, ''),
        building_sf,
        lot_sf,
        COALESCE(zoning, ''),
        CAST(assessed_total AS TEXT),
        assessed_year,
        last_sale_date,
        CAST(last_sale_price AS TEXT),
        last_sale_doc_number,
        is_listed_for_sale,
        CAST(listing_price AS TEXT),
        COALESCE(listing_broker, ''),
        COALESCE(parcel_ref, ''),
        is_active,
        created_at,
        updated_at`

	upsertWatchlistSQL = `INSERT INTO apn_watchlist (
        id, apn, apn_normalized, address, city, state, zip, county,
        building_sf, lot_sf, zoning, assessed_total, assessed_year,
        is_listed_for_sale, listing_price, listing_broker, parcel_ref,
        is_active, created_at, updated_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20
    )
    ON CONFLICT (apn) DO UPDATE
    SET
        apn_normalized     = EXCLUDED.apn_normalized,
        address            = EXCLUDED.address,
        city               = EXCLUDED.city,
        state              = EXCLUDED.state,
        zip                = EXCLUDED.zip,
        county             = EXCLUDED.county,
        building_sf        = EXCLUDED.building_sf,
        lot_sf             = EXCLUDED.lot_sf,
        zoning             = EXCLUDED.zoning,
        assessed_total     = EXCLUDED.assessed_total,
        assessed_year      = EXCLUDED.assessed_year,
        is_listed_for_sale = EXCLUDED.is_listed_for_sale,
        listing_price      = EXCLUDED.listing_price,
        listing_broker     = EXCLUDED.listing_broker,
        parcel_ref         = EXCLUDED.parcel_ref,
        is_active          = EXCLUDED.is_active,
        updated_at         = EXCLUDED.updated_at
    RETURNING ` + watchlistColumns + `;`

	findWatchlistByAPNSQL = `SELECT ` + watchlistColumns + `
    FROM apn_watchlist
    WHERE apn_normalized = $1
      AND is_active = TRUE
    ORDER BY updated_at DESC, id;`

	getWatchlistSQL = `SELECT ` + watchlistColumns + ` FROM apn_watchlist WHERE id = $1;`

	listWatchlistSQL = `SELECT ` + watchlistColumns + `
    FROM apn_watchlist
    ORDER BY apn
    LIMIT $1;`

	applySaleSQL = `UPDATE apn_watchlist
    SET last_sale_date       = $2,
        last_sale_price      = $3,
        last_sale_doc_number = $4,
        is_listed_for_sale   = FALSE,
        updated_at           = $5
    WHERE id = $1
      AND (last_sale_date IS NULL OR last_sale_date <= $2);`

	recordingColumns = `id,
        doc_number,
        recording_date,
        COALESCE(doc_type, ''),
        county,
        COALESCE(apn, ''),
        COALESCE(apn_normalized, ''),
        COALESCE(address, ''),
        COALESCE(city, ''),
        COALESCE(grantor, ''),
        COALESCE(grantee, ''),
        CAST(documentary_transfer_tax AS TEXT),
        CAST(calculated_sale_price AS TEXT),
        is_exempt,
        matched_watchlist_id,
        match_confidence,
        raw_data,
        source,
        processed_at,
        created_at`

	insertRecordingSQL = `INSERT INTO deed_recordings (
        id, doc_number, recording_date, doc_type, county, apn, apn_normalized,
        address, city, grantor, grantee, documentary_transfer_tax,
        is_exempt, raw_data, source, created_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
    )
    ON CONFLICT (doc_number, recording_date) DO NOTHING
    RETURNING ` + recordingColumns + `;`

	findRecordingSQL = `SELECT ` + recordingColumns + `
    FROM deed_recordings
    WHERE doc_number = $1
      AND recording_date = $2;`

	getRecordingSQL = `SELECT ` + recordingColumns + ` FROM deed_recordings WHERE id = $1;`

	listPendingRecordingsSQL = `SELECT ` + recordingColumns + `
    FROM deed_recordings r
    WHERE r.county = $1
      AND r.recording_date >= $2
      AND r.recording_date <= $3
      AND NOT EXISTS (SELECT 1 FROM sale_alerts a WHERE a.deed_id = r.id)
    ORDER BY r.recording_date, r.doc_number;`

	setRecordingMatchSQL = `UPDATE deed_recordings
    SET matched_watchlist_id  = $2,
        match_confidence      = $3,
        calculated_sale_price = $4,
        processed_at          = $5
    WHERE id = $1
      AND matched_watchlist_id IS NULL;`

	alertColumns = `id,
        watchlist_id,
        deed_id,
        priority,
        COALESCE(apn, ''),
        COALESCE(address, ''),
        COALESCE(city, ''),
        CAST(sale_price AS TEXT),
        sale_date,
        COALESCE(buyer, ''),
        COALESCE(seller, ''),
        was_listed,
        CAST(listing_price AS TEXT),
        CAST(price_vs_listing AS TEXT),
        CAST(assessed_value AS TEXT),
        CAST(price_vs_assessed AS TEXT),
        notification_sent,
        notification_channel,
        notification_sent_at,
        acknowledged,
        acknowledged_at,
        acknowledge_note,
        created_at`

	insertAlertSQL = `INSERT INTO sale_alerts (
        id, watchlist_id, deed_id, priority, apn, address, city,
        sale_price, sale_date, buyer, seller, was_listed, listing_price,
        price_vs_listing, assessed_value, price_vs_assessed, created_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17
    )
    ON CONFLICT (watchlist_id, deed_id) DO NOTHING
    RETURNING ` + alertColumns + `;`

	findAlertByPairSQL = `SELECT ` + alertColumns + `
    FROM sale_alerts
    WHERE watchlist_id = $1
      AND deed_id = $2;`

	getAlertSQL = `SELECT ` + alertColumns + ` FROM sale_alerts WHERE id = $1;`

	listUnsentAlertsSQL = `SELECT ` + alertColumns + `
    FROM sale_alerts
    WHERE notification_sent = FALSE
    ORDER BY created_at, id
    LIMIT $1;`

	markAlertSentSQL = `UPDATE sale_alerts
    SET notification_sent    = TRUE,
        notification_channel = $2,
        notification_sent_at = $3
    WHERE id = $1
      AND notification_sent = FALSE;`

	acknowledgeAlertSQL = `UPDATE sale_alerts
    SET acknowledged     = TRUE,
        acknowledged_at  = $2,
        acknowledge_note = $3
    WHERE id = $1
      AND acknowledged = FALSE;`

	listRecentAlertsSQL = `SELECT ` + alertColumns + `
    FROM sale_alerts
    ORDER BY created_at DESC, id
    LIMIT $1;`

	listAlertsBetweenSQL = `SELECT ` + alertColumns + `
    FROM sale_alerts
    WHERE sale_date >= $1
      AND sale_date <= $2
    ORDER BY sale_date, id
    LIMIT $3;`

	runColumns = `id,
        started_at,
        completed_at,
        county,
        date_range_start,
        date_range_end,
        records_fetched,
        records_stored,
        records_skipped,
        pages_failed,
        records_matched,
        alerts_created,
        status,
        error_message,
        duration_ms`

	insertRunSQL = `INSERT INTO monitor_runs (
        id, started_at, county, date_range_start, date_range_end, status
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    );`

	closeRunSQL = `UPDATE monitor_runs
    SET status          = $2,
        completed_at    = $3,
        duration_ms     = $4,
        error_message   = $5,
        records_fetched = $6,
        records_stored  = $7,
        records_skipped = $8,
        pages_failed    = $9,
        records_matched = $10,
        alerts_created  = $11
    WHERE id = $1
      AND status = 'running';`

	getRunSQL = `SELECT ` + runColumns + ` FROM monitor_runs WHERE id = $1;`

	hasCompletedRunSQL = `SELECT COUNT(*)
    FROM monitor_runs
    WHERE county = $1
      AND date_range_start = $2
      AND date_range_end = $3
      AND status = 'completed';`

	listRecentRunsSQL = `SELECT ` + runColumns + `
    FROM monitor_runs
    ORDER BY started_at DESC, id
    LIMIT $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

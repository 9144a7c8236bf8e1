package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"deedwatch/internal/apn"
	"deedwatch/internal/fetcher"
	"deedwatch/internal/storage"
)

// ErrMalformed marks a provider record without a document number or a
// parseable recording date. Such records are counted and skipped.
var ErrMalformed = errors.New("ingest: malformed recording")

var recordingDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"1/2/2006",
}

// ParseRecordingDate accepts the date formats seen in provider feeds and
// returns the UTC calendar day.
func ParseRecordingDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: missing recording date", ErrMalformed)
	}
	for _, layout := range recordingDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return storage.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable recording date %q", ErrMalformed, s)
}

// Normalize validates a provider record and maps it onto a DeedRecording.
func Normalize(raw fetcher.RawRecording, county, source string) (storage.DeedRecording, error) {
	docNumber := strings.TrimSpace(raw.DocNumber)
	if docNumber == "" {
		return storage.DeedRecording{}, fmt.Errorf("%w: missing document number", ErrMalformed)
	}
	date, err := ParseRecordingDate(raw.RecordingDate)
	if err != nil {
		return storage.DeedRecording{}, err
	}

	payload := raw.Raw
	if len(payload) == 0 {
		if b, err := json.Marshal(raw); err == nil {
			payload = b
		}
	}

	dtt := raw.TransferTax
	return storage.DeedRecording{
		DocNumber:              docNumber,
		RecordingDate:          date,
		DocType:                strings.TrimSpace(raw.DocType),
		County:                 county,
		APN:                    strings.TrimSpace(raw.APN),
		APNNormalized:          apn.Normalize(raw.APN),
		Address:                strings.TrimSpace(raw.Address),
		City:                   strings.TrimSpace(raw.City),
		Grantor:                strings.TrimSpace(raw.Grantor),
		Grantee:                strings.TrimSpace(raw.Grantee),
		DocumentaryTransferTax: dtt,
		IsExempt:               !dtt.Valid || !dtt.Decimal.IsPositive(),
		RawData:                payload,
		Source:                 source,
	}, nil
}

package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	propertyRadarName       = "propertyradar"
	propertyRadarSearchPath = "/recordings/search"
)

var propertyRadarFields = []string{
	"documentNumber", "recordingDate", "documentType",
	"apn", "propertyAddress", "propertyCity",
	"grantor", "grantee", "transferTax",
}

// PropertyRadarOptions parameterise the PropertyRadar fetcher.
type PropertyRadarOptions struct {
	BaseURL   string
	APIKey    string
	PageSize  int
	Timeout   time.Duration
	UserAgent string
}

// PropertyRadar searches California deed recordings by criteria with
// offset/limit paging.
type PropertyRadar struct {
	opts   PropertyRadarOptions
	logger zerolog.Logger
	api    apiClient
}

// NewPropertyRadar constructs a PropertyRadar fetcher.
func NewPropertyRadar(opts PropertyRadarOptions, logger zerolog.Logger) *PropertyRadar {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.propertyradar.com/v1"
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	headers := map[string]string{
		"Authorization": "Bearer " + opts.APIKey,
		"Content-Type":  "application/json",
	}
	return &PropertyRadar{
		opts:   opts,
		logger: logger.With().Str("component", "propertyradar_fetcher").Logger(),
		api:    newAPIClient(propertyRadarName, opts.BaseURL, opts.UserAgent, opts.Timeout, headers),
	}
}

// Name identifies the provider in recordings and cache keys.
func (p *PropertyRadar) Name() string { return propertyRadarName }

// FetchPage retrieves one page of recordings.
func (p *PropertyRadar) FetchPage(ctx context.Context, q Query, page int) (Page, error) {
	payload := searchRequest{
		Criteria: searchCriteria{
			State:            q.State,
			County:           q.County,
			RecordingDateMin: q.From.Format(DateLayout),
			RecordingDateMax: q.To.Format(DateLayout),
			DocumentType:     q.DocTypes,
		},
		Limit:  p.opts.PageSize,
		Offset: page * p.opts.PageSize,
		Fields: propertyRadarFields,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Page{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.api.baseURL+propertyRadarSearchPath, bytes.NewReader(body))
	if err != nil {
		return Page{}, err
	}

	var res searchResponse
	if err := p.api.do(ctx, req, &res); err != nil {
		return Page{}, err
	}

	records := make([]RawRecording, 0, len(res.Results))
	for _, item := range res.Results {
		var r propertyRadarRecord
		if err := json.Unmarshal(item, &r); err != nil {
			p.logger.Warn().Err(err).Int("page", page).Msg("undecodable recording kept for skip accounting")
			records = append(records, RawRecording{Raw: item})
			continue
		}
		records = append(records, RawRecording{
			DocNumber:     string(r.DocumentNumber),
			RecordingDate: string(r.RecordingDate),
			DocType:       string(r.DocumentType),
			APN:           string(r.APN),
			Address:       string(r.PropertyAddress),
			City:          string(r.PropertyCity),
			Grantor:       string(r.Grantor),
			Grantee:       string(r.Grantee),
			TransferTax:   r.TransferTax.NullDecimal,
			Raw:           item,
		})
	}

	return Page{Records: records, More: len(res.Results) >= p.opts.PageSize}, nil
}

type searchCriteria struct {
	State            string   `json:"state,omitempty"`
	County           string   `json:"county"`
	RecordingDateMin string   `json:"recordingDateMin"`
	RecordingDateMax string   `json:"recordingDateMax"`
	DocumentType     []string `json:"documentType,omitempty"`
}

type searchRequest struct {
	Criteria searchCriteria `json:"criteria"`
	Limit    int            `json:"limit"`
	Offset   int            `json:"offset"`
	Fields   []string       `json:"fields"`
}

type searchResponse struct {
	Results []json.RawMessage `json:"results"`
}

type propertyRadarRecord struct {
	DocumentNumber  flexString  `json:"documentNumber"`
	RecordingDate   flexString  `json:"recordingDate"`
	DocumentType    flexString  `json:"documentType"`
	APN             flexString  `json:"apn"`
	PropertyAddress flexString  `json:"propertyAddress"`
	PropertyCity    flexString  `json:"propertyCity"`
	Grantor         flexString  `json:"grantor"`
	Grantee         flexString  `json:"grantee"`
	TransferTax     flexDecimal `json:"transferTax"`
}

var _ Provider = (*PropertyRadar)(nil)

package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const (
	attomName         = "attom"
	attomSnapshotPath = "/sale/snapshot"
)

// ATTOMOptions parameterise the ATTOM fetcher.
type ATTOMOptions struct {
	BaseURL   string
	APIKey    string
	PageSize  int
	Timeout   time.Duration
	UserAgent string
	// GeoID overrides the "<state>/<county>" geography identifier.
	GeoID string
}

// ATTOM reads nationwide sale transfers with page/pageSize paging.
type ATTOM struct {
	opts   ATTOMOptions
	logger zerolog.Logger
	api    apiClient
}

// NewATTOM constructs an ATTOM fetcher.
func NewATTOM(opts ATTOMOptions, logger zerolog.Logger) *ATTOM {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.gateway.attomdata.com/propertyapi/v1.0.0"
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	return &ATTOM{
		opts:   opts,
		logger: logger.With().Str("component", "attom_fetcher").Logger(),
		api:    newAPIClient(attomName, opts.BaseURL, opts.UserAgent, opts.Timeout, map[string]string{"apikey": opts.APIKey}),
	}
}

// Name identifies the provider in recordings and cache keys.
func (a *ATTOM) Name() string { return attomName }

// FetchPage retrieves one page of sale transfers. ATTOM pages start at 1.
func (a *ATTOM) FetchPage(ctx context.Context, q Query, page int) (Page, error) {
	geoID := a.opts.GeoID
	if geoID == "" {
		geoID = q.State + "/" + q.County
	}

	params := url.Values{}
	params.Set("geoIdV4", geoID)
	params.Set("minsaledate", q.From.Format(DateLayout))
	params.Set("maxsaledate", q.To.Format(DateLayout))
	params.Set("page", strconv.Itoa(page+1))
	params.Set("pageSize", strconv.Itoa(a.opts.PageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.api.baseURL+attomSnapshotPath+"?"+params.Encode(), nil)
	if err != nil {
		return Page{}, err
	}

	var res snapshotResponse
	if err := a.api.do(ctx, req, &res); err != nil {
		return Page{}, err
	}

	records := make([]RawRecording, 0, len(res.Property))
	for _, item := range res.Property {
		var p attomProperty
		if err := json.Unmarshal(item, &p); err != nil {
			a.logger.Warn().Err(err).Int("page", page).Msg("undecodable sale kept for skip accounting")
			records = append(records, RawRecording{Raw: item})
			continue
		}
		sale := p.Sale.SaleTransferData
		records = append(records, RawRecording{
			DocNumber:     string(sale.DocumentNumber),
			RecordingDate: string(sale.RecordingDate),
			DocType:       string(sale.DocumentType),
			APN:           string(p.Identifier.APN),
			Address:       string(p.Address.OneLine),
			City:          string(p.Address.Locality),
			Grantor:       string(sale.SellerName),
			Grantee:       string(sale.BuyerName),
			TransferTax:   sale.TransferTax.NullDecimal,
			Raw:           item,
		})
	}

	return Page{Records: records, More: len(res.Property) >= a.opts.PageSize}, nil
}

type snapshotResponse struct {
	Property []json.RawMessage `json:"property"`
}

type attomProperty struct {
	Identifier struct {
		APN flexString `json:"apn"`
	} `json:"identifier"`
	Address struct {
		OneLine  flexString `json:"oneLine"`
		Locality flexString `json:"locality"`
	} `json:"address"`
	Sale struct {
		SaleTransferData struct {
			DocumentNumber flexString  `json:"documentNumber"`
			RecordingDate  flexString  `json:"recordingDate"`
			DocumentType   flexString  `json:"documentType"`
			SellerName     flexString  `json:"sellerName"`
			BuyerName      flexString  `json:"buyerName"`
			TransferTax    flexDecimal `json:"transferTax"`
		} `json:"saleTransferData"`
	} `json:"sale"`
}

var _ Provider = (*ATTOM)(nil)

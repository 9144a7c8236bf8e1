package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrTransient marks provider failures worth retrying: transport errors,
// timeouts, throttling and 5xx responses.
var ErrTransient = errors.New("fetcher: transient provider error")

// DateLayout is the wire format of recording dates in queries.
const DateLayout = "2006-01-02"

// Query selects the deed recordings of one county window, inclusive on both ends.
type Query struct {
	County   string
	State    string
	From     time.Time
	To       time.Time
	DocTypes []string
}

// RawRecording is a provider record before validation. Fields may be empty.
type RawRecording struct {
	DocNumber     string              `json:"doc_number"`
	RecordingDate string              `json:"recording_date"`
	DocType       string              `json:"doc_type,omitempty"`
	APN           string              `json:"apn,omitempty"`
	Address       string              `json:"address,omitempty"`
	City          string              `json:"city,omitempty"`
	Grantor       string              `json:"grantor,omitempty"`
	Grantee       string              `json:"grantee,omitempty"`
	TransferTax   decimal.NullDecimal `json:"transfer_tax"`
	Raw           json.RawMessage     `json:"raw,omitempty"`
}

// Page is one slice of provider results.
type Page struct {
	Records []RawRecording `json:"records"`
	// More reports whether a following page may hold records.
	More bool `json:"more"`
}

// Provider pages through deed recordings for a query. Pages are numbered from zero.
type Provider interface {
	Name() string
	FetchPage(ctx context.Context, q Query, page int) (Page, error)
}

// HTTPError is a non-2xx provider response.
type HTTPError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s api error (%d): %s", e.Provider, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s api error (%d)", e.Provider, e.StatusCode)
}

// Temporary reports whether the status is worth retrying.
func (e *HTTPError) Temporary() bool {
	switch {
	case e.StatusCode == http.StatusTooManyRequests, e.StatusCode == http.StatusRequestTimeout:
		return true
	case e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// Is lets errors.Is(err, ErrTransient) classify retryable responses.
func (e *HTTPError) Is(target error) bool {
	return target == ErrTransient && e.Temporary()
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

func newHTTPError(provider string, status int, payload []byte) *HTTPError {
	body := strings.TrimSpace(string(payload))
	if len(body) > 512 {
		body = body[:512]
	}
	return &HTTPError{Provider: provider, StatusCode: status, Body: body}
}

// transportError wraps a failed round trip so it classifies as transient.
func transportError(provider string, err error) error {
	return fmt.Errorf("%s request: %w", provider, errors.Join(ErrTransient, err))
}

// flexDecimal accepts a JSON number, a numeric string, an empty string or null.
// Values that are not numbers decode as null, so an odd tax field never costs
// the record.
type flexDecimal struct {
	decimal.NullDecimal
}

func (f *flexDecimal) UnmarshalJSON(b []byte) error {
	f.NullDecimal = decimal.NullDecimal{}
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		return nil
	}
	s = strings.Trim(s, `"`)
	s = strings.NewReplacer(",", "", "$", "").Replace(s)
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	f.NullDecimal = decimal.NullDecimal{Decimal: d, Valid: true}
	return nil
}

// flexString accepts a string, number, boolean or array of those. Arrays are
// joined with "; ". Objects and null decode as empty.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	*f = flexString(flexText(json.RawMessage(b)))
	return nil
}

func flexText(raw json.RawMessage) string {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64, bool:
		return strings.TrimSpace(string(raw))
	case []interface{}:
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return ""
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if s := flexText(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	default:
		return ""
	}
}

/*
dayoff.go - HTTP client for the public holiday API

PURPOSE:
  Fetches the Indonesian public holiday list for a year from a
  dayoffapi-compatible endpoint:

    GET {BaseURL}/api?year=2025
    [{"tanggal": "2025-8-17", "keterangan": "Hari Kemerdekaan", "is_cuti": false}, ...]

FAILURE MODEL:
  Transport errors and 5xx responses are retried by go-retryablehttp up to
  RetryMax times. Anything still failing is returned to the caller, which
  fails the whole create-schedule call before any mutation.

SEE ALSO:
  - cache.go: Wraps this client with a per-year cache
*/
package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-retryablehttp"
)

// DefaultDayOffURL is the public endpoint.
const DefaultDayOffURL = "https://dayoffapi.vercel.app"

// DayOffConfig configures the HTTP client.
type DayOffConfig struct {
	BaseURL  string
	Timeout  time.Duration
	RetryMax int
	// Logger is handed to go-retryablehttp; nil disables its request logging.
	Logger retryablehttp.LeveledLogger
}

// DayOffClient implements Provider over HTTP.
type DayOffClient struct {
	baseURL string
	client  *retryablehttp.Client
}

type dayOffItem struct {
	Tanggal    string `json:"tanggal"`
	Keterangan string `json:"keterangan"`
	IsCuti     bool   `json:"is_cuti"`
}

func NewDayOffClient(cfg DayOffConfig) *DayOffClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultDayOffURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = nil
	if cfg.Logger != nil {
		rc.Logger = cfg.Logger
	}

	return &DayOffClient{baseURL: cfg.BaseURL, client: rc}
}

// Holidays fetches the holidays of year.
func (c *DayOffClient) Holidays(ctx context.Context, year int) ([]Holiday, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid holiday api url")
	}
	u = u.JoinPath("api")
	u.RawQuery = url.Values{"year": {strconv.Itoa(year)}}.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build holiday request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch holidays for %d", year)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Newf("fetch holidays for %d: unexpected status %d", year, resp.StatusCode)
	}

	var items []dayOffItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, errors.Wrapf(err, "decode holidays for %d", year)
	}

	holidays := make([]Holiday, 0, len(items))
	for _, it := range items {
		d, err := ParseLooseDate(it.Tanggal)
		if err != nil {
			return nil, errors.Wrapf(err, "holiday %q", it.Keterangan)
		}
		holidays = append(holidays, Holiday{
			Date:         d,
			Description:  it.Keterangan,
			MandatoryOff: it.IsCuti,
		})
	}
	return holidays, nil
}

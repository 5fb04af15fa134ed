package prices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/awaistahir/okte-windows/internal/engine"
	"github.com/shopspring/decimal"
)

const (
	DefaultBaseURL = "https://isot.okte.sk/api/v1/dam/results"
	DefaultTimeout = 30 * time.Second
	userAgent      = "okte-windows"
)

var ErrUnexpectedStatus = errors.New("unexpected status from OKTE API")

// OKTEClient fetches day-ahead market results from the OKTE API
type OKTEClient struct {
	httpClient *http.Client
	baseURL    string
	loc        *time.Location
	logger     *slog.Logger
}

// NewOKTEClient creates a client; loc is the zone used for local delivery
// days and wall-clock labels
func NewOKTEClient(baseURL string, timeout time.Duration, loc *time.Location, logger *slog.Logger) *OKTEClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OKTEClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		loc:        loc,
		logger:     logger,
	}
}

// RawRecord is one result item as returned by the API
type RawRecord struct {
	DeliveryDay   string              `json:"deliveryDay"`
	Period        int                 `json:"period"`
	DeliveryStart string              `json:"deliveryStart"`
	DeliveryEnd   string              `json:"deliveryEnd"`
	Price         decimal.NullDecimal `json:"price"`
}

// Fetch retrieves periods for days consecutive delivery days starting at start
// (local date). Records that cannot be parsed are dropped.
func (c *OKTEClient) Fetch(ctx context.Context, start time.Time, days int) ([]engine.PricePeriod, error) {
	if days < 1 {
		days = 1
	}

	local := start.In(c.loc)
	first := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
	last := first.AddDate(0, 0, days-1)

	params := url.Values{}
	params.Add("deliveryDayFrom", first.Format("2006-01-02"))
	params.Add("deliveryDayTo", last.Format("2006-01-02"))

	fullURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())
	c.logger.Info("fetching prices", "url", fullURL, "days", days)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching prices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: %d: %s", ErrUnexpectedStatus, resp.StatusCode, string(body))
	}

	var records []RawRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	periods := make([]engine.PricePeriod, 0, len(records))
	for _, r := range records {
		p, ok := TryParsePeriod(r, c.loc)
		if !ok {
			c.logger.Debug("skipping malformed record", "period", r.Period, "start", r.DeliveryStart)
			continue
		}
		periods = append(periods, p)
	}

	c.logger.Info("fetched prices", "records", len(records), "periods", len(periods))
	return periods, nil
}

// TryParsePeriod converts a raw record. It reports false when the delivery
// instants are missing or malformed; a missing price is kept as an absent price.
func TryParsePeriod(r RawRecord, loc *time.Location) (engine.PricePeriod, bool) {
	start, err := time.Parse(time.RFC3339, r.DeliveryStart)
	if err != nil {
		return engine.PricePeriod{}, false
	}
	end, err := time.Parse(time.RFC3339, r.DeliveryEnd)
	if err != nil {
		return engine.PricePeriod{}, false
	}
	if !end.After(start) {
		return engine.PricePeriod{}, false
	}

	localStart := start.In(loc)
	localEnd := end.In(loc)

	return engine.PricePeriod{
		Start:       start.UTC(),
		End:         end.UTC(),
		Price:       r.Price,
		Period:      r.Period,
		DeliveryDay: localStart.Format("2006-01-02"),
		LocalStart:  localStart.Format("15:04"),
		LocalEnd:    localEnd.Format("15:04"),
	}, true
}

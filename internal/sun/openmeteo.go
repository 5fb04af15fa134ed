package sun

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const openMeteoAPIBase = "https://api.open-meteo.com/v1/forecast"

// OpenMeteoClient fetches daily sunrise and sunset times from the Open-Meteo API
type OpenMeteoClient struct {
	httpClient *http.Client
	baseURL    string
	latitude   float64
	longitude  float64
	loc        *time.Location

	mu    sync.Mutex
	cache map[string][2]time.Time
}

// NewOpenMeteoClient creates a new Open-Meteo client for a location
func NewOpenMeteoClient(baseURL string, lat, lon float64, loc *time.Location) *OpenMeteoClient {
	if baseURL == "" {
		baseURL = openMeteoAPIBase
	}
	if loc == nil {
		loc = time.UTC
	}
	return &OpenMeteoClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		latitude:   lat,
		longitude:  lon,
		loc:        loc,
		cache:      map[string][2]time.Time{},
	}
}

// openMeteoResponse represents the API response
type openMeteoResponse struct {
	Daily struct {
		Time    []string `json:"time"`
		Sunrise []string `json:"sunrise"`
		Sunset  []string `json:"sunset"`
	} `json:"daily"`
}

// SunTimes returns sunrise and sunset for the local date of day. Results are
// cached per date.
func (c *OpenMeteoClient) SunTimes(ctx context.Context, day time.Time) (time.Time, time.Time, error) {
	date := day.In(c.loc).Format("2006-01-02")

	c.mu.Lock()
	cached, ok := c.cache[date]
	c.mu.Unlock()
	if ok {
		return cached[0], cached[1], nil
	}

	params := url.Values{}
	params.Add("latitude", fmt.Sprintf("%.4f", c.latitude))
	params.Add("longitude", fmt.Sprintf("%.4f", c.longitude))
	params.Add("daily", "sunrise,sunset")
	params.Add("timezone", c.loc.String())
	params.Add("start_date", date)
	params.Add("end_date", date)

	fullURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("fetching sun times: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return time.Time{}, time.Time{}, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var meteoResp openMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&meteoResp); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("decoding response: %w", err)
	}

	d := meteoResp.Daily
	if len(d.Sunrise) == 0 || len(d.Sunset) == 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("no sun times for %s", date)
	}

	// Open-Meteo returns local times without offset in the requested timezone
	sunrise, err := time.ParseInLocation("2006-01-02T15:04", d.Sunrise[0], c.loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing sunrise: %w", err)
	}
	sunset, err := time.ParseInLocation("2006-01-02T15:04", d.Sunset[0], c.loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing sunset: %w", err)
	}

	c.mu.Lock()
	c.cache[date] = [2]time.Time{sunrise, sunset}
	c.mu.Unlock()

	return sunrise, sunset, nil
}

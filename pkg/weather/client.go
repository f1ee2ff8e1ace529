package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"
)

// Observation is the condensed view of a weather report handed to tools and
// callers: Celsius temperature, textual condition, humidity percentage.
type Observation struct {
	Temperature float64 `json:"temperature"`
	Condition   string  `json:"condition"`
	Humidity    int     `json:"humidity"`
}

// Client fetches current weather from the mock (or real) OpenWeatherMap
// endpoint.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Current returns the weather for a city, converting the Kelvin temperature
// to Celsius rounded to one decimal.
func (c *Client) Current(ctx context.Context, city string) (*Observation, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("weather API key not set")
	}

	reqURL := fmt.Sprintf("%s?q=%s&appid=%s", c.BaseURL, url.QueryEscape(city), url.QueryEscape(c.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching weather: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to decode
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("invalid API key")
	default:
		return nil, fmt.Errorf("could not fetch weather (status code: %d)", resp.StatusCode)
	}

	var report Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("failed to decode weather response: %w", err)
	}
	if len(report.Weather) == 0 {
		return nil, fmt.Errorf("weather response missing conditions")
	}

	celsius := math.Round((report.Main.Temp-273.15)*10) / 10

	return &Observation{
		Temperature: celsius,
		Condition:   report.Weather[0].Description,
		Humidity:    report.Main.Humidity,
	}, nil
}

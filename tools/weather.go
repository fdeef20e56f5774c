package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/toolwire/toolwire/errors"
	"github.com/toolwire/toolwire/mcp"
)

const (
	nwsBaseURL   = "https://api.weather.gov"
	nwsUserAgent = "toolwire-weather/1.0"
)

var weatherHTTPClient = &http.Client{Timeout: 30 * time.Second}

type GetAlertsInput struct {
	State string `json:"state" jsonschema_description:"Two-letter US state code, e.g. CA or NY."`
}

type GetForecastInput struct {
	Latitude  float64 `json:"latitude" jsonschema_description:"Latitude of the location."`
	Longitude float64 `json:"longitude" jsonschema_description:"Longitude of the location."`
}

// GetAlertsDefinition reports active National Weather Service alerts
// for a US state.
var GetAlertsDefinition = Definition{
	Name:        "get-alerts",
	Description: "Get active weather alerts for a US state. Args: state (two-letter code).",
	InputSchema: GenerateSchema[GetAlertsInput](),
	Handler:     getAlerts,
}

// GetForecastDefinition reports the short-term NWS forecast for a
// coordinate pair.
var GetForecastDefinition = Definition{
	Name:        "get-forecast",
	Description: "Get the weather forecast for a location. Args: latitude, longitude.",
	InputSchema: GenerateSchema[GetForecastInput](),
	Handler:     getForecast,
}

type alertsResponse struct {
	Features []struct {
		Properties struct {
			Event       string `json:"event"`
			AreaDesc    string `json:"areaDesc"`
			Severity    string `json:"severity"`
			Description string `json:"description"`
			Instruction string `json:"instruction"`
		} `json:"properties"`
	} `json:"features"`
}

type pointsResponse struct {
	Properties struct {
		Forecast string `json:"forecast"`
	} `json:"properties"`
}

type forecastResponse struct {
	Properties struct {
		Periods []struct {
			Name             string `json:"name"`
			Temperature      int    `json:"temperature"`
			TemperatureUnit  string `json:"temperatureUnit"`
			WindSpeed        string `json:"windSpeed"`
			WindDirection    string `json:"windDirection"`
			DetailedForecast string `json:"detailedForecast"`
		} `json:"periods"`
	} `json:"properties"`
}

func getAlerts(ctx context.Context, args json.RawMessage) ([]mcp.Content, error) {
	var in GetAlertsInput
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, errors.Wrapf(err, "invalid get-alerts arguments")
	}
	state := strings.ToUpper(strings.TrimSpace(in.State))
	if len(state) != 2 {
		return nil, errors.New("'state' must be a two-letter US state code")
	}

	var resp alertsResponse
	url := fmt.Sprintf("%s/alerts/active/area/%s", nwsBaseURL, state)
	if err := fetchJSON(ctx, url, &resp); err != nil {
		return nil, errors.Wrapf(err, "failed to fetch alerts for %s", state)
	}

	if len(resp.Features) == 0 {
		return textResult(fmt.Sprintf("No active alerts for %s.", state)), nil
	}

	var b strings.Builder
	for i, f := range resp.Features {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		p := f.Properties
		fmt.Fprintf(&b, "Event: %s\nArea: %s\nSeverity: %s\n", p.Event, p.AreaDesc, p.Severity)
		if p.Description != "" {
			fmt.Fprintf(&b, "Description: %s\n", p.Description)
		}
		if p.Instruction != "" {
			fmt.Fprintf(&b, "Instructions: %s\n", p.Instruction)
		}
	}
	return textResult(b.String()), nil
}

func getForecast(ctx context.Context, args json.RawMessage) ([]mcp.Content, error) {
	var in GetForecastInput
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, errors.Wrapf(err, "invalid get-forecast arguments")
	}

	// The NWS API resolves a coordinate to a gridpoint first, then the
	// gridpoint carries the forecast URL.
	var points pointsResponse
	url := fmt.Sprintf("%s/points/%.4f,%.4f", nwsBaseURL, in.Latitude, in.Longitude)
	if err := fetchJSON(ctx, url, &points); err != nil {
		return nil, errors.Wrapf(err, "failed to resolve forecast gridpoint")
	}
	if points.Properties.Forecast == "" {
		return nil, errors.New("no forecast available for %.4f,%.4f", in.Latitude, in.Longitude)
	}

	var forecast forecastResponse
	if err := fetchJSON(ctx, points.Properties.Forecast, &forecast); err != nil {
		return nil, errors.Wrapf(err, "failed to fetch forecast")
	}

	periods := forecast.Properties.Periods
	if len(periods) > 5 {
		periods = periods[:5]
	}
	var b strings.Builder
	for i, p := range periods {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		fmt.Fprintf(&b, "%s: %d°%s, wind %s %s\n%s\n",
			p.Name, p.Temperature, p.TemperatureUnit, p.WindSpeed, p.WindDirection, p.DetailedForecast)
	}
	return textResult(b.String()), nil
}

func fetchJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", nwsUserAgent)
	req.Header.Set("Accept", "application/geo+json")

	resp, err := weatherHTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d from %s: %s", resp.StatusCode, url, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

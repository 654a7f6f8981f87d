package service

import (
	"context"
	"errors"
	"math"
	"net/url"
	"strconv"
	"strings"

	"travelbook/pkg/client"
	"travelbook/pkg/config"
	apperrors "travelbook/pkg/errors"
	"travelbook/pkg/sanitizer"
)

const (
	minComfortTempC = 5
	maxComfortTempC = 35
	maxHumidity     = 85
	maxWindKph      = 40
)

var conditions = map[int]string{
	0: "Clear sky", 1: "Mainly clear", 2: "Partly cloudy", 3: "Overcast",
	45: "Fog", 48: "Depositing rime fog",
	51: "Light drizzle", 53: "Moderate drizzle", 55: "Dense drizzle",
	56: "Freezing drizzle", 57: "Dense freezing drizzle",
	61: "Slight rain", 63: "Moderate rain", 65: "Heavy rain",
	66: "Freezing rain", 67: "Heavy freezing rain",
	71: "Slight snow", 73: "Moderate snow", 75: "Heavy snow", 77: "Snow grains",
	80: "Rain showers", 81: "Moderate rain showers", 82: "Violent rain showers",
	85: "Snow showers", 86: "Heavy snow showers",
	95: "Thunderstorm", 96: "Thunderstorm with hail", 99: "Severe thunderstorm with hail",
}

// severeCodes are the precipitation and storm codes that make travel
// unsuitable on their own.
var severeCodes = map[int]bool{
	63: true, 65: true, 66: true, 67: true,
	71: true, 73: true, 75: true, 77: true,
	80: true, 81: true, 82: true, 85: true, 86: true,
	95: true, 96: true, 99: true,
}

type Report struct {
	City        string   `json:"city"`
	Country     string   `json:"country,omitempty"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	TempC       *float64 `json:"temp_c"`
	Humidity    *int     `json:"humidity"`
	WindKph     *float64 `json:"wind_kph"`
	WeatherCode *int     `json:"weather_code"`
	Condition   string   `json:"condition"`
	Suitable    bool     `json:"suitable"`
	Reason      string   `json:"reason"`
}

type WeatherService interface {
	Current(ctx context.Context, city string) (*Report, error)
}

type geocodeResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Country   string  `json:"country"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

type forecastResponse struct {
	Current struct {
		Temperature *float64 `json:"temperature_2m"`
		Humidity    *float64 `json:"relative_humidity_2m"`
		WindSpeed   *float64 `json:"wind_speed_10m"`
		WeatherCode *int     `json:"weather_code"`
	} `json:"current"`
}

type weatherService struct {
	geocoder *client.HttpClient
	forecast *client.HttpClient
	cfg      *config.Config
}

func NewWeatherService(cfg *config.Config) WeatherService {
	return &weatherService{
		geocoder: client.NewHttpClient(cfg.WeatherGeocodeURL, cfg.WeatherTimeout),
		forecast: client.NewHttpClient(cfg.WeatherForecastURL, cfg.WeatherTimeout),
		cfg:      cfg,
	}
}

func (s *weatherService) Current(ctx context.Context, city string) (*Report, error) {
	city = sanitizer.NormalizeCity(city)
	if city == "" {
		return nil, apperrors.InvalidInput("city is required")
	}

	var geo geocodeResponse
	if err := s.geocoder.GetJSON(ctx, url.Values{"name": {city}, "count": {"1"}}, &geo); err != nil {
		return nil, s.upstreamError("geocoding", city, err)
	}
	if len(geo.Results) == 0 {
		return nil, apperrors.NotFoundWithID("City", city)
	}
	place := geo.Results[0]

	var fc forecastResponse
	query := url.Values{
		"latitude":        {strconv.FormatFloat(place.Latitude, 'f', -1, 64)},
		"longitude":       {strconv.FormatFloat(place.Longitude, 'f', -1, 64)},
		"current":         {"temperature_2m,relative_humidity_2m,wind_speed_10m,weather_code"},
		"wind_speed_unit": {"kmh"},
	}
	if err := s.forecast.GetJSON(ctx, query, &fc); err != nil {
		return nil, s.upstreamError("forecast", city, err)
	}

	name := place.Name
	if name == "" {
		name = city
	}
	report := &Report{
		City:        name,
		Country:     place.Country,
		Latitude:    place.Latitude,
		Longitude:   place.Longitude,
		WeatherCode: fc.Current.WeatherCode,
	}
	if t := fc.Current.Temperature; t != nil {
		v := round1(*t)
		report.TempC = &v
	}
	if h := fc.Current.Humidity; h != nil {
		v := int(math.Round(*h))
		report.Humidity = &v
	}
	if w := fc.Current.WindSpeed; w != nil {
		v := round1(*w)
		report.WindKph = &v
	}

	report.Condition = "Unknown"
	if report.WeatherCode != nil {
		if c, ok := conditions[*report.WeatherCode]; ok {
			report.Condition = c
		}
	}
	report.Suitable, report.Reason = Assess(report)
	return report, nil
}

// Assess returns the travel verdict and a short human reason for it.
func Assess(r *Report) (bool, string) {
	var reasons []string
	if r.TempC != nil {
		switch {
		case *r.TempC < minComfortTempC:
			reasons = append(reasons, "Too cold (< 5°C)")
		case *r.TempC > maxComfortTempC:
			reasons = append(reasons, "Too hot (> 35°C)")
		}
	}
	if r.Humidity != nil && *r.Humidity > maxHumidity {
		reasons = append(reasons, "High humidity")
	}
	if r.WindKph != nil && *r.WindKph > maxWindKph {
		reasons = append(reasons, "Strong wind")
	}
	if r.WeatherCode != nil && severeCodes[*r.WeatherCode] {
		reasons = append(reasons, "Precipitation/storm conditions")
	}

	if len(reasons) == 0 {
		return true, "Looks good for travel."
	}
	return false, strings.Join(reasons, " • ")
}

func (s *weatherService) upstreamError(stage, city string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.cfg.Log.Warn("Weather lookup timed out", "stage", stage, "city", city, "error", err)
	} else {
		s.cfg.Log.Error("Weather lookup failed", "stage", stage, "city", city, "error", err)
	}
	return apperrors.BadGateway("Failed to fetch weather", err)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

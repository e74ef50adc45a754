package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/forecast-aggregation/internal/observability"
	"github.com/i474232898/forecast-aggregation/internal/weather"
)

// GeocodeFunc resolves a city to coordinates.
type GeocodeFunc func(city, country string) (lat, lon float64, err error)

// GoogleGeocoder resolves coordinates through the Google Geocoding API.
func GoogleGeocoder(apiKey string) GeocodeFunc {
	return func(city, country string) (float64, float64, error) {
		if apiKey == "" {
			return 0, 0, errors.New("geocoder api key is not configured")
		}
		geocoder.ApiKey = apiKey
		loc, err := geocoder.Geocoding(geocoder.Address{City: city, Country: country})
		if err != nil {
			return 0, 0, fmt.Errorf("geocode %s,%s: %w", city, country, err)
		}
		return loc.Latitude, loc.Longitude, nil
	}
}

// OpenMeteoFeed reads hourly Open-Meteo forecasts. Weather codes are turned
// into the Portuguese descriptions the classifier understands.
type OpenMeteoFeed struct {
	baseURL string
	days    int
	loc     weather.Location
	geocode GeocodeFunc
	http    *resilientClient

	mu       sync.Mutex
	resolved bool
	lat, lon float64
}

// NewOpenMeteoFeed creates the feed. geocode may be nil when loc carries coordinates.
func NewOpenMeteoFeed(client *http.Client, days int, loc weather.Location, geocode GeocodeFunc, metrics *observability.Metrics) *OpenMeteoFeed {
	if days <= 0 {
		days = 7
	}
	f := &OpenMeteoFeed{
		baseURL: "https://api.open-meteo.com/v1/forecast",
		days:    days,
		loc:     loc,
		geocode: geocode,
		http:    newResilientClient("openmeteo", client, DefaultBackoff, metrics),
	}
	if loc.Lat != nil && loc.Lon != nil {
		f.lat, f.lon, f.resolved = *loc.Lat, *loc.Lon, true
	}
	return f
}

func (p *OpenMeteoFeed) Name() string {
	return "openmeteo"
}

// coordinates returns the configured or geocoded position. Only successful
// lookups are cached.
func (p *OpenMeteoFeed) coordinates() (float64, float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.resolved {
		return p.lat, p.lon, nil
	}
	if p.geocode == nil {
		return 0, 0, errors.New("openmeteo requires latitude and longitude")
	}
	lat, lon, err := p.geocode(p.loc.City, p.loc.Country)
	if err != nil {
		return 0, 0, err
	}
	p.lat, p.lon, p.resolved = lat, lon, true
	return lat, lon, nil
}

type openMeteoPayload struct {
	Hourly struct {
		Time          []string  `json:"time"`
		Temperature   []float64 `json:"temperature_2m"`
		Humidity      []float64 `json:"relative_humidity_2m"`
		WindSpeed     []float64 `json:"wind_speed_10m"`
		WeatherCode   []int     `json:"weather_code"`
		Precipitation []float64 `json:"precipitation"`
	} `json:"hourly"`
}

func (p *OpenMeteoFeed) FetchObservations(ctx context.Context) ([]weather.Observation, error) {
	lat, lon, err := p.coordinates()
	if err != nil {
		return nil, err
	}

	body, err := p.http.do(ctx, func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%f", lat))
		values.Set("longitude", fmt.Sprintf("%f", lon))
		values.Set("hourly", "temperature_2m,relative_humidity_2m,wind_speed_10m,weather_code,precipitation")
		values.Set("wind_speed_unit", "kmh")
		values.Set("timezone", weather.ReferenceZone)
		values.Set("forecast_days", strconv.Itoa(p.days))
		return http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+values.Encode(), nil)
	})
	if err != nil {
		return nil, err
	}

	var payload openMeteoPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &weather.MalformedInputError{Index: -1, Reason: err.Error()}
	}

	h := payload.Hourly
	n := len(h.Time)
	for name, l := range map[string]int{
		"temperature_2m":       len(h.Temperature),
		"relative_humidity_2m": len(h.Humidity),
		"wind_speed_10m":       len(h.WindSpeed),
		"weather_code":         len(h.WeatherCode),
	} {
		if l != n {
			return nil, &weather.MalformedInputError{Index: -1, Field: name, Reason: fmt.Sprintf("has %d values for %d timestamps", l, n)}
		}
	}

	out := make([]weather.Observation, 0, n)
	for i := 0; i < n; i++ {
		code := h.WeatherCode[i]
		precip := 0.0
		if i < len(h.Precipitation) {
			precip = h.Precipitation[i]
		}
		out = append(out, weather.Observation{
			// Times come back as wall clock in the requested zone.
			Timestamp:      h.Time[i],
			Temperature:    h.Temperature[i],
			TemperatureMin: h.Temperature[i],
			TemperatureMax: h.Temperature[i],
			Humidity:       h.Humidity[i],
			Weather:        describeWMOCode(code),
			WindSpeed:      h.WindSpeed[i],
			Rain:           isWMORain(code) || precip > 0,
			Location:       p.loc.City,
		})
	}
	return out, nil
}

// describeWMOCode maps WMO weather codes to pt-BR descriptions.
func describeWMOCode(code int) string {
	switch {
	case code == 0:
		return "céu limpo"
	case code == 1:
		return "algumas nuvens"
	case code == 2:
		return "nuvens dispersas"
	case code == 3:
		return "nublado"
	case code == 45 || code == 48:
		return "névoa"
	case code >= 51 && code <= 57:
		return "garoa"
	case code == 61 || code == 80:
		return "chuva leve"
	case code == 63 || code == 81 || code == 66:
		return "chuva moderada"
	case code == 65 || code == 67:
		return "chuva forte"
	case code >= 71 && code <= 77, code == 85 || code == 86:
		return "neve"
	case code == 82 || code >= 95:
		return "temporal"
	default:
		return "condição desconhecida"
	}
}

func isWMORain(code int) bool {
	return (code >= 51 && code <= 67) || (code >= 80 && code <= 82) || code >= 95
}

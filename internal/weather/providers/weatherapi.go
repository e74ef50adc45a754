package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/forecast-aggregation/internal/common"
	"github.com/i474232898/forecast-aggregation/internal/observability"
	"github.com/i474232898/forecast-aggregation/internal/weather"
)

// WeatherAPIFeed reads hourly WeatherAPI.com forecasts in Portuguese.
type WeatherAPIFeed struct {
	apiKey  string
	baseURL string
	days    int
	loc     weather.Location
	http    *resilientClient
}

func NewWeatherAPIFeed(client *http.Client, apiKey string, days int, loc weather.Location, metrics *observability.Metrics) *WeatherAPIFeed {
	if days <= 0 {
		days = 3
	}
	return &WeatherAPIFeed{
		apiKey:  apiKey,
		baseURL: "https://api.weatherapi.com/v1/forecast.json",
		days:    days,
		loc:     loc,
		http:    newResilientClient("weatherapi", client, DefaultBackoff, metrics),
	}
}

func (p *WeatherAPIFeed) Name() string {
	return "weatherapi"
}

type weatherAPIPayload struct {
	Location struct {
		Name string `json:"name"`
	} `json:"location"`
	Forecast struct {
		ForecastDay []struct {
			Hour []struct {
				TimeEpoch  int64   `json:"time_epoch"`
				TempC      float64 `json:"temp_c"`
				Humidity   float64 `json:"humidity"`
				WindKph    float64 `json:"wind_kph"`
				PrecipMm   float64 `json:"precip_mm"`
				WillItRain int     `json:"will_it_rain"`
				Condition  struct {
					Text string `json:"text"`
					Icon string `json:"icon"`
				} `json:"condition"`
			} `json:"hour"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

func (p *WeatherAPIFeed) FetchObservations(ctx context.Context) ([]weather.Observation, error) {
	if p.apiKey == "" {
		return nil, errors.New("weatherapi api key is not configured")
	}

	body, err := p.http.do(ctx, func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("key", p.apiKey)
		values.Set("lang", "pt")
		values.Set("days", strconv.Itoa(p.days))
		// WeatherAPI uses "q" for location; it accepts "city,country" or "lat,lon".
		if p.loc.Lat != nil && p.loc.Lon != nil {
			values.Set("q", fmt.Sprintf("%f,%f", *p.loc.Lat, *p.loc.Lon))
		} else {
			q := p.loc.City
			if p.loc.Country != "" {
				q = fmt.Sprintf("%s,%s", p.loc.City, p.loc.Country)
			}
			values.Set("q", q)
		}
		return http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+values.Encode(), nil)
	})
	if err != nil {
		return nil, err
	}

	var payload weatherAPIPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &weather.MalformedInputError{Index: -1, Reason: err.Error()}
	}

	place := common.FirstNonEmpty(payload.Location.Name, p.loc.City)

	var out []weather.Observation
	for _, day := range payload.Forecast.ForecastDay {
		for _, h := range day.Hour {
			text := h.Condition.Text
			out = append(out, weather.Observation{
				Timestamp:      formatTimestamp(time.Unix(h.TimeEpoch, 0)),
				Temperature:    h.TempC,
				TemperatureMin: h.TempC,
				TemperatureMax: h.TempC,
				Humidity:       h.Humidity,
				Weather:        strings.ToLower(strings.TrimSpace(text)),
				WindSpeed:      h.WindKph,
				Rain:           h.WillItRain == 1 || h.PrecipMm > 0 || isRainText(text),
				Location:       place,
				WeatherIcon:    absoluteIconURL(h.Condition.Icon),
			})
		}
	}
	return out, nil
}

func isRainText(text string) bool {
	return common.HasAny(weather.NormalizeCondition(text), "chuva", "garoa", "chuvisco", "aguaceiro", "rain", "drizzle")
}

// absoluteIconURL turns WeatherAPI's scheme-relative icon paths into URLs.
func absoluteIconURL(icon string) string {
	if strings.HasPrefix(icon, "//") {
		return "https:" + icon
	}
	return icon
}

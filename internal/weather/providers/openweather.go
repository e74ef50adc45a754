package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/i474232898/forecast-aggregation/internal/common"
	"github.com/i474232898/forecast-aggregation/internal/observability"
	"github.com/i474232898/forecast-aggregation/internal/weather"
)

const openWeatherIconURL = "https://openweathermap.org/img/wn/%s@2x.png"

// OpenWeatherFeed reads the OpenWeatherMap 5 day / 3 hour forecast with
// Portuguese descriptions.
type OpenWeatherFeed struct {
	apiKey  string
	baseURL string
	loc     weather.Location
	http    *resilientClient
}

func NewOpenWeatherFeed(client *http.Client, apiKey string, loc weather.Location, metrics *observability.Metrics) *OpenWeatherFeed {
	return &OpenWeatherFeed{
		apiKey:  apiKey,
		baseURL: "https://api.openweathermap.org/data/2.5/forecast",
		loc:     loc,
		http:    newResilientClient("openweathermap", client, DefaultBackoff, metrics),
	}
}

func (p *OpenWeatherFeed) Name() string {
	return "openweathermap"
}

type openWeatherPayload struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp     float64 `json:"temp"`
			TempMin  float64 `json:"temp_min"`
			TempMax  float64 `json:"temp_max"`
			Humidity float64 `json:"humidity"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
			Icon        string `json:"icon"`
		} `json:"weather"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Rain *struct {
			ThreeH float64 `json:"3h"`
		} `json:"rain"`
	} `json:"list"`
	City struct {
		Name string `json:"name"`
	} `json:"city"`
}

func (p *OpenWeatherFeed) FetchObservations(ctx context.Context) ([]weather.Observation, error) {
	if p.apiKey == "" {
		return nil, errors.New("openweather api key is not configured")
	}

	body, err := p.http.do(ctx, func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("appid", p.apiKey)
		values.Set("units", "metric")
		values.Set("lang", "pt_br")
		if p.loc.Lat != nil && p.loc.Lon != nil {
			values.Set("lat", fmt.Sprintf("%f", *p.loc.Lat))
			values.Set("lon", fmt.Sprintf("%f", *p.loc.Lon))
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

	var payload openWeatherPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &weather.MalformedInputError{Index: -1, Reason: err.Error()}
	}

	place := common.FirstNonEmpty(payload.City.Name, p.loc.City)

	out := make([]weather.Observation, 0, len(payload.List))
	for _, item := range payload.List {
		o := weather.Observation{
			Timestamp:      formatTimestamp(time.Unix(item.Dt, 0)),
			Temperature:    item.Main.Temp,
			TemperatureMin: item.Main.TempMin,
			TemperatureMax: item.Main.TempMax,
			Humidity:       item.Main.Humidity,
			WindSpeed:      msToKmh(item.Wind.Speed),
			Rain:           item.Rain != nil && item.Rain.ThreeH > 0,
			Location:       place,
		}
		if len(item.Weather) > 0 {
			o.Weather = item.Weather[0].Description
			if item.Weather[0].Icon != "" {
				o.WeatherIcon = fmt.Sprintf(openWeatherIconURL, item.Weather[0].Icon)
			}
		}
		out = append(out, o)
	}
	return out, nil
}

// formatTimestamp renders t as RFC3339 in the reference zone, the shape the
// backend feed uses.
func formatTimestamp(t time.Time) string {
	return t.In(weather.ReferenceLocation()).Format(time.RFC3339)
}

func msToKmh(ms float64) float64 {
	return weather.RoundTenth(ms * 3.6)
}

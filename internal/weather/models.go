package weather

import (
	"time"
)

// IconCategory is the normalized glyph a day summary is rendered with.
type IconCategory string

const (
	IconSunny        IconCategory = "sunny"
	IconPartlySunny  IconCategory = "partly-sunny"
	IconCloudy       IconCategory = "cloudy"
	IconLightRain    IconCategory = "light-rain"
	IconModerateRain IconCategory = "moderate-rain"
	IconHeavyRain    IconCategory = "heavy-rain"
)

// Valid reports whether c is one of the known categories.
func (c IconCategory) Valid() bool {
	switch c {
	case IconSunny, IconPartlySunny, IconCloudy, IconLightRain, IconModerateRain, IconHeavyRain:
		return true
	}
	return false
}

// Location represents the place a forecast feed reports for.
// City/Country must be provided; coordinates are optional.
type Location struct {
	City    string   `json:"city"`
	Country string   `json:"country"`
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
}

// Key returns a canonical string key for indexing this location in stores.
func (l Location) Key() string {
	return l.City + ":" + l.Country
}

// Observation is one raw reading as emitted by the feed. Timestamp is kept
// as the source text and parsed by the pipeline.
type Observation struct {
	Timestamp      string  `json:"timestamp"`
	Temperature    float64 `json:"temperature"`
	TemperatureMin float64 `json:"temperature_min"`
	TemperatureMax float64 `json:"temperature_max"`
	Humidity       float64 `json:"humidity"`
	Weather        string  `json:"weather"`
	WindSpeed      float64 `json:"wind_speed"`
	Rain           bool    `json:"rain"`
	Location       string  `json:"location"`
	WeatherIcon    string  `json:"weather_icon,omitempty"`
}

// DaySummary is the aggregate of every observation sharing one local date.
type DaySummary struct {
	Date             CivilDate    `json:"date"`
	DateLabel        string       `json:"date_label"`
	Weekday          string       `json:"weekday"`
	TemperatureMin   float64      `json:"temperature_min"`
	TemperatureMax   float64      `json:"temperature_max"`
	AverageHumidity  float64      `json:"average_humidity"`
	AverageWindSpeed float64      `json:"average_wind_speed"`
	Condition        string       `json:"condition"`
	Location         string       `json:"location"`
	Icon             string       `json:"icon"`
	IconCategory     IconCategory `json:"icon_category"`
	Rain             bool         `json:"rain"`
	Observations     int          `json:"observations"`
}

// Forecast is the result of one accepted refresh.
type Forecast struct {
	ID           string        `json:"id"`
	Seq          uint64        `json:"seq"`
	Location     Location      `json:"location"`
	Source       string        `json:"source"`
	FetchedAt    time.Time     `json:"fetched_at"` // always UTC
	Observations []Observation `json:"observations"`
	Days         []DaySummary  `json:"days"`
}

package weather

import (
	"context"
)

// Feed abstracts a source of raw observations (the backend list endpoint,
// OpenWeatherMap, WeatherAPI, Open-Meteo).
type Feed interface {
	Name() string
	FetchObservations(ctx context.Context) ([]Observation, error)
}

// Trigger asks the upstream backend to recompute and store fresh observations.
type Trigger interface {
	TriggerRefresh(ctx context.Context) error
}

// Store is the contract the in-memory and SQLite stores satisfy.
// Save must reject a forecast whose Seq is not newer than the latest one with ErrStaleForecast.
type Store interface {
	Save(f Forecast) error
	Latest() (Forecast, error)
	History(limit int) ([]Forecast, error)
}

// Publisher fans finished day summaries out to downstream consumers.
type Publisher interface {
	PublishDays(ctx context.Context, f Forecast) error
}

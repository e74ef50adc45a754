package providers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/i474232898/forecast-aggregation/internal/observability"
	"github.com/i474232898/forecast-aggregation/internal/weather"
)

// BackendConfig points at the service that stores computed observations.
type BackendConfig struct {
	BaseURL  string
	ListPath string // GET, returns the observation array
	SavePath string // POST, asks the backend to recompute and store
	Token    string // sent verbatim in the Authorization header
}

// BackendFeed reads observations from the backend list endpoint and can ask
// the backend to recompute them.
type BackendFeed struct {
	cfg  BackendConfig
	http *resilientClient
}

func NewBackendFeed(client *http.Client, cfg BackendConfig, metrics *observability.Metrics) (*BackendFeed, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("backend feed requires a base URL")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.ListPath == "" {
		cfg.ListPath = "/weatherList"
	}
	if cfg.SavePath == "" {
		cfg.SavePath = "/weatherSave"
	}
	return &BackendFeed{
		cfg:  cfg,
		http: newResilientClient("backend", client, DefaultBackoff, metrics),
	}, nil
}

func (f *BackendFeed) Name() string {
	return "backend"
}

// FetchObservations downloads and validates the observation list.
func (f *BackendFeed) FetchObservations(ctx context.Context) ([]weather.Observation, error) {
	body, err := f.http.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.BaseURL+f.cfg.ListPath, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		f.authorize(req)
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	return weather.DecodeObservations(body)
}

// TriggerRefresh asks the backend to recompute and store observations.
func (f *BackendFeed) TriggerRefresh(ctx context.Context) error {
	_, err := f.http.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.BaseURL+f.cfg.SavePath, nil)
		if err != nil {
			return nil, err
		}
		f.authorize(req)
		return req, nil
	})
	return err
}

func (f *BackendFeed) authorize(req *http.Request) {
	if f.cfg.Token != "" {
		req.Header.Set("Authorization", f.cfg.Token)
	}
}

package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/forecast-aggregation/internal/store"
	"github.com/i474232898/forecast-aggregation/internal/weather"
)

var validate = validator.New()

const defaultHistoryLimit = 10

// ErrorHandler renders every error as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service) {
	v1 := app.Group("/api/v1")

	v1.Get("/forecast", func(c *fiber.Ctx) error {
		f, err := service.Latest()
		if err != nil {
			return notFoundOr(err, "no forecast has been fetched yet", "failed to load forecast")
		}
		return c.JSON(newForecastView(f))
	})

	v1.Get("/forecast/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		forecasts, err := service.History(req.Limit)
		if err != nil {
			return notFoundOr(err, "no forecast history", "failed to load forecast history")
		}

		views := make([]forecastView, len(forecasts))
		for i, f := range forecasts {
			views[i] = newForecastView(f)
		}
		return c.JSON(fiber.Map{
			"limit":     req.Limit,
			"forecasts": views,
		})
	})

	v1.Post("/forecast/refresh", func(c *fiber.Ctx) error {
		f, err := service.Refresh(c.UserContext())
		switch {
		case err == nil:
			return c.JSON(newForecastView(f))
		case errors.Is(err, weather.ErrRefreshInProgress):
			return fiber.NewError(fiber.StatusConflict, err.Error())
		case errors.Is(err, weather.ErrStaleForecast):
			return fiber.NewError(fiber.StatusConflict, "a newer forecast was stored concurrently")
		default:
			return fiber.NewError(fiber.StatusBadGateway, "forecast refresh failed: "+err.Error())
		}
	})

	v1.Get("/observations", func(c *fiber.Ctx) error {
		f, err := service.Latest()
		if err != nil {
			return notFoundOr(err, "no observations have been fetched yet", "failed to load observations")
		}
		return c.JSON(fiber.Map{
			"fetched_at":   f.FetchedAt,
			"source":       f.Source,
			"observations": nonNil(f.Observations),
		})
	})

	v1.Get("/weather/current", func(c *fiber.Ctx) error {
		obs, err := service.Current()
		if err != nil {
			return notFoundOr(err, "no current weather data", "failed to load current weather")
		}
		return c.JSON(obs)
	})

	v1.Post("/pipeline/run", func(c *fiber.Ctx) error {
		observations, err := weather.DecodeObservations(c.Body())
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		days, err := weather.Run(observations)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.JSON(fiber.Map{"days": days})
	})

	v1.Get("/conditions/classify", func(c *fiber.Ctx) error {
		q := classifyQuery{Condition: c.Query("condition")}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "condition query parameter is required")
		}
		return c.JSON(fiber.Map{
			"condition":     q.Condition,
			"normalized":    weather.NormalizeCondition(q.Condition),
			"icon_category": weather.Classify(q.Condition),
		})
	})
}

func notFoundOr(err error, notFound, internal string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, notFound)
	}
	return fiber.NewError(fiber.StatusInternalServerError, internal)
}

// forecastView is a forecast without its raw observations.
type forecastView struct {
	ID        string               `json:"id"`
	Seq       uint64               `json:"seq"`
	Location  weather.Location     `json:"location"`
	Source    string               `json:"source"`
	FetchedAt time.Time            `json:"fetched_at"`
	Days      []weather.DaySummary `json:"days"`
}

func newForecastView(f weather.Forecast) forecastView {
	days := f.Days
	if days == nil {
		days = []weather.DaySummary{}
	}
	return forecastView{
		ID:        f.ID,
		Seq:       f.Seq,
		Location:  f.Location,
		Source:    f.Source,
		FetchedAt: f.FetchedAt,
		Days:      days,
	}
}

func nonNil(obs []weather.Observation) []weather.Observation {
	if obs == nil {
		return []weather.Observation{}
	}
	return obs
}

type classifyQuery struct {
	Condition string `validate:"required"`
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	Limit int `validate:"gte=1,lte=50"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	raw := c.Query("limit")
	if raw == "" {
		h.Limit = defaultHistoryLimit
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return errors.New("limit must be an integer")
	}
	h.Limit = n
	return nil
}

package weather

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// number accepts a JSON number or a finite numeric string.
type number float64

var float64Type = reflect.TypeOf(float64(0))

func (n *number) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return errors.New("null is not a number")
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*n = number(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("expected number, got %s", b)
	}
	// The decoder fills in the field name of an UnmarshalTypeError.
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return &json.UnmarshalTypeError{Value: "string " + strconv.Quote(s), Type: float64Type}
	}
	*n = number(f)
	return nil
}

// observationPayload mirrors the feed's JSON. Pointers let the validator tell
// missing fields from zero values.
type observationPayload struct {
	Timestamp      *string `json:"timestamp" validate:"required"`
	Temperature    *number `json:"temperature" validate:"required"`
	TemperatureMin *number `json:"temperature_min"`
	TemperatureMax *number `json:"temperature_max"`
	Humidity       *number `json:"humidity" validate:"required"`
	Weather        *string `json:"weather" validate:"required"`
	WindSpeed      *number `json:"wind_speed" validate:"required"`
	Rain           *bool   `json:"rain"`
	Location       *string `json:"location" validate:"required"`
	WeatherIcon    *string `json:"weather_icon"`
}

func (p observationPayload) toObservation() Observation {
	o := Observation{
		Timestamp:   *p.Timestamp,
		Temperature: float64(*p.Temperature),
		Humidity:    float64(*p.Humidity),
		Weather:     *p.Weather,
		WindSpeed:   float64(*p.WindSpeed),
		Location:    *p.Location,
	}
	o.TemperatureMin = o.Temperature
	o.TemperatureMax = o.Temperature
	if p.TemperatureMin != nil {
		o.TemperatureMin = float64(*p.TemperatureMin)
	}
	if p.TemperatureMax != nil {
		o.TemperatureMax = float64(*p.TemperatureMax)
	}
	if p.Rain != nil {
		o.Rain = *p.Rain
	}
	if p.WeatherIcon != nil {
		o.WeatherIcon = strings.TrimSpace(*p.WeatherIcon)
	}
	return o
}

// DecodeObservations checks the feed document against the observation shape
// and converts it. Any mismatch yields a *MalformedInputError.
func DecodeObservations(data []byte) ([]Observation, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &MalformedInputError{Index: -1, Reason: "expected a JSON array of observations"}
	}
	if raw == nil {
		return nil, &MalformedInputError{Index: -1, Reason: "expected a JSON array of observations, got null"}
	}

	out := make([]Observation, 0, len(raw))
	for i, item := range raw {
		var p observationPayload
		if err := json.Unmarshal(item, &p); err != nil {
			return nil, &MalformedInputError{Index: i, Field: unmarshalField(err), Reason: err.Error()}
		}
		if err := validate.Struct(p); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) && len(verrs) > 0 {
				return nil, &MalformedInputError{Index: i, Field: jsonName(verrs[0].Field()), Reason: verrs[0].Tag()}
			}
			return nil, &MalformedInputError{Index: i, Reason: err.Error()}
		}
		out = append(out, p.toObservation())
	}

	return out, nil
}

func unmarshalField(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return typeErr.Field
	}
	return ""
}

var payloadFieldNames = map[string]string{
	"Timestamp":   "timestamp",
	"Temperature": "temperature",
	"Humidity":    "humidity",
	"Weather":     "weather",
	"WindSpeed":   "wind_speed",
	"Location":    "location",
}

func jsonName(field string) string {
	if name, ok := payloadFieldNames[field]; ok {
		return name
	}
	return field
}

package weather

import (
	"math"

	"github.com/go-playground/locales/pt_BR"
)

var ptBR = pt_BR.New()

// AggregateDay reduces one day's observations into a DaySummary.
// Min and max come from the instantaneous temperature of each reading,
// humidity and wind are averaged and rounded to one decimal, and the
// representative fields are copied from the first observation.
func AggregateDay(group []Observation) (DaySummary, error) {
	if len(group) == 0 {
		return DaySummary{}, ErrEmptyGroup
	}

	first := group[0]
	ts, err := ParseTimestamp(first.Timestamp)
	if err != nil {
		return DaySummary{}, &MalformedTimestampError{Index: 0, Timestamp: first.Timestamp, Err: err}
	}

	var (
		sumHumidity float64
		sumWind     float64
		rain        bool
	)
	minTemp := first.Temperature
	maxTemp := first.Temperature

	for _, o := range group {
		minTemp = math.Min(minTemp, o.Temperature)
		maxTemp = math.Max(maxTemp, o.Temperature)
		sumHumidity += o.Humidity
		sumWind += o.WindSpeed
		rain = rain || o.Rain
	}

	n := float64(len(group))
	date := CivilDateOf(ts)
	category := Classify(first.Weather)

	icon := first.WeatherIcon
	if icon == "" {
		icon = string(category)
	}

	return DaySummary{
		Date:             date,
		DateLabel:        date.Format(),
		Weekday:          ptBR.WeekdayAbbreviated(ts.In(ReferenceLocation()).Weekday()),
		TemperatureMin:   minTemp,
		TemperatureMax:   maxTemp,
		AverageHumidity:  RoundTenth(sumHumidity / n),
		AverageWindSpeed: RoundTenth(sumWind / n),
		Condition:        first.Weather,
		Location:         first.Location,
		Icon:             icon,
		IconCategory:     category,
		Rain:             rain,
		Observations:     len(group),
	}, nil
}

// RoundTenth rounds x to one decimal place, halves away from zero (2.25 -> 2.3).
func RoundTenth(x float64) float64 {
	return math.Round(x*10) / 10
}

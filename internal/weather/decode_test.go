package weather

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeObservations(t *testing.T) {
	data := []byte(`[
		{"timestamp":"2025-04-04T09:00:00-03:00","temperature":18.5,"temperature_min":17,"temperature_max":19,
		 "humidity":40,"weather":"chuva leve","wind_speed":5,"rain":true,"location":"São Paulo","weather_icon":" 10d "},
		{"timestamp":"2025-04-04T12:00:00-03:00","temperature":"22","humidity":"60.5","weather":"céu limpo",
		 "wind_speed":"15","location":"São Paulo"}
	]`)

	obs, err := DecodeObservations(data)
	require.NoError(t, err)
	require.Len(t, obs, 2)

	assert.Equal(t, Observation{
		Timestamp:      "2025-04-04T09:00:00-03:00",
		Temperature:    18.5,
		TemperatureMin: 17,
		TemperatureMax: 19,
		Humidity:       40,
		Weather:        "chuva leve",
		WindSpeed:      5,
		Rain:           true,
		Location:       "São Paulo",
		WeatherIcon:    "10d",
	}, obs[0])

	assert.Equal(t, 22.0, obs[1].Temperature)
	assert.Equal(t, 22.0, obs[1].TemperatureMin)
	assert.Equal(t, 22.0, obs[1].TemperatureMax)
	assert.Equal(t, 60.5, obs[1].Humidity)
	assert.False(t, obs[1].Rain)
	assert.Empty(t, obs[1].WeatherIcon)
}

func TestDecodeObservationsEmptyArray(t *testing.T) {
	obs, err := DecodeObservations([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, obs)
}

func TestDecodeObservationsMalformed(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		wantIndex int
		wantField string
	}{
		{"not json", `nope`, -1, ""},
		{"object instead of array", `{"timestamp":"x"}`, -1, ""},
		{"element not object", `[1]`, 0, ""},
		{"missing temperature", `[{"timestamp":"t","humidity":1,"weather":"w","wind_speed":1,"location":"l"}]`, 0, "temperature"},
		{"null humidity", `[{"timestamp":"t","temperature":1,"humidity":null,"weather":"w","wind_speed":1,"location":"l"}]`, 0, "humidity"},
		{"missing location on second", `[
			{"timestamp":"t","temperature":1,"humidity":1,"weather":"w","wind_speed":1,"location":"l"},
			{"timestamp":"t","temperature":1,"humidity":1,"weather":"w","wind_speed":1}]`, 1, "location"},
		{"null document", `null`, -1, ""},
		{"non numeric string", `[{"timestamp":"t","temperature":"quente","humidity":1,"weather":"w","wind_speed":1,"location":"l"}]`, 0, "temperature"},
		{"NaN string", `[{"timestamp":"t","temperature":1,"humidity":"NaN","weather":"w","wind_speed":1,"location":"l"}]`, 0, "humidity"},
		{"Inf string", `[{"timestamp":"t","temperature":1,"humidity":1,"weather":"w","wind_speed":"Inf","location":"l"}]`, 0, "wind_speed"},
		{"negative infinity string", `[{"timestamp":"t","temperature":"-Infinity","humidity":1,"weather":"w","wind_speed":1,"location":"l"}]`, 0, "temperature"},
		{"wrong type for rain", `[{"timestamp":"t","temperature":1,"humidity":1,"weather":"w","wind_speed":1,"location":"l","rain":"sim"}]`, 0, "rain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, err := DecodeObservations([]byte(tt.data))
			assert.Nil(t, obs)
			require.ErrorIs(t, err, ErrMalformedInput)

			var mie *MalformedInputError
			require.ErrorAs(t, err, &mie)
			assert.Equal(t, tt.wantIndex, mie.Index)
			if tt.wantField != "" {
				assert.Equal(t, tt.wantField, mie.Field)
			}
		})
	}
}

func TestDecodeObservationsDoesNotParseTimestamps(t *testing.T) {
	// Timestamp validity is the pipeline's concern, not the boundary's.
	obs, err := DecodeObservations([]byte(`[{"timestamp":"ontem","temperature":1,"humidity":1,"weather":"w","wind_speed":1,"location":"l"}]`))
	require.NoError(t, err)

	_, err = Run(obs)
	assert.ErrorIs(t, err, ErrMalformedTimestamp)
}

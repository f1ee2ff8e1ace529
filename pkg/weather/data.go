package weather

import (
	"math/rand"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Report is the OpenWeatherMap-shaped record served by the mock API.
type Report struct {
	Coord      Coord       `json:"coord"`
	Weather    []Condition `json:"weather"`
	Base       string      `json:"base"`
	Main       Main        `json:"main"`
	Visibility int         `json:"visibility"`
	Wind       Wind        `json:"wind"`
	Clouds     Clouds      `json:"clouds"`
	Dt         int64       `json:"dt"`
	Sys        Sys         `json:"sys"`
	Timezone   int         `json:"timezone"`
	ID         int         `json:"id"`
	Name       string      `json:"name"`
	Cod        int         `json:"cod"`
}

type Coord struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

type Condition struct {
	Description string `json:"description"`
	Main        string `json:"main"`
}

type Main struct {
	Temp     float64 `json:"temp"` // Kelvin
	Humidity int     `json:"humidity"`
	Pressure int     `json:"pressure"`
}

type Wind struct {
	Speed float64 `json:"speed"`
}

type Clouds struct {
	All int `json:"all"`
}

type Sys struct {
	Type    int    `json:"type"`
	ID      int    `json:"id"`
	Country string `json:"country"`
	Sunrise int64  `json:"sunrise"`
	Sunset  int64  `json:"sunset"`
}

type cityWeather struct {
	Name      string
	Temp      float64 // Kelvin
	Humidity  int
	Pressure  int
	Condition Condition
	WindSpeed float64
}

// Fixed records for the known cities. Temperatures are in Kelvin to match
// the OpenWeatherMap default units.
var mockCities = map[string]cityWeather{
	"tokyo": {
		Name: "Tokyo", Temp: 295.15, Humidity: 65, Pressure: 1013,
		Condition: Condition{Description: "partly cloudy", Main: "Clouds"},
		WindSpeed: 3.5,
	},
	"new york": {
		Name: "New York", Temp: 288.15, Humidity: 72, Pressure: 1015,
		Condition: Condition{Description: "light rain", Main: "Rain"},
		WindSpeed: 4.2,
	},
	"london": {
		Name: "London", Temp: 285.15, Humidity: 80, Pressure: 1012,
		Condition: Condition{Description: "overcast clouds", Main: "Clouds"},
		WindSpeed: 5.1,
	},
	"paris": {
		Name: "Paris", Temp: 290.15, Humidity: 68, Pressure: 1014,
		Condition: Condition{Description: "clear sky", Main: "Clear"},
		WindSpeed: 2.8,
	},
	"sydney": {
		Name: "Sydney", Temp: 298.15, Humidity: 70, Pressure: 1016,
		Condition: Condition{Description: "few clouds", Main: "Clouds"},
		WindSpeed: 6.2,
	},
}

var randomConditions = []Condition{
	{Description: "clear sky", Main: "Clear"},
	{Description: "few clouds", Main: "Clouds"},
	{Description: "scattered clouds", Main: "Clouds"},
	{Description: "overcast clouds", Main: "Clouds"},
	{Description: "light rain", Main: "Rain"},
	{Description: "moderate rain", Main: "Rain"},
	{Description: "sunny", Main: "Clear"},
}

var titleCaser = cases.Title(language.English)

// lookup returns the fixed record for a known city, or a pseudo-randomly
// generated one for anything else. Unknown cities are never an error.
func lookup(city string) cityWeather {
	if w, ok := mockCities[strings.ToLower(city)]; ok {
		return w
	}

	return cityWeather{
		Name:      titleCaser.String(city),
		Temp:      273.15 + rand.Float64()*40, // 0C to 40C
		Humidity:  40 + rand.Intn(51),
		Pressure:  1000 + rand.Intn(21),
		Condition: randomConditions[rand.Intn(len(randomConditions))],
		WindSpeed: rand.Float64() * 10,
	}
}

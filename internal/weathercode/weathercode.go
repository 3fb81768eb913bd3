// Package weathercode maps Open-Meteo WMO weather codes to human-friendly
// descriptions and emoji icons for the frontend.
package weathercode

import "fmt"

type Info struct {
	Desc string
	Icon string
}

var table = map[int]Info{
	0:  {Desc: "Clear sky", Icon: "☀️"},
	1:  {Desc: "Mainly clear", Icon: "🌤️"},
	2:  {Desc: "Partly cloudy", Icon: "⛅"},
	3:  {Desc: "Overcast", Icon: "☁️"},
	45: {Desc: "Fog", Icon: "🌫️"},
	48: {Desc: "Depositing rime fog", Icon: "🌫️"},
	51: {Desc: "Light drizzle", Icon: "🌦️"},
	53: {Desc: "Moderate drizzle", Icon: "🌦️"},
	55: {Desc: "Dense drizzle", Icon: "🌧️"},
	61: {Desc: "Slight rain", Icon: "🌧️"},
	63: {Desc: "Moderate rain", Icon: "🌧️"},
	65: {Desc: "Heavy rain", Icon: "⛈️"},
	71: {Desc: "Slight snow", Icon: "🌨️"},
	73: {Desc: "Moderate snow", Icon: "🌨️"},
	75: {Desc: "Heavy snow", Icon: "❄️"},
	80: {Desc: "Rain showers", Icon: "🌧️"},
	95: {Desc: "Thunderstorm", Icon: "⛈️"},
}

// Lookup returns the description and icon for a weather code. Codes outside
// the table get a generic description and a rainbow, so responses stay
// well-formed when the upstream adds new codes.
func Lookup(code int) Info {
	if info, ok := table[code]; ok {
		return info
	}
	return Info{Desc: fmt.Sprintf("Weather code %d", code), Icon: "🌈"}
}

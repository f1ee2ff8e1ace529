package weather

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Handler serves the mock weather API. It mirrors the OpenWeatherMap
// current-weather endpoint closely enough that clients written against the
// real API work unchanged against this one.
type Handler struct {
	APIKey string
}

func NewHandler(apiKey string) *Handler {
	return &Handler{APIKey: apiKey}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/", h.root)
	r.GET("/health", h.health)
	r.GET("/data/2.5/weather", h.currentWeather)
}

func (h *Handler) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Local Weather API Service",
		"version": "1.0.0",
		"endpoints": gin.H{
			"/data/2.5/weather": "Get current weather data",
		},
	})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":             "healthy",
		"api_key_configured": h.APIKey != "",
	})
}

func (h *Handler) currentWeather(c *gin.Context) {
	city := c.Query("q")
	apiKey := c.Query("appid")

	if apiKey != h.APIKey {
		c.JSON(http.StatusUnauthorized, gin.H{
			"cod":     401,
			"message": "Invalid API key. Please check your WEATHER_API_KEY configuration.",
		})
		return
	}

	if city == "" {
		c.JSON(http.StatusNotFound, gin.H{
			"cod":     "404",
			"message": "city not found: empty city name",
		})
		return
	}

	w := lookup(city)
	now := time.Now().Unix()

	c.JSON(http.StatusOK, Report{
		Coord:   Coord{Lon: 0, Lat: 0},
		Weather: []Condition{w.Condition},
		Base:    "stations",
		Main: Main{
			Temp:     w.Temp,
			Humidity: w.Humidity,
			Pressure: w.Pressure,
		},
		Visibility: 10000,
		Wind:       Wind{Speed: w.WindSpeed},
		Clouds:     Clouds{All: 20},
		Dt:         now,
		Sys: Sys{
			Type:    1,
			ID:      1234,
			Country: "XX",
			Sunrise: now,
			Sunset:  now,
		},
		Timezone: 0,
		ID:       1234567,
		Name:     w.Name,
		Cod:      200,
	})
}

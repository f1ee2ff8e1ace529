package tools

import (
	"context"
	"fmt"
	"math/rand"

	lctools "github.com/tmc/langchaingo/tools"
)

// Adapters implementing the langchaingo tools.Tool interface, used by the
// production agent's executor. Inputs arrive as plain strings per that
// framework's convention.

var (
	_ lctools.Tool = CalculatorTool{}
	_ lctools.Tool = WebSearchTool{}
	_ lctools.Tool = RandomWeatherTool{}
)

// CalculatorTool evaluates free-form arithmetic expressions.
type CalculatorTool struct{}

func (CalculatorTool) Name() string {
	return "calculator"
}

func (CalculatorTool) Description() string {
	return "Evaluate a mathematical expression, e.g. '15 * 20 / 100'. " +
		"Input must contain only numbers, + - * /, parentheses and spaces."
}

func (CalculatorTool) Call(_ context.Context, input string) (string, error) {
	v, err := Evaluate(input)
	if err != nil {
		// Returned as an observation so the agent loop can continue.
		return fmt.Sprintf("Error: %v", err), nil
	}
	return fmt.Sprintf("Result: %s", FormatNumber(v)), nil
}

// WebSearchTool returns simulated search results.
type WebSearchTool struct{}

func (WebSearchTool) Name() string {
	return "web_search"
}

func (WebSearchTool) Description() string {
	return "Search the web for information. Input is the search query."
}

func (WebSearchTool) Call(_ context.Context, input string) (string, error) {
	return WebSearch(input, 3), nil
}

var weatherConditions = []string{"Sunny", "Cloudy", "Rainy", "Partly Cloudy", "Overcast"}

// RandomWeatherTool reports made-up weather for a city. The production
// agent module does not depend on the mock weather HTTP service; it keeps
// its own simulation, like the course material it came from.
type RandomWeatherTool struct{}

func (RandomWeatherTool) Name() string {
	return "get_weather"
}

func (RandomWeatherTool) Description() string {
	return "Get current weather for a city. Input is the city name."
}

func (RandomWeatherTool) Call(_ context.Context, input string) (string, error) {
	temp := 5 + rand.Intn(25)
	condition := weatherConditions[rand.Intn(len(weatherConditions))]
	return fmt.Sprintf("Current weather in %s: %d°C, %s", input, temp, condition), nil
}

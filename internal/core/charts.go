package core

import (
	"encoding/json"
	"fmt"
	"net/url"

	"nutricoach.in/nutribot/internal/store"
)

const quickChartBase = "https://quickchart.io/chart?c="

// ChartSeries is a day-keyed data series. Days with no data are simply
// absent; the chart renders whatever points exist.
type ChartSeries struct {
	Labels []string
	Values []float64
}

type chartDataset struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BorderColor     string    `json:"borderColor,omitempty"`
	BackgroundColor string    `json:"backgroundColor,omitempty"`
	Fill            *bool     `json:"fill,omitempty"`
}

type chartConfig struct {
	Type string `json:"type"`
	Data struct {
		Labels   []string       `json:"labels"`
		Datasets []chartDataset `json:"datasets"`
	} `json:"data"`
	Options struct {
		Title struct {
			Display bool   `json:"display"`
			Text    string `json:"text"`
		} `json:"title"`
	} `json:"options"`
}

func buildQuickChartURL(config chartConfig) string {
	encoded, err := json.Marshal(config)
	if err != nil {
		// chartConfig contains only marshalable types; this cannot happen.
		return quickChartBase
	}
	return quickChartBase + url.QueryEscape(string(encoded))
}

// WeightChartURL renders the per-day weight series as a line chart.
func WeightChartURL(series ChartSeries, days int) string {
	fill := false
	config := chartConfig{Type: "line"}
	config.Data.Labels = series.Labels
	config.Data.Datasets = []chartDataset{{
		Label:       "Weight (lbs)",
		Data:        series.Values,
		BorderColor: "blue",
		Fill:        &fill,
	}}
	config.Options.Title.Display = true
	config.Options.Title.Text = fmt.Sprintf("Your Weight Over Last %d Days", days)
	return buildQuickChartURL(config)
}

// CalorieChartURL renders daily calorie totals as a bar chart.
func CalorieChartURL(series ChartSeries, days int) string {
	config := chartConfig{Type: "bar"}
	config.Data.Labels = series.Labels
	config.Data.Datasets = []chartDataset{{
		Label:           "Calories per Day",
		Data:            series.Values,
		BackgroundColor: "rgba(255, 99, 132, 0.5)",
	}}
	config.Options.Title.Display = true
	config.Options.Title.Text = fmt.Sprintf("Your Calories Over Last %d Days", days)
	return buildQuickChartURL(config)
}

// WeightSeries converts stored weight entries into a chart series.
func WeightSeries(weights []store.WeightEntry) ChartSeries {
	var series ChartSeries
	for _, w := range weights {
		series.Labels = append(series.Labels, w.Day)
		series.Values = append(series.Values, w.Value)
	}
	return series
}

// DailyCalorieTotals sums meal calories per day. Meals arrive ordered by
// day, so the output series is in day order.
func DailyCalorieTotals(meals []store.MealEntry) ChartSeries {
	var series ChartSeries
	for _, meal := range meals {
		n := len(series.Labels)
		if n > 0 && series.Labels[n-1] == meal.Day {
			series.Values[n-1] += meal.Calories
			continue
		}
		series.Labels = append(series.Labels, meal.Day)
		series.Values = append(series.Values, meal.Calories)
	}
	return series
}

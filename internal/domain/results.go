package domain

import "time"

// DirectorResult is the output of every creative-direction recipe.
type DirectorResult struct {
	Title    string `json:"title,omitempty"`
	Analysis string `json:"analysis"`
	Prompt   string `json:"prompt"`
}

// StockSeoResult is the output of the stock SEO recipe. Keywords is one
// comma separated string.
type StockSeoResult struct {
	Titles    []string `json:"titles"`
	BestTitle string   `json:"bestTitle"`
	Keywords  string   `json:"keywords"`
}

// Trend is one trending theme of a market snapshot.
type Trend struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// MarketEvent is an upcoming named event with its associated keywords.
type MarketEvent struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
}

// MarketInsight is a point-in-time market snapshot.
type MarketInsight struct {
	Trends    []Trend       `json:"trends"`
	Events    []MarketEvent `json:"events"`
	Keywords  []string      `json:"keywords"`
	Advice    string        `json:"advice"`
	FetchedAt time.Time     `json:"fetchedAt"`
}

// Event returns the event with the given name.
func (m MarketInsight) Event(name string) (MarketEvent, bool) {
	for _, ev := range m.Events {
		if ev.Name == name {
			return ev, true
		}
	}
	return MarketEvent{}, false
}

package model

import (
	"fmt"
	"sort"
)

// Event is a registrable event with a locked price. Prices live here and only
// here; a client-supplied price is never trusted.
type Event struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

var eventCatalog = map[string]Event{
	"birmingham-slam-camp": {
		Slug:        "birmingham-slam-camp",
		Title:       "Birmingham Slam Camp",
		AmountCents: 24900,
		Currency:    "USD",
	},
	"national-champ-camp": {
		Slug:        "national-champ-camp",
		Title:       "National Champ Camp",
		AmountCents: 29900,
		Currency:    "USD",
	},
	"texas-recruiting-clinic": {
		Slug:        "texas-recruiting-clinic",
		Title:       "Texas Recruiting Clinic",
		AmountCents: 24900,
		Currency:    "USD",
	},
	"panther-train-tour": {
		Slug:        "panther-train-tour",
		Title:       "Panther Train Tour",
		AmountCents: 9900,
		Currency:    "USD",
	},
	"community-open-mat": {
		Slug:        "community-open-mat",
		Title:       "Community Open Mat",
		AmountCents: 0,
		Currency:    "USD",
	},
}

// LookupEvent resolves an event by slug. Unknown events fail fast.
func LookupEvent(slug string) (Event, error) {
	event, ok := eventCatalog[slug]
	if !ok {
		return Event{}, fmt.Errorf("unknown event '%s'", slug)
	}
	return event, nil
}

// EventSlugs returns the closed set of valid event slugs, sorted for stable
// validation messages.
func EventSlugs() []interface{} {
	slugs := make([]string, 0, len(eventCatalog))
	for slug := range eventCatalog {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	out := make([]interface{}, len(slugs))
	for i, slug := range slugs {
		out[i] = slug
	}
	return out
}

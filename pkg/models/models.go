// Package models defines the core data structures shared by the fetch,
// ranking and report stages of cryptoreport.
package models

import (
	"fmt"
	"strings"
)

// Horizon is one of the fixed lookback windows for percentage price change.
type Horizon string

const (
	Horizon7d  Horizon = "7d"
	Horizon30d Horizon = "30d"
	Horizon90d Horizon = "90d"
	Horizon1y  Horizon = "1y"
)

// AllHorizons returns every supported horizon, shortest first.
func AllHorizons() []Horizon {
	return []Horizon{Horizon7d, Horizon30d, Horizon90d, Horizon1y}
}

// ParseHorizon converts a user-supplied string ("7d", "30D", " 1y ") into a Horizon.
func ParseHorizon(s string) (Horizon, error) {
	h := Horizon(strings.ToLower(strings.TrimSpace(s)))
	if !h.Valid() {
		return "", fmt.Errorf("invalid horizon %q (want one of 7d, 30d, 90d, 1y)", s)
	}
	return h, nil
}

// Valid reports whether h is one of the four supported horizons.
func (h Horizon) Valid() bool {
	switch h {
	case Horizon7d, Horizon30d, Horizon90d, Horizon1y:
		return true
	}
	return false
}

// FetchStatus is the outcome of a single token lookup.
type FetchStatus string

const (
	StatusOK            FetchStatus = "OK"
	StatusNotFound      FetchStatus = "NOT_FOUND"
	StatusRateLimited   FetchStatus = "RATE_LIMITED"
	StatusProviderError FetchStatus = "PROVIDER_ERROR"
)

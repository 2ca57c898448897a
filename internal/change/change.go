// Package change projects provider quote payloads onto models.TokenQuote.
//
// The provider already supplies pre-computed percentage changes, so this
// is a validation step rather than arithmetic over price history: numeric
// values are copied through and anything else becomes "absent". Absent is
// never turned into zero.
package change

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/seenimoa/cryptoreport/pkg/models"
)

// Field names in the provider's USD quote object.
const (
	FieldPrice     = "price"
	FieldChange7d  = "percent_change_7d"
	FieldChange30d = "percent_change_30d"
	FieldChange90d = "percent_change_90d"
	FieldChange1y  = "percent_change_1y"
)

// HorizonField maps each horizon to its provider field.
var HorizonField = map[models.Horizon]string{
	models.Horizon7d:  FieldChange7d,
	models.Horizon30d: FieldChange30d,
	models.Horizon90d: FieldChange90d,
	models.Horizon1y:  FieldChange1y,
}

// RawQuote is a quote as the provider sent it, before any field is
// trusted. Quote holds the members of the USD quote object verbatim.
type RawQuote struct {
	Symbol string
	Name   string
	Rank   json.RawMessage
	Quote  map[string]json.RawMessage
}

// ErrMalformed is returned by Validate for quotes that cannot be used at all.
var ErrMalformed = errors.New("malformed quote")

// Validate reports whether raw carries the fields every quote must have:
// a symbol and a numeric price.
func Validate(raw RawQuote) error {
	if raw.Symbol == "" {
		return fmt.Errorf("%w: missing symbol", ErrMalformed)
	}
	if _, ok := number(raw.Quote[FieldPrice]); !ok {
		return fmt.Errorf("%w: %s has no numeric price", ErrMalformed, raw.Symbol)
	}
	return nil
}

// Compute builds a TokenQuote from raw. It never fails: every optional
// field that is missing, null or non-numeric is left nil.
func Compute(raw RawQuote) models.TokenQuote {
	q := models.TokenQuote{
		Symbol: raw.Symbol,
		Name:   raw.Name,
		Rank:   rank(raw.Rank),
	}
	if p, ok := number(raw.Quote[FieldPrice]); ok {
		q.PriceUSD = p
	}
	q.Change7d = optional(raw.Quote[FieldChange7d])
	q.Change30d = optional(raw.Quote[FieldChange30d])
	q.Change90d = optional(raw.Quote[FieldChange90d])
	q.Change1y = optional(raw.Quote[FieldChange1y])
	return q
}

// FromQuote renders a normalized quote back into raw form, so that
// Compute(FromQuote(q)) == q for any q produced by Compute.
func FromQuote(q models.TokenQuote) RawQuote {
	raw := RawQuote{
		Symbol: q.Symbol,
		Name:   q.Name,
		Quote:  map[string]json.RawMessage{FieldPrice: encode(q.PriceUSD)},
	}
	if q.Rank != nil {
		raw.Rank = encode(*q.Rank)
	}
	for h, field := range HorizonField {
		if v, ok := q.Change(h); ok {
			raw.Quote[field] = encode(v)
		}
	}
	return raw
}

// number decodes a JSON number. Strings, booleans, null and values that
// overflow float64 are rejected.
func number(msg json.RawMessage) (float64, bool) {
	msg = bytes.TrimSpace(msg)
	if len(msg) == 0 {
		return 0, false
	}
	if c := msg[0]; c != '-' && (c < '0' || c > '9') {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(msg, &f); err != nil {
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func optional(msg json.RawMessage) *float64 {
	f, ok := number(msg)
	if !ok {
		return nil
	}
	return &f
}

// rank accepts positive whole numbers only.
func rank(msg json.RawMessage) *int {
	f, ok := number(msg)
	if !ok || f < 1 || f != math.Trunc(f) || f > math.MaxInt32 {
		return nil
	}
	r := int(f)
	return &r
}

func encode(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

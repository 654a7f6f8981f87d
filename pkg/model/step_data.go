package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StepData is the open-ended payload of one wizard step.
type StepData map[string]any

// SearchCriteria is the typed view of the search slot.
type SearchCriteria struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	DepartDate  string `json:"depart_date"`
	ReturnDate  string `json:"return_date"`
	Passengers  int    `json:"passengers"`
}

// Selection is the typed view of the selection slot. Price is zero when
// missing or not numeric.
type Selection struct {
	Price   float64 `json:"price"`
	OfferID string  `json:"offer_id"`
	Carrier string  `json:"carrier"`
	Title   string  `json:"title"`
}

type Traveler struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type TravelerInfo struct {
	Travelers []Traveler `json:"travelers"`
}

// AddonSet maps addon names to their numeric price. Non-numeric entries
// are left out.
type AddonSet map[string]float64

type ReviewNotes struct {
	Notes         string `json:"notes"`
	AcceptedTerms bool   `json:"accepted_terms"`
}

func (d StepData) SearchCriteria() SearchCriteria {
	var v SearchCriteria
	v.Origin = d.str("origin")
	v.Destination = d.str("destination")
	v.DepartDate = d.str("depart_date")
	v.ReturnDate = d.str("return_date")
	if n, ok := Numeric(d["passengers"]); ok {
		v.Passengers = int(n)
	}
	return v
}

func (d StepData) Selection() Selection {
	price, _ := Numeric(d["price"])
	return Selection{
		Price:   price,
		OfferID: d.str("offer_id"),
		Carrier: d.str("carrier"),
		Title:   d.str("title"),
	}
}

func (d StepData) TravelerInfo() TravelerInfo {
	var v TravelerInfo
	for _, item := range asList(d["travelers"]) {
		m, ok := asMap(item)
		if !ok {
			continue
		}
		v.Travelers = append(v.Travelers, Traveler{
			Name:  m.str("name"),
			Email: m.str("email"),
			Phone: m.str("phone"),
		})
	}
	return v
}

// AddonSet returns the numeric addons of the slot. Entries of a nested
// "addons" mapping count alongside the numeric top-level ones, and a name
// present in both places carries the sum of the two.
func (d StepData) AddonSet() AddonSet {
	set := AddonSet{}
	add := func(source map[string]any) {
		for name, raw := range source {
			if n, ok := Numeric(raw); ok {
				set[name] += n
			}
		}
	}

	add(d)
	if nested, ok := asMap(d["addons"]); ok {
		add(nested)
	}
	return set
}

func (d StepData) ReviewNotes() ReviewNotes {
	accepted, _ := d["accepted_terms"].(bool)
	return ReviewNotes{
		Notes:         d.str("notes"),
		AcceptedTerms: accepted,
	}
}

func (d StepData) str(key string) string {
	s, _ := d[key].(string)
	return s
}

// Numeric reads a JSON number or numeric string. Booleans, nulls,
// arrays, objects and unparsable strings are not numeric.
func Numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func asMap(v any) (StepData, bool) {
	switch m := v.(type) {
	case StepData:
		return m, true
	case map[string]any:
		return StepData(m), true
	case primitive.M:
		return StepData(m), true
	}
	return nil, false
}

func asList(v any) []any {
	switch l := v.(type) {
	case []any:
		return l
	case primitive.A:
		return l
	}
	return nil
}

package models

import (
	"strings"
	"time"
)

// Condition is the normalised item condition of an observed listing.
type Condition string

const (
	ConditionExcellent Condition = "excellent"
	ConditionGood      Condition = "good"
	ConditionFair      Condition = "fair"
	ConditionPoor      Condition = "poor"
	ConditionUnknown   Condition = "unknown"
)

// conditionWords is checked in order, so the more specific phrases come first.
var conditionWords = []struct {
	phrase    string
	condition Condition
}{
	{"for parts", ConditionPoor},
	{"not working", ConditionPoor},
	{"broken", ConditionPoor},
	{"damaged", ConditionPoor},
	{"like new", ConditionGood},
	{"open box", ConditionGood},
	{"refurbished", ConditionGood},
	{"pre-owned", ConditionGood},
	{"preowned", ConditionGood},
	{"used", ConditionGood},
	{"acceptable", ConditionFair},
	{"worn", ConditionFair},
	{"fair", ConditionFair},
	{"brand new", ConditionExcellent},
	{"sealed", ConditionExcellent},
	{"mint", ConditionExcellent},
	{"new", ConditionExcellent},
}

// ParseCondition maps marketplace wording onto a Condition.
func ParseCondition(text string) Condition {
	text = strings.ToLower(text)
	if text == "" {
		return ConditionUnknown
	}
	for _, w := range conditionWords {
		if strings.Contains(text, w.phrase) {
			return w.condition
		}
	}
	return ConditionUnknown
}

// RawListing holds unprocessed data straight from a marketplace page or API.
// It is cleaned into a ListingRecord before any statistics are computed.
type RawListing struct {
	Title        string
	RawPrice     string
	RawCondition string
	RawDate      string
	ImageURL     string
	URL          string
	Source       string
}

// ListingRecord is one observed price point. It is never modified after cleaning.
type ListingRecord struct {
	Title      string    `json:"title"`
	Price      float64   `json:"price"`
	Condition  Condition `json:"condition"`
	ObservedAt time.Time `json:"observedAt"`
	ImageURL   string    `json:"imageUrl,omitempty"`
	URL        string    `json:"url,omitempty"`
	Source     string    `json:"source"`
}

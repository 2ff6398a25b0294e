package services

import (
	"strings"
)

const maxAlternativeTerms = 3

// qualifiers are model-line suffixes that narrow a search too far.
var qualifiers = map[string]bool{
	"pro": true, "max": true, "mini": true, "plus": true, "ultra": true, "se": true,
}

// brandTokens are dropped to broaden a search to the model name alone.
var brandTokens = map[string]bool{
	"apple": true, "samsung": true, "sony": true, "nintendo": true, "microsoft": true,
	"google": true, "dell": true, "hp": true, "lenovo": true, "canon": true, "nikon": true,
	"bose": true, "dyson": true, "rolex": true, "omega": true, "nike": true, "adidas": true,
}

// brandCasing is how marketplaces spell these names.
var brandCasing = map[string]string{
	"iphone":      "iPhone",
	"ipad":        "iPad",
	"imac":        "iMac",
	"macbook":     "MacBook",
	"airpods":     "AirPods",
	"playstation": "PlayStation",
	"ps5":         "PS5",
	"ps4":         "PS4",
	"xbox":        "Xbox",
	"gopro":       "GoPro",
	"dewalt":      "DeWalt",
	"oneplus":     "OnePlus",
}

// AlternativeTerms derives up to three broader or re-spelled queries, in the
// order they should be tried: qualifiers removed, brand removed, brand
// casing corrected. The original query is never among them.
func AlternativeTerms(query string) []string {
	fields := strings.Fields(query)
	candidates := []string{
		join(dropWords(fields, qualifiers)),
		join(dropWords(fields, brandTokens)),
		join(dropWords(dropWords(fields, qualifiers), brandTokens)),
		join(recase(fields)),
	}

	original := join(fields)
	seen := map[string]bool{original: true}
	var out []string
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
		if len(out) == maxAlternativeTerms {
			break
		}
	}
	return out
}

func dropWords(fields []string, drop map[string]bool) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if drop[strings.ToLower(f)] {
			continue
		}
		out = append(out, f)
	}
	return out
}

func recase(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		if c, ok := brandCasing[strings.ToLower(f)]; ok {
			out[i] = c
			continue
		}
		out[i] = f
	}
	return out
}

func join(fields []string) string {
	return strings.Join(fields, " ")
}

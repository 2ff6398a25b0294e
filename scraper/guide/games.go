package guide

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"pawn-estimator/models"
)

const (
	gamesPawnRate   = 0.20
	gamesConfidence = 0.5
)

// gameLoosePrices are cartridge/disc-only prices for commonly pawned titles.
var gameLoosePrices = map[string]float64{
	"super mario 64":               30,
	"ocarina of time":              35,
	"majoras mask":                 45,
	"goldeneye 007":                30,
	"mario kart 64":                35,
	"super smash bros melee":       60,
	"super mario world":            25,
	"super mario bros 3":           25,
	"chrono trigger":               180,
	"earthbound":                   250,
	"final fantasy vii":            20,
	"metroid prime":                25,
	"pokemon red":                  40,
	"pokemon blue":                 40,
	"pokemon yellow":               45,
	"pokemon emerald":              90,
	"pokemon heartgold":            130,
	"halo 3":                       8,
	"breath of the wild":           35,
	"tears of the kingdom":         45,
	"mario kart 8 deluxe":          35,
	"animal crossing new horizons": 35,
	"red dead redemption 2":        15,
}

// gameKeys are matched longest first so "mario kart 8 deluxe" beats shorter titles.
var gameKeys = func() []string {
	keys := make([]string, 0, len(gameLoosePrices))
	for k := range gameLoosePrices {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

func normaliseTitle(query string) string {
	q := strings.ToLower(query)
	q = strings.NewReplacer("'", "", "é", "e", ":", " ", "-", " ", ".", " ").Replace(q)
	return " " + strings.Join(strings.Fields(q), " ") + " "
}

func gamesTier(_ context.Context, query string) (*models.PriceEstimate, error) {
	q := normaliseTitle(query)
	for _, title := range gameKeys {
		if strings.Contains(q, " "+title+" ") {
			price := gameLoosePrices[title]
			note := fmt.Sprintf("Games guide: loose price for %q", title)
			return ruleEstimate("games", price, gamesPawnRate, gamesConfidence, note), nil
		}
	}
	return nil, models.NoData(Source, "no games table entry")
}

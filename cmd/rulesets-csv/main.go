// Command rulesets-csv exports every rule in the organization to a flat CSV
// for review outside the console. Rule bodies are fetched one by one, so the
// Redis cache (when configured) makes reruns cheap.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/opswatch/threatstack-client/internal/cli"
	"github.com/opswatch/threatstack-client/pkg/export"
)

func main() {
	output := flag.String("o", "rules.csv", "output CSV file path")
	flag.Parse()

	_, api, err := cli.Bootstrap(5 * time.Minute)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}

	ctx := context.Background()
	rulesets, err := api.Rulesets(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to fetch rulesets")
	}

	var rules []json.RawMessage
	for _, rs := range rulesets {
		for _, ruleID := range rs.Rules {
			rule, err := api.Rule(ctx, rs.ID, ruleID)
			if err != nil {
				log.Fatal().
					Str("ruleset", rs.ID).
					Str("rule", ruleID).
					Err(err).
					Msg("Failed to fetch rule")
			}
			rules = append(rules, rule)
		}
	}

	f, err := os.Create(*output)
	if err != nil {
		log.Fatal().Err(err).Str("path", *output).Msg("Failed to create output file")
	}
	defer f.Close()

	if err := export.WriteRulesCSV(f, rules); err != nil {
		log.Fatal().Err(err).Msg("Failed to write CSV")
	}

	log.Info().
		Int("rulesets", len(rulesets)).
		Int("rules", len(rules)).
		Str("path", *output).
		Msg("Rules exported")
}

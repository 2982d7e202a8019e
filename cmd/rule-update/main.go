// Command rule-update replaces one rule under a ruleset with a JSON body
// read from a file, then prints the API's response. The body is signed into
// the request's payload hash.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/opswatch/threatstack-client/internal/cli"
)

func main() {
	rulesetID := flag.String("ruleset", "", "ruleset ID containing the rule")
	ruleID := flag.String("rule", "", "rule ID to update")
	file := flag.String("file", "", "path to the JSON rule body")
	flag.Parse()

	if *rulesetID == "" || *ruleID == "" || *file == "" {
		log.Fatal().Msg("-ruleset, -rule and -file are all required")
	}

	body, err := os.ReadFile(*file)
	if err != nil {
		log.Fatal().Err(err).Str("path", *file).Msg("Failed to read rule body")
	}
	if !json.Valid(body) {
		log.Fatal().Str("path", *file).Msg("Rule body is not valid JSON")
	}

	_, api, err := cli.Bootstrap(0)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}

	resp, err := api.UpdateRule(context.Background(), *rulesetID, *ruleID, body)
	if err != nil {
		log.Fatal().Err(err).
			Str("ruleset", *rulesetID).
			Str("rule", *ruleID).
			Msg("Rule update failed")
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to render response")
	}
	fmt.Println(string(out))
}

// Command agents lists the organization's agents, filtered by status, and
// prints them as a JSON array.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/opswatch/threatstack-client/internal/cli"
	"github.com/opswatch/threatstack-client/pkg/pagination"
	"github.com/opswatch/threatstack-client/pkg/threatstack"
)

func main() {
	status := flag.String("status", threatstack.StatusOnline, "agent status filter (online or offline)")
	flag.Parse()

	if *status != threatstack.StatusOnline && *status != threatstack.StatusOffline {
		log.Fatal().Str("status", *status).Msg("Status must be online or offline")
	}

	_, api, err := cli.Bootstrap(0)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}

	acc := pagination.NewAccumulator()
	if err := pagination.Run(context.Background(), api.Agents(*status), acc); err != nil {
		log.Fatal().Err(err).Msg("Agent listing failed")
	}

	out, err := json.MarshalIndent(acc.Records(), "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to render agents")
	}
	fmt.Println(string(out))
}

// Command data-portability prints the organization's S3 export integration
// setup as indented JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/opswatch/threatstack-client/internal/cli"
)

func main() {
	_, api, err := cli.Bootstrap(0)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}

	raw, err := api.DataPortability(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to fetch data portability setup")
	}

	out, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to render response")
	}
	fmt.Println(string(out))
}

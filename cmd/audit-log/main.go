// Command audit-log pulls the organization's audit log for the past N days.
// By default it accumulates every page and prints the records as a JSON
// array; with -mysql it streams each page into per-organization MySQL tables
// so unbounded pulls stay memory-bounded.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"

	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/opswatch/threatstack-client/internal/cli"
	"github.com/opswatch/threatstack-client/pkg/pagination"
	"github.com/opswatch/threatstack-client/pkg/sink"
	"github.com/opswatch/threatstack-client/pkg/threatstack"
)

func main() {
	days := flag.Int("days", 1, "pull audit logs for the past N days")
	useMySQL := flag.Bool("mysql", false, "stream records into MySQL instead of printing JSON")
	flag.Parse()

	cfg, api, err := cli.Bootstrap(0)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}

	// Long pulls can expose their metrics; cron runs leave this unset.
	if addr := os.Getenv("METRICS_ADDR"); addr != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(addr, nil); err != nil {
				log.Warn().Err(err).Str("addr", addr).Msg("Metrics listener stopped")
			}
		}()
	}

	ctx := context.Background()
	window := threatstack.LastDays(*days)
	fetch := api.AuditLogs(&window)

	if *useMySQL {
		if !cfg.HasSQL() {
			log.Fatal().Msg("SQL_USER, SQL_HOST and SQL_DATABASE must be set for -mysql")
		}
		db, err := sql.Open("mysql", cfg.DSN())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open database")
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}

		if err := pagination.Run(ctx, fetch, sink.NewMySQL(db)); err != nil {
			log.Fatal().Err(err).Msg("Audit log pull failed")
		}
		return
	}

	acc := pagination.NewAccumulator()
	if err := pagination.Run(ctx, fetch, acc); err != nil {
		log.Fatal().Err(err).Msg("Audit log pull failed")
	}

	out, err := json.MarshalIndent(acc.Records(), "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to render records")
	}
	fmt.Println(string(out))
}

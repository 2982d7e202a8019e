package pagination

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var (
	tsPagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ts_pages_fetched_total",
		Help: "Total pages fetched across all pagination runs",
	})

	tsRecordsFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ts_records_fetched_total",
		Help: "Total records fetched across all pagination runs",
	})
)

// Page is one page of a paginated response: the records plus the
// continuation token for the next page. An empty token ends the run; JSON
// null decodes to the empty string, so "no token" and `token: null` are
// indistinguishable here, exactly as the API treats them.
type Page struct {
	Records []json.RawMessage
	Token   string
}

// FetchFunc fetches one page. The first call receives the empty token.
type FetchFunc func(ctx context.Context, token string) (*Page, error)

// Sink consumes each page's records as they arrive.
type Sink interface {
	Write(ctx context.Context, records []json.RawMessage) error
}

// Run drains a paginated endpoint into sink. Fetch errors and sink errors
// both abort the run and propagate unchanged.
func Run(ctx context.Context, fetch FetchFunc, sink Sink) error {
	token := ""
	pages := 0
	total := 0

	for {
		page, err := fetch(ctx, token)
		if err != nil {
			return fmt.Errorf("fetch page %d: %w", pages+1, err)
		}
		if page == nil {
			return nil
		}

		pages++
		total += len(page.Records)
		tsPagesFetchedTotal.Inc()
		tsRecordsFetchedTotal.Add(float64(len(page.Records)))

		log.Debug().
			Int("page", pages).
			Int("records_total", total).
			Msg("Fetched page")

		if err := sink.Write(ctx, page.Records); err != nil {
			return fmt.Errorf("write page %d: %w", pages, err)
		}

		if page.Token == "" {
			break
		}
		token = page.Token
	}

	log.Info().
		Int("pages", pages).
		Int("records_total", total).
		Msg("Pagination complete")

	return nil
}

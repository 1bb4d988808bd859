package source

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/postgres"
)

// Postgres streams documents from a query inside a read-only transaction so
// the build sees one consistent snapshot of the table. The query must return
// two columns: document ID and raw text.
type Postgres struct {
	client *postgres.Client
	query  string
	logger *slog.Logger
}

func NewPostgres(client *postgres.Client, query string) (*Postgres, error) {
	if query == "" {
		return nil, fmt.Errorf("postgres source: empty document query")
	}
	return &Postgres{
		client: client,
		query:  query,
		logger: slog.Default().With("component", "postgres-source"),
	}, nil
}

func (p *Postgres) Name() string { return "postgres" }

func (p *Postgres) Each(ctx context.Context, fn func(Document) error) error {
	return p.client.ReadSnapshot(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, p.query)
		if err != nil {
			return fmt.Errorf("querying documents: %w", err)
		}
		defer rows.Close()

		n := 0
		for rows.Next() {
			var (
				id   string
				text sql.NullString
			)
			if err := rows.Scan(&id, &text); err != nil {
				return &DocumentError{ID: fmt.Sprintf("row %d", n+1), Err: err}
			}
			if err := fn(Document{ID: id, Text: text.String}); err != nil {
				return err
			}
			n++
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterating documents after %d rows: %w", n, err)
		}
		p.logger.Debug("documents streamed", "count", n)
		return nil
	})
}

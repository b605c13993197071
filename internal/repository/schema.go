package repository

import "database/sql"

// InitSchema создаёт таблицы, если их ещё нет.
// Вызывается при старте приложения.
func InitSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS portfolios (
			id         TEXT PRIMARY KEY,
			doc        JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS trades (
			id                TEXT PRIMARY KEY,
			created           TIMESTAMPTZ NOT NULL,
			pair              TEXT NOT NULL,
			price             DOUBLE PRECISION NOT NULL,
			units             DOUBLE PRECISION NOT NULL,
			cost              DOUBLE PRECISION NOT NULL,
			loss_limit        DOUBLE PRECISION NOT NULL,
			profit_limit      DOUBLE PRECISION NOT NULL,
			profit_amount     DOUBLE PRECISION,
			profit_percentage DOUBLE PRECISION,
			status            TEXT NOT NULL,
			order_id          TEXT NOT NULL DEFAULT '',
			liquidated        BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_created ON trades (created DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_pair ON trades (pair, created DESC)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

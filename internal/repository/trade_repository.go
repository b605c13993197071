package repository

import (
	"database/sql"
	"errors"
	"time"

	"coinsignals/internal/models"
)

// Ошибки репозитория трейдов
var (
	ErrTradeNotFound = errors.New("trade not found")
)

// TradeRepository - работа с журналом сделок (таблица trades)
//
// Журнал append-mostly: запись создаётся при открытии трейда
// и обновляется только сменой статуса/идентификатора ордера.
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository создает новый экземпляр репозитория
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

const tradeColumns = `id, created, pair, price, units, cost, loss_limit, profit_limit, profit_amount, profit_percentage, status, order_id, liquidated`

// Save сохраняет трейд (insert или обновление статуса исполнения)
func (r *TradeRepository) Save(trade *models.Trade) error {
	query := `
		INSERT INTO trades (` + tradeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    order_id = EXCLUDED.order_id,
		    liquidated = EXCLUDED.liquidated`

	var profitAmount, profitPct *float64
	if trade.Profit != nil {
		profitAmount = &trade.Profit.Amount
		profitPct = &trade.Profit.Percentage
	}

	_, err := r.db.Exec(
		query,
		trade.ID,
		trade.Created,
		trade.Pair,
		trade.Price,
		trade.Units,
		trade.Cost,
		trade.Limits.Loss,
		trade.Limits.Profit,
		profitAmount,
		profitPct,
		trade.Meta.Status,
		trade.Meta.OrderID,
		trade.Meta.Liquidated,
	)
	return err
}

// scanTrade читает одну строку журнала
func scanTrade(row interface{ Scan(...interface{}) error }) (*models.Trade, error) {
	trade := &models.Trade{}
	var profitAmount, profitPct sql.NullFloat64

	err := row.Scan(
		&trade.ID,
		&trade.Created,
		&trade.Pair,
		&trade.Price,
		&trade.Units,
		&trade.Cost,
		&trade.Limits.Loss,
		&trade.Limits.Profit,
		&profitAmount,
		&profitPct,
		&trade.Meta.Status,
		&trade.Meta.OrderID,
		&trade.Meta.Liquidated,
	)
	if err != nil {
		return nil, err
	}

	if profitAmount.Valid {
		trade.Profit = &models.Profit{
			Amount:     profitAmount.Float64,
			Percentage: profitPct.Float64,
		}
	}
	return trade, nil
}

// GetByID возвращает трейд по идентификатору
func (r *TradeRepository) GetByID(id string) (*models.Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE id = $1`

	trade, err := scanTrade(r.db.QueryRow(query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}
	return trade, nil
}

// GetRecent возвращает последние трейды журнала
func (r *TradeRepository) GetRecent(limit int) ([]*models.Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		ORDER BY created DESC
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*models.Trade
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}
	return trades, nil
}

// GetByPair возвращает трейды одной пары
func (r *TradeRepository) GetByPair(pair string, limit int) ([]*models.Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE pair = $1
		ORDER BY created DESC
		LIMIT $2`

	rows, err := r.db.Query(query, pair, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*models.Trade
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}
	return trades, nil
}

// TotalProfit возвращает сумму зафиксированной прибыли за всю историю
func (r *TradeRepository) TotalProfit() (float64, error) {
	query := `
		SELECT COALESCE(SUM(profit_amount), 0)
		FROM trades
		WHERE profit_amount IS NOT NULL`

	var total float64
	err := r.db.QueryRow(query).Scan(&total)
	return total, err
}

// ProfitSince возвращает сумму зафиксированной прибыли начиная с момента t
func (r *TradeRepository) ProfitSince(t time.Time) (float64, error) {
	query := `
		SELECT COALESCE(SUM(profit_amount), 0)
		FROM trades
		WHERE profit_amount IS NOT NULL AND created >= $1`

	var total float64
	err := r.db.QueryRow(query, t).Scan(&total)
	return total, err
}

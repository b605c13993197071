package repository

import (
	"database/sql"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"

	"coinsignals/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Ошибки репозитория портфеля
var (
	ErrPortfolioNotFound = errors.New("portfolio not found")
)

// PortfolioRepository - работа с таблицей portfolios
//
// Портфель хранится единым JSONB-документом: состояние позиций,
// ожидающие продажи и чёрный список меняются атомарно за один цикл,
// и читать их по отдельности не нужно.
type PortfolioRepository struct {
	db *sql.DB
}

// NewPortfolioRepository создает новый экземпляр репозитория
func NewPortfolioRepository(db *sql.DB) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

// Get возвращает портфель по идентификатору
func (r *PortfolioRepository) Get(id string) (*models.Portfolio, error) {
	query := `
		SELECT doc
		FROM portfolios
		WHERE id = $1`

	var doc []byte
	err := r.db.QueryRow(query, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPortfolioNotFound
		}
		return nil, err
	}

	portfolio := &models.Portfolio{}
	if err := json.Unmarshal(doc, portfolio); err != nil {
		return nil, err
	}

	// Карты могли быть сохранены как null
	if portfolio.Positions == nil {
		portfolio.Positions = make(map[string]*models.Position)
	}
	if portfolio.Pending == nil {
		portfolio.Pending = make(map[string]*models.Trade)
	}
	if portfolio.Blacklist == nil {
		portfolio.Blacklist = make(map[string]time.Time)
	}

	return portfolio, nil
}

// Save сохраняет портфель (insert или полная замена документа)
func (r *PortfolioRepository) Save(portfolio *models.Portfolio) error {
	doc, err := json.Marshal(portfolio)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO portfolios (id, doc, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at`

	_, err = r.db.Exec(query, portfolio.ID, doc, time.Now().UTC())
	return err
}

// Exists проверяет наличие портфеля (используется командой --seed)
func (r *PortfolioRepository) Exists(id string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM portfolios WHERE id = $1)`

	var exists bool
	err := r.db.QueryRow(query, id).Scan(&exists)
	return exists, err
}

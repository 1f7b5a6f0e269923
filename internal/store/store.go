// Package store persists the trade log, audit snapshots and plans to SQLite.
// The core never depends on it; it observes the ledger's event stream.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pantheon/internal/governor"
	"pantheon/internal/ledger"
	"pantheon/internal/logger"
	"pantheon/internal/plan"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// TradeModel mirrors one ledger lot.
type TradeModel struct {
	ID              uint   `gorm:"primarykey"`
	TradeID         string `gorm:"uniqueIndex;size:36"`
	Symbol          string `gorm:"index"`
	Domain          string
	Quantity        float64
	InitialQuantity float64
	EntryPrice      float64
	EntryDate       time.Time
	Source          string
	IsOpen          bool
	RealizedPnl     string
	CloseHistory    datatypes.JSON
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SnapshotModel is one governance audit record.
type SnapshotModel struct {
	ID         uint   `gorm:"primarykey"`
	SnapshotID string `gorm:"uniqueIndex;size:36"`
	Symbol     string `gorm:"index"`
	Side       string
	Locked     bool
	Reason     string
	Reasons    datatypes.JSON
	Price      float64
	CreatedAt  time.Time
}

// PlanModel stores the full plan document as JSON.
type PlanModel struct {
	ID        uint   `gorm:"primarykey"`
	TradeID   string `gorm:"uniqueIndex;size:36"`
	Symbol    string `gorm:"index"`
	Retired   bool
	Document  datatypes.JSON
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store wraps the gorm handle.
type Store struct {
	db *gorm.DB
}

// Open initializes the SQLite database with WAL and migrates the models.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("store: path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	if err := db.AutoMigrate(&TradeModel{}, &SnapshotModel{}, &PlanModel{}); err != nil {
		return nil, fmt.Errorf("store: auto migrate: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveTrade upserts the lot keyed by its trade ID.
func (s *Store) SaveTrade(t ledger.Trade) error {
	history, err := json.Marshal(t.CloseHistory)
	if err != nil {
		return fmt.Errorf("store: marshal close history: %w", err)
	}
	pnl := "0"
	if len(t.CloseHistory) > 0 {
		sum := t.CloseHistory[0].PnL
		for _, c := range t.CloseHistory[1:] {
			sum = sum.Add(c.PnL)
		}
		pnl = sum.String()
	}
	model := TradeModel{
		TradeID:         t.ID,
		Symbol:          t.Symbol,
		Domain:          string(t.Domain),
		Quantity:        t.Quantity,
		InitialQuantity: t.InitialQuantity,
		EntryPrice:      t.EntryPrice,
		EntryDate:       t.EntryDate,
		Source:          t.Source,
		IsOpen:          t.IsOpen,
		RealizedPnl:     pnl,
		CloseHistory:    datatypes.JSON(history),
	}
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "trade_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"quantity", "is_open", "realized_pnl", "close_history", "updated_at",
		}),
	}).Create(&model).Error
}

// SaveSnapshot appends one audit record.
func (s *Store) SaveSnapshot(snap governor.ExecutionSnapshot) error {
	reasons, err := json.Marshal(snap.Reasons)
	if err != nil {
		return err
	}
	model := SnapshotModel{
		SnapshotID: snap.ID,
		Symbol:     snap.Symbol,
		Side:       string(snap.Side),
		Locked:     snap.Locked,
		Reason:     snap.Reason,
		Reasons:    datatypes.JSON(reasons),
		Price:      snap.CurrentPrice,
		CreatedAt:  snap.Timestamp,
	}
	return s.db.Create(&model).Error
}

// SavePlan upserts the plan document keyed by trade ID.
func (s *Store) SavePlan(p plan.PositionPlan) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("store: marshal plan: %w", err)
	}
	model := PlanModel{
		TradeID:  p.TradeID,
		Symbol:   p.Symbol,
		Retired:  p.Retired,
		Document: datatypes.JSON(doc),
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "trade_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"retired", "document", "updated_at"}),
	}).Create(&model).Error
}

// RecentTrades returns the latest rows, newest first.
func (s *Store) RecentTrades(limit int) ([]TradeModel, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []TradeModel
	err := s.db.Order("created_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// Consume drains the ledger event stream until ctx is done, persisting each
// committed mutation. Runs on its own goroutine; persistence failures are
// logged, never propagated into the trading path.
func (s *Store) Consume(ctx context.Context, events <-chan ledger.TradeCommitted) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := s.SaveTrade(evt.Trade); err != nil {
				logger.Errorf("store: persist trade %s failed: %v", evt.Trade.ID, err)
			}
		}
	}
}

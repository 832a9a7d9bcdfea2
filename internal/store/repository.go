package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ammonia-battery/internal/economics"
)

// StoredRun is the summary row of a persisted run.
type StoredRun struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Scenario  string    `gorm:"index" json:"scenario"`
	CreatedAt time.Time `json:"created_at"`

	Status      string  `json:"status"`
	Backend     string  `json:"backend"`
	Objective   float64 `json:"objective"`
	Attempts    int     `json:"attempts"`
	Periods     int     `json:"periods"`
	StepHours   float64 `json:"step_hours"`
	StorageUnit string  `json:"storage_unit"`

	NetRevenue      float64 `json:"net_revenue"`
	NetAnnualProfit float64 `json:"net_annual_profit"`
	// Levelised costs are nil when nothing was produced.
	LCOA *float64 `json:"lcoa_per_tonne"`
	LCOE *float64 `json:"lcoe_per_mwh"`
	LCOS *float64 `json:"lcos_per_mwh"`

	Rows []StoredPeriod `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE" json:"-"`
}

// StoredPeriod is one schedule row of a persisted run.
type StoredPeriod struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	RunID       string    `gorm:"index" json:"-"`
	PeriodIndex int       `json:"index"`
	Start       time.Time `json:"start"`
	Price       float64   `json:"price"`
	Curtailment float64   `json:"curtailment"`
	Action      string    `json:"action"`
	ChargeMW    float64   `json:"charge_mw"`
	DischargeMW float64   `json:"discharge_mw"`
	LevelStart  float64   `json:"level_start"`
	LevelEnd    float64   `json:"level_end"`
	NetRevenue  float64   `json:"net_revenue"`
}

// Repository stores run summaries and schedules to the local file system (sqlite).
type Repository struct {
	db *gorm.DB
}

func Open(path string) (*Repository, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite takes one writer at a time; sweeps save runs concurrently.
	sqlDB.SetMaxOpenConns(1)

	// Migrate the schema
	if err := db.AutoMigrate(&StoredRun{}, &StoredPeriod{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toStored(run *Run) StoredRun {
	s := run.Schedule
	meta := s.Meta()
	out := StoredRun{
		ID:              run.ID,
		Scenario:        run.Scenario,
		CreatedAt:       run.CreatedAt,
		Status:          meta.Status,
		Backend:         meta.Backend,
		Objective:       meta.Objective,
		Attempts:        meta.Attempts,
		Periods:         s.Len(),
		StepHours:       s.StepHours(),
		StorageUnit:     s.StorageUnit(),
		NetRevenue:      s.Totals().NetRevenue,
		NetAnnualProfit: run.Economics.System.NetAnnualProfit,
		LCOA:            economics.Finite(run.Economics.LCOA.PerTonne),
		LCOE:            economics.Finite(run.Economics.LCOE.PerMWh),
		LCOS:            economics.Finite(run.Economics.LCOS.PerMWh),
	}
	for _, p := range s.Periods() {
		out.Rows = append(out.Rows, StoredPeriod{
			RunID:       run.ID,
			PeriodIndex: p.Index,
			Start:       p.Start,
			Price:       p.Price,
			Curtailment: p.Curtailment,
			Action:      string(p.Action),
			ChargeMW:    p.ChargeMW,
			DischargeMW: p.DischargeMW,
			LevelStart:  p.LevelStart,
			LevelEnd:    p.LevelEnd,
			NetRevenue:  p.NetRevenue,
		})
	}
	return out
}

// SaveRun persists the run summary and every schedule row in one transaction.
func (r *Repository) SaveRun(run *Run) error {
	if run == nil || run.Schedule == nil {
		return errors.New("store: run has no schedule")
	}
	stored := toStored(run)
	rows := stored.Rows
	stored.Rows = nil
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&stored).Error; err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, 500).Error; err != nil {
			return fmt.Errorf("insert periods: %w", err)
		}
		return nil
	})
}

func (r *Repository) GetRun(id string) (StoredRun, error) {
	var run StoredRun
	result := r.db.Where("id = ?", id).First(&run)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return StoredRun{}, ErrNotFound
	}
	return run, result.Error
}

// ListRuns returns the newest runs first. limit <= 0 returns all.
func (r *Repository) ListRuns(limit int) ([]StoredRun, error) {
	var runs []StoredRun
	query := r.db.Order("created_at desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// Periods returns the schedule rows of a run in period order.
func (r *Repository) Periods(id string) ([]StoredPeriod, error) {
	if _, err := r.GetRun(id); err != nil {
		return nil, err
	}
	var rows []StoredPeriod
	if err := r.db.Where("run_id = ?", id).Order("period_index asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) DeleteRun(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", id).Delete(&StoredPeriod{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&StoredRun{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

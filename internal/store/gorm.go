package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/tourney-draft-backend/internal/engine"
)

// ChoiceRecord is one row of a match's choice log.
type ChoiceRecord struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	MatchCode string    `gorm:"column:match_code;type:varchar(32);not null;uniqueIndex:idx_match_seq"`
	Seq       int       `gorm:"column:seq;not null;uniqueIndex:idx_match_seq"`
	Team      string    `gorm:"column:team;type:varchar(8);not null"`
	Action    string    `gorm:"column:action;type:varchar(8);not null"`
	BeatmapID int       `gorm:"column:beatmap_id;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (ChoiceRecord) TableName() string { return "match_choices" }

type Gorm struct {
	db *gorm.DB
}

// OpenPostgres connects with the pgx-backed gorm driver and migrates the schema.
func OpenPostgres(dsn string) (*Gorm, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewGorm(db)
}

func NewGorm(db *gorm.DB) (*Gorm, error) {
	if err := db.AutoMigrate(&ChoiceRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Gorm{db: db}, nil
}

func (g *Gorm) Save(ctx context.Context, code string, choices []engine.Choice) error {
	if code == "" {
		return ErrEmptyCode
	}
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("match_code = ?", code).Delete(&ChoiceRecord{}).Error; err != nil {
			return fmt.Errorf("clear %s: %w", code, err)
		}
		if len(choices) == 0 {
			return nil
		}
		rows := make([]ChoiceRecord, len(choices))
		for i, c := range choices {
			rows[i] = ChoiceRecord{
				MatchCode: code,
				Seq:       i,
				Team:      string(c.Team),
				Action:    string(c.Action),
				BeatmapID: c.BeatmapID,
			}
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("insert %s: %w", code, err)
		}
		return nil
	})
}

func (g *Gorm) Load(ctx context.Context, code string) ([]engine.Choice, error) {
	if code == "" {
		return nil, ErrEmptyCode
	}
	var rows []ChoiceRecord
	if err := g.db.WithContext(ctx).Where("match_code = ?", code).Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load %s: %w", code, err)
	}
	choices := make([]engine.Choice, 0, len(rows))
	for _, r := range rows {
		choices = append(choices, engine.Choice{
			Team:      engine.Team(r.Team),
			Action:    engine.Action(r.Action),
			BeatmapID: r.BeatmapID,
		})
	}
	return choices, nil
}

func (g *Gorm) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

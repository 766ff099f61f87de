package history

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cardbattle/session-server/internal/engine"
	"github.com/cardbattle/session-server/pkg/types"
)

type Match struct {
	ID       string   `gorm:"primaryKey;size:36"`
	Players  []string `gorm:"serializer:json"`
	OpenedAt time.Time
	ClosedAt *time.Time
}

type DamageEvent struct {
	ID          uint   `gorm:"primaryKey"`
	MatchID     string `gorm:"index;size:36"`
	PlayerID    string `gorm:"size:36"`
	TotalDamage int
	Bonds       []string      `gorm:"serializer:json"`
	Cards       []engine.Card `gorm:"serializer:json"`
	CreatedAt   time.Time
}

// Store writes the ledger through gorm.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Open connects to postgres and migrates the ledger tables.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	s := New(db)
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&Match{}, &DamageEvent{}); err != nil {
		return fmt.Errorf("migrate history: %w", err)
	}
	return nil
}

func (s *Store) RoomOpened(ctx context.Context, room types.RoomSnapshot) error {
	m := Match{ID: room.ID, Players: room.Players, OpenedAt: s.now()}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("record room %s opened: %w", room.ID, err)
	}
	return nil
}

func (s *Store) RoomClosed(ctx context.Context, roomID string) error {
	err := s.db.WithContext(ctx).
		Model(&Match{}).
		Where("id = ?", roomID).
		Update("closed_at", s.now()).Error
	if err != nil {
		return fmt.Errorf("record room %s closed: %w", roomID, err)
	}
	return nil
}

func (s *Store) DamageDealt(ctx context.Context, roomID, actor string, result engine.DamageResult) error {
	ev := DamageEvent{
		MatchID:     roomID,
		PlayerID:    actor,
		TotalDamage: result.TotalDamage,
		Bonds:       bondNames(result.Bonds),
		Cards:       result.ProcessedCards,
		CreatedAt:   s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&ev).Error; err != nil {
		return fmt.Errorf("record damage in %s: %w", roomID, err)
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func bondNames(bonds []engine.BondRecipe) []string {
	out := make([]string, len(bonds))
	for i, b := range bonds {
		out[i] = b.Name
	}
	return out
}

package credits

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"car-advisor/internal/config"
	"car-advisor/internal/logging"
	"car-advisor/internal/logging/types"
)

var (
	// ErrInsufficientCredits is returned by Charge when the balance is lower than the cost
	ErrInsufficientCredits = eris.New("insufficient credits")
	// ErrProfileNotFound is returned when the user has no profile row
	ErrProfileNotFound = eris.New("profile not found")
	// ErrDisabled is returned by Open when no database is configured
	ErrDisabled = eris.New("credits store disabled")
)

// Profile is a row of the profiles table
type Profile struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	Credits   int       `json:"credits" gorm:"not null;default:0"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName maps Profile to the existing profiles table
func (Profile) TableName() string {
	return "profiles"
}

// Store reads and charges per-user credit balances
type Store struct {
	db     *gorm.DB
	logger types.Logger
}

// Open connects to the configured Postgres database
func Open(cfg *config.Config) (*Store, error) {
	if !cfg.Credits.Enabled || strings.TrimSpace(cfg.Credits.DatabaseURL) == "" {
		return nil, ErrDisabled
	}

	db, err := gorm.Open(postgres.Open(cfg.Credits.DatabaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, eris.Wrap(err, "credits: failed to connect to database")
	}
	return NewStore(db), nil
}

// NewStore wraps an open gorm connection
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:     db,
		logger: logging.GetGlobalLogger().WithField("component", "credits"),
	}
}

// Balance returns the user's current credits
func (s *Store) Balance(ctx context.Context, userID string) (int, error) {
	if !isProfileID(userID) {
		return 0, ErrProfileNotFound
	}

	var profile Profile
	err := s.db.WithContext(ctx).Select("id", "credits").Where("id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrProfileNotFound
	}
	if err != nil {
		return 0, eris.Wrapf(err, "credits: failed to read balance of %s", userID)
	}
	return profile.Credits, nil
}

// Charge subtracts cost from the balance in a single conditional update, so two
// concurrent requests can never spend the same credit.
func (s *Store) Charge(ctx context.Context, userID string, cost int) error {
	if cost <= 0 {
		return nil
	}
	if !isProfileID(userID) {
		return ErrProfileNotFound
	}

	res := s.db.WithContext(ctx).
		Model(&Profile{}).
		Where("id = ? AND credits >= ?", userID, cost).
		Updates(map[string]interface{}{
			"credits":    gorm.Expr("credits - ?", cost),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return eris.Wrapf(res.Error, "credits: failed to charge %s", userID)
	}
	if res.RowsAffected == 0 {
		if _, err := s.Balance(ctx, userID); err != nil {
			return err
		}
		return ErrInsufficientCredits
	}

	s.logger.Debug("Credits charged", map[string]interface{}{"user_id": userID, "cost": cost})
	return nil
}

// Refund returns credits taken by a charge whose request failed
func (s *Store) Refund(ctx context.Context, userID string, amount int) error {
	if amount <= 0 || !isProfileID(userID) {
		return nil
	}

	res := s.db.WithContext(ctx).
		Model(&Profile{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"credits":    gorm.Expr("credits + ?", amount),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return eris.Wrapf(res.Error, "credits: failed to refund %s", userID)
	}

	s.logger.Info("Credits refunded", map[string]interface{}{"user_id": userID, "amount": amount})
	return nil
}

// profile ids are uuids; anonymous ids never have a profile
func isProfileID(userID string) bool {
	_, err := uuid.Parse(userID)
	return err == nil
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

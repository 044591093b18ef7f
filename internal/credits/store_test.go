package credits

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"

	"car-advisor/internal/config"
)

func TestOpenDisabledWithoutDatabase(t *testing.T) {
	cfg := config.Default()
	cfg.Credits.Enabled = true
	cfg.Credits.DatabaseURL = "  "
	if _, err := Open(cfg); !eris.Is(err, ErrDisabled) {
		t.Errorf("err = %v, want ErrDisabled", err)
	}

	cfg.Credits.Enabled = false
	cfg.Credits.DatabaseURL = "postgres://localhost/cars"
	if _, err := Open(cfg); !eris.Is(err, ErrDisabled) {
		t.Errorf("err = %v, want ErrDisabled", err)
	}
}

func TestChargeShortCircuits(t *testing.T) {
	// no database behind the store: these calls must not touch it
	s := &Store{}
	ctx := context.Background()

	if err := s.Charge(ctx, "user", 0); err != nil {
		t.Errorf("zero cost charge: %v", err)
	}
	if err := s.Charge(ctx, "", 1); !eris.Is(err, ErrProfileNotFound) {
		t.Errorf("anonymous charge err = %v", err)
	}
	if _, err := s.Balance(ctx, ""); !eris.Is(err, ErrProfileNotFound) {
		t.Errorf("anonymous balance err = %v", err)
	}
	if err := s.Refund(ctx, "user", 0); err != nil {
		t.Errorf("zero refund: %v", err)
	}
	if err := s.Charge(ctx, "anon:203.0.113.7", 1); !eris.Is(err, ErrProfileNotFound) {
		t.Errorf("ip user charge err = %v", err)
	}
	if _, err := s.Balance(ctx, "anon:203.0.113.7"); !eris.Is(err, ErrProfileNotFound) {
		t.Errorf("ip user balance err = %v", err)
	}
	if err := s.Refund(ctx, "anon:203.0.113.7", 1); err != nil {
		t.Errorf("ip user refund: %v", err)
	}
}

func TestProfileTable(t *testing.T) {
	if (Profile{}).TableName() != "profiles" {
		t.Error("profiles table expected")
	}
}

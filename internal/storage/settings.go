package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"landed-bot/internal/pricing"
	"landed-bot/pkg/redis"
)

const settingsCacheKey = "pricing_settings"

// PricingSettings returns the validated configuration currently in force.
// Reads go through Redis; concurrent misses share one database load.
func (s *PostgresStorage) PricingSettings(ctx context.Context) (pricing.Configuration, error) {
	const operation = "storage.PricingSettings"

	var cached pricing.Configuration
	err := s.redis.GetJSON(ctx, settingsCacheKey, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, redis.ErrMiss) {
		s.logger.Warn("Pricing settings cache read failed", zap.Error(err))
	}

	v, err, _ := s.settings.Do(settingsCacheKey, func() (any, error) {
		var data []byte
		if err := s.db.GetContext(ctx, &data, `SELECT config FROM pricing_settings WHERE id = 1`); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrNotFound
			}
			return nil, err
		}

		cfg, err := decodeSettings(data)
		if err != nil {
			return nil, err
		}

		if err := s.redis.SetJSON(ctx, settingsCacheKey, cfg, s.settingsTTL); err != nil {
			s.logger.Warn("Failed to cache pricing settings", zap.Error(err))
		}
		return cfg, nil
	})
	if err != nil {
		return pricing.Configuration{}, fmt.Errorf("%s: %w", operation, err)
	}

	// Callers may mutate maps on the returned value.
	return v.(pricing.Configuration).Clone(), nil
}

// SavePricingSettings validates cfg and replaces the stored settings.
func (s *PostgresStorage) SavePricingSettings(ctx context.Context, cfg pricing.Configuration, updatedBy int64) (pricing.Configuration, error) {
	const operation = "storage.SavePricingSettings"

	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return pricing.Configuration{}, fmt.Errorf("%s: %w", operation, err)
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return pricing.Configuration{}, fmt.Errorf("%s: failed to marshal settings: %w", operation, err)
	}

	const query = `
        INSERT INTO pricing_settings (id, config, updated_by, updated_at)
        VALUES (1, $1, $2, now())
        ON CONFLICT (id) DO UPDATE
        SET config = EXCLUDED.config, updated_by = EXCLUDED.updated_by, updated_at = now()
    `
	if _, err := s.db.ExecContext(ctx, query, data, updatedBy); err != nil {
		return pricing.Configuration{}, fmt.Errorf("%s: failed to save settings: %w", operation, err)
	}

	s.invalidate(ctx, settingsCacheKey)
	s.logger.Info("Pricing settings saved", zap.Int64("updated_by", updatedBy))
	return cfg, nil
}

// EnsurePricingSettings seeds the settings row with defaults when the table
// is empty and returns whatever is in force afterwards.
func (s *PostgresStorage) EnsurePricingSettings(ctx context.Context, defaults pricing.Configuration) (pricing.Configuration, error) {
	cfg, err := s.PricingSettings(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return pricing.Configuration{}, err
	}

	s.logger.Info("No pricing settings stored, seeding defaults")
	return s.SavePricingSettings(ctx, defaults, 0)
}

// UpdatePricingSettings applies fn to the stored settings under a row lock,
// validates the result and persists it.
func (s *PostgresStorage) UpdatePricingSettings(ctx context.Context, updatedBy int64, fn func(cfg *pricing.Configuration) error) (pricing.Configuration, error) {
	const operation = "storage.UpdatePricingSettings"

	var out pricing.Configuration
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var data []byte
		if err := tx.GetContext(ctx, &data, `SELECT config FROM pricing_settings WHERE id = 1 FOR UPDATE`); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("load settings: %w", err)
		}

		cfg, err := decodeSettings(data)
		if err != nil {
			return err
		}

		if err := fn(&cfg); err != nil {
			return err
		}

		cfg = cfg.Normalize()
		if err := cfg.Validate(); err != nil {
			return err
		}

		data, err = json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal settings: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE pricing_settings SET config = $1, updated_by = $2, updated_at = now() WHERE id = 1`,
			data, updatedBy,
		); err != nil {
			return fmt.Errorf("update settings: %w", err)
		}

		out = cfg
		return nil
	})
	if err != nil {
		return pricing.Configuration{}, fmt.Errorf("%s: %w", operation, err)
	}

	s.invalidate(ctx, settingsCacheKey)
	s.logger.Info("Pricing settings updated", zap.Int64("updated_by", updatedBy))
	return out, nil
}

// UpdateFxRates merges rates into the stored fx table. Rates for the local
// currency are ignored.
func (s *PostgresStorage) UpdateFxRates(ctx context.Context, rates map[string]float64, updatedBy int64) (pricing.Configuration, error) {
	return s.UpdatePricingSettings(ctx, updatedBy, func(cfg *pricing.Configuration) error {
		mergeFxRates(cfg, rates)
		return nil
	})
}

func mergeFxRates(cfg *pricing.Configuration, rates map[string]float64) {
	if cfg.FxRate == nil {
		cfg.FxRate = make(map[string]float64, len(rates))
	}
	for code, rate := range rates {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" || code == cfg.LocalCurrency {
			continue
		}
		cfg.FxRate[code] = rate
	}
}

func decodeSettings(data []byte) (pricing.Configuration, error) {
	var cfg pricing.Configuration
	if err := json.Unmarshal(data, &cfg); err != nil {
		return pricing.Configuration{}, fmt.Errorf("decode settings: %w", err)
	}

	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return pricing.Configuration{}, fmt.Errorf("stored settings: %w", err)
	}
	return cfg, nil
}

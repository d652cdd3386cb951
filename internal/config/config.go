package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"

	"landed-bot/internal/pricing"
)

type Config struct {
	Telegram TelegramConfig `envPrefix:"TELEGRAM_"`
	Database DatabaseConfig `envPrefix:"DB_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Admin    AdminConfig    `envPrefix:"ADMIN_"`
	Intake   IntakeConfig   `envPrefix:"INTAKE_"`
	FX       FXConfig       `envPrefix:"FX_"`
	Pricing  PricingConfig  `envPrefix:"PRICING_"`
	Log      LogConfig      `envPrefix:"LOG_"`

	// Timezone is used for report period boundaries.
	Timezone string `env:"TIMEZONE" envDefault:"Asia/Jerusalem"`
}

// LogConfig selects the zap level and encoder. Format is json or console.
type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

type TelegramConfig struct {
	Token string `env:"TOKEN,required"`
	Debug bool   `env:"DEBUG" envDefault:"false"`
}

type DatabaseConfig struct {
	Host            string        `env:"HOST,required"`
	Port            int           `env:"PORT" envDefault:"5432"`
	User            string        `env:"USER,required"`
	Password        string        `env:"PASSWORD,required"`
	Name            string        `env:"NAME,required"`
	SSLMode         string        `env:"SSLMODE" envDefault:"disable"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"5m"`
	ConnMaxIdleTime time.Duration `env:"CONN_MAX_IDLE_TIME" envDefault:"2m"`
}

type RedisConfig struct {
	Addr        string        `env:"ADDR,required"`
	Password    string        `env:"PASSWORD"`
	DB          int           `env:"DB" envDefault:"0"`
	StateTTL    time.Duration `env:"STATE_TTL" envDefault:"24h"`
	SettingsTTL time.Duration `env:"SETTINGS_TTL" envDefault:"10m"`
}

type AdminConfig struct {
	IDs       []int64 `env:"IDS" envSeparator:","`
	ChannelID int64   `env:"CHANNEL_ID"`
}

type IntakeConfig struct {
	Addr         string        `env:"ADDR" envDefault:":8080"`
	Token        string        `env:"TOKEN"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
}

type FXConfig struct {
	BaseURL        string        `env:"BASE_URL" envDefault:"https://api.frankfurter.app"`
	APIKey         string        `env:"API_KEY"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	MaxElapsed     time.Duration `env:"MAX_ELAPSED" envDefault:"1m"`
}

// PricingConfig seeds the pricing settings the first time the service runs.
// After that the stored settings, edited by operators, take precedence.
type PricingConfig struct {
	LocalCurrency              string             `env:"LOCAL_CURRENCY" envDefault:"ILS"`
	FxRates                    map[string]float64 `env:"FX_RATES" envDefault:"USD:3.7,EUR:4.0,GBP:4.7" envSeparator:"," envKeyValSeparator:":"`
	FxFeePct                   float64            `env:"FX_FEE_PCT" envDefault:"0.027"`
	BrandCommissionPct         float64            `env:"BRAND_COMMISSION_PCT" envDefault:"0"`
	ShippingRateStrategy       string             `env:"SHIPPING_RATE_STRATEGY" envDefault:"flat-per-kg"`
	InternationalRatePerKg     float64            `env:"INTERNATIONAL_RATE_PER_KG" envDefault:"70"`
	OuterPackKg                float64            `env:"OUTER_PACK_KG" envDefault:"0.3"`
	VolumetricDivisor          float64            `env:"VOLUMETRIC_DIVISOR" envDefault:"5000"`
	CustomsThresholdUSD        float64            `env:"CUSTOMS_THRESHOLD_USD" envDefault:"75"`
	CustomsPct                 float64            `env:"CUSTOMS_PCT" envDefault:"0.12"`
	DutiesBaseIncludesShipping bool               `env:"DUTIES_BASE_INCLUDES_SHIPPING" envDefault:"true"`
	VatPct                     float64            `env:"VAT_PCT" envDefault:"0.18"`
	ImportVatRecoverable       bool               `env:"IMPORT_VAT_RECOVERABLE" envDefault:"false"`
	FixedFeesLocal             float64            `env:"FIXED_FEES_LOCAL" envDefault:"50"`
	BufferPct                  float64            `env:"BUFFER_PCT" envDefault:"0.05"`
	DomesticShipLocal          float64            `env:"DOMESTIC_SHIP_LOCAL" envDefault:"30"`
	FreeShippingThresholdLocal float64            `env:"FREE_SHIPPING_THRESHOLD_LOCAL" envDefault:"399"`
	ProfitMode                 string             `env:"PROFIT_MODE" envDefault:"target_margin"`
	TargetMarginPct            float64            `env:"TARGET_MARGIN_PCT" envDefault:"0.10"`
	CommissionPctOfBase        float64            `env:"COMMISSION_PCT_OF_BASE" envDefault:"0.15"`
	MinProfitFloorLocal        float64            `env:"MIN_PROFIT_FLOOR_LOCAL" envDefault:"40"`
	ProcessorPct               float64            `env:"PROCESSOR_PCT" envDefault:"0.025"`
	ProcessorFixedLocal        float64            `env:"PROCESSOR_FIXED_LOCAL" envDefault:"1.2"`
	ProcessorFeeAppliesToGross bool               `env:"PROCESSOR_FEE_APPLIES_TO_GROSS" envDefault:"false"`
	RoundingPolicy             string             `env:"ROUNDING_POLICY" envDefault:"nearest10"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if len(cfg.Admin.IDs) == 0 {
		return nil, fmt.Errorf("at least one admin ID is required")
	}

	if _, err := cfg.PricingDefaults(); err != nil {
		return nil, err
	}

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// PricingDefaults converts the environment pricing block into a validated
// pricing configuration.
func (c *Config) PricingDefaults() (pricing.Configuration, error) {
	p := c.Pricing
	out := pricing.Configuration{
		LocalCurrency:              p.LocalCurrency,
		FxRate:                     p.FxRates,
		FxFeePct:                   p.FxFeePct,
		BrandCommissionPct:         p.BrandCommissionPct,
		ShippingRateStrategy:       pricing.ShippingRateStrategy(p.ShippingRateStrategy),
		InternationalRatePerKg:     p.InternationalRatePerKg,
		OuterPackKg:                p.OuterPackKg,
		VolumetricDivisor:          p.VolumetricDivisor,
		CustomsThresholdUSD:        p.CustomsThresholdUSD,
		CustomsPct:                 p.CustomsPct,
		DutiesBaseIncludesShipping: p.DutiesBaseIncludesShipping,
		VatPct:                     p.VatPct,
		ImportVatRecoverable:       p.ImportVatRecoverable,
		FixedFeesLocal:             p.FixedFeesLocal,
		BufferPct:                  p.BufferPct,
		DomesticShipLocal:          p.DomesticShipLocal,
		FreeShippingThresholdLocal: p.FreeShippingThresholdLocal,
		ProfitMode:                 pricing.ProfitMode(p.ProfitMode),
		TargetMarginPct:            p.TargetMarginPct,
		CommissionPctOfBase:        p.CommissionPctOfBase,
		MinProfitFloorLocal:        p.MinProfitFloorLocal,
		ProcessorPct:               p.ProcessorPct,
		ProcessorFixedLocal:        p.ProcessorFixedLocal,
		ProcessorFeeAppliesToGross: p.ProcessorFeeAppliesToGross,
		RoundingPolicy:             pricing.RoundingPolicy(p.RoundingPolicy),
	}.Normalize()

	if err := out.Validate(); err != nil {
		return pricing.Configuration{}, fmt.Errorf("invalid pricing defaults: %w", err)
	}
	return out, nil
}

// Location resolves Timezone for report bucketing.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) IsAdmin(chatID int64) bool {
	for _, id := range c.Admin.IDs {
		if id == chatID {
			return true
		}
	}
	return false
}

package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landed-bot/internal/pricing"
)

func TestApplySetting(t *testing.T) {
	t.Parallel()

	cfg := pricing.DefaultConfiguration()

	require.NoError(t, applySetting(&cfg, "VAT_PCT", "0,17"))
	assert.Equal(t, 0.17, cfg.VatPct)

	require.NoError(t, applySetting(&cfg, "processor_fee_applies_to_gross", "yes"))
	assert.True(t, cfg.ProcessorFeeAppliesToGross)

	require.NoError(t, applySetting(&cfg, "rounding_policy", "CEIL10"))
	assert.Equal(t, pricing.RoundCeil10, cfg.RoundingPolicy)

	require.NoError(t, applySetting(&cfg, "fx.chf", "4.2"))
	assert.Equal(t, 4.2, cfg.FxRate["CHF"])

	require.NoError(t, applySetting(&cfg, "weight_tiers", "2:60, 10:40, 0:30"))
	assert.Equal(t, []pricing.WeightTier{{UpToKg: 2, RatePerKg: 60}, {UpToKg: 10, RatePerKg: 40}, {UpToKg: 0, RatePerKg: 30}}, cfg.WeightTiers)

	require.NoError(t, cfg.Validate())
}

func TestApplySetting_Errors(t *testing.T) {
	t.Parallel()

	cfg := pricing.DefaultConfiguration()

	assert.Error(t, applySetting(&cfg, "colour", "red"))
	assert.Error(t, applySetting(&cfg, "vat_pct", ""))
	assert.Error(t, applySetting(&cfg, "vat_pct", "lots"))
	assert.Error(t, applySetting(&cfg, "import_vat_recoverable", "perhaps"))
	assert.Error(t, applySetting(&cfg, "weight_tiers", "3-55"))
	assert.Error(t, applySetting(&cfg, "fx.eur", "-1"))

	// Out of range values are accepted here and rejected on save.
	require.NoError(t, applySetting(&cfg, "vat_pct", "1.5"))
	assert.ErrorIs(t, cfg.Validate(), pricing.ErrInvalidConfig)
}

func TestSettingKeys(t *testing.T) {
	t.Parallel()

	keys := settingKeys()
	assert.Contains(t, keys, "vat_pct")
	assert.Contains(t, keys, "fx.<CODE>")
	assert.IsIncreasing(t, keys)
}

// Package dunning contains the campaign scheduling, safety and delivery flow.
package dunning

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/arflow/backend/internal/infrastructure/config"
	"github.com/arflow/backend/internal/infrastructure/logger"
)

// SettingsStore reads the operator-editable key/value settings table.
type SettingsStore interface {
	GetAll(ctx context.Context) (map[string]string, error)
}

// RunConfiguration is the effective dunning configuration for one run: static
// config defaults overridden by whatever the operator stored in app_settings.
// It is loaded once per run so a mid-run settings edit cannot produce a run
// with mixed limits.
type RunConfiguration struct {
	DailySendCap    int
	HourlySendCap   int
	CooldownHours   int
	TestRecipient   string
	TestSendCap     int
	MinDunnableDays int
}

// Setting keys recognized in app_settings.
const (
	SettingDailySendCap    = "dunning.daily_send_cap"
	SettingHourlySendCap   = "dunning.hourly_send_cap"
	SettingCooldownHours   = "dunning.cooldown_hours"
	SettingTestRecipient   = "dunning.test_recipient"
	SettingTestSendCap     = "dunning.test_send_cap"
	SettingMinDunnableDays = "dunning.min_dunnable_days"
)

// ConfigurationLoader merges config file defaults with app_settings overrides.
type ConfigurationLoader struct {
	store SettingsStore
	cfg   config.DunningConfig
}

// NewConfigurationLoader creates a ConfigurationLoader.
func NewConfigurationLoader(store SettingsStore, cfg config.DunningConfig) *ConfigurationLoader {
	return &ConfigurationLoader{store: store, cfg: cfg}
}

// Load returns the effective run configuration. Unreadable or malformed
// overrides fall back to the config default and are logged, never fatal.
func (l *ConfigurationLoader) Load(ctx context.Context) RunConfiguration {
	rc := RunConfiguration{
		DailySendCap:    l.cfg.DailySendCap,
		HourlySendCap:   l.cfg.HourlySendCap,
		CooldownHours:   l.cfg.CooldownHours,
		TestRecipient:   l.cfg.TestRecipient,
		TestSendCap:     l.cfg.TestSendCap,
		MinDunnableDays: l.cfg.MinDunnableDays,
	}
	if l.store == nil {
		return rc
	}

	settings, err := l.store.GetAll(ctx)
	if err != nil {
		logger.L(ctx).Warn("Could not load settings overrides, using config defaults", zap.Error(err))
		return rc
	}

	overrideInt(ctx, settings, SettingDailySendCap, &rc.DailySendCap)
	overrideInt(ctx, settings, SettingHourlySendCap, &rc.HourlySendCap)
	overrideInt(ctx, settings, SettingCooldownHours, &rc.CooldownHours)
	overrideInt(ctx, settings, SettingTestSendCap, &rc.TestSendCap)
	overrideInt(ctx, settings, SettingMinDunnableDays, &rc.MinDunnableDays)
	if v, ok := settings[SettingTestRecipient]; ok && v != "" {
		rc.TestRecipient = v
	}
	return rc
}

func overrideInt(ctx context.Context, settings map[string]string, key string, target *int) {
	v, ok := settings[key]
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		logger.L(ctx).Warn("Ignoring malformed settings override",
			zap.String("key", key),
			zap.String("value", v),
		)
		return
	}
	*target = n
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/you/mcmarket/domain"
	"github.com/you/mcmarket/internal/infrastructure/cache"
)

// Platform setting keys
const (
	SettingDepositPercentage  = "deposit_percentage"
	SettingUnlockCost         = "unlock_cost_credits"
	SettingOfferExpiryDays    = "offer_expiry_days"
	SettingSignupBonusCredits = "signup_bonus_credits"
	SettingMaintenanceMode    = "maintenance_mode"
)

type settingKind int

const (
	kindInt settingKind = iota
	kindDecimal
	kindBool
)

type settingDef struct {
	value       string
	description string
	kind        settingKind
}

var settingDefaults = map[string]settingDef{
	SettingDepositPercentage:  {"10", "Escrow deposit as a percentage of the agreed price", kindDecimal},
	SettingUnlockCost:         {"1", "Credits charged to unlock a listing", kindInt},
	SettingOfferExpiryDays:    {"7", "Days before an unanswered offer expires", kindInt},
	SettingSignupBonusCredits: {"0", "Credits granted to new buyers", kindInt},
	SettingMaintenanceMode:    {"false", "Reject marketplace writes while true", kindBool},
}

const settingsCacheKey = "settings:all"

// SettingsService reads platform settings through a Redis cache
type SettingsService struct {
	repo  domain.SettingRepository
	cache *cache.Cache
	ttl   time.Duration
}

func NewSettingsService(repo domain.SettingRepository, c *cache.Cache) *SettingsService {
	return &SettingsService{repo: repo, cache: c, ttl: 5 * time.Minute}
}

// All returns every setting, defaults filled in for keys never written
func (s *SettingsService) All(ctx context.Context) (map[string]string, error) {
	return cache.GetOrLoad(ctx, s.cache, settingsCacheKey, s.ttl, func(ctx context.Context) (map[string]string, error) {
		rows, err := s.repo.List(ctx)
		if err != nil {
			return nil, err
		}
		out := make(map[string]string, len(settingDefaults)+len(rows))
		for k, d := range settingDefaults {
			out[k] = d.value
		}
		for _, r := range rows {
			out[r.Key] = r.Value
		}
		return out, nil
	})
}

// List returns the settings as rows for the admin screen, sorted by key
func (s *SettingsService) List(ctx context.Context) ([]domain.PlatformSetting, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(rows))
	for _, r := range rows {
		seen[r.Key] = true
	}
	for k, d := range settingDefaults {
		if !seen[k] {
			rows = append(rows, domain.PlatformSetting{Key: k, Value: d.value, Description: d.description})
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
	return rows, nil
}

func (s *SettingsService) value(ctx context.Context, key string) string {
	all, err := s.All(ctx)
	if err != nil {
		slog.WarnContext(ctx, "settings unavailable, using default", "key", key, "error", err)
		return settingDefaults[key].value
	}
	if v, ok := all[key]; ok {
		return v
	}
	return settingDefaults[key].value
}

func (s *SettingsService) Int(ctx context.Context, key string) int {
	n, err := strconv.Atoi(s.value(ctx, key))
	if err != nil {
		n, _ = strconv.Atoi(settingDefaults[key].value)
	}
	return n
}

func (s *SettingsService) Decimal(ctx context.Context, key string) decimal.Decimal {
	d, err := decimal.NewFromString(s.value(ctx, key))
	if err != nil {
		d, _ = decimal.NewFromString(settingDefaults[key].value)
	}
	return d
}

func (s *SettingsService) Bool(ctx context.Context, key string) bool {
	b, _ := strconv.ParseBool(s.value(ctx, key))
	return b
}

// Update validates and stores a setting, then drops the cached copy
func (s *SettingsService) Update(ctx context.Context, adminID uint, key, value string) (*domain.PlatformSetting, error) {
	def, ok := settingDefaults[key]
	if !ok {
		return nil, domain.ErrSettingNotFound
	}
	if err := validateSetting(key, def.kind, value); err != nil {
		return nil, err
	}

	setting := &domain.PlatformSetting{Key: key, Value: value, Description: def.description, UpdatedBy: &adminID}
	if err := s.repo.Upsert(ctx, setting); err != nil {
		return nil, fmt.Errorf("failed to save setting: %w", err)
	}
	if err := s.cache.Delete(ctx, settingsCacheKey); err != nil {
		slog.WarnContext(ctx, "settings cache not invalidated", "error", err)
	}
	return setting, nil
}

func validateSetting(key string, kind settingKind, value string) error {
	switch kind {
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return domain.NewValidation(key + " must be a non-negative integer")
		}
	case kindDecimal:
		d, err := decimal.NewFromString(value)
		if err != nil || d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
			return domain.NewValidation(key + " must be a number between 0 and 100")
		}
	case kindBool:
		if _, err := strconv.ParseBool(value); err != nil {
			return domain.NewValidation(key + " must be true or false")
		}
	}
	return nil
}

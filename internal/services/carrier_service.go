package services

import (
	"context"
	"strings"
	"time"

	"github.com/you/mcmarket/domain"
	"github.com/you/mcmarket/internal/infrastructure/cache"
)

// CarrierService looks up FMCSA registrations and credit reports, caching answers in Redis
type CarrierService struct {
	lookup   domain.CarrierLookup
	reporter domain.CreditReporter
	cache    *cache.Cache
	ttl      time.Duration
}

func NewCarrierService(lookup domain.CarrierLookup, reporter domain.CreditReporter, c *cache.Cache, ttl time.Duration) *CarrierService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CarrierService{lookup: lookup, reporter: reporter, cache: c, ttl: ttl}
}

// NormalizeNumber strips an "MC"/"DOT" prefix and separators, and checks that
// the rest is 1 to 8 digits.
func NormalizeNumber(raw string) (string, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "MC")
	s = strings.TrimPrefix(s, "DOT")
	s = strings.TrimLeft(s, "-# ")
	if len(s) == 0 || len(s) > 8 {
		return "", false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return s, true
}

func (s *CarrierService) ByMCNumber(ctx context.Context, mc string) (*domain.CarrierInfo, error) {
	n, ok := NormalizeNumber(mc)
	if !ok {
		return nil, domain.NewValidation("MC number must be 1 to 8 digits")
	}
	return cache.GetOrLoad(ctx, s.cache, "carrier:mc:"+n, s.ttl, func(ctx context.Context) (*domain.CarrierInfo, error) {
		return s.lookup.ByMCNumber(ctx, n)
	})
}

func (s *CarrierService) ByDOTNumber(ctx context.Context, dot string) (*domain.CarrierInfo, error) {
	n, ok := NormalizeNumber(dot)
	if !ok {
		return nil, domain.NewValidation("DOT number must be 1 to 8 digits")
	}
	return cache.GetOrLoad(ctx, s.cache, "carrier:dot:"+n, s.ttl, func(ctx context.Context) (*domain.CarrierInfo, error) {
		return s.lookup.ByDOTNumber(ctx, n)
	})
}

// CreditReport returns the business credit summary for a company
func (s *CarrierService) CreditReport(ctx context.Context, companyName, state string) (*domain.CreditReport, error) {
	companyName = strings.TrimSpace(companyName)
	if companyName == "" {
		return nil, domain.NewValidation("Company name is required")
	}
	state = strings.ToUpper(strings.TrimSpace(state))
	key := "credit:" + strings.ToLower(companyName) + ":" + state
	return cache.GetOrLoad(ctx, s.cache, key, s.ttl, func(ctx context.Context) (*domain.CreditReport, error) {
		return s.reporter.Report(ctx, companyName, state)
	})
}

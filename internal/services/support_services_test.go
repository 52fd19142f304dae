package services

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/mcmarket/domain"
	"github.com/you/mcmarket/internal/infrastructure/cache"
	"github.com/you/mcmarket/internal/mocks"
)

func TestNormalizeNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"123456", "123456", true},
		{" mc-123456 ", "123456", true},
		{"MC#0012", "0012", true},
		{"DOT 3456789", "3456789", true},
		{"", "", false},
		{"MC", "", false},
		{"123456789", "", false},
		{"12a456", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizeNumber(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCarrierService_CachesLookups(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.lookup.ByMCNumberFunc = func(ctx context.Context, mc string) (*domain.CarrierInfo, error) {
		return &domain.CarrierInfo{LegalName: "Acme Freight", MCNumber: mc, DOTNumber: "3123456", AllowedToOperate: true}, nil
	}

	info, err := e.carriers.ByMCNumber(ctx, "MC-123456")
	require.NoError(t, err)
	assert.Equal(t, "123456", info.MCNumber)

	again, err := e.carriers.ByMCNumber(ctx, "123456")
	require.NoError(t, err)
	assert.Equal(t, info.LegalName, again.LegalName)
	assert.Equal(t, 1, e.lookup.Calls, "second lookup served from cache")

	_, err = e.carriers.ByDOTNumber(ctx, "99999")
	assert.ErrorIs(t, err, domain.ErrCarrierNotFound)
	_, err = e.carriers.ByDOTNumber(ctx, "bad")
	assert.Equal(t, domain.KindValidation, mustKind(t, err))
}

func TestCarrierService_CreditReport(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	var seen []string
	e.lookup.ReportFunc = func(ctx context.Context, companyName, state string) (*domain.CreditReport, error) {
		seen = append(seen, companyName+"/"+state)
		return &domain.CreditReport{CompanyName: companyName, Score: 71, Rating: "B"}, nil
	}

	r, err := e.carriers.CreditReport(ctx, " Acme Freight ", "tx")
	require.NoError(t, err)
	assert.Equal(t, 71, r.Score)
	_, err = e.carriers.CreditReport(ctx, "acme freight", "TX")
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme Freight/TX"}, seen)

	_, err = e.carriers.CreditReport(ctx, "  ", "TX")
	assert.Equal(t, domain.KindValidation, mustKind(t, err))
}

func TestConsultationService(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, err := e.consultations.Create(ctx, ConsultationInput{Email: "a@example.com"})
	assert.Equal(t, domain.KindValidation, mustKind(t, err))
	_, err = e.consultations.Create(ctx, ConsultationInput{Name: "Al", Email: "nope"})
	assert.Equal(t, domain.KindValidation, mustKind(t, err))

	listingID := uint(12)
	c, err := e.consultations.Create(ctx, ConsultationInput{
		Name:      " Al Carrier ",
		Email:     "Al@Example.com",
		Message:   "Interested in a call",
		ListingID: &listingID,
	})
	require.NoError(t, err)
	assert.Equal(t, "al@example.com", c.Email)
	assert.Equal(t, domain.ConsultationNew, c.Status)
	assert.Equal(t, "contact_1", c.CRMContactID)
	require.Len(t, e.leads.Leads, 1)
	assert.Contains(t, e.leads.Leads[0].Tags, "listing-12")

	e.leads.PushLeadFunc = func(ctx context.Context, lead domain.Lead) (string, error) {
		return "", errors.New("crm down")
	}
	second, err := e.consultations.Create(ctx, ConsultationInput{Name: "Bo", Email: "bo@example.com"})
	require.NoError(t, err, "crm failures do not fail the request")
	assert.Empty(t, second.CRMContactID)

	status := domain.ConsultationContacted
	notes := "called back"
	updated, err := e.consultations.Update(ctx, c.ID, &status, &notes)
	require.NoError(t, err)
	assert.Equal(t, domain.ConsultationContacted, updated.Status)
	assert.Equal(t, "called back", updated.Notes)

	bogus := "archived"
	_, err = e.consultations.Update(ctx, c.ID, &bogus, nil)
	assert.Equal(t, domain.KindValidation, mustKind(t, err))

	rows, total, err := e.consultations.List(ctx, domain.ConsultationNew, domain.Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "bo@example.com", rows[0].Email)
}

func TestMarketingService_ShareListing(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	seller := e.seedUser(t, "seller@example.com", domain.RoleSeller, 0)
	active := e.seedListing(t, seller.ID, "100200", domain.ListingActive, 45000)
	pending := e.seedListing(t, seller.ID, "100300", domain.ListingPending, 45000)

	assert.Equal(t, []string{"twitter", "facebook"}, e.marketing.Channels())

	results, err := e.marketing.ShareListing(ctx, active.ID, nil, "")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "twitter_post_1", results[0].PostID)
	require.Len(t, e.twitter.Posts, 1)
	assert.Contains(t, e.twitter.Posts[0], "Asking $45000.00")
	assert.Contains(t, e.twitter.Posts[0], "https://app.test/listings/")

	e.twitter.PublishFunc = func(ctx context.Context, message, link string) (string, error) {
		return "", errors.New("rate limited")
	}
	results, err = e.marketing.ShareListing(ctx, active.ID, []string{"Twitter"}, "Custom text")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "rate limited", results[0].Error)

	_, err = e.marketing.ShareListing(ctx, active.ID, []string{"linkedin"}, "")
	assert.Equal(t, domain.KindValidation, mustKind(t, err))
	_, err = e.marketing.ShareListing(ctx, pending.ID, nil, "")
	assert.ErrorIs(t, err, domain.ErrListingNotActive)
}

func TestNotificationService(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	user := e.seedUser(t, "buyer@example.com", domain.RoleBuyer, 0)

	e.notifier.Notify(ctx, Notice{UserID: user.ID, Type: "offer", Title: "New offer", Message: "You have a new offer", Link: "/offers/1", Email: true, SMS: true})
	e.notifier.Notify(ctx, Notice{UserID: user.ID, Type: "system", Title: "Welcome", Message: "Hello"})

	mail, ok := e.mailer.Last()
	require.True(t, ok)
	assert.Equal(t, "New offer", mail.Subject)
	assert.Contains(t, mail.Body, "https://app.test/offers/1")
	assert.Equal(t, 1, e.sms.Count())

	count, err := e.notifier.UnreadCount(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	rows, _, err := e.notifier.List(ctx, user.ID, true, domain.Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NoError(t, e.notifier.MarkRead(ctx, user.ID, rows[0].ID))
	assert.ErrorIs(t, e.notifier.MarkRead(ctx, user.ID+1, rows[1].ID), domain.ErrNotificationNotFound)
	count, _ = e.notifier.UnreadCount(ctx, user.ID)
	assert.Equal(t, int64(1), count)

	require.NoError(t, e.notifier.MarkAllRead(ctx, user.ID))
	count, _ = e.notifier.UnreadCount(ctx, user.ID)
	assert.Zero(t, count)
}

func TestSettingsService(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := mocks.NewMockSettingRepository(map[string]string{SettingUnlockCost: "2"})
	svc := NewSettingsService(repo, cache.New(client, "test:"))
	ctx := context.Background()

	assert.Equal(t, 2, svc.Int(ctx, SettingUnlockCost))
	assert.Equal(t, 7, svc.Int(ctx, SettingOfferExpiryDays))
	assert.Equal(t, "10", svc.Decimal(ctx, SettingDepositPercentage).String())
	assert.False(t, svc.Bool(ctx, SettingMaintenanceMode))

	rows, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, SettingDepositPercentage, rows[0].Key, "sorted by key")

	_, err = svc.Update(ctx, 1, SettingUnlockCost, "-1")
	assert.Equal(t, domain.KindValidation, mustKind(t, err))
	_, err = svc.Update(ctx, 1, SettingDepositPercentage, "150")
	assert.Equal(t, domain.KindValidation, mustKind(t, err))
	_, err = svc.Update(ctx, 1, SettingMaintenanceMode, "maybe")
	assert.Equal(t, domain.KindValidation, mustKind(t, err))
	_, err = svc.Update(ctx, 1, "unknown_key", "1")
	assert.ErrorIs(t, err, domain.ErrSettingNotFound)

	saved, err := svc.Update(ctx, 9, SettingMaintenanceMode, "true")
	require.NoError(t, err)
	require.NotNil(t, saved.UpdatedBy)
	assert.Equal(t, uint(9), *saved.UpdatedBy)
	assert.True(t, svc.Bool(ctx, SettingMaintenanceMode), "update drops the cached copy")
}

func TestSettingsService_FallsBackToDefaults(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := mocks.NewMockSettingRepository(nil)
	repo.ListFunc = func(ctx context.Context) ([]domain.PlatformSetting, error) {
		return nil, errors.New("db down")
	}
	svc := NewSettingsService(repo, cache.New(client, "test:"))

	assert.Equal(t, 1, svc.Int(context.Background(), SettingUnlockCost))
}

func TestHealthService_Check(t *testing.T) {
	e := newTestEnv(t)

	report := NewHealthService(e.db, e.redis).Check(context.Background())
	assert.Equal(t, "ok", report.Status)
	assert.Equal(t, "up", report.Checks["database"])
	assert.Equal(t, "up", report.Checks["redis"])

	assert.Equal(t, "disabled", NewHealthService(e.db, nil).Check(context.Background()).Checks["redis"])

	e.mr.SetError("ERR down")
	report = NewHealthService(e.db, e.redis).Check(context.Background())
	assert.Equal(t, "degraded", report.Status)
	assert.True(t, report.Healthy())

}

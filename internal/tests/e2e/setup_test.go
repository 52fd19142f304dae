package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/you/mcmarket/domain"
	"github.com/you/mcmarket/internal/app"
	"github.com/you/mcmarket/internal/config"
	"github.com/you/mcmarket/internal/http/response"
	"github.com/you/mcmarket/internal/infrastructure/database"
	"github.com/you/mcmarket/internal/mocks"
)

const (
	adminEmail    = "admin@mcmarket.test"
	adminPassword = "admin-password-1"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// testServer runs the full router over SQLite and miniredis with the
// external providers mocked
type testServer struct {
	t         *testing.T
	router    *gin.Engine
	container *app.Container
	mailer    *mocks.MockMailer
	gateway   *mocks.MockPaymentGateway
	carriers  *mocks.MockCarrierLookup
}

type envelope struct {
	Success    bool                `json:"success"`
	Data       json.RawMessage     `json:"data"`
	Message    string              `json:"message"`
	Pagination *domain.Pagination  `json:"pagination"`
	Error      *response.ErrorBody `json:"error"`
}

func testConfig() *config.Config {
	limits := make(map[string]config.RateLimit, len(config.DefaultRateLimits))
	for name, rl := range config.DefaultRateLimits {
		rl.Limit *= 100
		limits[name] = rl
	}
	return &config.Config{
		Env:                "test",
		GinMode:            gin.TestMode,
		FrontendURL:        "https://app.test",
		JWTSecret:          "e2e-secret-key-that-is-long-enough",
		JWTIssuer:          "mcmarket-e2e",
		AccessTTL:          15 * time.Minute,
		RefreshTTL:         time.Hour,
		EmailVerifyTTL:     time.Hour,
		PasswordResetTTL:   time.Hour,
		UploadMaxBytes:     1 << 20,
		UploadAllowedTypes: []string{"application/pdf", "image/png", "image/jpeg"},
		CarrierTTL:         time.Hour,
		RateLimits:         limits,
		CreditPackages: []config.CreditPackage{
			{ID: "starter", Name: "Starter", Credits: 5, Price: decimal.NewFromInt(49)},
		},
		AdminEmail:    adminEmail,
		AdminPassword: adminPassword,
	}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	db, err := gorm.Open(sqlite.Open(":memory:"), database.GormConfig("silent"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rc := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}

	s := &testServer{
		t:        t,
		mailer:   mocks.NewMockMailer(),
		gateway:  mocks.NewMockPaymentGateway(),
		carriers: mocks.NewMockCarrierLookup(),
	}
	s.carriers.ByMCNumberFunc = func(ctx context.Context, mc string) (*domain.CarrierInfo, error) {
		return &domain.CarrierInfo{
			LegalName:        "Lone Star Hauling LLC",
			DOTNumber:        "3" + mc,
			MCNumber:         mc,
			AllowedToOperate: true,
			OperatingStatus:  "AUTHORIZED",
			State:            "TX",
			PowerUnits:       4,
		}, nil
	}

	c, err := app.Assemble(ctx, testConfig(), app.Infra{DB: db, Redis: rc, Storage: mocks.NewMockStorage()}, app.Integrations{
		Mailer:   s.mailer,
		SMS:      mocks.NewMockSMSSender(),
		Payments: s.gateway,
		Carriers: s.carriers,
		Credit:   s.carriers,
		Leads:    mocks.NewMockLeadSink(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	require.NoError(t, c.SeedAdmin(ctx))

	s.container = c
	s.router, err = app.NewRouter(c)
	require.NoError(t, err)
	return s
}

// do sends a JSON request and decodes the response envelope
func (s *testServer) do(method, path, token string, body interface{}) (int, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

// expect fails the test unless the response has the wanted status, then decodes data into dst
func (s *testServer) expect(wantStatus int, dst interface{}, method, path, token string, body interface{}) envelope {
	s.t.Helper()
	status, env := s.do(method, path, token, body)
	require.Equal(s.t, wantStatus, status, "%s %s: %+v", method, path, env.Error)
	if dst != nil {
		require.NoError(s.t, json.Unmarshal(env.Data, dst))
	}
	return env
}

func (s *testServer) register(email, role string) uint {
	s.t.Helper()
	var out struct {
		User domain.User `json:"user"`
	}
	s.expect(http.StatusCreated, &out, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": "password123",
		"name":     strings.Split(email, "@")[0],
		"phone":    "+15550100",
		"role":     role,
	})
	return out.User.ID
}

func (s *testServer) login(email, password string) string {
	s.t.Helper()
	var out struct {
		AccessToken string `json:"accessToken"`
	}
	s.expect(http.StatusOK, &out, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.NotEmpty(s.t, out.AccessToken)
	return out.AccessToken
}

// lastMailToken extracts the token query parameter from the newest email sent to addr
func (s *testServer) lastMailToken(addr, marker string) string {
	s.t.Helper()
	for i := len(s.mailer.Sent) - 1; i >= 0; i-- {
		m := s.mailer.Sent[i]
		if m.To != addr {
			continue
		}
		idx := strings.Index(m.Body, marker)
		require.GreaterOrEqual(s.t, idx, 0, "email to %s has no %s link", addr, marker)
		return m.Body[idx+len(marker) : idx+len(marker)+64]
	}
	s.t.Fatalf("no email sent to %s", addr)
	return ""
}

func path(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}

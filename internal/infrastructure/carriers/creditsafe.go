package carriers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/you/mcmarket/domain"
	"github.com/you/mcmarket/internal/infrastructure/apiclient"
)

const defaultCreditsafeURL = "https://connect.creditsafe.com/v1"

// CreditsafeClient pulls business credit reports. The bearer token from
// /authenticate is reused until shortly before it expires.
type CreditsafeClient struct {
	baseURL  string
	username string
	password string
	http     *http.Client

	mu       sync.Mutex
	token    string
	tokenExp time.Time
	now      func() time.Time
}

func NewCreditsafeClient(baseURL, username, password string, timeout time.Duration) *CreditsafeClient {
	if baseURL == "" {
		baseURL = defaultCreditsafeURL
	}
	return &CreditsafeClient{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		username: username,
		password: password,
		http:     &http.Client{Timeout: timeout},
		now:      time.Now,
	}
}

const tokenLifetime = 50 * time.Minute

func (c *CreditsafeClient) authenticate(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExp) {
		return c.token, nil
	}

	body, _ := json.Marshal(map[string]string{"username": c.username, "password": c.password})
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/authenticate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp struct {
		Token string `json:"token"`
	}
	if err := apiclient.DoJSON(ctx, c.http, "creditsafe", req, &resp); err != nil {
		return "", err
	}
	c.token = resp.Token
	c.tokenExp = c.now().Add(tokenLifetime)
	return c.token, nil
}

func (c *CreditsafeClient) get(ctx context.Context, path string, out interface{}) error {
	token, err := c.authenticate(ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return apiclient.DoJSON(ctx, c.http, "creditsafe", req, out)
}

// Report finds the best company match for name/state and returns its credit summary
func (c *CreditsafeClient) Report(ctx context.Context, companyName, state string) (*domain.CreditReport, error) {
	if c.username == "" {
		return nil, domain.NewServiceUnavailable("Credit reports are not configured", nil)
	}

	q := url.Values{}
	q.Set("countries", "US")
	q.Set("name", companyName)
	if state != "" {
		q.Set("province", state)
	}
	var search struct {
		Companies []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"companies"`
	}
	if err := c.get(ctx, "/companies?"+q.Encode(), &search); err != nil {
		return nil, domain.NewServiceUnavailable("Credit report lookup failed", err)
	}
	if len(search.Companies) == 0 {
		return nil, domain.ErrCarrierNotFound
	}
	company := search.Companies[0]

	var report struct {
		Report struct {
			CreditScore struct {
				CurrentCreditRating struct {
					CommonValue   string `json:"commonValue"`
					ProviderValue struct {
						Value string `json:"value"`
					} `json:"providerValue"`
					CreditLimit struct {
						Value float64 `json:"value"`
					} `json:"creditLimit"`
				} `json:"currentCreditRating"`
			} `json:"creditScore"`
		} `json:"report"`
	}
	if err := c.get(ctx, "/companies/"+url.PathEscape(company.ID), &report); err != nil {
		return nil, domain.NewServiceUnavailable("Credit report lookup failed", err)
	}

	rating := report.Report.CreditScore.CurrentCreditRating
	score := 0
	if v, err := json.Number(rating.ProviderValue.Value).Int64(); err == nil {
		score = int(v)
	}
	return &domain.CreditReport{
		CompanyID:   company.ID,
		CompanyName: company.Name,
		Score:       score,
		Rating:      rating.CommonValue,
		CreditLimit: rating.CreditLimit.Value,
	}, nil
}

package marketing

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/you/mcmarket/domain"
	"github.com/you/mcmarket/internal/infrastructure/apiclient"
)

const (
	defaultGHLURL = "https://services.leadconnectorhq.com"
	ghlVersion    = "2021-07-28"
)

// GHLClient pushes leads into GoHighLevel as contacts
type GHLClient struct {
	baseURL    string
	apiKey     string
	locationID string
	http       *http.Client
}

func NewGHLClient(baseURL, apiKey, locationID string, timeout time.Duration) *GHLClient {
	if baseURL == "" {
		baseURL = defaultGHLURL
	}
	return &GHLClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		locationID: locationID,
		http:       &http.Client{Timeout: timeout},
	}
}

type ghlContact struct {
	LocationID string   `json:"locationId"`
	FirstName  string   `json:"firstName,omitempty"`
	LastName   string   `json:"lastName,omitempty"`
	Email      string   `json:"email,omitempty"`
	Phone      string   `json:"phone,omitempty"`
	Source     string   `json:"source,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// PushLead creates the contact and returns its CRM ID
func (c *GHLClient) PushLead(ctx context.Context, lead domain.Lead) (string, error) {
	if c.apiKey == "" {
		return "", domain.NewServiceUnavailable("CRM is not configured", nil)
	}

	first, last := splitName(lead.Name)
	body, _ := json.Marshal(ghlContact{
		LocationID: c.locationID,
		FirstName:  first,
		LastName:   last,
		Email:      lead.Email,
		Phone:      lead.Phone,
		Source:     lead.Source,
		Tags:       lead.Tags,
	})
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/contacts/", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Version", ghlVersion)

	var resp struct {
		Contact struct {
			ID string `json:"id"`
		} `json:"contact"`
	}
	if err := apiclient.DoJSON(ctx, c.http, "ghl", req, &resp); err != nil {
		return "", domain.NewServiceUnavailable("CRM push failed", err)
	}
	return resp.Contact.ID, nil
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

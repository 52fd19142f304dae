package marketing

import (
	"context"
	"net/http"
	"strings"
	"time"

	fb "github.com/huandu/facebook/v2"

	"github.com/you/mcmarket/domain"
)

const defaultGraphURL = "https://graph.facebook.com/v19.0"

// FacebookPublisher posts to a page feed through the Graph API
type FacebookPublisher struct {
	pageID  string
	session *fb.Session
}

func NewFacebookPublisher(graphURL, pageID, accessToken string, timeout time.Duration) *FacebookPublisher {
	if graphURL == "" {
		graphURL = defaultGraphURL
	}
	session := &fb.Session{
		HttpClient: &http.Client{Timeout: timeout},
		BaseURL:    strings.TrimSuffix(graphURL, "/") + "/",
	}
	session.SetAccessToken(accessToken)
	return &FacebookPublisher{pageID: pageID, session: session}
}

func (p *FacebookPublisher) Name() string { return "facebook" }

// Publish returns the created post ID
func (p *FacebookPublisher) Publish(ctx context.Context, message, link string) (string, error) {
	if p.pageID == "" || p.session.AccessToken() == "" {
		return "", domain.NewServiceUnavailable("Facebook sharing is not configured", nil)
	}

	params := fb.Params{"message": message}
	if link != "" {
		params["link"] = link
	}
	res, err := p.session.WithContext(ctx).Post("/"+p.pageID+"/feed", params)
	if err != nil {
		return "", domain.NewServiceUnavailable("Facebook post failed", err)
	}

	var id string
	if err := res.DecodeField("id", &id); err != nil {
		return "", domain.NewServiceUnavailable("Facebook post failed", err)
	}
	return id, nil
}

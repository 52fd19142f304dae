package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/you/mcmarket/domain"
)

// ShareResult is the outcome of posting to one channel
type ShareResult struct {
	Channel string `json:"channel"`
	PostID  string `json:"postId,omitempty"`
	Error   string `json:"error,omitempty"`
}

// MarketingService posts active listings to social channels
type MarketingService struct {
	listings    *ListingService
	publishers  []domain.SocialPublisher
	frontendURL string
}

func NewMarketingService(listings *ListingService, publishers []domain.SocialPublisher, frontendURL string) *MarketingService {
	return &MarketingService{
		listings:    listings,
		publishers:  publishers,
		frontendURL: strings.TrimSuffix(frontendURL, "/"),
	}
}

// Channels lists the configured publisher names
func (s *MarketingService) Channels() []string {
	names := make([]string, 0, len(s.publishers))
	for _, p := range s.publishers {
		names = append(names, p.Name())
	}
	return names
}

// ListingMessage is the default post text; MC and DOT numbers are never included
func ListingMessage(l *domain.Listing) string {
	var b strings.Builder
	fmt.Fprintf(&b, "For sale: %s\n", l.Title)
	fmt.Fprintf(&b, "Asking $%s", l.Price.StringFixed(2))
	if l.YearsActive > 0 {
		fmt.Fprintf(&b, " | %d years active", l.YearsActive)
	}
	if l.State != "" {
		fmt.Fprintf(&b, " | %s", l.State)
	}
	if l.AmazonRelay {
		b.WriteString(" | Amazon Relay")
	}
	return b.String()
}

// ShareListing posts the listing to the requested channels, or to all of them
// when channels is empty. One channel failing does not stop the others.
func (s *MarketingService) ShareListing(ctx context.Context, listingID uint, channels []string, message string) ([]ShareResult, error) {
	l, err := s.listings.ActiveListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(message) == "" {
		message = ListingMessage(l)
	}
	link := fmt.Sprintf("%s/listings/%d", s.frontendURL, l.ID)

	want := make(map[string]bool, len(channels))
	for _, c := range channels {
		want[strings.ToLower(c)] = true
	}

	var results []ShareResult
	for _, p := range s.publishers {
		if len(want) > 0 && !want[p.Name()] {
			continue
		}
		res := ShareResult{Channel: p.Name()}
		id, err := p.Publish(ctx, message, link)
		if err != nil {
			slog.WarnContext(ctx, "listing share failed", "channel", p.Name(), "listing_id", l.ID, "error", err)
			res.Error = err.Error()
		} else {
			res.PostID = id
		}
		results = append(results, res)
	}
	if len(results) == 0 {
		return nil, domain.NewValidation("No matching marketing channel is configured")
	}
	return results, nil
}

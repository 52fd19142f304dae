package carriers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/you/mcmarket/domain"
	"github.com/you/mcmarket/internal/infrastructure/apiclient"
)

const defaultFMCSAURL = "https://mobile.fmcsa.dot.gov/qc/services"

// FMCSAClient queries the FMCSA QCMobile carrier API
type FMCSAClient struct {
	baseURL string
	webKey  string
	http    *http.Client
}

func NewFMCSAClient(baseURL, webKey string, timeout time.Duration) *FMCSAClient {
	if baseURL == "" {
		baseURL = defaultFMCSAURL
	}
	return &FMCSAClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		webKey:  webKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type fmcsaCarrier struct {
	LegalName        string      `json:"legalName"`
	DBAName          string      `json:"dbaName"`
	DOTNumber        json.Number `json:"dotNumber"`
	AllowedToOperate string      `json:"allowedToOperate"`
	StatusCode       string      `json:"statusCode"`
	PhyState         string      `json:"phyState"`
	TotalPowerUnits  int         `json:"totalPowerUnits"`
	TotalDrivers     int         `json:"totalDrivers"`
	SafetyRating     string      `json:"safetyRating"`
}

type fmcsaEnvelope struct {
	Carrier fmcsaCarrier `json:"carrier"`
}

// ByMCNumber looks up a carrier by docket (MC) number
func (c *FMCSAClient) ByMCNumber(ctx context.Context, mc string) (*domain.CarrierInfo, error) {
	var resp struct {
		Content []fmcsaEnvelope `json:"content"`
	}
	if err := c.get(ctx, "/carriers/docket-number/"+url.PathEscape(mc), &resp); err != nil {
		return nil, err
	}
	if len(resp.Content) == 0 || resp.Content[0].Carrier.LegalName == "" {
		return nil, domain.ErrCarrierNotFound
	}
	info := toCarrierInfo(resp.Content[0].Carrier)
	info.MCNumber = mc
	return info, nil
}

// ByDOTNumber looks up a carrier by USDOT number
func (c *FMCSAClient) ByDOTNumber(ctx context.Context, dot string) (*domain.CarrierInfo, error) {
	var resp struct {
		Content *fmcsaEnvelope `json:"content"`
	}
	if err := c.get(ctx, "/carriers/"+url.PathEscape(dot), &resp); err != nil {
		return nil, err
	}
	if resp.Content == nil || resp.Content.Carrier.LegalName == "" {
		return nil, domain.ErrCarrierNotFound
	}
	return toCarrierInfo(resp.Content.Carrier), nil
}

func (c *FMCSAClient) get(ctx context.Context, path string, out interface{}) error {
	if c.webKey == "" {
		return domain.NewServiceUnavailable("Carrier lookup is not configured", nil)
	}
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path+"?webKey="+url.QueryEscape(c.webKey), nil)
	if err != nil {
		return err
	}
	err = apiclient.DoJSON(ctx, c.http, "fmcsa", req, out)
	var se *apiclient.StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return domain.ErrCarrierNotFound
	}
	if err != nil {
		return domain.NewServiceUnavailable("FMCSA lookup failed", err)
	}
	return nil
}

func toCarrierInfo(c fmcsaCarrier) *domain.CarrierInfo {
	return &domain.CarrierInfo{
		LegalName:        c.LegalName,
		DBAName:          c.DBAName,
		DOTNumber:        c.DOTNumber.String(),
		AllowedToOperate: strings.EqualFold(c.AllowedToOperate, "Y"),
		OperatingStatus:  operatingStatus(c.StatusCode),
		State:            c.PhyState,
		PowerUnits:       c.TotalPowerUnits,
		Drivers:          c.TotalDrivers,
		SafetyRating:     c.SafetyRating,
	}
}

func operatingStatus(code string) string {
	switch strings.ToUpper(code) {
	case "A":
		return "ACTIVE"
	case "I":
		return "INACTIVE"
	case "":
		return "UNKNOWN"
	default:
		return strings.ToUpper(code)
	}
}

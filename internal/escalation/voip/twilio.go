package voip

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseURL = "https://api.twilio.com"
	defaultTimeout = 10 * time.Second
	callsPath      = "/2010-04-01/Accounts/{sid}/Calls.json"
)

// ErrNotConfigured indicates missing gateway credentials.
var ErrNotConfigured = errors.New("voip: gateway not configured")

// Config holds Twilio credentials.
type Config struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string
	Timeout    time.Duration
}

// TwilioGateway places outbound voice calls that read a message aloud.
type TwilioGateway struct {
	http *resty.Client
	sid  string
	from string
}

type callResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// NewTwilioGateway constructs a gateway. It returns ErrNotConfigured when any
// credential is missing.
func NewTwilioGateway(cfg Config) (*TwilioGateway, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.FromNumber == "" {
		return nil, ErrNotConfigured
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	client.SetBasicAuth(cfg.AccountSID, cfg.AuthToken)
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("Accept", "application/json")

	return &TwilioGateway{http: client, sid: cfg.AccountSID, from: cfg.FromNumber}, nil
}

// Call implements the escalation call gateway.
func (g *TwilioGateway) Call(ctx context.Context, phone, message string) error {
	if g == nil || g.http == nil {
		return ErrNotConfigured
	}
	if phone == "" {
		return errors.New("voip: empty phone")
	}
	twiml, err := sayTwiML(message)
	if err != nil {
		return err
	}
	resp, err := g.http.R().
		SetContext(ctx).
		SetPathParam("sid", g.sid).
		SetFormData(map[string]string{
			"To":    phone,
			"From":  g.from,
			"Twiml": twiml,
		}).
		SetResult(&callResponse{}).
		Post(callsPath)
	if err != nil {
		return fmt.Errorf("voip: call %s: %w", phone, err)
	}
	if resp.IsError() {
		return fmt.Errorf("voip: call %s: status %d: %s", phone, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}

func sayTwiML(message string) (string, error) {
	var escaped strings.Builder
	if err := xml.EscapeText(&escaped, []byte(message)); err != nil {
		return "", err
	}
	return "<Response><Say>" + escaped.String() + "</Say></Response>", nil
}

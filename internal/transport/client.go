package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/example/carnest-gateway/internal/models"
)

// Client talks to the upstream Carnest API. It implements the form
// package's Transport and ResetTransport interfaces: every mutation returns
// a discriminated Result rather than an error, because a rejected request
// still carries a per-field error bag the form needs verbatim.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// PostRide submits a ride. The access token rides on the Authorization
// header only, never in the body.
func (c *Client) PostRide(ctx context.Context, payload models.SubmitRidePayload, accessToken string) models.Result {
	return c.do(ctx, "/api/rides/", payload, accessToken)
}

// ForgotPassword requests a password-reset email.
func (c *Client) ForgotPassword(ctx context.Context, payload models.PasswordResetPayload) models.Result {
	return c.do(ctx, "/api/user/send-reset-password-email/", payload, "")
}

func (c *Client) do(ctx context.Context, path string, payload any, accessToken string) models.Result {
	body, err := json.Marshal(payload)
	if err != nil {
		return networkResult(fmt.Errorf("encode request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return networkResult(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return networkResult(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return models.Result{Err: decodeError(resp)}
	}

	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		// 2xx with an undecodable body; hand back a non-nil empty map so
		// the controller still sees success.
		data = map[string]any{}
	}
	if data == nil {
		data = map[string]any{}
	}
	return models.Result{Data: data}
}

// decodeError extracts the error bag from a rejection response. A body that
// does not carry an errors object (HTML error pages, proxies) degrades to a
// single non-field message with the HTTP status.
func decodeError(resp *http.Response) *models.APIError {
	var body struct {
		Errors models.ErrorBag `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && len(body.Errors) > 0 {
		return &models.APIError{Status: resp.StatusCode, Kind: models.KindValidation, Errors: body.Errors}
	}
	return &models.APIError{
		Status: resp.StatusCode,
		Kind:   models.KindValidation,
		Errors: models.ErrorBag{
			models.NonFieldErrors: {fmt.Sprintf("Request failed (%s)", http.StatusText(resp.StatusCode))},
		},
	}
}

func networkResult(err error) models.Result {
	return models.Result{Err: &models.APIError{
		Kind:   models.KindNetwork,
		Errors: models.ErrorBag{models.NonFieldErrors: {err.Error()}},
	}}
}

package seafile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// Wire constants for authentication.
const (
	authTokenPath = "/api2/auth-token/"
	pingPath      = "/api2/auth/ping/"
	otpHeader     = "X-SEAFILE-OTP"
	pong          = "pong"
)

type authTokenResponse struct {
	Token string `json:"token"`
}

// Authenticate exchanges username and password (plus an optional one-time
// code) for an API token. On success the token is installed on the client
// and returned. A missing or wrong second factor yields ErrTwoFactorRequired
// or ErrTwoFactorInvalid instead of ErrAuthFailed.
func (c *Client) Authenticate(ctx context.Context, username, password, otpCode string) (string, error) {
	const op = "authenticate"

	if strings.TrimSpace(username) == "" {
		return "", fmt.Errorf("%w: username is empty", ErrInvalidInput)
	}

	if password == "" {
		return "", fmt.Errorf("%w: password is empty", ErrInvalidInput)
	}

	c.logger.Info("authenticating",
		slog.String("origin", c.origin.String()),
		slog.String("username", username),
		slog.Bool("otp", otpCode != ""),
	)

	form := url.Values{"username": {username}, "password": {password}}

	r := request{
		method:      http.MethodPost,
		path:        authTokenPath,
		contentType: "application/x-www-form-urlencoded",
		body:        []byte(form.Encode()),
	}

	if otpCode != "" {
		r.header = http.Header{otpHeader: {otpCode}}
	}

	resp, err := c.do(ctx, r)
	if err != nil {
		return "", c.authError(err)
	}
	defer resp.Body.Close()

	var atr authTokenResponse
	if decErr := json.NewDecoder(resp.Body).Decode(&atr); decErr != nil {
		return "", &APIError{Op: op, Err: ErrAuthFailed, Cause: fmt.Errorf("decoding token response: %w", decErr)}
	}

	if atr.Token == "" {
		return "", &APIError{Op: op, Err: ErrAuthFailed, Reason: "empty token in response"}
	}

	c.SetToken(atr.Token)
	c.logger.Info("authenticated", slog.String("origin", c.origin.String()))

	return atr.Token, nil
}

// authError classifies a failed auth-token call. Seafile reports second
// factor problems as 400 with a message naming the two-factor token, and
// sets X-Seafile-OTP: required when a code is expected.
func (c *Client) authError(err error) error {
	const op = "authenticate"

	var se *statusError
	if !errors.As(err, &se) {
		return wrapErr(op, ErrAuthFailed, err)
	}

	reason := strings.ToLower(se.reason)
	kind := ErrAuthFailed

	switch {
	case strings.Contains(reason, "two factor") && strings.Contains(reason, "invalid"):
		kind = ErrTwoFactorInvalid
	case strings.Contains(reason, "two factor") && strings.Contains(reason, "missing"),
		strings.EqualFold(se.header.Get(otpHeader), "required"):
		kind = ErrTwoFactorRequired
	}

	c.logger.Warn("authentication rejected",
		slog.String("origin", c.origin.String()),
		slog.Int("status", se.code),
		slog.String("kind", kind.Error()),
	)
	c.logger.Debug("authentication rejection reason", slog.String("reason", se.reason))

	return wrapErr(op, kind, err)
}

// Ping reports whether the current token is accepted by the server. It never
// returns an error: a missing token, a network failure, a 401, or an
// unexpected body all mean "not alive". Ping is not retried.
func (c *Client) Ping(ctx context.Context) bool {
	if c.Token() == "" {
		return false
	}

	resp, err := c.doOnce(ctx, c.httpClient, c.origin.String()+pingPath, request{
		method: http.MethodGet,
		path:   pingPath,
		auth:   true,
	})
	if err != nil {
		c.logger.Debug("liveness probe failed", slog.String("error", err.Error()))
		return false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || resp.StatusCode != http.StatusOK {
		c.logger.Debug("liveness probe rejected", slog.Int("status", resp.StatusCode))
		return false
	}

	var s string
	if json.Unmarshal(body, &s) != nil {
		s = strings.TrimSpace(string(body))
	}

	return s == pong
}

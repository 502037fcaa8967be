package seafile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// accountInfoResponse mirrors GET /api2/account/info/.
type accountInfoResponse struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Usage int64  `json:"usage"`
	Total int64  `json:"total"`
}

// AccountInfo returns the authenticated account's email and storage usage.
func (c *Client) AccountInfo(ctx context.Context) (*AccountInfo, error) {
	const op = "fetch account info"

	if _, err := c.requireToken(op); err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, request{method: http.MethodGet, path: "/api2/account/info/", auth: true})
	if err != nil {
		return nil, wrapErr(op, ErrAccountInfoFailed, err)
	}
	defer resp.Body.Close()

	var air accountInfoResponse
	if decErr := json.NewDecoder(resp.Body).Decode(&air); decErr != nil {
		return nil, &APIError{Op: op, Err: ErrAccountInfoFailed, Cause: fmt.Errorf("decoding response: %w", decErr)}
	}

	c.logger.Debug("fetched account info",
		slog.String("email", air.Email),
		slog.Int64("usage", air.Usage),
		slog.Int64("total", air.Total),
	)

	return &AccountInfo{
		Email:      air.Email,
		Name:       air.Name,
		UsageBytes: air.Usage,
		QuotaBytes: air.Total,
	}, nil
}

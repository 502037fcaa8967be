package seafile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const shareLinksPath = "/api/v2.1/share-links/"

// MaxExpireDays is the longest share-link lifetime sent to the server.
const MaxExpireDays = 365

// ClampExpireDays limits days to [0, MaxExpireDays]. Zero means "never
// expires" and is omitted from the request.
func ClampExpireDays(days int) int {
	return min(max(days, 0), MaxExpireDays)
}

type shareLinkRequest struct {
	RepoID     string `json:"repo_id"`
	Path       string `json:"path"`
	Password   string `json:"password,omitempty"`
	ExpireDays int    `json:"expire_days,omitempty"`
}

type shareLinkResponse struct {
	Token      string `json:"token"`
	Link       string `json:"link"`
	RepoID     string `json:"repo_id"`
	Path       string `json:"path"`
	ExpireDate string `json:"expire_date"`
}

// CreateShareLink creates a download link for filePath. Password and expiry
// are left out of the request when unset; expiry is clamped first. A failure
// carries only the HTTP status: server detail stays in APIError.Reason and is
// logged at debug level.
func (c *Client) CreateShareLink(ctx context.Context, repoID, filePath string, opts ShareOptions) (*ShareLink, error) {
	const op = "create share link"

	if _, err := c.requireToken(op); err != nil {
		return nil, err
	}

	if err := validateRepoID(repoID); err != nil {
		return nil, err
	}

	clean := SanitizePath(filePath)
	if clean == "/" {
		return nil, fmt.Errorf("%w: share path is the library root", ErrInvalidInput)
	}

	body, err := json.Marshal(shareLinkRequest{
		RepoID:     repoID,
		Path:       clean,
		Password:   opts.Password,
		ExpireDays: ClampExpireDays(opts.ExpireDays),
	})
	if err != nil {
		return nil, &APIError{Op: op, Err: ErrShareLinkFailed, Cause: err}
	}

	c.logger.Info("creating share link",
		slog.String("repo_id", repoID),
		slog.String("path", clean),
		slog.Bool("password", opts.Password != ""),
		slog.Int("expire_days", ClampExpireDays(opts.ExpireDays)),
	)

	resp, err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        shareLinksPath,
		contentType: "application/json",
		body:        body,
		auth:        true,
	})
	if err != nil {
		wrapped := wrapErr(op, ErrShareLinkFailed, err)
		c.logger.Debug("share link rejected", slog.String("error", wrapped.Error()), slog.String("reason", reasonOf(wrapped)))

		return nil, wrapped
	}
	defer resp.Body.Close()

	var slr shareLinkResponse
	if decErr := json.NewDecoder(resp.Body).Decode(&slr); decErr != nil || slr.Link == "" {
		return nil, &APIError{Op: op, Err: ErrShareLinkFailed, StatusCode: resp.StatusCode, Reason: "response carried no link"}
	}

	link := &ShareLink{
		Token:  slr.Token,
		Link:   slr.Link,
		RepoID: repoID,
		Path:   clean,
	}

	if slr.ExpireDate != "" {
		if t, parseErr := time.Parse(time.RFC3339, slr.ExpireDate); parseErr == nil {
			link.ExpireDate = t
		}
	}

	return link, nil
}

// reasonOf returns the diagnostic reason of an APIError, or "".
func reasonOf(err error) string {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr.Reason
	}

	return ""
}

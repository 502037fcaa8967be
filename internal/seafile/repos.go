package seafile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// ListRepos returns every library visible to the account. No filtering is
// applied here; callers decide which libraries are usable (see
// Repo.Writable).
func (c *Client) ListRepos(ctx context.Context) ([]Repo, error) {
	const op = "list libraries"

	if _, err := c.requireToken(op); err != nil {
		return nil, err
	}

	c.logger.Debug("listing libraries", slog.String("origin", c.origin.String()))

	resp, err := c.do(ctx, request{method: http.MethodGet, path: "/api2/repos/", auth: true})
	if err != nil {
		return nil, wrapErr(op, ErrListFailed, err)
	}
	defer resp.Body.Close()

	var repos []Repo
	if decErr := json.NewDecoder(resp.Body).Decode(&repos); decErr != nil {
		return nil, &APIError{Op: op, Err: ErrListFailed, Cause: fmt.Errorf("decoding response: %w", decErr)}
	}

	return repos, nil
}

// EnsureDirectory creates dirPath and its missing parents inside the
// library. It is idempotent: 409 (already exists) and 400 are both treated
// as success because Seafile answers repeated mkdir calls with either.
func (c *Client) EnsureDirectory(ctx context.Context, repoID, dirPath string) error {
	const op = "create directory"

	if _, err := c.requireToken(op); err != nil {
		return err
	}

	if err := validateRepoID(repoID); err != nil {
		return err
	}

	form := []byte(url.Values{"operation": {"mkdir"}}.Encode())

	for _, dir := range ancestors(dirPath) {
		resp, err := c.do(ctx, request{
			method:      http.MethodPost,
			path:        repoPath(repoID, "/dir/?"+pathQuery(dir)),
			contentType: "application/x-www-form-urlencoded",
			body:        form,
			auth:        true,
		})
		if err == nil {
			resp.Body.Close()
			c.logger.Debug("directory created", slog.String("repo_id", repoID), slog.String("path", dir))

			continue
		}

		// TODO: 400 also covers malformed paths; narrow this once the
		// server's "already exists" 400 can be told apart by its message.
		switch code := StatusCode(err); code {
		case http.StatusConflict, http.StatusBadRequest:
			c.logger.Debug("directory already present",
				slog.String("repo_id", repoID),
				slog.String("path", dir),
				slog.Int("status", code),
			)

			continue
		}

		return wrapErr(op, ErrDirectoryCreateFailed, err)
	}

	return nil
}

// DeleteFile removes a file from the library. It is used for best-effort
// cleanup, so failures are logged and reported as false rather than
// returned.
func (c *Client) DeleteFile(ctx context.Context, repoID, filePath string) bool {
	if c.Token() == "" || validateRepoID(repoID) != nil {
		c.logger.Warn("delete skipped: missing token or library id", slog.String("repo_id", repoID))
		return false
	}

	clean := SanitizePath(filePath)
	if clean == "/" {
		c.logger.Warn("delete skipped: refusing to delete library root", slog.String("repo_id", repoID))
		return false
	}

	resp, err := c.do(ctx, request{
		method: http.MethodDelete,
		path:   repoPath(repoID, "/file/?"+pathQuery(clean)),
		auth:   true,
	})
	if err != nil {
		c.logger.Warn("delete failed",
			slog.String("repo_id", repoID),
			slog.String("path", clean),
			slog.Int("status", StatusCode(err)),
			slog.String("error", err.Error()),
		)

		return false
	}
	resp.Body.Close()

	c.logger.Info("deleted remote file", slog.String("repo_id", repoID), slog.String("path", clean))

	return true
}

// validateRepoID rejects empty or separator-bearing library ids.
func validateRepoID(repoID string) error {
	if strings.TrimSpace(repoID) == "" || strings.ContainsAny(repoID, "/\\") {
		return fmt.Errorf("%w: library id %q", ErrInvalidInput, repoID)
	}

	return nil
}

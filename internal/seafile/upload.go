package seafile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

// RequestUploadLink asks the server for a single-use upload URL for dirPath.
// The URL must point at the client's own host; anything else is rejected
// with ErrUntrustedUploadTarget so file bytes never leave for a foreign
// endpoint.
func (c *Client) RequestUploadLink(ctx context.Context, repoID, dirPath string) (string, error) {
	const op = "request upload link"

	if _, err := c.requireToken(op); err != nil {
		return "", err
	}

	if err := validateRepoID(repoID); err != nil {
		return "", err
	}

	resp, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   repoPath(repoID, "/upload-link/?"+pathQuery(dirPath)),
		auth:   true,
	})
	if err != nil {
		return "", wrapErr(op, ErrUploadLinkFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return "", &APIError{Op: op, Err: ErrUploadLinkFailed, Cause: err}
	}

	// The endpoint answers with a JSON string; tolerate a bare URL too.
	var link string
	if json.Unmarshal(body, &link) != nil {
		link = strings.Trim(strings.TrimSpace(string(body)), `"`)
	}

	if link == "" {
		return "", &APIError{Op: op, Err: ErrUploadLinkFailed, Reason: "empty upload link"}
	}

	if !c.origin.SameHost(link) {
		c.logger.Error("upload link host does not match server",
			slog.String("origin", c.origin.String()),
			slog.String("link_host", linkHost(link)),
		)

		return "", &APIError{Op: op, Err: ErrUntrustedUploadTarget, Reason: "link host " + linkHost(link)}
	}

	return link, nil
}

// UploadBytes posts data as a multipart file named fileName into dirPath
// using an upload link from RequestUploadLink. Cancel ctx to abort the
// transfer. The link is pre-authenticated, so no Authorization header is
// sent. Uploads are never retried.
func (c *Client) UploadBytes(
	ctx context.Context, uploadLink, dirPath string, data []byte, fileName string,
) (*UploadedFile, error) {
	const op = "upload"

	name, err := cleanFileName(fileName)
	if err != nil {
		return nil, err
	}

	if !c.origin.SameHost(uploadLink) {
		return nil, &APIError{Op: op, Err: ErrUntrustedUploadTarget, Reason: "link host " + linkHost(uploadLink)}
	}

	target, err := url.Parse(uploadLink)
	if err != nil {
		return nil, &APIError{Op: op, Err: ErrUploadFailed, Cause: err}
	}

	q := target.Query()
	q.Set("ret-json", "1")
	target.RawQuery = q.Encode()

	dir := SanitizePath(dirPath)

	body, contentType, err := multipartBody(dir, name, data)
	if err != nil {
		return nil, &APIError{Op: op, Err: ErrUploadFailed, Cause: err}
	}

	c.logger.Info("uploading file",
		slog.String("path", dir),
		slog.String("name", name),
		slog.Int("size", len(data)),
	)

	resp, err := c.doOnce(ctx, c.transferHTTP, target.String(), request{
		method:      http.MethodPost,
		contentType: contentType,
		body:        body,
	})
	if err != nil {
		if ctx.Err() != nil {
			c.logger.Info("upload canceled", slog.String("name", name))
			return nil, &APIError{Op: op, Err: ErrUploadFailed, Cause: ctx.Err()}
		}

		return nil, &APIError{Op: op, Err: ErrUploadFailed, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // best-effort read for diagnostics
		c.logger.Error("upload rejected", slog.Int("status", resp.StatusCode))

		return nil, &APIError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Reason:     normalizeReason(errBody),
			Err:        ErrUploadFailed,
		}
	}

	var files []UploadedFile
	if decErr := json.NewDecoder(resp.Body).Decode(&files); decErr != nil || len(files) == 0 || files[0].Name == "" {
		// Older servers ignore ret-json; the requested name is the best
		// information available.
		c.logger.Debug("upload response carried no file entry", slog.String("name", name))

		return &UploadedFile{Name: name, Size: int64(len(data))}, nil
	}

	c.logger.Debug("upload complete",
		slog.String("stored_name", files[0].Name),
		slog.String("file_id", files[0].ID),
	)

	return &files[0], nil
}

// multipartBody encodes the upload form: parent_dir, replace=0 and the file.
func multipartBody(dir, name string, data []byte) ([]byte, string, error) {
	var buf bytes.Buffer

	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("parent_dir", dir); err != nil {
		return nil, "", fmt.Errorf("writing parent_dir: %w", err)
	}

	if err := mw.WriteField("replace", "0"); err != nil {
		return nil, "", fmt.Errorf("writing replace: %w", err)
	}

	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, "", fmt.Errorf("creating file part: %w", err)
	}

	if _, err := fw.Write(data); err != nil {
		return nil, "", fmt.Errorf("writing file part: %w", err)
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart writer: %w", err)
	}

	return buf.Bytes(), mw.FormDataContentType(), nil
}

// linkHost extracts the host of a link for log output without exposing the
// pre-authenticated path.
func linkHost(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return "(unparseable)"
	}

	return u.Host
}

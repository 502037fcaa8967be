// Package host speaks the newline-delimited JSON protocol between the mail
// client extension and seafile-filelink. Each input line is one request;
// each request produces exactly one output line carrying the same id.
package host

import (
	"time"

	"github.com/tonimelisma/seafile-filelink/internal/filelink"
)

// Request types.
const (
	TypeUpload         = "upload"
	TypeAbort          = "abort"
	TypeDelete         = "delete"
	TypeAccountDeleted = "account-deleted"
	TypeTestConnection = "test-connection"
	TypeSaveConfig     = "save-config"
	TypeLoadConfig     = "load-config"
)

// Request is one input line. Fields are used according to Type.
type Request struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	AccountID string `json:"accountId,omitempty"`
	FileID    string `json:"fileId,omitempty"`
	FileName  string `json:"fileName,omitempty"`
	Data      []byte `json:"data,omitempty"` // base64 in JSON

	ServerURL string `json:"serverUrl,omitempty"`
	Username  string `json:"username,omitempty"`
	Password  string `json:"password,omitempty"`
	OTPCode   string `json:"otpCode,omitempty"`

	Config *filelink.Settings `json:"config,omitempty"`
}

// Response is one output line.
type Response struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	OK     bool   `json:"ok"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	Code   string `json:"code,omitempty"`
}

// UploadResult is the result of an upload request.
type UploadResult struct {
	URL               string     `json:"url"`
	Name              string     `json:"name"`
	ExpiresAt         *time.Time `json:"expiresAt,omitempty"`
	PasswordProtected bool       `json:"passwordProtected"`
}

// AbortResult is the result of an abort request.
type AbortResult struct {
	Aborted bool `json:"aborted"`
}

// DeleteResult is the result of a delete request. Found is false when the
// file was never uploaded or already deleted.
type DeleteResult struct {
	Found bool `json:"found"`
}

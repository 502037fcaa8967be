package filelink

import (
	"errors"

	"github.com/tonimelisma/seafile-filelink/internal/seafile"
	"github.com/tonimelisma/seafile-filelink/internal/session"
)

// ErrAborted is returned by Upload when Abort canceled it.
var ErrAborted = errors.New("filelink: upload aborted")

// Wire error codes reported to the host.
const (
	CodeInvalidInput          = "INVALID_INPUT"
	CodeAuthFailed            = "AUTH_FAILED"
	CodeTwoFactorRequired     = "TWO_FACTOR_REQUIRED"
	CodeTwoFactorInvalid      = "TWO_FACTOR_INVALID"
	CodeNoConfig              = "NO_CONFIG"
	CodeNoCredentials         = "NO_CREDENTIALS"
	CodeDirectoryCreateFailed = "DIRECTORY_CREATE_FAILED"
	CodeUploadLinkFailed      = "UPLOAD_LINK_FAILED"
	CodeUntrustedUploadTarget = "UNTRUSTED_UPLOAD_TARGET"
	CodeUploadFailed          = "UPLOAD_FAILED"
	CodeShareLinkFailed       = "SHARE_LINK_FAILED"
	CodeAccountInfoFailed     = "ACCOUNT_INFO_FAILED"
	CodeListFailed            = "LIST_FAILED"
	CodeAborted               = "ABORTED"
	CodeUnknown               = "UNKNOWN"
)

// codeTable is ordered: the two-factor and abort sentinels are checked
// before the broader kinds they may be wrapped together with.
var codeTable = []struct {
	err  error
	code string
}{
	{ErrAborted, CodeAborted},
	{seafile.ErrInvalidInput, CodeInvalidInput},
	{seafile.ErrTwoFactorRequired, CodeTwoFactorRequired},
	{seafile.ErrTwoFactorInvalid, CodeTwoFactorInvalid},
	{session.ErrNoConfig, CodeNoConfig},
	{session.ErrNoCredentials, CodeNoCredentials},
	{seafile.ErrAuthFailed, CodeAuthFailed},
	{seafile.ErrUnauthenticated, CodeAuthFailed},
	{seafile.ErrDirectoryCreateFailed, CodeDirectoryCreateFailed},
	{seafile.ErrUntrustedUploadTarget, CodeUntrustedUploadTarget},
	{seafile.ErrUploadLinkFailed, CodeUploadLinkFailed},
	{seafile.ErrUploadFailed, CodeUploadFailed},
	{seafile.ErrShareLinkFailed, CodeShareLinkFailed},
	{seafile.ErrAccountInfoFailed, CodeAccountInfoFailed},
	{seafile.ErrListFailed, CodeListFailed},
}

// Code maps an error to its stable wire code. nil maps to "".
func Code(err error) string {
	if err == nil {
		return ""
	}

	for _, c := range codeTable {
		if errors.Is(err, c.err) {
			return c.code
		}
	}

	return CodeUnknown
}

package session

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/tonimelisma/seafile-filelink/internal/origin"
	"github.com/tonimelisma/seafile-filelink/internal/seafile"
)

// ClientFactory builds an unauthenticated API client for an origin.
type ClientFactory func(o origin.Origin) *seafile.Client

// NewClientFactory returns a ClientFactory sharing one metadata and one
// transfer http.Client across all origins.
func NewClientFactory(metaHTTP, transferHTTP *http.Client, userAgent string, logger *slog.Logger) ClientFactory {
	return func(o origin.Origin) *seafile.Client {
		return seafile.NewClient(o, metaHTTP, transferHTTP, logger, userAgent)
	}
}

// TransportOptions configures the HTTP clients a ClientFactory uses.
type TransportOptions struct {
	ConnectTimeout time.Duration // whole-request timeout for metadata calls
	DataTimeout    time.Duration // whole-request timeout for uploads; 0 = none
}

// HTTPClients returns the metadata and transfer clients. The transfer
// client has no timeout unless one is configured, because uploads of large
// attachments legitimately run for minutes.
func HTTPClients(opts TransportOptions) (meta, transfer *http.Client) {
	return &http.Client{Timeout: opts.ConnectTimeout}, &http.Client{Timeout: opts.DataTimeout}
}

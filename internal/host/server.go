package host

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/seafile-filelink/internal/filelink"
	"github.com/tonimelisma/seafile-filelink/internal/seafile"
)

// DefaultMaxLineBytes bounds one request line. Attachments arrive base64
// encoded, so this is about 48 MiB of file data.
const DefaultMaxLineBytes = 64 << 20

// Service is what the host dispatches to. *filelink.Orchestrator
// implements it.
type Service interface {
	Upload(ctx context.Context, req filelink.UploadRequest) (*filelink.Result, error)
	Abort(fileID string) bool
	Delete(ctx context.Context, fileID string) bool
	DeleteAccount(accountID string) error
	TestConnection(ctx context.Context, req filelink.TestRequest) (*filelink.TestResult, error)
	SaveConfig(accountID string, s filelink.Settings) error
	LoadConfig(accountID string) (*filelink.Settings, error)
}

// Server reads requests, runs each in its own goroutine, and writes one
// response per request. Output lines never interleave.
type Server struct {
	svc    Service
	logger *slog.Logger

	// MaxLineBytes bounds one request line; 0 means DefaultMaxLineBytes.
	MaxLineBytes int

	mu  sync.Mutex
	enc *json.Encoder
}

// NewServer creates a Server dispatching to svc.
func NewServer(svc Service, logger *slog.Logger) *Server {
	if svc == nil {
		panic("host: NewServer requires a service")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Server{svc: svc, logger: logger}
}

// Serve handles requests from r until EOF or ctx is canceled, then waits for
// in-flight requests to finish. It returns the first read or write error.
// Canceling ctx cancels in-flight uploads.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	s.enc = json.NewEncoder(w)

	maxLine := s.MaxLineBytes
	if maxLine <= 0 {
		maxLine = DefaultMaxLineBytes
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, min(64*1024, maxLine)), maxLine)

	g, gctx := errgroup.WithContext(ctx)

	var readErr error

	for gctx.Err() == nil && scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			resp := Response{ID: uuid.NewString(), OK: false, Error: "malformed request: " + err.Error(), Code: filelink.CodeInvalidInput}
			if werr := s.write(resp); werr != nil {
				readErr = werr
				break
			}

			continue
		}

		if req.ID == "" {
			req.ID = uuid.NewString()
		}

		g.Go(func() error {
			return s.write(s.dispatch(gctx, &req))
		})
	}

	if readErr == nil {
		if err := scanner.Err(); err != nil {
			readErr = fmt.Errorf("reading requests: %w", err)
		}
	}

	waitErr := g.Wait()

	s.logger.Debug("host input closed")

	return errors.Join(readErr, waitErr)
}

func (s *Server) write(resp Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enc.Encode(resp); err != nil {
		return fmt.Errorf("writing response %s: %w", resp.ID, err)
	}

	return nil
}

func (s *Server) dispatch(ctx context.Context, req *Request) Response {
	logger := s.logger.With(slog.String("request_id", req.ID), slog.String("type", req.Type))
	logger.Debug("request received")

	result, err := s.handle(ctx, req)

	resp := Response{ID: req.ID, Type: req.Type, OK: err == nil, Result: result}
	if err != nil {
		resp.Error = err.Error()
		resp.Code = filelink.Code(err)
		resp.Result = nil

		logger.Debug("request failed", slog.String("code", resp.Code))
	}

	return resp
}

func (s *Server) handle(ctx context.Context, req *Request) (any, error) {
	switch req.Type {
	case TypeUpload:
		res, err := s.svc.Upload(ctx, filelink.UploadRequest{
			AccountID: req.AccountID,
			FileID:    req.FileID,
			FileName:  req.FileName,
			Data:      req.Data,
		})
		if err != nil {
			return nil, err
		}

		out := UploadResult{URL: res.URL, Name: res.StoredName, PasswordProtected: res.PasswordProtected}
		if !res.ExpiresAt.IsZero() {
			out.ExpiresAt = &res.ExpiresAt
		}

		return out, nil

	case TypeAbort:
		return AbortResult{Aborted: s.svc.Abort(req.FileID)}, nil

	case TypeDelete:
		return DeleteResult{Found: s.svc.Delete(ctx, req.FileID)}, nil

	case TypeAccountDeleted:
		// Cleanup is best-effort; the account is gone on the host side.
		if err := s.svc.DeleteAccount(req.AccountID); err != nil {
			s.logger.Warn("account cleanup incomplete", slog.String("account_id", req.AccountID))
		}

		return nil, nil

	case TypeTestConnection:
		return s.svc.TestConnection(ctx, filelink.TestRequest{
			ServerURL: req.ServerURL,
			Username:  req.Username,
			Password:  req.Password,
			OTPCode:   req.OTPCode,
		})

	case TypeSaveConfig:
		if req.Config == nil {
			return nil, fmt.Errorf("%w: config is missing", seafile.ErrInvalidInput)
		}

		return nil, s.svc.SaveConfig(req.AccountID, *req.Config)

	case TypeLoadConfig:
		return s.svc.LoadConfig(req.AccountID)

	default:
		return nil, fmt.Errorf("%w: unknown request type %q", seafile.ErrInvalidInput, req.Type)
	}
}

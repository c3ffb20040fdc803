package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"

	"github.com/go-playground/validator/v10"
	"golang.org/x/net/http2"

	"github.com/tartampluch/go-contactsync/internal/config"
	"github.com/tartampluch/go-contactsync/internal/contact"
)

// HTTPSource implements Source over the JSON connections API.
type HTTPSource struct {
	Client *http.Client

	base     *url.URL
	token    string
	validate *validator.Validate
}

// outOfSyncResponse is the payload of the out-of-sync listing.
type outOfSyncResponse struct {
	Connections []contact.ConnectionRef `json:"connections" validate:"dive"`
}

// NewHTTPSource validates baseURL and returns a client authenticating with
// the bearer token.
func NewHTTPSource(baseURL, token string) (*HTTPSource, error) {
	if baseURL == "" {
		return nil, errors.New(config.ErrAPIURLEmpty)
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrInvalidURL, err)
	}
	if u.Scheme != config.SchemeHTTP && u.Scheme != config.SchemeHTTPS {
		return nil, fmt.Errorf("%s: %s", config.ErrProtocol, u.Scheme)
	}

	return &HTTPSource{
		Client: &http.Client{
			Timeout:   config.HTTPTimeout,
			Transport: newTransport(),
		},
		base:     u,
		token:    token,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

// newTransport returns a transport that negotiates HTTP/2 over TLS.
func newTransport() *http.Transport {
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: config.KeepAlive,
		}).DialContext,
		MaxIdleConns:          config.MaxIdleConns,
		IdleConnTimeout:       config.ServerIdleTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ExpectContinueTimeout: config.ExpectContinueTimeout,
	}
	if err := http2.ConfigureTransport(t); err != nil {
		slog.Warn(config.MsgHTTP2Disabled,
			config.LogKeyComponent, config.CompRemote,
			config.LogKeyError, err)
	}
	return t
}

// ListOutOfSync implements Source.
func (s *HTTPSource) ListOutOfSync(ctx context.Context) ([]contact.ConnectionRef, error) {
	var resp outOfSyncResponse
	if err := s.do(ctx, http.MethodGet, s.base.JoinPath(config.RouteConnections, config.RouteOutOfSync), &resp); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return resp.Connections, nil
}

// FetchDetail implements Source.
func (s *HTTPSource) FetchDetail(ctx context.Context, connectionID string) (*contact.ConnectionDetail, error) {
	var detail contact.ConnectionDetail
	if err := s.do(ctx, http.MethodGet, s.base.JoinPath(config.RouteConnections, connectionID), &detail); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(detail); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if detail.ID != connectionID {
		return nil, fmt.Errorf("%w: %s: got %q, want %q", ErrInvalidPayload, config.ErrIDMismatch, detail.ID, connectionID)
	}
	return &detail, nil
}

// AcknowledgeSynced implements Source.
func (s *HTTPSource) AcknowledgeSynced(ctx context.Context, connectionID string) error {
	return s.do(ctx, http.MethodPost, s.base.JoinPath(config.RouteConnections, connectionID, config.RouteSynced), nil)
}

// do performs the request and decodes a JSON body into out when out is not nil.
func (s *HTTPSource) do(ctx context.Context, method string, target *url.URL, out any) error {
	// Query parameters may carry tokens; keep them out of logs.
	safeURL := target.Scheme + "://" + target.Host + target.Path
	log := slog.With(
		slog.String(config.LogKeyComponent, config.CompRemote),
		slog.String(config.LogKeyMethod, method),
		slog.String(config.LogKeyURL, safeURL),
	)

	req, err := http.NewRequestWithContext(ctx, method, target.String(), nil)
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrRequestBuild, err)
	}
	req.Header.Set(config.HeaderUserAgent, config.UserAgent)
	req.Header.Set(config.HeaderAccept, config.MimeJSON)
	if s.token != "" {
		req.Header.Set(config.HeaderAuthorization, config.BearerPrefix+s.token)
	}

	log.Debug(config.MsgRequestSent)
	resp, err := s.Client.Do(req)
	if err != nil {
		// Keep the context error reachable for callers checking deadlines.
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := statusError(resp.StatusCode); err != nil {
		log.Warn(config.MsgServerStatus, slog.Int(config.LogKeyStatus, resp.StatusCode))
		return fmt.Errorf("%w: %d %s", err, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, config.MaxHTTPResponseSize))
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, config.MaxHTTPResponseSize)).Decode(out); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return nil
}

// statusError maps an HTTP status to a Source error, or nil for 2xx.
func statusError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrUnauthorized
	default:
		return ErrNetwork
	}
}

// Package server exposes the last sync preview and a birthdays calendar of
// the reconciled connections over HTTP on localhost.
package server

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tartampluch/go-contactsync/internal/config"
	"github.com/tartampluch/go-contactsync/internal/contact"
)

// cacheItem stores a rendered document and its metadata for HTTP caching.
type cacheItem struct {
	data         []byte
	etag         string
	lastModified string // RFC1123 format required by HTTP headers
}

// PreviewServer serves the documents published by the last sync run.
type PreviewServer struct {
	// Both documents are read far more often than they are replaced, so
	// they sit behind atomic pointers instead of a lock.
	preview  atomic.Pointer[cacheItem]
	calendar atomic.Pointer[cacheItem]

	Port  string
	Clock Clock
}

// NewPreviewServer creates a new instance of the server.
func NewPreviewServer(port string) *PreviewServer {
	return &PreviewServer{
		Port:  port,
		Clock: RealClock{},
	}
}

// Handler returns the router serving both documents.
func (s *PreviewServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(config.HeaderAllow, config.AllowedMethods)
		http.Error(w, config.HTTPMsgMethodNotAll, http.StatusMethodNotAllowed)
	})
	for _, route := range []struct {
		path string
		slot *atomic.Pointer[cacheItem]
		mime string
	}{
		{config.RoutePreview, &s.preview, config.MimeJSON},
		{config.RouteBirthdays, &s.calendar, config.MimeTextCalendar},
	} {
		h := s.serveItem(route.slot, route.mime)
		r.Get(route.path, h)
		r.Head(route.path, h)
	}
	return r
}

// Start runs the HTTP server and blocks until the context is cancelled.
func (s *PreviewServer) Start(ctx context.Context) error {
	if s.Port == "" {
		return errors.New(config.ErrPortRequired)
	}

	srv := &http.Server{
		Addr:         config.LocalhostBindAddr + config.AddrSeparator + s.Port,
		Handler:      s.Handler(),
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	serverError := make(chan error, config.ChannelBufferSize)

	go func() {
		slog.Info(config.MsgServerListen,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyPort, s.Port,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverError <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info(config.MsgServerStop, config.LogKeyComponent, config.CompServer)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: %w", config.ErrServerShutdown, err)
		}
		return nil

	case err := <-serverError:
		return fmt.Errorf("%s: %w", config.ErrServerStartup, err)
	}
}

// Publish renders summary as the preview document and its birthdays as the
// calendar feed, replacing both atomically.
func (s *PreviewServer) Publish(summary *contact.BatchSummary) error {
	sorted := *summary
	sorted.Results = append([]contact.Result(nil), summary.Results...)
	sorted.SortByID()

	preview, err := json.Marshal(&sorted)
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrReportEncode, err)
	}
	ics, count, err := BuildBirthdayCalendar(sorted.Results, s.Clock.Now())
	if err != nil {
		return err
	}

	now := s.Clock.Now()
	s.preview.Store(newCacheItem(preview, now))
	s.calendar.Store(newCacheItem(ics, now))

	slog.Debug(config.MsgCacheUpdated,
		config.LogKeyComponent, config.CompServer,
		config.LogKeyResults, len(sorted.Results),
		config.LogKeyBirthdays, count,
	)
	return nil
}

func newCacheItem(data []byte, modified time.Time) *cacheItem {
	hash := sha256.Sum256(data)
	return &cacheItem{
		data:         data,
		etag:         fmt.Sprintf(config.FormatETag, hex.EncodeToString(hash[:])),
		lastModified: modified.UTC().Format(http.TimeFormat),
	}
}

// serveItem serves one cached document with HTTP caching support.
func (s *PreviewServer) serveItem(slot *atomic.Pointer[cacheItem], mime string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item := slot.Load()
		if item == nil {
			w.Header().Set(config.HeaderRetryAfter, config.RetryAfterSeconds)
			http.Error(w, config.HTTPMsgInitializing, http.StatusServiceUnavailable)
			return
		}

		w.Header().Set(config.HeaderContentType, mime)
		w.Header().Set(config.HeaderXContentType, config.MimeNoSniff)
		w.Header().Set(config.HeaderCacheControl, config.CacheControlPrivate)
		w.Header().Set(config.HeaderETag, item.etag)
		w.Header().Set(config.HeaderLastModified, item.lastModified)

		// If-Modified-Since only counts when no entity tag was sent.
		if match := r.Header.Get(config.HeaderIfNoneMatch); match != "" {
			if match == item.etag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		} else if since := r.Header.Get(config.HeaderIfModifiedSince); since != "" {
			if clientTime, err := time.Parse(http.TimeFormat, since); err == nil {
				if serverTime, err := time.Parse(http.TimeFormat, item.lastModified); err == nil {
					if !serverTime.After(clientTime) {
						w.WriteHeader(http.StatusNotModified)
						return
					}
				}
			}
		}

		if r.Method == http.MethodGet {
			if _, err := io.Copy(w, bytes.NewReader(item.data)); err != nil {
				slog.Error(config.ErrWriteResp,
					config.LogKeyComponent, config.CompServer,
					config.LogKeyError, err,
				)
			}
		}
	}
}

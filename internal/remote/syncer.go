// Package remote fetches the authoritative permit record from the
// configured JSON endpoint and reconciles it into the local store.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/visproj/permitsync/internal/permit"
	"github.com/visproj/permitsync/internal/store"
)

// maxBodyBytes bounds the response body read. Permit records are a few
// hundred bytes.
const maxBodyBytes = 64 * 1024

// ErrInvalidData indicates the response body did not parse as a valid
// permit record.
var ErrInvalidData = errors.New("remote: invalid permit data")

// HTTPError is a non-2xx response from the permit source.
type HTTPError struct {
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("remote: HTTP %d", e.Status)
}

// Syncer fetches and validates the remote permit. It never retries; retry
// policy belongs to the scheduler.
type Syncer struct {
	store  *store.Store
	client *http.Client
	now    func() time.Time
}

// NewSyncer creates a Syncer over the given store. The HTTP timeout is the
// transport's only deadline; callers may additionally bound Sync with ctx.
func NewSyncer(st *store.Store) *Syncer {
	return &Syncer{
		store:  st,
		client: &http.Client{Timeout: 30 * time.Second},
		now:    time.Now,
	}
}

// Sync fetches the configured URL and, on success, commits the permit as
// the new remote permit. isNew reports whether the permit number changed
// (or no prior remote permit existed). On any error the store is left
// untouched.
func (s *Syncer) Sync(ctx context.Context) (*permit.Permit, bool, error) {
	url, err := s.store.RemoteURL()
	if err != nil {
		return nil, false, err
	}

	slog.Debug("syncing permit", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("remote: build request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("remote: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, false, &HTTPError{Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, false, fmt.Errorf("remote: read body: %w", err)
	}

	fetched, err := permit.FromJSON(body)
	if err != nil || !fetched.IsValid() {
		return nil, false, ErrInvalidData
	}

	prior, err := s.store.RemotePermit()
	if err != nil {
		return nil, false, err
	}
	isNew := prior == nil || prior.PermitNumber != fetched.PermitNumber

	// A number change demotes the prior permit to previousPermit before it
	// is overwritten, preserving the price-delta baseline.
	if prior != nil && prior.PermitNumber != fetched.PermitNumber {
		if err := s.store.SetPreviousPermit(prior); err != nil {
			return nil, false, err
		}
	}

	if err := s.store.SetRemotePermit(fetched, s.now()); err != nil {
		return nil, false, err
	}

	slog.Info("permit synced", "permit", fetched.PermitNumber, "new", isNew)
	return fetched, isNew, nil
}

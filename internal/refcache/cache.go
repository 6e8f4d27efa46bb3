// Package refcache localizes external media references. Generation providers
// return URLs or data URIs; the cache downloads each one into the owning
// shot's media directory and rewrites the project document to point at the
// local file, deduplicating concurrent requests for the same reference so a
// burst of callers triggers exactly one download.
package refcache

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"montage/internal/config"
	"montage/internal/fileutil"
	"montage/internal/logging"
	"montage/internal/projectstore"
	"montage/internal/safefetch"
	"montage/internal/services"
)

// Downloader is the fetch surface the cache needs. *safefetch.Fetcher
// satisfies it; tests substitute a recording fake.
type Downloader interface {
	DownloadFile(ctx context.Context, rawURL, destPath string, opts safefetch.Options) (int64, string, error)
}

type flightKey struct {
	projectID string
	shotID    string
	ref       string
}

// flight is one in-progress localization. Followers wait on done and read
// name/err afterwards.
type flight struct {
	done chan struct{}
	name string
	err  error
}

// Cache deduplicates and executes reference localization.
type Cache struct {
	store   *projectstore.Store
	fetcher Downloader
	opts    safefetch.Options
	retry   safefetch.RetryPolicy
	logger  *slog.Logger

	mu      sync.Mutex
	flights map[flightKey]*flight
}

// New constructs a Cache using the configured fetch limits.
func New(store *projectstore.Store, fetcher Downloader, cfg config.Fetch, logger *slog.Logger) *Cache {
	return &Cache{
		store:   store,
		fetcher: fetcher,
		opts:    safefetch.OptionsFromConfig(cfg),
		retry:   safefetch.DefaultRetryPolicy(cfg.MaxAttempts),
		logger:  logging.NewComponentLogger(logger, "refcache"),
		flights: make(map[flightKey]*flight),
	}
}

// Localize downloads ref into the shot's media directory and rewrites every
// occurrence in the shot's media lists to the resulting local filename. It
// returns ("", nil) when there is nothing to do: the reference is already
// local, the project or shot no longer exists, or the reference has been
// superseded and no longer appears in the shot. Concurrent calls for the same
// (project, shot, reference) share one download.
func (c *Cache) Localize(ctx context.Context, projectID, shotID, ref string) (string, error) {
	if !IsExternal(ref) {
		return "", nil
	}

	key := flightKey{projectID: projectID, shotID: shotID, ref: ref}

	c.mu.Lock()
	if existing, ok := c.flights[key]; ok {
		c.mu.Unlock()
		select {
		case <-existing.done:
			return existing.name, existing.err
		case <-ctx.Done():
			return "", services.Wrap(services.ErrCancelled, "refcache", "localize", "awaiting shared download", ctx.Err())
		}
	}
	fl := &flight{done: make(chan struct{})}
	c.flights[key] = fl
	c.mu.Unlock()

	name, err := c.localize(ctx, projectID, shotID, ref)

	fl.name = name
	fl.err = err
	c.mu.Lock()
	delete(c.flights, key)
	c.mu.Unlock()
	close(fl.done)

	return name, err
}

func (c *Cache) localize(ctx context.Context, projectID, shotID, ref string) (string, error) {
	project, err := c.store.Read(ctx, projectID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	shot := project.FindShot(shotID)
	if shot == nil {
		return "", nil
	}
	if !shot.ContainsReference(ref) {
		return "", nil
	}

	// Video references live under the shot's video directory, everything
	// else under generated stills.
	isVideo := shot.VideoFile != nil && *shot.VideoFile == ref
	destDir, err := c.destinationDir(projectID, shotID, isVideo)
	if err != nil {
		return "", err
	}

	localName, destPath, err := c.download(ctx, ref, destDir)
	if err != nil {
		return "", services.Wrap(nil, "refcache", "localize", fmt.Sprintf("download %s", redactRef(ref)), err)
	}

	replaced := 0
	_, err = c.store.Mutate(ctx, projectID, func(p *projectstore.Project) error {
		s := p.FindShot(shotID)
		if s == nil {
			return nil
		}
		replaced = s.ReplaceReference(ref, localName)
		return nil
	})
	if err != nil {
		_ = fileutil.RemoveIfExists(destPath)
		if errors.Is(err, services.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	if replaced == 0 {
		// The shot changed underneath the download. Dropping the file avoids
		// orphaned media that no record points at.
		_ = fileutil.RemoveIfExists(destPath)
		return "", nil
	}

	c.logger.Info("localized external reference",
		logging.String(logging.FieldProjectID, projectID),
		logging.String(logging.FieldShotID, shotID),
		logging.String("filename", localName),
		logging.Int("occurrences", replaced))
	return localName, nil
}

func (c *Cache) destinationDir(projectID, shotID string, video bool) (string, error) {
	if video {
		return c.store.ShotVideoDir(projectID, shotID)
	}
	return c.store.ShotMediaDir(projectID, shotID)
}

func (c *Cache) download(ctx context.Context, ref, destDir string) (string, string, error) {
	if strings.HasPrefix(ref, "data:") {
		return c.writeDataURI(ref, destDir)
	}

	localName := newLocalName(inferExtension(ref, ""))
	destPath := filepath.Join(destDir, localName)
	// DownloadFile stages into a temp file and renames, so a retried attempt
	// never observes a partial download at destPath.
	err := safefetch.Do(ctx, c.retry, func(ctx context.Context) error {
		_, _, err := c.fetcher.DownloadFile(ctx, ref, destPath, c.opts)
		return err
	})
	if err != nil {
		return "", "", err
	}
	return localName, destPath, nil
}

// writeDataURI decodes an inline data: reference to disk. The configured byte
// cap applies to the decoded payload just as it does to network transfers.
func (c *Cache) writeDataURI(ref, destDir string) (string, string, error) {
	payload, mediaType, err := decodeDataURI(ref, c.opts.MaxBytes)
	if err != nil {
		return "", "", err
	}
	localName := newLocalName(inferExtension(ref, mediaType))
	destPath := filepath.Join(destDir, localName)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create media directory: %w", err)
	}
	if err := fileutil.WriteFileAtomic(destPath, payload, 0o644); err != nil {
		return "", "", fmt.Errorf("write decoded payload: %w", err)
	}
	return localName, destPath, nil
}

func decodeDataURI(ref string, maxBytes int64) ([]byte, string, error) {
	rest := strings.TrimPrefix(ref, "data:")
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return nil, "", fmt.Errorf("%w: data uri missing payload separator", safefetch.ErrInvalidURL)
	}
	meta, encoded := rest[:comma], rest[comma+1:]

	var payload []byte
	if strings.HasSuffix(meta, ";base64") {
		if maxBytes > 0 && int64(base64.StdEncoding.DecodedLen(len(encoded))) > maxBytes {
			return nil, "", fmt.Errorf("%w: data uri payload exceeds cap %d", safefetch.ErrSizeLimitExceeded, maxBytes)
		}
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("%w: data uri base64 payload: %v", safefetch.ErrInvalidURL, err)
		}
		payload = decoded
	} else {
		decoded, err := url.QueryUnescape(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("%w: data uri payload: %v", safefetch.ErrInvalidURL, err)
		}
		payload = []byte(decoded)
	}
	if maxBytes > 0 && int64(len(payload)) > maxBytes {
		return nil, "", fmt.Errorf("%w: data uri payload of %d bytes exceeds cap %d", safefetch.ErrSizeLimitExceeded, len(payload), maxBytes)
	}
	return payload, dataURIMediaType(ref), nil
}

// redactRef keeps log lines and error messages readable when the reference is
// a multi-megabyte data uri.
func redactRef(ref string) string {
	if strings.HasPrefix(ref, "data:") {
		return dataURIMediaType(ref) + " data uri"
	}
	if len(ref) > 120 {
		return ref[:120] + "..."
	}
	return ref
}

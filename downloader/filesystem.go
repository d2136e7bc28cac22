package downloader

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Caches downloaded bodies in a JSON file on disk, so repeated CLI
// runs don't refetch the static feed. The lock is held only while
// the cache is read or written; downloads run concurrently.
type Filesystem struct {
	Path    string
	Logger  *slog.Logger
	TimeNow func() time.Time

	mutex   sync.Mutex
	records map[string]cacheEntry
}

type cacheEntry struct {
	Body        []byte    `json:"body"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

func NewFilesystem(path string) (*Filesystem, error) {
	f := &Filesystem{
		Path:    path,
		Logger:  slog.Default(),
		TimeNow: time.Now,
		records: map[string]cacheEntry{},
	}

	buf, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache: %w", err)
	}
	if err := json.Unmarshal(buf, &f.records); err != nil {
		return nil, fmt.Errorf("parsing cache: %w", err)
	}

	return f, nil
}

func (f *Filesystem) Get(
	ctx context.Context,
	url string,
	headers map[string]string,
	options GetOptions,
) ([]byte, error) {
	if options.Cache {
		if body, ok := f.cached(url, options.CacheTTL); ok {
			return body, nil
		}
	}

	body, err := HTTPGet(ctx, url, headers, options)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}

	if options.Cache {
		if err := f.store(url, body); err != nil {
			return nil, err
		}
	}

	return body, nil
}

func (f *Filesystem) cached(url string, ttl time.Duration) ([]byte, bool) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	entry, found := f.records[url]
	if !found {
		return nil, false
	}
	if !entry.RetrievedAt.Add(ttl).After(f.TimeNow()) {
		f.Logger.Debug("cache expired", slog.String("url", url))
		return nil, false
	}

	f.Logger.Debug("cache hit", slog.String("url", url))
	return entry.Body, true
}

// Records body and rewrites the cache file.
func (f *Filesystem) store(url string, body []byte) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.records[url] = cacheEntry{Body: body, RetrievedAt: f.TimeNow().UTC()}

	buf, err := json.Marshal(f.records)
	if err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}
	if err := os.WriteFile(f.Path, buf, 0644); err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	return nil
}

package downloader

import (
	"context"
	"errors"

	"github.com/bluele/gcache"
)

// Entries kept by NewMemoryDownloader.
const DefaultMemoryEntries = 64

// Caches downloaded files in memory. Entries expire after the
// CacheTTL they were fetched with; beyond the size limit the least
// recently used URL goes first.
type MemoryDownloader struct {
	cache gcache.Cache
}

func NewMemoryDownloader() *MemoryDownloader {
	return NewMemoryDownloaderWithClock(DefaultMemoryEntries, gcache.NewRealClock())
}

func NewMemoryDownloaderWithClock(size int, clock gcache.Clock) *MemoryDownloader {
	return &MemoryDownloader{
		cache: gcache.New(size).LRU().Clock(clock).Build(),
	}
}

func (d *MemoryDownloader) Get(
	ctx context.Context,
	url string,
	headers map[string]string,
	options GetOptions,
) ([]byte, error) {
	if options.Cache {
		cached, err := d.cache.Get(url)
		if err == nil {
			return cached.([]byte), nil
		}
		if !errors.Is(err, gcache.KeyNotFoundError) {
			return nil, err
		}
	}

	body, err := HTTPGet(ctx, url, headers, options)
	if err != nil {
		return nil, err
	}

	if options.Cache {
		if err := d.cache.SetWithExpire(url, body, options.CacheTTL); err != nil {
			return nil, err
		}
	}

	return body, nil
}

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/variomes/internal/config"
	verrors "github.com/Aman-CERP/variomes/internal/errors"
)

// Options configures a Store.
type Options struct {
	// MemoryEntries bounds the in-memory front. Zero disables it.
	MemoryEntries int
	// ReadAttempts and ReadDelay control the retry on unreadable files.
	ReadAttempts int
	ReadDelay    time.Duration
}

// OptionsFromConfig maps the cache section of the configuration.
func OptionsFromConfig(c config.CacheConfig) Options {
	return Options{
		MemoryEntries: c.MemoryEntries,
		ReadAttempts:  c.ReadAttempts,
		ReadDelay:     c.ReadDelay,
	}
}

type memEntry struct {
	data  []byte
	mtime time.Time
}

// Store is a file cache rooted at one directory. It is safe for concurrent use.
type Store struct {
	root  string
	mem   *lru.Cache[string, memEntry]
	retry verrors.RetryConfig
	now   func() time.Time
}

// New creates a Store rooted at root.
func New(root string, opts Options) *Store {
	s := &Store{
		root:  root,
		retry: verrors.FixedRetryConfig(opts.ReadAttempts, opts.ReadDelay),
		now:   time.Now,
	}
	if opts.MemoryEntries > 0 {
		s.mem, _ = lru.New[string, memEntry](opts.MemoryEntries)
	}
	return s
}

// Root returns the cache directory.
func (s *Store) Root() string {
	return s.root
}

// Service returns a handle on one cached service, resolved against the
// request settings. The synvar service ignores the request's cache flag.
func (s *Store) Service(settings config.Settings, name, ext string) *Service {
	svc := settings.CacheService(name)
	return &Service{
		store:   s,
		name:    name,
		ext:     ext,
		enabled: svc.Enabled && (settings.User.UseCache || name == config.ServiceSynVar),
		ttl:     svc.TTL(),
	}
}

// Service is a cache view for one service and file extension.
type Service struct {
	store   *Store
	name    string
	ext     string
	enabled bool
	ttl     time.Duration
}

// Name returns the service name.
func (c *Service) Name() string {
	return c.name
}

// Enabled reports whether the service may read and write the cache.
func (c *Service) Enabled() bool {
	return c.enabled
}

// Path returns the cache file for query.
func (c *Service) Path(query string) string {
	return filepath.Join(c.store.root, c.name, FileKey(query)+"."+c.ext)
}

// Fresh reports whether a usable entry exists for query. With ttl set,
// the entry must also be younger than the service TTL.
func (c *Service) Fresh(query string, ttl bool) bool {
	if !c.enabled {
		return false
	}
	path := c.Path(query)

	var mtime time.Time
	if e, ok := c.memGet(path); ok {
		mtime = e.mtime
	} else {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			return false
		}
		mtime = info.ModTime()
	}

	if !ttl {
		return true
	}
	return c.store.now().Sub(mtime) < c.ttl
}

// Load reads the entry for query, retrying while the file is unreadable.
// A final failure is reported as a warning and returns nil.
func (c *Service) Load(ctx context.Context, query string) ([]byte, verrors.Reports) {
	path := c.Path(query)
	if e, ok := c.memGet(path); ok {
		return e.data, nil
	}

	var reports verrors.Reports
	data, err := verrors.RetryWithResult(ctx, c.store.retry, func() ([]byte, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if c.ext == "json" && !json.Valid(data) {
			return nil, fmt.Errorf("incomplete json in %s", path)
		}
		return data, nil
	})
	if err != nil {
		slog.Warn("cache_load_failed", slog.String("service", c.name), slog.String("path", path), slog.String("error", err.Error()))
		reports.Warn("cache", "Cache file loading failed", path)
		return nil, reports
	}

	if info, err := os.Stat(path); err == nil {
		c.memAdd(path, memEntry{data: data, mtime: info.ModTime()})
	}
	slog.Debug("cache_hit", slog.String("service", c.name), slog.String("path", path))
	return data, nil
}

// Get returns the entry for query when it is fresh.
func (c *Service) Get(ctx context.Context, query string, ttl bool) ([]byte, bool, verrors.Reports) {
	if !c.Fresh(query, ttl) {
		return nil, false, nil
	}
	data, reports := c.Load(ctx, query)
	return data, data != nil, reports
}

// Put stores data for query when the service is enabled. Writes go through
// a temporary file and a rename so readers never see a partial entry.
func (c *Service) Put(query string, data []byte) verrors.Reports {
	if !c.enabled {
		return nil
	}
	path := c.Path(query)
	if err := writeAtomic(path, data); err != nil {
		slog.Warn("cache_store_failed", slog.String("service", c.name), slog.String("path", path), slog.String("error", err.Error()))
		var reports verrors.Reports
		reports.Warn("cache", "Cache file writing failed", path)
		return reports
	}
	c.memAdd(path, memEntry{data: data, mtime: c.store.now()})
	return nil
}

func (c *Service) memGet(path string) (memEntry, bool) {
	if c.store.mem == nil {
		return memEntry{}, false
	}
	return c.store.mem.Get(path)
}

func (c *Service) memAdd(path string, e memEntry) {
	if c.store.mem != nil {
		c.store.mem.Add(path, e)
	}
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

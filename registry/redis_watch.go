package registry

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/sorhq/sor/core"
)

// RedisBackedLoader layers a shared-version check on top of a Loader's own
// mtime polling: a deployment fleet writes the current registry_version to
// one Redis key whenever it publishes a new registry, and every replica's
// RedisBackedLoader notices the change and forces a full reload rather than
// waiting on its own filesystem's mtimes (which a shared registry volume
// may not even expose consistently across replicas).
type RedisBackedLoader struct {
	Loader *Loader
	Client *redis.Client
	Key    string
	Logger core.Logger

	lastVersion string
}

// NewRedisBackedLoader wraps loader with a shared-version check against key.
func NewRedisBackedLoader(loader *Loader, client *redis.Client, key string, logger core.Logger) *RedisBackedLoader {
	if logger == nil {
		logger = core.NoopLogger{}
	}
	if key == "" {
		key = "sor:registry:version"
	}
	return &RedisBackedLoader{Loader: loader, Client: client, Key: key, Logger: logger}
}

// Current returns the live snapshot, forcing a reload if the shared Redis
// version key has moved since the last check, then falling through to the
// wrapped Loader's own mtime-based check.
func (w *RedisBackedLoader) Current() (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	version, err := w.Client.Get(ctx, w.Key).Result()
	if err != nil && err != redis.Nil {
		w.Logger.Warn("redis registry version check failed, falling back to local polling", map[string]interface{}{"error": err.Error()})
		return w.Loader.Current()
	}
	if err == nil && version != w.lastVersion {
		w.Logger.Info("shared registry version changed, forcing reload", map[string]interface{}{"from": w.lastVersion, "to": version})
		w.lastVersion = version
		return w.Loader.Load()
	}
	return w.Loader.Current()
}

// PublishVersion writes the registry_version a successful Load() produced
// so other replicas' RedisBackedLoader instances notice the change.
func (w *RedisBackedLoader) PublishVersion(version string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return w.Client.Set(ctx, w.Key, version, 0).Err()
}

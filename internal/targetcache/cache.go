// Package targetcache provides a Redis read-through cache over the theater
// target catalog. The catalog changes rarely (it is rebuilt by an external
// maintenance collaborator) but is read at the start of every run, so a short
// TTL keeps scheduler ticks off the database. With no Redis client the cache
// is a plain pass-through to the repository.
package targetcache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cinewatch/showtime-engine/internal/model"
	"github.com/cinewatch/showtime-engine/internal/repository"
)

const defaultTTL = 5 * time.Minute

// Cache is safe for concurrent use: reads are shared across all scrape jobs
// and the only mutation path (MarkScraped) is called by the orchestrator with
// writes scoped to a single target row.
type Cache struct {
	repo *repository.TargetRepo
	rdb  *redis.Client // nil disables caching
	ttl  time.Duration
}

// New constructs a Cache. rdb may be nil, in which case every read goes to
// the repository.
func New(repo *repository.TargetRepo, rdb *redis.Client) *Cache {
	return &Cache{repo: repo, rdb: rdb, ttl: defaultTTL}
}

func tenantKey(tenantID uint64) string {
	return fmt.Sprintf("targets:%d", tenantID)
}

// ListTargets returns the tenant's theater targets, from Redis when a fresh
// copy exists, otherwise from the database (repopulating Redis on the way
// out). Redis errors degrade to a direct read; they never fail the caller.
func (c *Cache) ListTargets(ctx context.Context, tenantID uint64) ([]model.TheaterTarget, error) {
	if c.rdb != nil {
		raw, err := c.rdb.Get(ctx, tenantKey(tenantID)).Bytes()
		if err == nil {
			var targets []model.TheaterTarget
			if jsonErr := json.Unmarshal(raw, &targets); jsonErr == nil {
				return targets, nil
			}
			// Corrupt entry: fall through to the DB and overwrite it.
		} else if err != redis.Nil {
			log.Printf("targetcache: redis get failed: %v", err)
		}
	}

	targets, err := c.repo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if c.rdb != nil {
		if raw, err := json.Marshal(targets); err == nil {
			if err := c.rdb.Set(ctx, tenantKey(tenantID), raw, c.ttl).Err(); err != nil {
				log.Printf("targetcache: redis set failed: %v", err)
			}
		}
	}
	return targets, nil
}

// MarkScraped records last-scrape bookkeeping for one target and invalidates
// the tenant's cached list so the next run sees fresh timestamps.
func (c *Cache) MarkScraped(ctx context.Context, target model.TheaterTarget, at time.Time, status string) error {
	if err := c.repo.MarkScraped(ctx, target.ID, at, status); err != nil {
		return err
	}
	if c.rdb != nil {
		if err := c.rdb.Del(ctx, tenantKey(target.TenantID)).Err(); err != nil {
			log.Printf("targetcache: redis del failed: %v", err)
		}
	}
	return nil
}

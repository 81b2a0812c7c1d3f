package compsize

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/zhengshuai-xiao/compsize/internal"
)

// RedisExtentSet keeps the set in a Redis SET under a key private to the
// run, so very large trees do not need the ids in process memory. SADD is
// atomic on the server, which gives Insert its exactly-once guarantee even
// across processes sharing the key.
type RedisExtentSet struct {
	rdb    redis.UniversalClient
	key    string
	ttl    time.Duration
	ttlSet atomic.Bool
}

func redisExtentKey(runID string) string {
	return fmt.Sprintf("compsize:%s:extents", runID)
}

// NewRedisExtentSet connects to addr, which is either host:port[/db] or a
// redis:// URL. Several comma separated hosts select cluster mode, a leading
// master name selects sentinel mode.
func NewRedisExtentSet(ctx context.Context, addr, runID string, ttl time.Duration) (*RedisExtentSet, error) {
	rdb, err := newUniversalRedisClient(ctx, addr)
	if err != nil {
		return nil, err
	}
	return &RedisExtentSet{rdb: rdb, key: redisExtentKey(runID), ttl: ttl}, nil
}

func newUniversalRedisClient(ctx context.Context, addr string) (redis.UniversalClient, error) {
	uri := addr
	if !strings.Contains(uri, "://") {
		uri = "redis://" + addr
	}
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid redis address %s: %w", internal.RemovePassword(addr), err)
	}

	opts := &redis.UniversalOptions{
		Addrs:      strings.Split(u.Host, ","),
		MaxRetries: -1,
		PoolSize:   32,
	}
	if u.User != nil {
		opts.Username = u.User.Username()
		opts.Password, _ = u.User.Password()
	}
	if opts.Password == "" {
		opts.Password = os.Getenv("REDIS_PASSWORD")
	}
	if db := strings.Trim(u.Path, "/"); db != "" {
		if opts.DB, err = strconv.Atoi(db); err != nil {
			return nil, fmt.Errorf("invalid redis db %q: %w", db, err)
		}
	}

	hosts := opts.Addrs
	if len(hosts) > 1 && !strings.Contains(hosts[0], ":") {
		opts.MasterName = hosts[0]
		opts.Addrs = hosts[1:]
		logger.Infof("Connecting to Redis in Sentinel mode. Master: %s, Sentinels: %v", opts.MasterName, opts.Addrs)
	} else if len(hosts) > 1 {
		logger.Infof("Connecting to Redis in Cluster mode. Nodes: %v", opts.Addrs)
	} else {
		logger.Infof("Connecting to Redis in Single-node mode. Address: %s", internal.RemovePassword(addr))
	}

	rdb := redis.NewUniversalClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", internal.RemovePassword(addr), err)
	}
	return rdb, nil
}

func (r *RedisExtentSet) Insert(ctx context.Context, id uint64) (bool, error) {
	n, err := r.rdb.SAdd(ctx, r.key, id).Result()
	if err != nil {
		return false, fmt.Errorf("redis SADD %s: %w", r.key, err)
	}
	// retried on the next Insert until one EXPIRE succeeds
	if r.ttl > 0 && !r.ttlSet.Load() {
		if err := r.rdb.Expire(ctx, r.key, r.ttl).Err(); err != nil {
			return false, fmt.Errorf("redis EXPIRE %s: %w", r.key, err)
		}
		r.ttlSet.Store(true)
	}
	return n == 1, nil
}

func (r *RedisExtentSet) Len(ctx context.Context) (uint64, error) {
	n, err := r.rdb.SCard(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis SCARD %s: %w", r.key, err)
	}
	return uint64(n), nil
}

// Close drops the run's key and the connection pool.
func (r *RedisExtentSet) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	delErr := r.rdb.Del(ctx, r.key).Err()
	if err := r.rdb.Close(); err != nil {
		return err
	}
	if delErr != nil {
		return fmt.Errorf("redis DEL %s: %w", r.key, delErr)
	}
	return nil
}

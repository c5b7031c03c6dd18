package countstore

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisCountPrefix string = "modbot/count/"
var redisDistinctPrefix string = "modbot/distinct/"

type RedisCountStore struct {
	Client *redis.Client
}

var _ CountStore = (*RedisCountStore)(nil)

func NewRedisCountStore(redisURL string) (*RedisCountStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	return &RedisCountStore{
		Client: rdb,
	}, nil
}

func (s *RedisCountStore) GetCount(ctx context.Context, groupID int64, counter, period string) (int, error) {
	key := redisCountPrefix + periodBucket(groupID, counter, period, time.Now())
	c, err := s.Client.Get(ctx, key).Int()
	if err == redis.Nil {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return c, nil
}

func (s *RedisCountStore) Increment(ctx context.Context, groupID int64, counter string) error {
	// both counters in a single redis round-trip
	multi := s.Client.Pipeline()

	key := redisCountPrefix + periodBucket(groupID, counter, PeriodDay, time.Now())
	multi.Incr(ctx, key)
	multi.Expire(ctx, key, 48*time.Hour)

	key = redisCountPrefix + periodBucket(groupID, counter, PeriodTotal, time.Now())
	multi.Incr(ctx, key)

	_, err := multi.Exec(ctx)
	return err
}

func (s *RedisCountStore) GetCountDistinct(ctx context.Context, groupID int64, counter, period string) (int, error) {
	key := redisDistinctPrefix + periodBucket(groupID, counter, period, time.Now())
	c, err := s.Client.PFCount(ctx, key).Result()
	if err == redis.Nil {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return int(c), nil
}

func (s *RedisCountStore) IncrementDistinct(ctx context.Context, groupID int64, counter string, senderID int64) error {
	val := strconv.FormatInt(senderID, 10)
	multi := s.Client.Pipeline()

	key := redisDistinctPrefix + periodBucket(groupID, counter, PeriodDay, time.Now())
	multi.PFAdd(ctx, key, val)
	multi.Expire(ctx, key, 48*time.Hour)

	key = redisDistinctPrefix + periodBucket(groupID, counter, PeriodTotal, time.Now())
	multi.PFAdd(ctx, key, val)

	_, err := multi.Exec(ctx)
	return err
}

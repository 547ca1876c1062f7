package base

import (
	"time"

	"github.com/go-redis/redis"
)

type Redis struct {
	client     *redis.Client
	expiration time.Duration
}

func (r *Redis) Get(key string) (string, error) {
	v, err := r.client.Get(key).Result()
	if err == redis.Nil {
		return "", ErrNotCached
	}
	return v, err
}

func (r *Redis) Set(key, value string) error {
	return r.client.Set(key, value, r.expiration).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func NewRedis(address, password string, expiration time.Duration) (*Redis, error) {
	c := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       0,
	})
	if err := c.Ping().Err(); err != nil {
		c.Close()
		return nil, err
	}
	return &Redis{client: c, expiration: expiration}, nil
}

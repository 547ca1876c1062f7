package base

import (
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

type Memcache struct {
	client     *memcache.Client
	expiration time.Duration
}

func (m *Memcache) Get(key string) (string, error) {
	item, err := m.client.Get(key)
	if err == memcache.ErrCacheMiss {
		return "", ErrNotCached
	}
	if err != nil {
		return "", err
	}

	return string(item.Value), nil
}

func (m *Memcache) Set(key, value string) error {
	return m.client.Set(&memcache.Item{
		Key:        key,
		Value:      []byte(value),
		Expiration: int32(m.expiration / time.Second),
	})
}

func NewMemcache(servers []string, expiration time.Duration) (*Memcache, error) {
	return &Memcache{client: memcache.New(servers...), expiration: expiration}, nil
}

package base

import (
	"github.com/go-errors/errors"
)

// ErrNotCached is returned by Get when the key is absent.
var ErrNotCached = errors.New("key is not cached")

type Cashe interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

func reportKey(id string) string {
	return "crash:" + id
}

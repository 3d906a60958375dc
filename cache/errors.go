package cache

import (
	"github.com/cockroachdb/errors"
)

// Error kinds. Failures are marked with one of these while keeping the
// original error's message and chain, so both
// errors.Is(err, ErrStoreFailure) and errors.Is(err, cause) hold.
var (
	ErrAccessorFailure = errors.New("cache: accessor failed")
	ErrStoreFailure    = errors.New("cache: store operation failed")
	ErrDecodeFailure   = errors.New("cache: failed to decode stored value")
	ErrEncodeFailure   = errors.New("cache: failed to encode value")
	ErrNotFound        = errors.New("cache: entry not found")
	ErrInvalidKey      = errors.New("cache: effective key is empty")
	ErrInvalidPolicy   = errors.New("cache: staleness policy is required")
	ErrNilAccessor     = errors.New("cache: accessor is required")
	ErrNilKeyFunc      = errors.New("cache: key function is required")
)

func markAccessor(err error) error {
	return errors.Mark(err, ErrAccessorFailure)
}

func markStore(err error) error {
	return errors.Mark(err, ErrStoreFailure)
}

func markDecode(err error, key string) error {
	return errors.Mark(errors.Wrapf(err, "cache: decode %q", key), ErrDecodeFailure)
}

func markEncode(err error, key string) error {
	return errors.Mark(errors.Wrapf(err, "cache: encode %q", key), ErrEncodeFailure)
}

func notFound(key string) error {
	return errors.Wrapf(ErrNotFound, "key %q", key)
}

package rcexpires

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestExpiryProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("no timestamp never expires", prop.ForAll(
		func(ttl, defaultTTL, now int64) bool {
			return !IsExpiredAt(0, ttl, defaultTTL, now)
		},
		gen.Int64Range(0, 1<<32),
		gen.Int64Range(0, 1<<32),
		gen.Int64Range(0, 1<<40),
	))

	properties.Property("own ttl expires exactly at timestamp+ttl", prop.ForAll(
		func(timestamp, ttl, defaultTTL, now int64) bool {
			return IsExpiredAt(timestamp, ttl, defaultTTL, now) == (now >= timestamp+ttl)
		},
		gen.Int64Range(1, 1<<32),
		gen.Int64Range(1, 1<<32),
		gen.Int64Range(0, 1<<32),
		gen.Int64Range(0, 1<<40),
	))

	properties.Property("default ttl applies when own ttl is absent", prop.ForAll(
		func(timestamp, defaultTTL, now int64) bool {
			return IsExpiredAt(timestamp, 0, defaultTTL, now) == (now >= timestamp+defaultTTL)
		},
		gen.Int64Range(1, 1<<32),
		gen.Int64Range(1, 1<<32),
		gen.Int64Range(0, 1<<40),
	))

	properties.Property("no ttl and no default never expires", prop.ForAll(
		func(timestamp, now int64) bool {
			return !IsExpiredAt(timestamp, 0, 0, now)
		},
		gen.Int64Range(1, 1<<32),
		gen.Int64Range(0, 1<<40),
	))

	properties.Property("expiry is monotonic in now", prop.ForAll(
		func(timestamp, ttl, defaultTTL, now, later int64) bool {
			if later < now {
				now, later = later, now
			}
			if IsExpiredAt(timestamp, ttl, defaultTTL, now) {
				return IsExpiredAt(timestamp, ttl, defaultTTL, later)
			}
			return true
		},
		gen.Int64Range(1, 1<<32),
		gen.Int64Range(0, 1<<32),
		gen.Int64Range(0, 1<<32),
		gen.Int64Range(0, 1<<40),
		gen.Int64Range(0, 1<<40),
	))

	properties.TestingRun(t)
}

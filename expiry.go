package rcexpires

// IsExpiredAt reports whether a record with the given timestamp and ttl is
// expired at now, falling back to defaultTTL when the record carries no ttl
// of its own. All values are whole seconds; zero means absent.
//
// A record with no timestamp never expires. A record with no ttl and no
// default never expires. The boundary is closed: reaching timestamp+ttl
// counts as expired, since second resolution would otherwise leave a
// one-second window of staleness.
func IsExpiredAt(timestamp, ttl, defaultTTL, now int64) bool {
	at := ExpiresAt(timestamp, ttl, defaultTTL)
	if at == 0 {
		return false
	}
	return at <= now
}

// ExpiresAt returns the instant a record expires, or 0 if it never does.
func ExpiresAt(timestamp, ttl, defaultTTL int64) int64 {
	if timestamp == 0 {
		return 0
	}
	effective := ttl
	if effective == 0 {
		effective = defaultTTL
	}
	if effective == 0 {
		return 0
	}
	return timestamp + effective
}

package rcexpires

import "errors"

// CleanExpired runs one sweep invocation: scan a page of the expiry index,
// delete the expired entries, and keep going while a page turns up more
// than ContinueThreshold expired records. It returns the number of records
// deleted.
//
// Per-record ErrNotFound and ErrConflict outcomes are logged and skipped;
// they never abort the batch. A failed page fetch or config read stops the
// invocation with whatever count was reached, leaving retry policy to the
// scheduler that drives this method.
func (e *Engine) CleanExpired() (int, error) {
	deleted := 0
	for {
		// Default TTL is read fresh every pass so config changes apply
		// mid-backlog.
		defaultTTL, err := e.store.DefaultTTL()
		if err != nil {
			return deleted, err
		}
		now := e.now()

		entries, err := e.store.ScanPage(e.opts.PageSize)
		if err != nil {
			return deleted, err
		}

		expired := make([]string, 0, len(entries))
		for _, entry := range entries {
			if IsExpiredAt(entry.Timestamp, entry.TTL, defaultTTL, now) {
				expired = append(expired, entry.ID)
			}
		}

		for _, id := range expired {
			switch err := e.DeleteIfLive(id); {
			case err == nil:
				deleted++
			case errors.Is(err, ErrNotFound):
				// Already gone, likely an active read beat us to it.
			case errors.Is(err, ErrConflict):
				e.opts.Logger.Warn().Str("id", id).Msg("expired record kept changing, skipped")
			default:
				e.opts.Logger.Error().Err(err).Str("id", id).Msg("delete of expired record failed")
			}
		}

		e.opts.Logger.Debug().
			Int("scanned", len(entries)).
			Int("expired", len(expired)).
			Msg("sweep pass")

		// A page mostly full of expired entries suggests more are waiting
		// behind it; run another pass now instead of next tick.
		if len(expired) <= e.opts.ContinueThreshold {
			return deleted, nil
		}
	}
}

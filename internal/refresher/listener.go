package refresher

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const notifyDebounce = 200 * time.Millisecond

// ListenAndRefresh triggers a refresh whenever a notification arrives on the
// Postgres channel, so publishers can push catalog changes without waiting
// for the next poll. A lost connection is replaced after a jittered backoff
// and LISTEN is issued again. It returns when ctx is done.
func ListenAndRefresh(ctx context.Context, pool *pgxpool.Pool, channel string, r *Refresher, baseBackoff time.Duration) {
	for {
		err := listen(ctx, pool, channel, r)
		if ctx.Err() != nil {
			log.Info().Msg("listener stopped")
			return
		}

		backoff := jitter(baseBackoff)
		log.Error().Err(err).Str("channel", channel).Dur("retry_in", backoff).Msg("listen connection lost")
		select {
		case <-ctx.Done():
			log.Info().Msg("listener stopped")
			return
		case <-time.After(backoff):
		}
	}
}

// listen holds one pooled connection until it fails or ctx is done. The
// connection goes back to the pool on return; the pool drops it if closed.
func listen(ctx context.Context, pool *pgxpool.Pool, channel string, r *Refresher) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn for listen: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	log.Info().Str("channel", channel).Msg("listening for catalog changes")

	var lastRefresh time.Time
	for {
		ntf, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		if time.Since(lastRefresh) < notifyDebounce {
			continue // debounce burst of notifications
		}
		lastRefresh = time.Now()
		log.Info().Str("channel", ntf.Channel).Msg("catalog change notified; refreshing")
		if _, err := r.Refresh(ctx); err != nil {
			log.Error().Err(err).Msg("refresh after notify")
		}
	}
}

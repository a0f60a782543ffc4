package checkout

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisIntentLogger appends intents to a capped Redis list without blocking
// the caller.
type RedisIntentLogger struct {
	Client  *redis.Client
	Key     string
	MaxLen  int64
	Timeout time.Duration
	Logger  zerolog.Logger
}

// LogIntent implements IntentLogger.
func (l RedisIntentLogger) LogIntent(in Intent) error {
	if l.Client == nil {
		return nil
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	go l.push(payload)
	return nil
}

func (l RedisIntentLogger) push(payload []byte) {
	key := l.key()
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	pipe := l.Client.TxPipeline()
	pipe.LPush(ctx, key, payload)
	if l.MaxLen > 0 {
		pipe.LTrim(ctx, key, 0, l.MaxLen-1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		l.Logger.Debug().Err(err).Str("key", key).Msg("intent log push failed")
	}
}

// Recent returns up to limit of the newest logged intents.
func (l RedisIntentLogger) Recent(ctx context.Context, limit int64) ([]Intent, error) {
	if l.Client == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	raws, err := l.Client.LRange(ctx, l.key(), 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Intent, 0, len(raws))
	for _, raw := range raws {
		var in Intent
		if err := json.Unmarshal([]byte(raw), &in); err != nil {
			continue
		}
		out = append(out, in)
	}
	return out, nil
}

func (l RedisIntentLogger) key() string {
	if l.Key == "" {
		return "storefront:intents"
	}
	return l.Key
}

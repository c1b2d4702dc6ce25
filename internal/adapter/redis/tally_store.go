package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/tallyd/internal/domain"
	"github.com/pscheid92/tallyd/pkg/tally"
)

// tallyKeyTTL bounds how long tally keys survive without writes. Every
// observe refreshes it, so only streams that stop ingesting expire.
const tallyKeyTTL = 24 * time.Hour

// observeScript atomically increments the count of every value and, for
// values not seen before, assigns the next first-seen sequence number in
// the order zset. Keeping the sequence assignment atomic is what makes the
// tie-break deterministic when several instances ingest concurrently.
// The TTL refresh rides in the same script so keys of a partially written
// stream can never outlive each other.
// KEYS: [1]=counts hash, [2]=order zset, [3]=sequence counter
// ARGV: [1]=ttl millis, [2..]=observed values
var observeScript = goredis.NewScript(`
local ttl = tonumber(ARGV[1])
for i = 2, #ARGV do
	local v = ARGV[i]
	redis.call('HINCRBY', KEYS[1], v, 1)
	if redis.call('ZSCORE', KEYS[2], v) == false then
		local seq = redis.call('INCR', KEYS[3])
		redis.call('ZADD', KEYS[2], seq, v)
	end
end
redis.call('PEXPIRE', KEYS[1], ttl)
redis.call('PEXPIRE', KEYS[2], ttl)
redis.call('PEXPIRE', KEYS[3], ttl)
return redis.status_reply('OK')
`)

// TallyStore implements domain.TallyStore on Redis for multi-instance mode.
type TallyStore struct {
	rdb *goredis.Client
}

func NewTallyStore(rdb *goredis.Client) *TallyStore {
	return &TallyStore{rdb: rdb}
}

func (s *TallyStore) Observe(ctx context.Context, streamID uuid.UUID, values []string) (*domain.TallySnapshot, error) {
	if len(values) > 0 {
		keys := []string{countsKey(streamID), orderKey(streamID), seqKey(streamID)}
		args := make([]any, 0, len(values)+1)
		args = append(args, tallyKeyTTL.Milliseconds())
		for _, v := range values {
			args = append(args, v)
		}
		if err := observeScript.Run(ctx, s.rdb, keys, args...).Err(); err != nil {
			return nil, fmt.Errorf("observe script failed: %w", err)
		}
	}
	return s.Snapshot(ctx, streamID)
}

func (s *TallyStore) Snapshot(ctx context.Context, streamID uuid.UUID) (*domain.TallySnapshot, error) {
	t, err := s.loadTally(ctx, streamID)
	if err != nil {
		return nil, err
	}

	mode, ok := t.Mode()
	if !ok {
		return &domain.TallySnapshot{}, nil
	}
	return &domain.TallySnapshot{
		Mode:      mode.Value,
		ModeCount: mode.Count,
		Total:     t.Total(),
		Distinct:  t.Distinct(),
	}, nil
}

func (s *TallyStore) Top(ctx context.Context, streamID uuid.UUID, k int) ([]domain.ValueCount, error) {
	t, err := s.loadTally(ctx, streamID)
	if err != nil {
		return nil, err
	}

	entries := t.Top(k)
	out := make([]domain.ValueCount, len(entries))
	for i, e := range entries {
		out[i] = domain.ValueCount{Value: e.Value, Count: e.Count}
	}
	return out, nil
}

func (s *TallyStore) Reset(ctx context.Context, streamID uuid.UUID) error {
	if err := s.rdb.Del(ctx, countsKey(streamID), orderKey(streamID), seqKey(streamID)).Err(); err != nil {
		return fmt.Errorf("failed to reset stream: %w", err)
	}
	return nil
}

func (s *TallyStore) Delete(ctx context.Context, streamID uuid.UUID) error {
	return s.Reset(ctx, streamID)
}

// loadTally rebuilds the incremental tally from the counts hash, replaying
// distinct values in first-seen zset order.
func (s *TallyStore) loadTally(ctx context.Context, streamID uuid.UUID) (*tally.Tally[string], error) {
	pipe := s.rdb.TxPipeline()
	orderCmd := pipe.ZRange(ctx, orderKey(streamID), 0, -1)
	countsCmd := pipe.HGetAll(ctx, countsKey(streamID))

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("snapshot pipeline failed: %w", err)
	}

	order, err := orderCmd.Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("zrange result failed: %w", err)
	}
	counts, err := countsCmd.Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("hgetall result failed: %w", err)
	}

	t := tally.New[string]()
	for _, v := range order {
		count, err := strconv.ParseInt(counts[v], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt count for value %q: %w", v, err)
		}
		t.AddN(v, count)
	}
	return t, nil
}

func countsKey(streamID uuid.UUID) string {
	return "tally:counts:" + streamID.String()
}

func orderKey(streamID uuid.UUID) string {
	return "tally:order:" + streamID.String()
}

func seqKey(streamID uuid.UUID) string {
	return "tally:seq:" + streamID.String()
}

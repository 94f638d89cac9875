package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/reqtrail/reqtrail/internal/model"
)

// RedisHistoryRepo keeps a capped list of recent records. It is the fallback
// sink when no database DSN is configured; retention is bounded by listMax,
// not by time.
type RedisHistoryRepo struct {
	client  *RedisClient
	listKey string
	listMax int
}

func NewRedisHistoryRepo(client *RedisClient, listKey string, listMax int) *RedisHistoryRepo {
	if listKey == "" {
		listKey = "request_history"
	}
	if listMax <= 0 {
		listMax = 10000
	}
	return &RedisHistoryRepo{
		client:  client,
		listKey: listKey,
		listMax: listMax,
	}
}

func (r *RedisHistoryRepo) Insert(ctx context.Context, rec *model.RequestRecord) error {
	if rec == nil {
		return nil
	}
	if rec.Seq == 0 {
		// Redis has no autoincrement column, so sequence numbers come from a
		// companion counter key.
		seq, err := r.client.Client.Incr(ctx, r.listKey+":seq").Result()
		if err != nil {
			return err
		}
		rec.Seq = uint64(seq)
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := r.client.Client.LPush(ctx, r.listKey, string(payload)).Err(); err != nil {
		return err
	}
	_ = r.client.Client.LTrim(ctx, r.listKey, 0, int64(r.listMax-1)).Err()
	return nil
}

func (r *RedisHistoryRepo) List(ctx context.Context, q model.HistoryQuery) ([]*model.RequestRecord, error) {
	limit := q.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	fetch := limit * 5
	if fetch < 100 {
		fetch = 100
	}
	if fetch > r.listMax {
		fetch = r.listMax
	}

	items, err := r.client.Client.LRange(ctx, r.listKey, 0, int64(fetch-1)).Result()
	if err != nil {
		return nil, err
	}

	results := make([]*model.RequestRecord, 0, limit)
	for _, item := range items {
		var rec model.RequestRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			continue
		}
		if q.SinceSeq > 0 && rec.Seq < q.SinceSeq {
			continue
		}
		if q.From != nil && rec.CreatedAt.Before(*q.From) {
			continue
		}
		if q.To != nil && rec.CreatedAt.After(*q.To) {
			continue
		}
		if !model.MatchesFilter(&rec, q.Filter) {
			continue
		}
		results = append(results, &rec)
	}

	model.SortRecords(results, q.OrderBy)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// MaxID reads the sequence counter. Deliberately left in place by Clear so
// the watermark stays monotone, like the SQL autoincrement.
func (r *RedisHistoryRepo) MaxID(ctx context.Context) (uint64, error) {
	val, err := r.client.Client.Get(ctx, r.listKey+":seq").Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return val, err
}

func (r *RedisHistoryRepo) Clear(ctx context.Context) (int64, error) {
	count, err := r.client.Client.LLen(ctx, r.listKey).Result()
	if err != nil {
		return 0, err
	}
	if err := r.client.Client.Del(ctx, r.listKey).Err(); err != nil {
		return 0, err
	}
	return count, nil
}

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// FailedOffer records one offer whose destination call failed during a cycle.
type FailedOffer struct {
	OfferID    int64     `json:"offer_id"`
	Step       string    `json:"step"`
	Reason     string    `json:"reason"`
	FailCount  int       `json:"fail_count"`
	LastFailed time.Time `json:"last_failed"`
}

// FailedOfferQueue parks failed offers so operators can inspect them and the
// next cycles retry them naturally. Entries expire after a day; the source
// data still drives reconciliation, the queue is diagnostic state.
type FailedOfferQueue struct {
	rdb *redis.Client
}

// NewFailedOfferQueue creates a Redis-backed failed offer queue.
func NewFailedOfferQueue(client *Client) *FailedOfferQueue {
	return &FailedOfferQueue{rdb: client.rdb}
}

const failedQueueKey = "marketsync:failed_offers"

func failedOfferKey(offerID int64) string {
	return fmt.Sprintf("marketsync:failed_offer:%d", offerID)
}

// Add records a failure, bumping the fail count of a re-failing offer.
func (q *FailedOfferQueue) Add(ctx context.Context, offerID int64, step, reason string) error {
	entry := FailedOffer{
		OfferID:    offerID,
		Step:       step,
		Reason:     reason,
		FailCount:  1,
		LastFailed: time.Now(),
	}

	if data, err := q.rdb.Get(ctx, failedOfferKey(offerID)).Bytes(); err == nil {
		var prev FailedOffer
		if json.Unmarshal(data, &prev) == nil {
			entry.FailCount = prev.FailCount + 1
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal failed offer: %w", err)
	}

	if err := q.rdb.Set(ctx, failedOfferKey(offerID), data, 24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to set failed offer: %w", err)
	}

	// Sorted by fail count so the freshest failures list first.
	if err := q.rdb.ZAdd(ctx, failedQueueKey, redis.Z{
		Score:  float64(entry.FailCount),
		Member: strconv.FormatInt(offerID, 10),
	}).Err(); err != nil {
		return fmt.Errorf("failed to add to failed queue: %w", err)
	}
	return nil
}

// Remove drops an offer from the queue after a later cycle succeeds.
func (q *FailedOfferQueue) Remove(ctx context.Context, offerID int64) error {
	member := strconv.FormatInt(offerID, 10)
	if err := q.rdb.ZRem(ctx, failedQueueKey, member).Err(); err != nil {
		return fmt.Errorf("failed to remove from failed queue: %w", err)
	}
	return q.rdb.Del(ctx, failedOfferKey(offerID)).Err()
}

// List returns up to limit parked failures, lowest fail count first.
func (q *FailedOfferQueue) List(ctx context.Context, limit int64) ([]FailedOffer, error) {
	ids, err := q.rdb.ZRange(ctx, failedQueueKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange failed: %w", err)
	}

	var out []FailedOffer
	for _, id := range ids {
		offerID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			continue
		}

		data, err := q.rdb.Get(ctx, failedOfferKey(offerID)).Bytes()
		if err == redis.Nil {
			// Data expired but id still queued, drop it.
			q.rdb.ZRem(ctx, failedQueueKey, id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get failed offer %d: %w", offerID, err)
		}

		var entry FailedOffer
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

// Depth returns the number of parked failures.
func (q *FailedOfferQueue) Depth(ctx context.Context) (int64, error) {
	return q.rdb.ZCard(ctx, failedQueueKey).Result()
}

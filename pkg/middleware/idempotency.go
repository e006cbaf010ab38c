package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/yehezkieldio/virtualqueue/pkg/response"
)

const (
	// IdempotencyKeyHeader is the header name for the idempotency key
	IdempotencyKeyHeader = "Idempotency-Key"
	// ReplayedHeader marks a response served from the idempotency cache
	ReplayedHeader = "Idempotent-Replayed"

	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultProcessingTTL  = 60 * time.Second

	IdempotencyKeyPrefix = "idempotency:"
)

type recordStatus string

const (
	statusProcessing recordStatus = "processing"
	statusCompleted  recordStatus = "completed"
)

// IdempotencyRecord stores the state of an idempotent request
type IdempotencyRecord struct {
	Status       recordStatus `json:"status"`
	RequestHash  string       `json:"request_hash"`
	ResponseCode int          `json:"response_code,omitempty"`
	ResponseBody string       `json:"response_body,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// RedisClient is the subset of go-redis used for idempotency records
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// IdempotencyConfig holds configuration for the idempotency middleware
type IdempotencyConfig struct {
	Redis RedisClient
	// TTL for completed records
	TTL time.Duration
	// ProcessingTTL bounds how long a crashed request blocks its key
	ProcessingTTL time.Duration
}

// Idempotency replays the stored response of a previous request carrying the
// same Idempotency-Key. Requests without the header pass through untouched.
func Idempotency(cfg IdempotencyConfig) gin.HandlerFunc {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultIdempotencyTTL
	}
	if cfg.ProcessingTTL <= 0 {
		cfg.ProcessingTTL = DefaultProcessingTTL
	}

	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" || cfg.Redis == nil {
			c.Next()
			return
		}

		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		hash := requestHash(c.Request.Method, c.Request.URL.Path, body)
		redisKey := IdempotencyKeyPrefix + key
		ctx := c.Request.Context()

		record := &IdempotencyRecord{
			Status:      statusProcessing,
			RequestHash: hash,
			CreatedAt:   time.Now().UTC(),
		}
		acquired, err := setRecord(ctx, cfg.Redis, redisKey, record, cfg.ProcessingTTL, true)
		if err != nil {
			// fail open
			c.Next()
			return
		}

		if !acquired {
			existing, err := getRecord(ctx, cfg.Redis, redisKey)
			if err != nil {
				c.Next()
				return
			}
			replay(c, existing, hash)
			return
		}

		rw := &captureWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = rw
		c.Next()

		status := rw.Status()
		if status >= http.StatusInternalServerError {
			// let the client retry server failures
			cfg.Redis.Del(context.WithoutCancel(ctx), redisKey)
			return
		}

		record.Status = statusCompleted
		record.ResponseCode = status
		record.ResponseBody = rw.body.String()
		_, _ = setRecord(context.WithoutCancel(ctx), cfg.Redis, redisKey, record, cfg.TTL, false)
	}
}

func replay(c *gin.Context, existing *IdempotencyRecord, hash string) {
	switch {
	case existing.RequestHash != hash:
		response.Abort(c, http.StatusUnprocessableEntity, "Idempotency key already used with a different request")
	case existing.Status == statusProcessing:
		response.Abort(c, http.StatusConflict, "A request with this idempotency key is already being processed")
	default:
		c.Header(ReplayedHeader, "true")
		c.Data(existing.ResponseCode, "application/json; charset=utf-8", []byte(existing.ResponseBody))
		c.Abort()
	}
}

func requestHash(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte(path))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func getRecord(ctx context.Context, rdb RedisClient, key string) (*IdempotencyRecord, error) {
	raw, err := rdb.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	var record IdempotencyRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func setRecord(ctx context.Context, rdb RedisClient, key string, record *IdempotencyRecord, ttl time.Duration, onlyNew bool) (bool, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return false, err
	}
	if onlyNew {
		return rdb.SetNX(ctx, key, string(data), ttl).Result()
	}
	if err := rdb.Set(ctx, key, string(data), ttl).Err(); err != nil {
		return false, err
	}
	return true, nil
}

// ErrNoRecord is returned by Lookup when no record exists for the key
var ErrNoRecord = errors.New("idempotency record not found")

// Lookup returns the stored record for an idempotency key
func Lookup(ctx context.Context, rdb RedisClient, key string) (*IdempotencyRecord, error) {
	record, err := getRecord(ctx, rdb, IdempotencyKeyPrefix+key)
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoRecord
	}
	return record, err
}

type captureWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

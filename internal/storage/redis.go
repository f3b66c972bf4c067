package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"talent-match-go/internal/config"
	"talent-match-go/internal/constants"
	"talent-match-go/internal/tracing"
	"talent-match-go/internal/types"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// ErrNotFound 键不存在时返回，包装底层的 redis.Nil
var ErrNotFound = redis.Nil

// 为Redis操作定义专用tracer
var redisTracer = otel.Tracer("talent-match-go/storage/redis")

// Redis 匹配结果缓存、嵌入文本去重集合与检索锁
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter 创建Redis客户端连接
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis配置不能为空")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis地址不能为空")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		// 连接池设置
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		// 超时设置
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,

		// 重试设置
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: time.Duration(cfg.MinRetryBackoffMS) * time.Millisecond,
		MaxRetryBackoff: time.Duration(cfg.MaxRetryBackoffMS) * time.Millisecond,

		// 连接生命周期
		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute,
		ConnMaxIdleTime: time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute,
	}

	client := redis.NewClient(opt)

	// 添加OpenTelemetry钩子，记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("为Redis安装OpenTelemetry钩子失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("连接Redis %s 失败: %w", cfg.Address, err)
	}

	return &Redis{Client: client, config: cfg}, nil
}

// Close 关闭Redis连接
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping 检查Redis连接
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}
	return r.Client.Ping(ctx).Err()
}

// MatchCacheKey 构造一次匹配查询的缓存键。
// kind 区分四类查询，pivotID 是支点实体，limit 参与键名避免串台。
func MatchCacheKey(kind, pivotID string, limit int) string {
	return fmt.Sprintf("%s%s:%s:%d", constants.MatchCachePrefix, kind, pivotID, limit)
}

// CacheMatchResults 缓存一次匹配查询的结果，空结果不缓存
func (r *Redis) CacheMatchResults(ctx context.Context, cacheKey string, results []types.MatchResult) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}
	if len(results) == 0 {
		return nil
	}

	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("序列化匹配结果失败: %w", err)
	}
	return r.Client.Set(ctx, cacheKey, data, constants.MatchCacheDuration).Err()
}

// GetCachedMatchResults 读取缓存的匹配结果，未命中返回 (nil, false, nil)
func (r *Redis) GetCachedMatchResults(ctx context.Context, cacheKey string) ([]types.MatchResult, bool, error) {
	ctx, span := redisTracer.Start(ctx, "GetCachedMatchResults", trace.WithAttributes(
		semconv.DBSystemRedis,
		attribute.String("redis.key", tracing.SafeRedisKey(cacheKey)),
	))
	defer span.End()

	data, err := r.Client.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		span.RecordError(err)
		return nil, false, err
	}

	var results []types.MatchResult
	if err := json.Unmarshal(data, &results); err != nil {
		span.RecordError(err)
		// 缓存内容损坏按未命中处理，旧键等过期即可
		return nil, false, nil
	}
	return results, true, nil
}

// InvalidateMatchCache 按前缀清除匹配缓存。实体变更后旧排名立即失效。
func (r *Redis) InvalidateMatchCache(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}

	iter := r.Client.Scan(ctx, 0, constants.MatchCachePrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("扫描匹配缓存键失败: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return r.Client.Del(ctx, keys...).Err()
}

// TextMD5 计算嵌入输入文本的MD5摘要
func TextMD5(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// CheckAndAddEmbedTextMD5 检查嵌入文本摘要是否已存在，不存在则原子加入。
// 返回true表示该文本已嵌入过，向量化工作者据此跳过重复的嵌入调用。
func (r *Redis) CheckAndAddEmbedTextMD5(ctx context.Context, md5Hex string) (bool, error) {
	if r.Client == nil {
		return false, fmt.Errorf("redis客户端未初始化")
	}

	added, err := r.Client.SAdd(ctx, constants.EmbedTextMD5SetKey, md5Hex).Result()
	if err != nil {
		return false, err
	}
	// SAdd返回0表示成员已存在
	return added == 0, nil
}

// RemoveEmbedTextMD5 从去重集合移除摘要（实体删除或嵌入失败回滚时）
func (r *Redis) RemoveEmbedTextMD5(ctx context.Context, md5Hex string) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}
	return r.Client.SRem(ctx, constants.EmbedTextMD5SetKey, md5Hex).Err()
}

// AcquireLock 尝试获取一个分布式锁
func (r *Redis) AcquireLock(ctx context.Context, lockKey string, expiration time.Duration) (string, error) {
	if r.Client == nil {
		return "", fmt.Errorf("redis客户端未初始化")
	}
	lockValue := fmt.Sprintf("%d", time.Now().UnixNano())
	ok, err := r.Client.SetNX(ctx, lockKey, lockValue, expiration).Result()
	if err != nil {
		return "", err
	}
	if ok {
		return lockValue, nil
	}
	return "", nil
}

// ReleaseLock 释放一个分布式锁，使用Lua脚本保证原子性
func (r *Redis) ReleaseLock(ctx context.Context, lockKey string, lockValue string) (bool, error) {
	if r.Client == nil {
		return false, fmt.Errorf("redis客户端未初始化")
	}
	script := `
        if redis.call("get", KEYS[1]) == ARGV[1] then
            return redis.call("del", KEYS[1])
        else
            return 0
        end
    `
	res, err := r.Client.Eval(ctx, script, []string{lockKey}, lockValue).Result()
	if err != nil {
		return false, err
	}

	if released, ok := res.(int64); ok && released == 1 {
		return true, nil
	}
	return false, nil
}

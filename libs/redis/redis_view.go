package redis

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Nil 键不存在
const Nil = redis.Nil

// RedisCli 带键前缀的 redis 视图
type RedisCli interface {
	KeyPrefix() string
	NativeCmd() redis.Cmdable
	Key(key string) string
	Get(ctx context.Context, key string) ([]byte, error)
	// Set 写入, expiration 为 time.ParseDuration 格式, 空字符串表示不过期
	Set(ctx context.Context, key string, value []byte, expiration string) error
	Del(ctx context.Context, keys ...string) (int64, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSetWithTTL(ctx context.Context, key string, ttl time.Duration, values map[string]interface{}) error
	RunScript(ctx context.Context, script *redis.Script, keys []string, args ...interface{}) (interface{}, error)
	Ping(ctx context.Context) error
}

type redisView struct {
	cmd    redis.Cmdable
	prefix string
	logger *zap.Logger
}

func NewRedisView(cmd redis.Cmdable, prefix string, logger *zap.Logger) RedisCli {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisView{cmd: cmd, prefix: prefix, logger: logger}
}

// Options 连接参数
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewClient 创建 redis 客户端并返回视图
func NewClient(opts Options, prefix string, logger *zap.Logger) RedisCli {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewRedisView(client, prefix, logger)
}

func (r *redisView) KeyPrefix() string {
	return r.prefix
}

func (r *redisView) NativeCmd() redis.Cmdable {
	return r.cmd
}

func (r *redisView) Key(key string) string {
	if r.prefix == "" {
		return key
	}
	return strings.Join([]string{r.prefix, key}, ":")
}

func (r *redisView) Get(ctx context.Context, key string) ([]byte, error) {
	return r.cmd.Get(ctx, r.Key(key)).Bytes()
}

func (r *redisView) Set(ctx context.Context, key string, value []byte, expiration string) error {
	var ttl time.Duration
	if expiration != "" {
		d, err := time.ParseDuration(expiration)
		if err != nil {
			r.logger.Error("invalid expiration", zap.String("expiration", expiration), zap.Error(err))
			return err
		}
		ttl = d
	}
	return r.cmd.Set(ctx, r.Key(key), value, ttl).Err()
}

func (r *redisView) Del(ctx context.Context, keys ...string) (int64, error) {
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.Key(k)
	}
	return r.cmd.Del(ctx, full...).Result()
}

func (r *redisView) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return r.cmd.HGetAll(ctx, r.Key(key)).Result()
}

func (r *redisView) HSetWithTTL(ctx context.Context, key string, ttl time.Duration, values map[string]interface{}) error {
	full := r.Key(key)
	_, err := r.cmd.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, full, values)
		if ttl > 0 {
			p.PExpire(ctx, full, ttl)
		}
		return nil
	})
	return err
}

// RunScript 执行脚本, keys 会自动加前缀
func (r *redisView) RunScript(ctx context.Context, script *redis.Script, keys []string, args ...interface{}) (interface{}, error) {
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.Key(k)
	}
	res, err := script.Run(ctx, r.cmd, full, args...).Result()
	if err != nil && err != redis.Nil {
		r.logger.Error("redis script failed", zap.Strings("keys", full), zap.Error(err))
	}
	return res, err
}

func (r *redisView) Ping(ctx context.Context) error {
	return r.cmd.Ping(ctx).Err()
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jeovahfialho/capgains-ledger/internal/config"
)

var ErrCacheMiss = errors.New("key not found")

// Prefixos das chaves. Todas as chaves derivadas do livro de ganhos começam
// com keyPrefix, então uma carga nova invalida tudo com um só padrão.
const (
	keyPrefix    = "capgains:"
	LedgerPrefix = keyPrefix + "ledger:"
	FormPrefix   = keyPrefix + "form:"
	AllPattern   = keyPrefix + "*"
)

func LedgerKey(token string) string {
	token = strings.ToUpper(strings.TrimSpace(token))
	if token == "" {
		token = "all"
	}
	return LedgerPrefix + token
}

func FormKey(year int, taxpayer string) string {
	return fmt.Sprintf("%s%d:%s", FormPrefix, year, strings.TrimSpace(taxpayer))
}

// Pattern transforma um padrão recebido da API (ledger:*, form:2024:*) num
// padrão restrito às chaves desta aplicação.
func Pattern(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "*" {
		return AllPattern
	}
	return keyPrefix + strings.TrimPrefix(p, keyPrefix)
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(cfg *config.Config) (*RedisCache, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("erro ao parsear URL Redis: %w", err)
	}

	opt.PoolSize = 10
	opt.MinIdleConns = 5
	opt.MaxRetries = 3
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("erro ao conectar Redis: %w", err)
	}

	return NewRedisCacheFromClient(client, cfg.CacheTTL), nil
}

func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("erro ao buscar do cache: %w", err)
	}

	if err := json.Unmarshal(val, dest); err != nil {
		return fmt.Errorf("erro ao deserializar: %w", err)
	}

	return nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl ...time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("erro ao serializar: %w", err)
	}

	expiration := c.ttl
	if len(ttl) > 0 {
		expiration = ttl[0]
	}

	if err := c.client.Set(ctx, key, data, expiration).Err(); err != nil {
		return fmt.Errorf("erro ao salvar no cache: %w", err)
	}

	return nil
}

// DeletePattern remove as chaves que casam com o padrão e devolve quantas
// foram removidas.
func (c *RedisCache) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("erro ao listar chaves: %w", err)
	}

	if len(keys) == 0 {
		return 0, nil
	}

	n, err := c.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("erro ao remover chaves: %w", err)
	}
	return n, nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

type Stats struct {
	Keys int64 `json:"keys"`
}

func (c *RedisCache) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	iter := c.client.Scan(ctx, 0, AllPattern, 100).Iterator()
	for iter.Next(ctx) {
		stats.Keys++
	}
	if err := iter.Err(); err != nil {
		return stats, fmt.Errorf("erro ao contar chaves: %w", err)
	}
	return stats, nil
}

// Package redis wraps the few hash commands the title index needs.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	connectTimeout = 5 * time.Second
	commandTimeout = 2 * time.Second
)

// Client Redis客户端包装器
type Client struct {
	rdb  *redis.Client
	addr string
}

// NewClient 连接Redis，连接不上时返回错误
func NewClient(addr string, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  connectTimeout,
		ReadTimeout:  commandTimeout,
		WriteTimeout: commandTimeout,
	})
	client := &Client{rdb: rdb, addr: addr}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		rdb.Close()
		return nil, err
	}
	return client, nil
}

// Ping 测试连接
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis %s: ping: %w", c.addr, err)
	}
	return nil
}

// HSetNX 仅在字段不存在时写入，返回是否写入
func (c *Client) HSetNX(ctx context.Context, hash, field, value string) (bool, error) {
	ok, err := c.rdb.HSetNX(ctx, hash, field, value).Result()
	if err != nil {
		return false, fmt.Errorf("redis %s: hsetnx %s %s: %w", c.addr, hash, field, err)
	}
	return ok, nil
}

// HGet 读取哈希字段，不存在时返回空字符串
func (c *Client) HGet(ctx context.Context, hash, field string) (string, error) {
	value, err := c.rdb.HGet(ctx, hash, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis %s: hget %s %s: %w", c.addr, hash, field, err)
	}
	return value, nil
}

// Close 关闭连接
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Package redis 封装 go-redis 客户端，并管理按名称注册的 Lua 脚本。
package redis

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

// Client 持有底层 go-redis 客户端和已加载的脚本。
type Client struct {
	rdb     goredis.UniversalClient
	mu      sync.RWMutex
	scripts map[string]*goredis.Script
}

type Options struct {
	Addr     string
	Password string
	DB       int
}

func NewClient(opts Options) *Client {
	return Wrap(goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}))
}

// Wrap 包装一个已存在的 go-redis 客户端。
func Wrap(rdb goredis.UniversalClient) *Client {
	return &Client{rdb: rdb, scripts: make(map[string]*goredis.Script)}
}

func (c *Client) GetClient() goredis.UniversalClient {
	return c.rdb
}

// Ping 用于启动时检查连通性。
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// LoadScriptFromContent 注册脚本并预加载到服务端的脚本缓存。
func (c *Client) LoadScriptFromContent(ctx context.Context, name, content string) error {
	script := goredis.NewScript(content)
	if err := script.Load(ctx, c.rdb).Err(); err != nil {
		return errors.Wrapf(err, "load script %s", name)
	}

	c.mu.Lock()
	c.scripts[name] = script
	c.mu.Unlock()
	return nil
}

// RunScript 通过 EVALSHA 执行脚本，服务端缓存丢失时自动回落到 EVAL。
func (c *Client) RunScript(ctx context.Context, name string, keys []string, args ...interface{}) (interface{}, error) {
	c.mu.RLock()
	script, ok := c.scripts[name]
	c.mu.RUnlock()
	if !ok {
		return nil, errors.Errorf("script %s is not loaded", name)
	}

	result, err := script.Run(ctx, c.rdb, keys, args...).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, errors.Wrapf(err, "run script %s", name)
	}
	return result, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

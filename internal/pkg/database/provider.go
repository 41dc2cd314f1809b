// Package database 管理进程级共享的 gorm 连接池。
package database

import (
	"context"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"storefront/internal/pkg/logger"
)

// Conn 是仓储依赖的连接来源。
type Conn interface {
	DB(ctx context.Context) (*gorm.DB, error)
}

type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// Migrate 在连接首次建立成功后执行，失败时连接不会被缓存。
	Migrate func(db *gorm.DB) error
}

// Provider 延迟建立连接并在成功后缓存。
// 并发的首次调用通过 singleflight 共享同一次建连尝试；失败不缓存，下次调用会重试。
type Provider struct {
	dialector gorm.Dialector
	opts      Options

	mu    sync.RWMutex
	db    *gorm.DB
	group singleflight.Group
	opens int
}

func NewProvider(dialector gorm.Dialector, opts Options) *Provider {
	return &Provider{dialector: dialector, opts: opts}
}

// NewMySQLProvider 规范化 DSN 后创建 MySQL 连接提供者。
func NewMySQLProvider(dsn string, opts Options) (*Provider, error) {
	normalized, err := NormalizeDSN(dsn)
	if err != nil {
		return nil, err
	}
	return NewProvider(gormmysql.Open(normalized), opts), nil
}

// NormalizeDSN 强制 parseTime 与 UTC，并让 UPDATE 返回匹配行数而不是变更行数，
// 比较并交换依赖这一点。
func NormalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", errors.Wrap(err, "parse mysql dsn")
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.ClientFoundRows = true
	return cfg.FormatDSN(), nil
}

func (p *Provider) DB(ctx context.Context) (*gorm.DB, error) {
	p.mu.RLock()
	db := p.db
	p.mu.RUnlock()
	if db != nil {
		return db.WithContext(ctx), nil
	}

	v, err, _ := p.group.Do("connect", func() (interface{}, error) {
		p.mu.RLock()
		cached := p.db
		p.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		opened, err := p.open()
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		p.db = opened
		p.opens++
		p.mu.Unlock()
		return opened, nil
	})
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("database connection failed")
		return nil, err
	}
	return v.(*gorm.DB).WithContext(ctx), nil
}

func (p *Provider) open() (*gorm.DB, error) {
	db, err := gorm.Open(p.dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get sql.DB")
	}
	if p.opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(p.opts.MaxOpenConns)
	}
	if p.opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(p.opts.MaxIdleConns)
	}
	if p.opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(p.opts.ConnMaxLifetime)
	}

	if p.opts.Migrate != nil {
		if err := p.opts.Migrate(db); err != nil {
			sqlDB.Close()
			return nil, errors.Wrap(err, "migrate schema")
		}
	}
	return db, nil
}

// Close 关闭底层连接池；未建立连接时什么也不做。
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	p.db = nil
	return sqlDB.Close()
}

// IsDuplicateKey 识别唯一键冲突，兼容 gorm 的错误翻译和原始 MySQL 错误。
func IsDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

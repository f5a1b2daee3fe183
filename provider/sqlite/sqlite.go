// Package sqlite is a durable layer backed by modernc.org/sqlite. It plays
// the role of on-device storage: entries survive restarts and can be listed
// by prefix.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	pr "github.com/unkn0wn-root/snapcache/provider"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Provider struct {
	write *sql.DB // single-writer connection
	read  *sql.DB // multi-reader pool
	now   func() time.Time

	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var (
	_ pr.Provider = (*Provider)(nil)
	_ pr.Scanner  = (*Provider)(nil)
	_ pr.Purger   = (*Provider)(nil)
)

var memSeq atomic.Uint64

type Config struct {
	// Path of the database file, or ":memory:".
	Path string
	// CleanupInterval runs a janitor that deletes expired rows; 0 disables it.
	// Expired rows are never served either way.
	CleanupInterval time.Duration
	// Now is used for expiry; nil => time.Now.
	Now func() time.Time
}

// New opens the database, applies migrations and starts the janitor.
func New(cfg Config) (*Provider, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite: empty path")
	}
	pragmas := "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	// :memory: gets a per-provider name with shared cache, so the read and
	// write pools see one database and separate providers stay isolated.
	var dsn string
	if cfg.Path == ":memory:" {
		dsn = "file:snapcache-mem-" + strconv.FormatUint(memSeq.Add(1), 10) + "?mode=memory&cache=shared&" + pragmas
	} else {
		dsn = "file:" + cfg.Path + "?" + pragmas
	}

	write, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open write db: %w", err)
	}
	write.SetMaxOpenConns(1)

	read, err := sql.Open("sqlite", dsn)
	if err != nil {
		write.Close()
		return nil, fmt.Errorf("sqlite: open read db: %w", err)
	}
	read.SetMaxOpenConns(max(4, runtime.NumCPU()))

	if err := runMigrations(write); err != nil {
		write.Close()
		read.Close()
		return nil, fmt.Errorf("sqlite: migrations: %w", err)
	}

	p := &Provider{write: write, read: read, now: cfg.Now}
	if p.now == nil {
		p.now = time.Now
	}
	if cfg.CleanupInterval > 0 {
		p.ticker = time.NewTicker(cfg.CleanupInterval)
		p.stopCh = make(chan struct{})
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-p.ticker.C:
					_, _ = p.Cleanup(context.Background())
				case <-p.stopCh:
					return
				}
			}
		}()
	}
	return p, nil
}

// runMigrations applies embedded SQL migrations using goose.
// fs.Sub strips the "migrations/" prefix so goose sees files at the FS root.
func runMigrations(db *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("sub fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	_, err = provider.Up(context.Background())
	return err
}

func (p *Provider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var b []byte
	err := p.read.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE key = ? AND (expires_at = 0 OR expires_at > ?)`,
		key, p.now().UnixNano(),
	).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Set upserts the value. ttl <= 0 stores it without expiry.
func (p *Provider) Set(ctx context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	var exp int64
	if ttl > 0 {
		exp = p.now().Add(ttl).UnixNano()
	}
	if value == nil {
		value = []byte{}
	}
	_, err := p.write.ExecContext(ctx,
		`INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, exp,
	)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) Del(ctx context.Context, key string) error {
	_, err := p.write.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	return err
}

// Keys lists live keys starting with prefix.
func (p *Provider) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := p.read.QueryContext(ctx,
		`SELECT key FROM kv WHERE instr(key, ?) = 1 AND (expires_at = 0 OR expires_at > ?) ORDER BY key`,
		prefix, p.now().UnixNano(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (p *Provider) Purge(ctx context.Context) error {
	_, err := p.write.ExecContext(ctx, `DELETE FROM kv`)
	return err
}

// Cleanup deletes expired rows and reports how many were removed.
func (p *Provider) Cleanup(ctx context.Context) (int64, error) {
	res, err := p.write.ExecContext(ctx,
		`DELETE FROM kv WHERE expires_at > 0 AND expires_at <= ?`, p.now().UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Ping verifies database connectivity by pinging the read pool.
func (p *Provider) Ping(ctx context.Context) error {
	return p.read.PingContext(ctx)
}

// Close stops the janitor and closes both pools. Safe to call more than once.
func (p *Provider) Close(context.Context) error {
	var err error
	p.once.Do(func() {
		if p.stopCh != nil {
			close(p.stopCh)
			p.ticker.Stop() // stop ticker before waiting
			p.wg.Wait()
		}
		err = errors.Join(p.write.Close(), p.read.Close())
	})
	return err
}

package db

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pg/pg/v10"
	log "github.com/sirupsen/logrus"

	"logcount/offsets"
)

// Config holds the Postgres connection settings for the offset checkpoint.
type Config struct {
	Addr     string
	Database string
	User     string
	Password string
}

// FileOffset is one row of the checkpoint table.
type FileOffset struct {
	tableName struct{} `pg:"file_offsets"`

	Path           string    `pg:",pk"`
	FileID         uint64    `pg:",notnull,use_zero"`
	ByteOffset     uint64    `pg:",notnull,use_zero"`
	InContinuation bool      `pg:",notnull,use_zero"`
	Severity       string    `pg:",notnull,use_zero"`
	UpdatedAt      time.Time `pg:",notnull,default:now()"`
}

// Checkpoint stores offsets in Postgres. It implements offsets.Checkpointer.
type Checkpoint struct {
	db  *pg.DB
	log *log.Entry
}

const maxBackoff = 30 * time.Second

// Connect opens the database and waits until it answers a ping, backing off
// exponentially between attempts until ctx is done.
func Connect(ctx context.Context, config *Config) (*Checkpoint, error) {
	logger := log.WithFields(log.Fields{"component": "checkpoint", "addr": config.Addr})
	db := pg.Connect(&pg.Options{
		Addr:     config.Addr,
		Database: config.Database,
		User:     config.User,
		Password: config.Password,
	})

	timerWait := time.Second
	for {
		err := db.Ping(ctx)
		if err == nil {
			break
		}
		logger.Error("Connection error: ", err)

		select {
		case <-ctx.Done():
			db.Close()
			return nil, fmt.Errorf("connect to %s: %w", config.Addr, err)
		case <-time.After(timerWait):
		}
		timerWait *= 2
		if timerWait > maxBackoff {
			timerWait = maxBackoff
		}
	}

	logger.Info("Connected to checkpoint database")
	return &Checkpoint{db: db, log: logger}, nil
}

// DB exposes the underlying handle, used by the migrate command.
func (c *Checkpoint) DB() *pg.DB {
	return c.db
}

func (c *Checkpoint) Load(ctx context.Context) (map[string]offsets.Entry, error) {
	var rows []FileOffset
	if err := c.db.ModelContext(ctx, &rows).Select(); err != nil {
		return nil, fmt.Errorf("load offsets: %w", err)
	}

	out := make(map[string]offsets.Entry, len(rows))
	for _, r := range rows {
		out[r.Path] = offsets.Entry{
			Offset:         r.ByteOffset,
			FileID:         r.FileID,
			InContinuation: r.InContinuation,
			Severity:       r.Severity,
		}
	}
	c.log.WithField("files", len(out)).Debug("Loaded offsets")
	return out, nil
}

// Save replaces the stored offsets with entries. An empty map is ignored.
func (c *Checkpoint) Save(ctx context.Context, entries map[string]offsets.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	now := time.Now()
	rows := make([]FileOffset, 0, len(entries))
	for path, e := range entries {
		rows = append(rows, FileOffset{
			Path:           path,
			FileID:         e.FileID,
			ByteOffset:     e.Offset,
			InContinuation: e.InContinuation,
			Severity:       e.Severity,
			UpdatedAt:      now,
		})
	}

	paths := make([]string, 0, len(rows))
	for _, r := range rows {
		paths = append(paths, r.Path)
	}

	err := c.db.RunInTransaction(ctx, func(tx *pg.Tx) error {
		// Rows for files the store no longer tracks.
		_, err := tx.ModelContext(ctx, (*FileOffset)(nil)).
			Where("path NOT IN (?)", pg.In(paths)).
			Delete()
		if err != nil {
			return err
		}

		_, err = tx.ModelContext(ctx, &rows).
			OnConflict("(path) DO UPDATE").
			Set("file_id = EXCLUDED.file_id").
			Set("byte_offset = EXCLUDED.byte_offset").
			Set("in_continuation = EXCLUDED.in_continuation").
			Set("severity = EXCLUDED.severity").
			Set("updated_at = EXCLUDED.updated_at").
			Insert()
		return err
	})
	if err != nil {
		return fmt.Errorf("save offsets: %w", err)
	}
	return nil
}

func (c *Checkpoint) Close() error {
	return c.db.Close()
}

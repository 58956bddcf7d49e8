package db

import (
	"github.com/go-pg/migrations/v8"
)

//-------- HERE BE DRAGONS --------//
// DO NOT change or remove registered migrations.
// The version stored in logcount_migrations points into this list;
// only append new ones, each in its own <version>_<name>.go file
// with an explicit Version.
func Migrations() *migrations.Collection {
	c := migrations.NewCollection(
		fileOffsetsMigration,
	)
	c.SetTableName("logcount_migrations")
	c.DisableSQLAutodiscover(true)
	return c
}

// Migrate runs a migrations command (init, up, down, version, reset) against
// the checkpoint database.
func (c *Checkpoint) Migrate(args ...string) (oldVersion, newVersion int64, err error) {
	return Migrations().Run(c.db, args...)
}

// EnsureSchema creates the migrations table if needed and applies pending migrations.
func (c *Checkpoint) EnsureSchema() error {
	if _, _, err := c.Migrate("init"); err != nil {
		return err
	}
	_, _, err := c.Migrate("up")
	return err
}

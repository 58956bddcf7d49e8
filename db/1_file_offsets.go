package db

import (
	"github.com/go-pg/migrations/v8"
	"github.com/go-pg/pg/v10/orm"
)

var fileOffsetsMigration = &migrations.Migration{
	Version: 1,
	UpTx:    true,
	Up: func(db migrations.DB) error {
		return db.Model(&FileOffset{}).CreateTable(&orm.CreateTableOptions{IfNotExists: true})
	},
	DownTx: true,
	Down: func(db migrations.DB) error {
		return db.Model(&FileOffset{}).DropTable(&orm.DropTableOptions{IfExists: true})
	},
}

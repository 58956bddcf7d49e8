package cmd

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"logcount/db"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [init|up|down|version|reset]",
	Short:     "Manage the Postgres offset checkpoint schema",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"init", "up", "down", "version", "reset"},
	RunE:      RunMigrate,
}

func RunMigrate(cmd *cobra.Command, args []string) error {
	cfg := postgresConfig()
	if cfg.Addr == "" {
		return fmt.Errorf("offsets.postgres.addr is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	cp, err := db.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer cp.Close()

	if len(args) == 0 {
		args = []string{"up"}
	}
	oldVersion, newVersion, err := cp.Migrate(args...)
	if err != nil {
		return err
	}
	if newVersion != oldVersion {
		log.Infof("migrated from version %d to %d", oldVersion, newVersion)
	} else {
		log.Infof("version is %d", oldVersion)
	}
	fmt.Fprintln(cmd.OutOrStdout(), newVersion)
	return nil
}

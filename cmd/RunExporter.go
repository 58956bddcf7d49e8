package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"logcount/metrics"
	"logcount/offsets"
	"logcount/service"
	"logcount/watch"
)

const shutdownTimeout = 5 * time.Second

func RunExporter(cmd *cobra.Command, args []string) error {
	sources, err := loadSources()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := offsets.NewStore()
	cp, err := openCheckpointer(ctx)
	if err != nil {
		return err
	}
	if cp != nil {
		defer cp.Close()
		entries, err := cp.Load(ctx)
		if err != nil {
			return err
		}
		store.Restore(entries)
		log.WithField("files", len(entries)).Info("Restored offsets")
	}

	reg := metrics.NewRegistry()
	m := metrics.NewMetrics(nil)
	if err := m.Register(reg); err != nil {
		return err
	}
	srv, err := metrics.NewServer(viper.GetString("listen"), viper.GetString("metrics_path"), reg, viper.GetDuration("scrape_wait"))
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}
	defer func() {
		if err := srv.Shutdown(shutdownTimeout); err != nil {
			log.WithError(err).Warn("Metrics server shutdown")
		}
	}()

	driver := service.New(sources, store, m, service.Options{
		Workers:  viper.GetInt("workers"),
		Observer: m,
	})

	var wake <-chan struct{}
	if viper.GetBool("watch") {
		globs := make([]string, 0, len(sources))
		for _, s := range sources {
			globs = append(globs, s.PathGlob)
		}
		n, err := watch.New(globs)
		if err != nil {
			return err
		}
		go n.Run(ctx)
		wake = n.Wake()
	}

	if cp != nil {
		go flushLoop(ctx, store, cp, viper.GetDuration("offsets.flush_interval"))
	}

	driver.Run(ctx, viper.GetDuration("interval"), srv.Scrapes(), wake)

	if cp != nil {
		fctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := store.Flush(fctx, cp); err != nil {
			log.WithError(err).Error("Final offset flush failed")
		}
	}
	return nil
}

func flushLoop(ctx context.Context, store *offsets.Store, cp offsets.Checkpointer, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.Flush(ctx, cp); err != nil {
				log.WithError(err).Warn("Offset flush failed")
			}
		}
	}
}

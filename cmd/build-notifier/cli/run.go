package cli

import (
	"context"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/davarch/build-notifier/internal/application"
	"github.com/davarch/build-notifier/internal/infrastructure/config"
	"github.com/davarch/build-notifier/internal/infrastructure/logging"
	"github.com/davarch/build-notifier/internal/infrastructure/metrics"
	"github.com/davarch/build-notifier/internal/infrastructure/systemd"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const reloadDebounce = 300 * time.Millisecond

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run polling scheduler",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, cfgErr := config.Load(cfgPath)

		log := logging.New(cfg.Log.Level)
		defer func() { _ = log.Sync() }()

		if cfgErr != nil {
			log.Error("config", zap.Error(cfgErr))
			return cfgErr
		}

		sink, err := newSink(cfg)
		if err != nil {
			log.Error("sink", zap.Error(err))
			return err
		}

		tc := newTeamCity(cfg)
		uc := newUseCase(log, cfg, tc, sink)

		sched := application.NewScheduler(log, uc, cfg.Poll.Interval, cfg.Poll.PauseFile)
		sched.SetWatchdog(systemd.New(log))

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		watchAndReload(ctx, cfgPath, log, sched)

		if cfg.Metrics.Listen != "" {
			srv := metrics.New(log, cfg.Metrics.Listen)
			go func() {
				if err := srv.Serve(ctx); err != nil {
					log.Warn("metrics server stopped", zap.Error(err))
				}
			}()
		}

		log.Info("start",
			zap.String("version", version),
			zap.String("project", cfg.TeamCity.Project),
			zap.Int("whitelist", len(cfg.Poll.Whitelist)),
			zap.Duration("every", cfg.Poll.Interval),
			zap.String("sink", cfg.Notify.Sink),
			zap.String("cache", cfg.Cache.Path),
			zap.String("teamcity", downloadBase(cfg)),
			zap.String("pause_file", cfg.Poll.PauseFile),
		)

		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		log.Info("stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// watchAndReload re-reads the config when it changes on disk and hands the
// new whitelist to the scheduler. Other settings need a restart.
func watchAndReload(ctx context.Context, cfgPath string, log *zap.Logger, sched *application.Scheduler) {
	if cfgPath == "" {
		return
	}

	dir := filepath.Dir(cfgPath)
	base := filepath.Base(cfgPath)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn("fsnotify init failed", zap.Error(err))
		return
	}

	if err := w.Add(dir); err != nil {
		log.Warn("fsnotify add dir failed", zap.String("dir", dir), zap.Error(err))
		_ = w.Close()
		return
	}

	fire := func() {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			log.Warn("config reload failed", zap.Error(err))
			return
		}
		sched.UpdateWhitelist(cfg.BuildTypeIDs())
	}

	go func() {
		defer func() { _ = w.Close() }()

		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}

				if filepath.Base(ev.Name) != base {
					continue
				}

				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if timer == nil {
					timer = time.AfterFunc(reloadDebounce, fire)
				} else {
					timer.Reset(reloadDebounce)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("fsnotify error", zap.Error(err))
			}
		}
	}()
}

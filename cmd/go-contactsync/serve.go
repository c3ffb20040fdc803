package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/tartampluch/go-contactsync/internal/config"
	"github.com/tartampluch/go-contactsync/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   config.CmdServe,
		Short: config.DescServe,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runServe(cmd.Context())
		},
	}
	cmd.Flags().String(config.FlagPort, config.DefaultPort, config.FlagDescPort)
	cmd.Flags().Duration(config.FlagInterval, config.DefaultServeInterval, config.FlagDescInterval)
	bind(a.v, cmd.Flags(), map[string]string{
		config.KeyPort:     config.FlagPort,
		config.KeyInterval: config.FlagInterval,
	})
	return cmd
}

// runServe starts the preview server and keeps its documents fresh until
// the context is cancelled.
func (a *app) runServe(ctx context.Context) error {
	if err := a.settings.Validate(); err != nil {
		return err
	}

	srv := server.NewPreviewServer(a.settings.Port)

	intervals := make(chan time.Duration, config.ChannelBufferSize)
	if a.settings.ConfigFile != "" {
		// The callback runs on viper's watcher goroutine, which is also the
		// one re-reading the file, so reading the value there is safe.
		a.v.OnConfigChange(func(fsnotify.Event) {
			select {
			case intervals <- a.v.GetDuration(config.KeyInterval):
			default:
			}
		})
		a.v.WatchConfig()
	}

	go a.refreshWorker(ctx, srv, a.settings.Interval, intervals)

	return srv.Start(ctx)
}

// refreshWorker manages the periodic preview refresh schedule.
func (a *app) refreshWorker(ctx context.Context, srv *server.PreviewServer, interval time.Duration, intervals <-chan time.Duration) {
	log := slog.With(config.LogKeyComponent, config.CompWorker)

	a.refresh(ctx, srv)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info(config.MsgWorkerStart, config.LogKeyInterval, interval)

	for {
		select {
		case <-ctx.Done():
			log.Info(config.MsgWorkerStop)
			return

		case next := <-intervals:
			if next > 0 && next != interval {
				log.Info(config.MsgUpdateSync, config.LogKeyOld, interval, config.LogKeyNew, next)
				interval = next
				ticker.Reset(interval)
			}

		case <-ticker.C:
			a.refresh(ctx, srv)
		}
	}
}

// refresh runs a dry run and publishes its summary. The address book is
// reopened every time so that commits made by other runs are reflected.
func (a *app) refresh(ctx context.Context, srv *server.PreviewServer) {
	log := slog.With(config.LogKeyComponent, config.CompWorker)

	ss, err := a.newSession()
	if err != nil {
		log.Error(config.MsgRefreshFailed, config.LogKeyError, err)
		return
	}
	refs, err := ss.pending(ctx)
	if err != nil {
		log.Error(config.MsgRefreshFailed, config.LogKeyError, err)
		return
	}
	summary, err := ss.engine.Reconcile(ctx, refs, true)
	if err != nil {
		log.Error(config.MsgRefreshFailed, config.LogKeyError, err)
		return
	}
	if err := srv.Publish(summary); err != nil {
		log.Error(config.MsgRefreshFailed, config.LogKeyError, err)
	}
}

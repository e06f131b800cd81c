package app

import (
	"context"

	"github.com/patrickJVGH/FluentFlow/internal/scheduler"
	"github.com/patrickJVGH/FluentFlow/internal/server"
)

// Serve runs the avatar feed, the metrics and log endpoints and the
// maintenance scheduler until ctx is done. Log entries are streamed on the
// feed while it runs.
func (a *App) Serve(ctx context.Context) error {
	cfg := a.Config()

	sched, err := scheduler.New(cfg.Audio.RecordingsDir, cfg.Audio.RecordingMaxAge, a.Logger)
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	hub := server.NewHub(a.Logger)
	hub.SubscribeBus(a.Bus)
	a.Log.SetOnLog(hub.BroadcastLog)
	defer a.Log.SetOnLog(nil)
	if a.Avatar != nil {
		go a.Avatar.Run(ctx, hub.BroadcastFrame)
	}

	srv := server.New(server.Config{
		Addr:        cfg.Server.Addr,
		AvatarPath:  cfg.Server.AvatarPath,
		MetricsPath: cfg.Server.MetricsPath,
		Logs:        a.Log,
	}, hub, a.Store.Health, a.Logger)
	return srv.Run(ctx)
}

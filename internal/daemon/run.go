package daemon

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/verte-zerg/leetgulag/internal/bridge"
)

// Run installs state, then serves the bridge on addr and fires the daily
// cycle until ctx is done.
func (d *Daemon) Run(ctx context.Context, addr string) error {
	if err := d.Install(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer d.hub.Close()
		return bridge.Serve(ctx, addr, d.Handler())
	})
	g.Go(func() error {
		err := d.scheduler.Run(ctx, d.OnTimer)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	d.logger.Info("daemon started", "listen", addr)
	return g.Wait()
}

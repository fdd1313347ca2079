package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pi-chan/claudeye/internal/feed"
)

var flagServeReadOnly bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll continuously and serve snapshots over HTTP",
	Long: `Poll on the configured interval and serve the results:

  GET  /snapshot          latest snapshot as JSON
  GET  /ws                WebSocket stream, one JSON frame per snapshot
  POST /activate/{pane}   switch the tmux client to a pane (URL-escape "%")
  GET  /healthz           liveness

Listens on 127.0.0.1:7420 unless --listen or "listen" in the config file
says otherwise.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		mon, tel, err := newMonitor(ctx, cfg)
		if err != nil {
			return err
		}
		defer tel.Shutdown(context.Background())

		srv := feed.NewServer(feed.Config{ListenAddr: cfg.Listen, ReadOnly: flagServeReadOnly}, mon)
		cliLog.Info("serve_started",
			slog.String("addr", srv.Addr()),
			slog.String("run_id", mon.RunID()),
			slog.Bool("otel", tel.Enabled()))
		fmt.Fprintf(os.Stderr, "claudeye %s serving on http://%s\n", Version, srv.Addr())

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return mon.Run(gctx) })
		g.Go(srv.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagListen, "listen", "", "listen address (default: listen from config)")
	serveCmd.Flags().StringVar(&flagInterval, "interval", "", "poll interval, e.g. 500ms (default: interval from config)")
	serveCmd.Flags().BoolVar(&flagServeReadOnly, "read-only", false, "disable POST /activate")
	rootCmd.AddCommand(serveCmd)
}

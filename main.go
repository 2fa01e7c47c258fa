package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mgoutay/chorus/internal/bluetooth"
	"github.com/mgoutay/chorus/internal/config"
	"github.com/mgoutay/chorus/internal/events"
	"github.com/mgoutay/chorus/internal/moc"
	"github.com/mgoutay/chorus/internal/player"
	"github.com/mgoutay/chorus/internal/playlist"
	"github.com/mgoutay/chorus/internal/router"
	"github.com/mgoutay/chorus/internal/sysvolume"
)

var (
	configPath string
	logLevel   string
	noExternal bool
)

func main() {
	root := &cobra.Command{
		Use:   "chorus",
		Short: "Playback daemon routing between mocp, an in-process pipeline and a Bluetooth sink",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
		SilenceUsage: true,
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to a config file (overrides the XDG lookup)")
	root.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	root.Flags().BoolVar(&noExternal, "no-external", false, "never use the external mocp backend")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := newLogger(cfg)

	bus := events.NewBus(log)
	defer bus.Close()
	model := playlist.New(bus)

	var (
		ctl *moc.Controller
		ext router.ExternalPlayer
	)
	if !noExternal {
		ctl = moc.New(cfg, log)
		ext = ctl
	}

	internal := player.New(log)
	sink := bluetooth.New(bus, log)
	defer sink.Close()

	r := router.New(cfg, bus, model, ext, internal, sink, sysvolume.New(log), log)
	r.Start()
	defer r.Close()

	if r.ExternalAvailable() {
		watcher, werr := moc.WatchPlaylist(ctl.PlaylistPath(), log, func() {
			bus.Defer(r.ExternalPlaylistFileChanged)
		})
		if werr != nil {
			log.WithError(werr).Warn("playlist file watch unavailable")
		} else {
			defer watcher.Close()
		}
	}

	log.WithFields(logrus.Fields{
		"external": r.ExternalAvailable(),
		"playlist": cfg.MocPlaylistPath,
	}).Info("chorus started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	log.WithField("signal", s.String()).Info("shutting down")
	return nil
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	if parsed, err := logrus.ParseLevel(level); err == nil {
		log.SetLevel(parsed)
	} else {
		log.SetLevel(logrus.InfoLevel)
		log.WithField("level", level).Warn("unknown log level, using info")
	}
	return log
}

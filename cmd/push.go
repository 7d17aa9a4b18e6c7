package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bugVanisher/rtmpsink/common/errs"
	"github.com/bugVanisher/rtmpsink/pusher"
	"github.com/bugVanisher/rtmpsink/sink"
	"github.com/bugVanisher/rtmpsink/sink/hook"
	"github.com/bugVanisher/rtmpsink/statistics"
	"github.com/bugVanisher/rtmpsink/utils"
	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push a flv file to rtmp server, reconnect when disconnected",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		cfg, err := loadPushConfig(cmd.Flags())
		if err != nil {
			return err
		}
		return runPush(cfg)
	},
}

type pushArgs struct {
	url               string
	sourceFile        string
	configFile        string
	reconnectionDelay time.Duration
	tcpTimeout        time.Duration
	rtmpLogLevel      string
	hookURL           string
	statInterval      time.Duration
	rounds            int
	name              string
}

var push pushArgs

func init() {
	rootCmd.AddCommand(pushCmd)

	fs := pflag.NewFlagSet("push", pflag.ContinueOnError)
	fs.StringVarP(&push.url, "url", "u", "", "rtmp location, e.g. rtmp://host/app/stream")
	fs.StringVarP(&push.sourceFile, "file", "f", "", "flv file to push")
	fs.StringVarP(&push.configFile, "config", "c", "", "yaml config file, flags override it")
	fs.DurationVar(&push.reconnectionDelay, "reconnection-delay", sink.DefaultReconnectionDelay, "media time to wait before reconnecting, 0 to fail on disconnection")
	fs.DurationVar(&push.tcpTimeout, "tcp-timeout", sink.DefaultTCPTimeout, "tcp connect timeout")
	fs.StringVar(&push.rtmpLogLevel, "rtmp-log-level", "error", "rtmp transport log level")
	fs.StringVar(&push.hookURL, "hook-url", "", "http callback for connection events")
	fs.DurationVar(&push.statInterval, "stat-interval", statistics.StatInterval, "statistics print interval, 0 to disable")
	fs.IntVar(&push.rounds, "rounds", 1, "times to push the file, 0 means forever")
	fs.StringVar(&push.name, "name", "push", "stream name")
	pushCmd.Flags().AddFlagSet(fs)
	pushCmd.MarkFlagRequired("file")
}

func loadPushConfig(fs *pflag.FlagSet) (sink.Config, error) {
	cfg := sink.DefaultConfig()
	if push.configFile != "" {
		if !utils.FileExists(push.configFile) {
			return cfg, errs.Wrapf(errs.ErrFileNotExist, "%s", push.configFile)
		}
		var err error
		if cfg, err = sink.LoadConfig(push.configFile); err != nil {
			return cfg, err
		}
	}
	if fs.Changed("url") || cfg.Location == "" {
		cfg.Location = push.url
	}
	if fs.Changed("reconnection-delay") {
		cfg.ReconnectionDelay = push.reconnectionDelay
	}
	if fs.Changed("tcp-timeout") {
		cfg.TCPTimeout = push.tcpTimeout
	}
	if fs.Changed("rtmp-log-level") || push.configFile == "" {
		cfg.LogLevel = push.rtmpLogLevel
	}
	if fs.Changed("hook-url") {
		cfg.HookURL = push.hookURL
	}
	return cfg, nil
}

func runPush(cfg sink.Config) error {
	g, ctx := errgroup.WithContext(context.Background())

	posters := sink.MultiPoster{sink.LogPoster{Logger: log.Logger}, sink.PosterFunc(printEvent)}
	var hookPoster *hook.Poster
	if cfg.HookURL != "" {
		hookPoster = hook.NewPoster(ctx, cfg.HookURL)
		posters = append(posters, hookPoster)
	}

	flow := statistics.NewFlow()
	s := sink.New(sink.WithPoster(posters), sink.WithFlow(flow))
	if err := s.Configure(cfg); err != nil {
		return err
	}
	defer s.Close()

	done := make(chan struct{})
	g.Go(func() error {
		defer close(done)
		p := pusher.NewFlvPusher(s, push.sourceFile, pusher.WithRounds(push.rounds))
		return pusher.Launch(push.name, p, duration)
	})
	g.Go(func() error {
		printStatistics(done, flow, push.statInterval)
		return nil
	})
	g.Go(func() error {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigs)
		select {
		case sig := <-sigs:
			log.Info().Str("signal", sig.String()).Msg("stop all streams")
			pusher.StopAll()
		case <-done:
		}
		return nil
	})

	err := g.Wait()
	if hookPoster != nil {
		hookPoster.Wait()
	}
	return err
}

func printEvent(ev sink.Event) {
	c := color.New(color.FgYellow)
	switch ev.Kind {
	case sink.EventReconnected:
		c = color.New(color.FgGreen)
	case sink.EventDisconnected:
		c = color.New(color.FgRed)
	}
	c.Fprintf(os.Stdout, "%s %-12s ts=%s %s\n", ev.PostedAt.Format(time.TimeOnly), ev.Kind, ev.Timestamp, ev.Location)
}

func printStatistics(done <-chan struct{}, flow *statistics.Flow, interval time.Duration) {
	if interval <= 0 {
		<-done
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			logSnapshot(flow.Snapshot())
			return
		case <-ticker.C:
			logSnapshot(flow.Snapshot())
		}
	}
}

func logSnapshot(s statistics.Snapshot) {
	log.Info().
		Uint64("video_bitrate", s.VideoBitrate).
		Uint64("audio_bitrate", s.AudioBitrate).
		Uint32("video_fps", s.VideoFPS).
		Uint32("audio_fps", s.AudioFPS).
		Float64("video_gop", s.VideoGop).
		Int64("video_delay_ms", s.VideoDelay).
		Int64("video_duration_delay_ms", s.VideoDurationDelay()).
		Uint64("sent_packets", s.SentPackets).
		Uint64("dropped_packets", s.DroppedPackets).
		Interface("events", s.Events).
		Msg("[stat] push statistics")
}

package config

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type Config interface {
	Init(cmd *cobra.Command) error
	Set()
}

type Server struct {
	PProf bool

	Cert   string
	Key    string
	Bind   string
	Static string
	Proxy  bool
}

func (Server) Init(cmd *cobra.Command) error {
	cmd.PersistentFlags().Bool("pprof", false, "enable pprof endpoint available at /debug/pprof")
	if err := viper.BindPFlag("pprof", cmd.PersistentFlags().Lookup("pprof")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("bind", "127.0.0.1:8000", "address/port/socket to serve the preview server")
	if err := viper.BindPFlag("bind", cmd.PersistentFlags().Lookup("bind")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("cert", "", "path to the SSL cert used to secure the preview server")
	if err := viper.BindPFlag("cert", cmd.PersistentFlags().Lookup("cert")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("key", "", "path to the SSL key used to secure the preview server")
	if err := viper.BindPFlag("key", cmd.PersistentFlags().Lookup("key")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("static", "", "path to the client files to serve")
	if err := viper.BindPFlag("static", cmd.PersistentFlags().Lookup("static")); err != nil {
		return err
	}

	cmd.PersistentFlags().Bool("proxy", false, "allow reverse proxies")
	if err := viper.BindPFlag("proxy", cmd.PersistentFlags().Lookup("proxy")); err != nil {
		return err
	}

	return nil
}

func (s *Server) Set() {
	s.PProf = viper.GetBool("pprof")

	s.Cert = viper.GetString("cert")
	s.Key = viper.GetString("key")
	s.Bind = viper.GetString("bind")
	s.Static = viper.GetString("static")
	s.Proxy = viper.GetBool("proxy")
}

type Stream struct {
	FFmpegBinary string

	Width   int
	Height  int
	FPS     int
	Quality int

	QueueSize       int
	ConnectTimeout  time.Duration
	IdleTimeout     time.Duration
	TeardownTimeout time.Duration
	RetainFailed    time.Duration
	CleanupPeriod   time.Duration

	Dedup bool
}

func (Stream) Init(cmd *cobra.Command) error {
	cmd.PersistentFlags().String("stream.ffmpeg-binary", "ffmpeg", "path to the ffmpeg binary")
	if err := viper.BindPFlag("stream.ffmpeg-binary", cmd.PersistentFlags().Lookup("stream.ffmpeg-binary")); err != nil {
		return err
	}

	cmd.PersistentFlags().Int("stream.width", 1280, "width of the preview frames")
	if err := viper.BindPFlag("stream.width", cmd.PersistentFlags().Lookup("stream.width")); err != nil {
		return err
	}

	cmd.PersistentFlags().Int("stream.height", 720, "height of the preview frames")
	if err := viper.BindPFlag("stream.height", cmd.PersistentFlags().Lookup("stream.height")); err != nil {
		return err
	}

	cmd.PersistentFlags().Int("stream.fps", 25, "capture frame rate limit")
	if err := viper.BindPFlag("stream.fps", cmd.PersistentFlags().Lookup("stream.fps")); err != nil {
		return err
	}

	cmd.PersistentFlags().Int("stream.quality", 80, "jpeg quality of the preview frames, 1-100")
	if err := viper.BindPFlag("stream.quality", cmd.PersistentFlags().Lookup("stream.quality")); err != nil {
		return err
	}

	cmd.PersistentFlags().Int("stream.queue-size", 10, "inbound frame queue length per session")
	if err := viper.BindPFlag("stream.queue-size", cmd.PersistentFlags().Lookup("stream.queue-size")); err != nil {
		return err
	}

	cmd.PersistentFlags().Duration("stream.connect-timeout", 10*time.Second, "timeout for opening a source")
	if err := viper.BindPFlag("stream.connect-timeout", cmd.PersistentFlags().Lookup("stream.connect-timeout")); err != nil {
		return err
	}

	cmd.PersistentFlags().Duration("stream.idle-timeout", 30*time.Second, "a source with no frames for this long is considered dead")
	if err := viper.BindPFlag("stream.idle-timeout", cmd.PersistentFlags().Lookup("stream.idle-timeout")); err != nil {
		return err
	}

	cmd.PersistentFlags().Duration("stream.teardown-timeout", 3*time.Second, "how long a stop waits before forcing resource release")
	if err := viper.BindPFlag("stream.teardown-timeout", cmd.PersistentFlags().Lookup("stream.teardown-timeout")); err != nil {
		return err
	}

	cmd.PersistentFlags().Duration("stream.retain-failed", time.Minute, "how long failed sessions stay listed before cleanup")
	if err := viper.BindPFlag("stream.retain-failed", cmd.PersistentFlags().Lookup("stream.retain-failed")); err != nil {
		return err
	}

	cmd.PersistentFlags().Duration("stream.cleanup-period", 4*time.Second, "how often terminal sessions are reaped")
	if err := viper.BindPFlag("stream.cleanup-period", cmd.PersistentFlags().Lookup("stream.cleanup-period")); err != nil {
		return err
	}

	cmd.PersistentFlags().Bool("stream.dedup", false, "reuse the running session when the same RTSP URL is started twice")
	if err := viper.BindPFlag("stream.dedup", cmd.PersistentFlags().Lookup("stream.dedup")); err != nil {
		return err
	}

	return nil
}

func (s *Stream) Set() {
	s.FFmpegBinary = viper.GetString("stream.ffmpeg-binary")

	s.Width = viper.GetInt("stream.width")
	s.Height = viper.GetInt("stream.height")
	s.FPS = viper.GetInt("stream.fps")
	s.Quality = viper.GetInt("stream.quality")

	s.QueueSize = viper.GetInt("stream.queue-size")
	s.ConnectTimeout = viper.GetDuration("stream.connect-timeout")
	s.IdleTimeout = viper.GetDuration("stream.idle-timeout")
	s.TeardownTimeout = viper.GetDuration("stream.teardown-timeout")
	s.RetainFailed = viper.GetDuration("stream.retain-failed")
	s.CleanupPeriod = viper.GetDuration("stream.cleanup-period")

	s.Dedup = viper.GetBool("stream.dedup")
}

package logx

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Debug        bool `split_words:"true" default:"false"`
	PrettyFormat bool `split_words:"true" default:"false"`
	Quiet        bool `split_words:"true" default:"false"`
}

var DefaultConfig = &Config{}

func safe(opts ...Config) *Config {
	if len(opts) == 0 {
		return DefaultConfig
	}
	return &opts[0]
}

// Init configures the global logger. Logs go to stderr so they never mix
// with the conversation printed on stdout.
func Init(opts ...Config) {
	conf := safe(opts...)

	var out io.Writer = os.Stderr
	if conf.PrettyFormat {
		cw := zerolog.NewConsoleWriter()
		cw.Out = os.Stderr
		out = cw
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()

	switch {
	case conf.Quiet:
		log.Logger = log.Logger.Level(zerolog.ErrorLevel)
	case conf.Debug:
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	default:
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	log.Logger = log.Logger.With().Caller().Stack().Logger()
}

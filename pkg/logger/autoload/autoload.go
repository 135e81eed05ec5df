// Package autoload initializes the global logger from LOGGER_* environment
// variables as a side effect of being imported.
package autoload

import (
	"github.com/kelseyhightower/envconfig"

	logx "github.com/agilbank/concierge/pkg/logger"
)

func init() {
	var conf logx.Config
	// Flag parsing has not happened yet, so read the environment directly.
	if err := envconfig.Process("LOGGER", &conf); err != nil {
		logx.Init()
		return
	}
	logx.Init(conf)
}

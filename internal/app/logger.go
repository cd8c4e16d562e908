package app

import (
	"strings"

	"github.com/emelmujiro/offline-gateway/pkg/logger"
)

// ConfigureLogging initialises the global logger. A blank level means info.
func ConfigureLogging(level string) error {
	if level = strings.TrimSpace(level); level == "" {
		level = "info"
	}
	return logger.Init(level)
}

package billing

import (
	"io"
	"log/slog"

	"github.com/dmitrymomot/freightbill/pkg/clientip"
	"github.com/dmitrymomot/freightbill/pkg/logger"
	"github.com/dmitrymomot/freightbill/pkg/requestid"
)

// NewLogger builds the process logger for cfg. LOG_LEVEL overrides the
// environment default when it parses.
func NewLogger(cfg Config, w io.Writer) *slog.Logger {
	opts := []logger.Option{
		logger.WithEnvironment(cfg.AppEnv, cfg.ServiceName),
		logger.WithContextExtractors(
			requestid.LoggerExtractor(),
			clientip.LoggerExtractor(),
			logger.TenantExtractor(),
		),
	}
	if w != nil {
		opts = append(opts, logger.WithOutput(w))
	}
	var level slog.Level
	if cfg.LogLevel != "" && level.UnmarshalText([]byte(cfg.LogLevel)) == nil {
		opts = append(opts, logger.WithLevel(level))
	}
	return logger.New(opts...)
}

package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel and LogJSON are package-level settings, mirroring the teacher's
// coordinator/internal/utils/log.go flag variables. main.go's init() binds
// LogJSON to the root command's --log-json flag; LogLevel has no flag.
var (
	LogLevel = zerolog.InfoLevel
	LogJSON  bool
)

// configureLogger sets up zerolog's global logger for human-readable
// console bootstrap output. Request-path packages use pingcap/log's zap
// core instead (shared/otel, pkg/*); this is only the CLI process's own
// startup/shutdown narration.
func configureLogger() {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	if !LogJSON {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.StampMicro,
		})
	}
	zerolog.SetGlobalLevel(LogLevel)
}

package logging

import (
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// InitLogging fans structured logs out to a json file handler (for log
// collection) and a plain text handler on stderr. The attrs are attached to
// every json record so log queries can filter by service.
func InitLogging(logFile *os.File, attrs ...slog.Attr) {
	var jsonHandler slog.Handler = slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: slog.LevelDebug})
	if len(attrs) > 0 {
		jsonHandler = jsonHandler.WithAttrs(attrs)
	}

	textHandler := slog.NewTextHandler(os.Stderr, nil)

	logger := slog.New(slogmulti.Fanout(jsonHandler, textHandler))
	slog.SetDefault(logger)
}

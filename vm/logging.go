package vm

import (
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"

	"vesper/vm/config"
)

// Log is the package-level logger every vm file logs through, a thin
// per-concern logging seam rather than threading a logger through every
// call. It starts as a plain console logger so tests and early startup
// have somewhere to write before ConfigureLogging runs.
var Log = slog.New(slog.NewTextHandler(os.Stderr, nil))

// ConfigureLogging rebuilds Log from cfg: a text console handler, plus
// an optional file handler when cfg.Log.FilePath is set, fanned out
// through github.com/samber/slog-multi so both destinations see every
// record.
func ConfigureLogging(cfg *config.Config) (func() error, error) {
	level := parseLevel(cfg.Log.Level)
	opts := &slog.HandlerOptions{Level: level}

	handlers := []slog.Handler{slog.NewTextHandler(os.Stderr, opts)}
	closeFile := func() error { return nil }

	if cfg.Log.FilePath != "" {
		f, err := os.OpenFile(cfg.Log.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, slog.NewJSONHandler(f, opts))
		closeFile = f.Close
	}

	Log = slog.New(slogmulti.Fanout(handlers...))
	return closeFile, nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// logFatalContext logs the diagnostic context (opcode, bcp, frame depth)
// before Fatal terminates the process.
func logFatalContext(reason string, opcode Opcode, bcp Value, frameDepth int) {
	Log.Error("fatal interpreter error",
		"reason", reason,
		"opcode", opcode.String(),
		"bcp", int(bcp),
		"frame_depth", frameDepth,
	)
}

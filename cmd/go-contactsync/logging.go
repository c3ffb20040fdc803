package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	slogmulti "github.com/samber/slog-multi"

	"github.com/tartampluch/go-contactsync/internal/config"
)

// setupLogging installs the default slog logger: a colored console handler
// on stderr for warnings (everything with --debug) and a JSON handler on a
// log file in the user's cache directory.
func setupLogging(debugMode bool, console io.Writer) io.Closer {
	consoleLevel, fileLevel := log.WarnLevel, slog.LevelInfo
	if debugMode {
		consoleLevel, fileLevel = log.DebugLevel, slog.LevelDebug
	}

	handlers := []slog.Handler{
		log.NewWithOptions(console, log.Options{
			Level:           consoleLevel,
			ReportTimestamp: debugMode,
			Prefix:          config.CmdRoot,
		}),
	}

	var logFile *os.File
	if logPath, err := getLogFilePath(); err == nil {
		// O_TRUNC resets logs on restart to prevent indefinite growth.
		f, err := os.OpenFile(logPath, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, config.FilePermUserRW)
		if err == nil {
			handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{
				Level:     fileLevel,
				AddSource: debugMode,
			}))
			logFile = f
		} else {
			fmt.Fprintf(console, config.MsgLogWarning, config.ErrLogFile, logPath, err)
		}
	}

	slog.SetDefault(slog.New(slogmulti.Fanout(handlers...)))

	if logFile == nil {
		return nil
	}
	return logFile
}

// getLogFilePath determines the platform-specific cache directory for logs.
func getLogFilePath() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCacheDir, err)
	}

	appDir := filepath.Join(cacheDir, config.AppID)

	if err := os.MkdirAll(appDir, config.DirPermUserRWX); err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCreateDir, err)
	}

	return filepath.Join(appDir, config.LogFileName), nil
}

// voicecrm-console is the terminal history browser for the Voice CRM API.
// It lists stored interactions next to the evaluation reference set, edits
// and deletes stored ones and turns local recordings into drafts.
//
// With --redis (or REDIS_URL) set, per-record action locks are shared with
// other consoles so two operators cannot write the same record at once.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"voicecrm/api/internal/config"
	"voicecrm/api/internal/console"
	"voicecrm/api/internal/lock"
	"voicecrm/api/internal/recordstore"
	"voicecrm/api/internal/workspace"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg := config.LoadConsole()

	flagSet := pflag.NewFlagSet("voicecrm-console", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.APIURL, "api", cfg.APIURL, "base URL of the Voice CRM API")
	flagSet.StringVar(&cfg.ReferencePath, "reference", cfg.ReferencePath, "evaluation results file or URL")
	flagSet.StringVar(&cfg.RedisURL, "redis", cfg.RedisURL, "redis URL for shared record locks (optional)")
	flagSet.DurationVar(&cfg.LockTTL, "lock-ttl", cfg.LockTTL, "expiry of a shared record lock")
	flagSet.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "write logs to this file instead of the terminal")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	if cfg.LogFile != "" {
		logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer logFile.Close()
		log.SetOutput(logFile)
	}

	client := recordstore.NewClient(cfg.APIURL, nil)
	opts := []workspace.Option{workspace.WithVoiceProcessor(client)}
	if cfg.RedisURL != "" {
		locker, err := lock.NewRedisLocker(cfg.RedisURL, cfg.LockTTL)
		if err != nil {
			return err
		}
		defer locker.Close()
		opts = append(opts, workspace.WithSharedLocker(locker))
		log.Printf("console: sharing record locks through redis")
	}
	session := workspace.New(client, recordstore.NewReferenceSource(cfg.ReferencePath, nil), opts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	program := tea.NewProgram(console.NewModel(ctx, session), tea.WithAltScreen())
	_, err := program.Run()
	session.Close()
	return err
}

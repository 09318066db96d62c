package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/npezzotti/anon-chat/internal/chatapi"
	"github.com/npezzotti/anon-chat/internal/config"
	"github.com/npezzotti/anon-chat/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type rootFlags struct {
	configPath string
	server     string
	logLevel   string
}

// app is what every subcommand runs against once flags are parsed.
type app struct {
	cfg    config.ClientConfig
	log    zerolog.Logger
	closer io.Closer
	client *chatapi.Client
}

// readPassword is swapped out in tests.
var readPassword = promptPassword

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "anonchat",
		Short:         "Anonymous chat rooms in the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "path to a YAML config file")
	pf.StringVar(&f.server, "server", "", "backend base URL (overrides config)")
	pf.StringVar(&f.logLevel, "log-level", "", "log level (overrides config)")

	cmd.AddCommand(
		newChatCmd(f),
		newRoomsCmd(f),
		newSendCmd(f),
		newUploadCmd(f),
		newAdminCmd(f),
	)
	return cmd
}

// loadConfig layers the command-line overrides on top of LoadClientConfig.
func loadConfig(f *rootFlags) (config.ClientConfig, error) {
	cfg, err := config.LoadClientConfig(f.configPath)
	if err != nil {
		return cfg, err
	}
	if f.server != "" {
		cfg.ServerURL = f.server
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// newApp builds the client for a subcommand. The chat screen owns the
// terminal, so it logs to a file; everything else logs to stderr.
func newApp(f *rootFlags, logToFile bool) (*app, error) {
	cfg, err := loadConfig(f)
	if err != nil {
		return nil, err
	}

	opts := logging.Options{Level: cfg.LogLevel}
	if logToFile {
		opts.File = cfg.LogFile
		if opts.File == "" {
			opts.File = logging.DefaultFile()
		}
	}
	logger, closer, err := logging.New(opts)
	if err != nil {
		return nil, err
	}

	client, err := chatapi.New(cfg.ServerURL, chatapi.WithLogger(logger))
	if err != nil {
		closer.Close()
		return nil, err
	}

	return &app{
		cfg:    cfg,
		log:    logger,
		closer: closer,
		client: client,
	}, nil
}

func (a *app) Close() error {
	return a.closer.Close()
}

// promptPassword reads a line from the terminal without echo, or a plain
// line when stdin is not a terminal.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}

	var line string
	if _, err := fmt.Fscanln(os.Stdin, &line); err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return line, nil
}

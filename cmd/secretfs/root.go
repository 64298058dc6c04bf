package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/absfs/secretfs"
	"github.com/absfs/secretfs/internal/config"
	"github.com/absfs/secretfs/internal/logger"
	"github.com/absfs/secretfs/internal/osfs"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// PasswordEnv can supply the password non-interactively
const PasswordEnv = "SECRETFS_PASSWORD"

// app carries state shared by all subcommands
type app struct {
	configPath string
	storePath  string
	verbose    bool

	cfg     *config.Config
	log     *logger.Logger
	logFile *os.File

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{stdin: stdin, stdout: stdout, stderr: stderr}
}

// execute runs the command line in args. The log file is closed even when
// the command fails, which skips cobra's post-run hooks.
func (a *app) execute(args []string) error {
	root := a.rootCmd()
	root.SetArgs(args)
	err := root.Execute()
	if cerr := a.closeLog(); err == nil {
		err = cerr
	}
	return err
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "secretfs",
		Short: "secretfs - an encrypted store of text secrets",
		Long: `secretfs keeps text secrets in an ordinary directory tree where both
file names and contents are encrypted with a key derived from your password.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			child := a.log.GetChildLogger()
			child.UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("command", cmd.Name())
			})
			cmd.SetContext(child.WithContext(cmd.Context()))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.closeLog()
		},
	}

	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a config file")
	root.PersistentFlags().StringVarP(&a.storePath, "store", "s", "", "repository directory (overrides store.path)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		a.initCmd(),
		a.lsCmd(),
		a.showCmd(),
		a.insertCmd(),
		a.rmCmd(),
		a.mkdirCmd(),
		a.mvCmd(),
		a.pathCmd(),
	)

	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.storePath != "" {
		cfg.Store.Path = a.storePath
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}
	a.cfg = cfg

	out, err := a.logOutput(cfg.Logging.Output)
	if err != nil {
		return err
	}
	a.log, err = logger.NewLogger("cli", cfg.Logging.Level, cfg.Logging.Format, out)
	return err
}

func (a *app) logOutput(output string) (io.Writer, error) {
	switch output {
	case "stdout":
		return a.stdout, nil
	case "stderr":
		return a.stderr, nil
	}
	f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	a.logFile = f
	return f, nil
}

// closeLog closes the log file opened by setup, if any
func (a *app) closeLog() error {
	if a.logFile == nil {
		return nil
	}
	err := a.logFile.Close()
	a.logFile = nil
	if err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}

// hostFS returns the store directory as a filesystem, creating it if needed
func (a *app) hostFS() (*osfs.FileSystem, error) {
	if err := os.MkdirAll(a.cfg.Store.Path, 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return osfs.New(a.cfg.Store.Path)
}

func (a *app) keyProvider() (secretfs.KeyProvider, error) {
	if a.cfg.Store.KeyEnv != "" {
		return secretfs.NewEnvKeyProvider(a.cfg.Store.KeyEnv), nil
	}

	password, err := a.password()
	if err != nil {
		return nil, err
	}
	return secretfs.NewPasswordKeyProvider([]byte(password), secretfs.PBKDF2Params{
		Iterations: a.cfg.KDF.Iterations,
	}), nil
}

func (a *app) password() (string, error) {
	if p := os.Getenv(PasswordEnv); p != "" {
		return p, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no terminal to prompt for a password; set %s", PasswordEnv)
	}

	fmt.Fprint(a.stderr, "Password: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(a.stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if len(raw) == 0 {
		return "", errors.New("password cannot be empty")
	}
	return string(raw), nil
}

func (a *app) open() (*secretfs.Repository, error) {
	fs, err := a.hostFS()
	if err != nil {
		return nil, err
	}
	provider, err := a.keyProvider()
	if err != nil {
		return nil, err
	}
	return secretfs.Open(fs, "/", &secretfs.Config{
		KeyProvider: provider,
		Logger:      a.log.Zerolog(),
	})
}

// openWithLocation opens the repository and parses a location argument
func (a *app) openWithLocation(arg string) (*secretfs.Repository, secretfs.Location, error) {
	repo, err := a.open()
	if err != nil {
		return nil, secretfs.Location{}, err
	}
	loc, err := repo.ParseLocation(arg)
	if err != nil {
		return nil, secretfs.Location{}, err
	}
	return repo, loc, nil
}

func trimNewline(s string) string {
	return strings.TrimSuffix(strings.TrimSuffix(s, "\n"), "\r")
}

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lorena-ssi/wallet-fs/internal/config"
	"github.com/lorena-ssi/wallet-fs/pkg/audit"
	"github.com/lorena-ssi/wallet-fs/pkg/crypto"
	"github.com/lorena-ssi/wallet-fs/pkg/storage"
	"github.com/lorena-ssi/wallet-fs/pkg/wallet"
)

var (
	cfg     *config.Config
	store   storage.Store
	journal *audit.Logger
	log     = logrus.New()

	stdin = bufio.NewReader(os.Stdin)
)

// Global flags
var (
	flagRoot     string
	flagStorage  string
	flagSilent   bool
	flagLogLevel string
	flagConfig   string
	flagEnvFile  string
	flagNoAudit  bool
)

var rootCmd = &cobra.Command{
	Use:   "lorena-wallet",
	Short: "lorena-wallet manages password-encrypted credential wallets",
	Long: `A local wallet for identity material and credential collections.
Each wallet is sealed with its own password and kept on the filesystem,
in SQLite or in Redis.`,
	SilenceUsage: true,
	// PersistentPreRunE resolves configuration and opens the shared store
	// before every subcommand.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd.Context(), cmd.Root().PersistentFlags())
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return teardown()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagRoot, "root", "", "Directory holding .lorena/wallets (default: home directory)")
	pf.StringVar(&flagStorage, "storage", "", "Storage backend: fs, sqlite, redis")
	pf.BoolVar(&flagSilent, "silent", false, "Suppress diagnostics")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&flagConfig, "config", "", "Config file (default: ~/.lorena/config.yaml)")
	pf.StringVar(&flagEnvFile, "env-file", "", "Env file (default: .env)")
	pf.BoolVar(&flagNoAudit, "no-audit", false, "Do not write the audit journal")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(existsCmd)
	rootCmd.AddCommand(unlockCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(auditCmd)
}

type flagSet interface {
	Changed(name string) bool
}

func setup(ctx context.Context, flags flagSet) error {
	c, err := config.Load(config.Sources{
		File:    flagConfig,
		EnvFile: flagEnvFile,
	})
	if err != nil {
		return err
	}
	if err := applyFlags(c, flags); err != nil {
		return err
	}
	cfg = c
	journal = nil

	log.SetOutput(os.Stderr)
	log.SetLevel(cfg.Level())
	if cfg.Silent {
		log.SetOutput(io.Discard)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	s, err := storage.Open(ctx, cfg.StorageConfig())
	if err != nil {
		return fmt.Errorf("failed to open %s storage: %w", cfg.Storage, err)
	}
	store = s

	if !flagNoAudit && cfg.AuditDir != "" {
		journal = audit.NewLogger(cfg.AuditDir).WithStorage(string(store.Kind()))
	}
	log.WithFields(logrus.Fields{"storage": cfg.Storage, "root": cfg.Root}).Debug("configuration loaded")
	return nil
}

// applyFlags overrides configuration with flags given on the command line.
// The mem backend is refused since nothing it holds outlives the process.
func applyFlags(c *config.Config, flags flagSet) error {
	if flags.Changed("root") {
		c.Root = c.ExpandHome(flagRoot)
	}
	if flags.Changed("storage") {
		c.Storage = flagStorage
	}
	if flags.Changed("silent") {
		c.Silent = flagSilent
	}
	if flags.Changed("log-level") {
		c.LogLevel = flagLogLevel
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if kind, _ := storage.ParseKind(c.Storage); kind == storage.KindMem {
		return fmt.Errorf("%w: storage %q does not persist between commands, use fs, sqlite or redis", config.ErrInvalidConfig, c.Storage)
	}
	return nil
}

func teardown() error {
	if closer, ok := store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// openWallet binds name to the configured store. Nothing is read.
func openWallet(name string) (*wallet.Wallet, error) {
	return wallet.New(name, wallet.Options{
		Root:   cfg.Root,
		Silent: cfg.Silent,
		Store:  store,
		Logger: log,
		Audit:  journal,
	})
}

// unlockWallet opens name and unlocks it with a prompted password. The
// password is returned so a mutating command can lock with it afterwards.
func unlockWallet(ctx context.Context, name string) (*wallet.Wallet, string, error) {
	w, err := openWallet(name)
	if err != nil {
		return nil, "", err
	}
	if !w.Exists(ctx) {
		return nil, "", fmt.Errorf("wallet %q does not exist (run 'lorena-wallet init %s')", name, name)
	}

	password, err := readPassword("Enter wallet password: ")
	if err != nil {
		return nil, "", err
	}
	if !w.Unlock(ctx, password) {
		return nil, "", errors.New("failed to unlock wallet: wrong password or corrupt wallet")
	}
	return w, password, nil
}

// lockWallet persists w under password.
func lockWallet(ctx context.Context, w *wallet.Wallet, password string) error {
	if !w.Lock(ctx, password) {
		return fmt.Errorf("failed to lock wallet %q", w.Name())
	}
	return nil
}

// readPassword prompts on a terminal, or reads one line when stdin is not
// a terminal.
func readPassword(prompt string) (string, error) {
	if isTerminal(int(syscall.Stdin)) {
		fmt.Fprint(os.Stderr, prompt)
		passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
		defer crypto.SecureWipe(passwordBytes)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(passwordBytes), nil
	}
	return readLine(stdin)
}

// readNewPassword prompts twice and checks that both entries match.
func readNewPassword() (string, error) {
	password1, err := readPassword("Enter wallet password: ")
	if err != nil {
		return "", err
	}
	password2, err := readPassword("Confirm wallet password: ")
	if err != nil {
		return "", err
	}
	if password1 != password2 {
		return "", errors.New("passwords do not match")
	}
	if password1 == "" {
		return "", errors.New("password must not be empty")
	}
	return password1, nil
}

// readLine reads a single line, trimming the trailing newline
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	if err == io.EOF && line == "" {
		return "", errors.New("failed to read input: no data")
	}
	value := strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(value, "\r"), nil
}

// isTerminal returns true if the file descriptor is a terminal
var isTerminal = func(fd int) bool {
	return term.IsTerminal(fd)
}

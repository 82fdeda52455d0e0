package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/stxapps/gaia-go/internal/config"
	"github.com/stxapps/gaia-go/pkg/client"
	"github.com/stxapps/gaia-go/pkg/hub"
	"github.com/stxapps/gaia-go/pkg/logger"
	"github.com/stxapps/gaia-go/pkg/naming"
	"github.com/stxapps/gaia-go/pkg/retry"
	"github.com/stxapps/gaia-go/pkg/session"
)

// annotationKey marks commands that prompt for the identity key when none
// is configured. The value "decrypt" prompts only if --decrypt is set.
const annotationKey = "identity-key"

// app is the state shared by all commands, built once flags are parsed.
type app struct {
	cfgFile string
	verbose bool

	cfg    *config.Config
	cache  *session.Cache
	client *client.Client
	retry  retry.Config

	// readKey prompts for the identity key.
	readKey func() (string, error)
}

func newRootCmd() *cobra.Command {
	a := &app{readKey: promptKey}

	root := &cobra.Command{
		Use:           "gaia",
		Short:         "Gaia hub storage client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default ~/.config/gaia/config.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		a.loginCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.getCmd(),
		a.putCmd(),
		a.rmCmd(),
		a.lsCmd(),
		a.batchCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if err := logger.Init(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if a.verbose {
		logger.SetLevel("debug")
	}

	if cfg.PrivateKey == "" && a.wantsKey(cmd) {
		key, err := a.readKey()
		if err != nil {
			return err
		}
		cfg.PrivateKey = key
	}

	store, err := session.NewStoreFromConfig(cmd.Context(), cfg.SessionStore, cfg.StoreConfig())
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.cache = session.New(session.Config{
		Profile: session.Profile{
			PrivateKey:       cfg.PrivateKey,
			HubURL:           cfg.HubURL,
			AssociationToken: cfg.AssociationToken,
		},
		Connector: hub.New(hub.Config{Timeout: cfg.Timeout}),
		Store:     store,
		Key:       cfg.SessionKey,
	})
	a.client = client.New(client.Config{
		Sessions:     a.cache,
		PrivateKey:   cfg.PrivateKey,
		Resolver:     naming.NewHTTPResolver(nil),
		LocalFiles:   client.FileRefs{Root: cfg.LocalRoot},
		Timeout:      cfg.Timeout,
		BatchTimeout: cfg.BatchTimeout,
	})
	a.retry = retry.DefaultConfig()
	a.retry.MaxAttempts = cfg.RetryAttempts
	return nil
}

func (a *app) wantsKey(cmd *cobra.Command) bool {
	switch cmd.Annotations[annotationKey] {
	case "always":
		return true
	case "decrypt":
		decrypt, _ := cmd.Flags().GetBool("decrypt")
		return decrypt
	default:
		return false
	}
}

// promptKey reads the key from the terminal without echo. Without a
// terminal there is nothing to prompt and the key stays empty.
func promptKey() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}
	fmt.Fprint(os.Stderr, "App private key: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read private key: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

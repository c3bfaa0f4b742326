// Package command holds the cobra commands of the notifier CLI.
package command

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/campus-notifier/internal/credential"
	"github.com/nhle/campus-notifier/internal/gateway"
	"github.com/nhle/campus-notifier/internal/model"
	"github.com/nhle/campus-notifier/internal/obs"
)

const appName = "campus-notifier"

var (
	cfgFile string // config file path
	apiURL  string // overrides gateway.base_url

	// version is set at build time with -ldflags "-X ...".
	version = "dev"

	cfg *model.AppConfig
)

// rootCmd runs the terminal UI when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "notifier",
	Short: "notifier - campus event notifications in your terminal",
	Long: `notifier keeps you up to date with campus event notifications.

Run without arguments (or "notifier tui") for the interactive inbox. The other
commands give scriptable access to the same gateway. Sign in first with
"notifier login".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine; it only supplies optional overrides.
		_ = godotenv.Load()

		c, err := model.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		if apiURL != "" {
			c.Gateway.BaseURL = strings.TrimRight(apiURL, "/")
		}
		cfg = c
		return nil
	},
	RunE: runTUI,
}

// Execute runs the root command. It is called once by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", model.DefaultConfigPath(), "config file path")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "notification gateway URL (overrides gateway.base_url)")
	rootCmd.Version = version

	rootCmd.AddCommand(
		tuiCmd,
		loginCmd,
		logoutCmd,
		unreadCmd,
		listCmd,
		readCmd,
		subscribeCmd,
		unsubscribeCmd,
		prefsCmd,
		devgatewayCmd,
	)
}

// newLogger builds the process logger. file, when set, sends output to a
// rotated file instead of stderr.
func newLogger(file string) *zap.Logger {
	l, err := obs.NewLogger(obs.LogConfig{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		File:   file,
		App:    appName,
		Ver:    version,
	})
	if err != nil {
		obs.Fatal("creating logger", err)
	}
	return l
}

// newClient builds a gateway client reading its token from tokens.
func newClient(tokens gateway.TokenSource) *gateway.Client {
	return gateway.NewClient(gateway.Options{
		BaseURL:    cfg.Gateway.BaseURL,
		Tokens:     tokens,
		Timeout:    cfg.Gateway.Timeout,
		MaxRetries: cfg.Gateway.MaxRetries,
		RateLimit:  cfg.Gateway.RateLimit,
		RateBurst:  cfg.Gateway.RateBurst,
	})
}

// authedClient opens the keyring and returns a client for the stored
// token, failing early when nobody is logged in.
func authedClient() (*gateway.Client, *credential.TokenStore, error) {
	tokens, err := credential.Open()
	if err != nil {
		return nil, nil, err
	}
	if !tokens.LoggedIn() {
		return nil, nil, fmt.Errorf("%w; run \"notifier login\" first", credential.ErrNoToken)
	}
	return newClient(tokens), tokens, nil
}

package command

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/campus-notifier/internal/devgateway"
	"github.com/nhle/campus-notifier/internal/inbox"
)

var (
	devAddr     string
	devDBPath   string
	devSeedUser string
	devSeedN    int
)

// devgatewayCmd serves the gateway REST contract locally, backed by SQLite.
var devgatewayCmd = &cobra.Command{
	Use:   "devgateway",
	Short: "Run a local notification gateway for development",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := cfg.DevGateway.Addr
		if devAddr != "" {
			addr = devAddr
		}
		dbPath := cfg.DevGateway.DBPath
		if devDBPath != "" {
			dbPath = devDBPath
		}

		log := newLogger("")
		defer func() { _ = log.Sync() }()

		if dbPath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
				return fmt.Errorf("creating database directory: %w", err)
			}
		}
		repo, err := devgateway.OpenRepository(dbPath)
		if err != nil {
			return err
		}
		defer repo.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if devSeedUser != "" {
			for i := 0; i < devSeedN; i++ {
				n := inbox.Synthetic(i == 0, time.Now())
				n.ID = ""
				if _, err := repo.CreateNotification(ctx, devSeedUser, n); err != nil {
					return fmt.Errorf("seeding notifications: %w", err)
				}
			}
			log.Info("seeded notifications", zap.String("user", devSeedUser), zap.Int("count", devSeedN))
		}

		return devgateway.NewServer(repo, log).Run(ctx, addr)
	},
}

func init() {
	devgatewayCmd.Flags().StringVar(&devAddr, "addr", "", "listen address (overrides devgateway.addr)")
	devgatewayCmd.Flags().StringVar(&devDBPath, "db", "", "SQLite path (overrides devgateway.db_path)")
	devgatewayCmd.Flags().StringVar(&devSeedUser, "seed-user", "", "insert sample notifications for this token/user")
	devgatewayCmd.Flags().IntVar(&devSeedN, "seed", 5, "number of sample notifications with --seed-user")
}

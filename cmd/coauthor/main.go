package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/coauthor/internal/config"
	"github.com/xxxsen/coauthor/internal/db"
	"github.com/xxxsen/coauthor/internal/model"
	appErr "github.com/xxxsen/coauthor/internal/pkg/errors"
	"github.com/xxxsen/coauthor/internal/pkg/jwt"
	"github.com/xxxsen/coauthor/internal/pkg/timeutil"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "coauthor",
		Short:         "collaborative article versioning backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	load := func() (*config.Config, error) {
		if configPath == "" {
			return nil, fmt.Errorf("--config is required")
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		logger.Init(
			cfg.LogConfig.File,
			cfg.LogConfig.Level,
			int(cfg.LogConfig.FileCount),
			int(cfg.LogConfig.FileSize),
			int(cfg.LogConfig.KeepDays),
			cfg.LogConfig.Console,
		)
		logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
		return cfg, nil
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run coauthor server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}

	var rollback int
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.Database.Driver != config.DriverPostgres {
				return fmt.Errorf("migrate requires the postgres driver")
			}
			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer conn.Close()
			if rollback > 0 {
				return db.RollbackMigrations(conn, rollback)
			}
			return db.ApplyMigrations(conn)
		},
	}
	migrateCmd.Flags().IntVar(&rollback, "rollback", 0, "roll back this many migrations instead of applying")

	var username, email string
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "manage users",
	}
	userCreateCmd := &cobra.Command{
		Use:   "create",
		Short: "create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.Database.Driver != config.DriverPostgres {
				return fmt.Errorf("user create requires the postgres driver, use seed_users for memory")
			}
			st, err := openStores(cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			user := &model.User{Username: username, Email: email, CreatedAt: timeutil.Now()}
			if err := st.createUser(cmd.Context(), user); err != nil {
				if appErr.IsAlreadyExists(err) {
					return fmt.Errorf("username or email already taken")
				}
				return err
			}
			fmt.Fprintf(os.Stdout, "created user %s id=%d\n", user.Username, user.ID)
			return nil
		},
	}
	userCreateCmd.Flags().StringVar(&username, "username", "", "unique username")
	userCreateCmd.Flags().StringVar(&email, "email", "", "unique email")
	_ = userCreateCmd.MarkFlagRequired("username")
	_ = userCreateCmd.MarkFlagRequired("email")
	userCmd.AddCommand(userCreateCmd)

	var tokenUser string
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "issue a bearer token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			st, err := openStores(cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			user, err := st.userByName(cmd.Context(), tokenUser)
			if appErr.IsNotFound(err) {
				return fmt.Errorf("user %q does not exist", tokenUser)
			}
			if err != nil {
				return fmt.Errorf("lookup user %q: %w", tokenUser, err)
			}
			token, err := jwt.GenerateToken(user.ID, user.Username, []byte(cfg.JWTSecret), time.Hour*time.Duration(cfg.JWTTTLHours))
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, token)
			return nil
		},
	}
	tokenCmd.Flags().StringVar(&tokenUser, "username", "", "username to issue the token for")
	_ = tokenCmd.MarkFlagRequired("username")

	rootCmd.AddCommand(runCmd, migrateCmd, userCmd, tokenCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("command failed", zap.Error(err))
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipes-backend/internal/auth"
	"github.com/tbourn/go-recipes-backend/internal/config"
	"github.com/tbourn/go-recipes-backend/internal/domain"
	"github.com/tbourn/go-recipes-backend/internal/importer"
	"github.com/tbourn/go-recipes-backend/internal/repo"
	"github.com/tbourn/go-recipes-backend/internal/sysutil"
)

// app carries state shared by subcommands once the root pre-run completes.
type app struct {
	cfg    config.Config
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "recipesctl",
		Short:         "Operate the recipes backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			pretty := !sysutil.IsTruthy(os.Getenv("RECIPESCTL_JSON_LOGS"))
			a.logger = sysutil.SetupLogging(cfg.LogLevel, pretty, "recipesctl")
			cmd.SetContext(a.logger.WithContext(cmd.Context()))
			return nil
		},
	}
	root.AddCommand(
		a.migrateCmd(),
		a.importIngredientsCmd(),
		a.createUserCmd(),
		a.issueTokenCmd(),
		a.purgeIdempotencyCmd(),
	)
	return root
}

func (a *app) openDB(ctx context.Context) (*gorm.DB, error) {
	db, err := repo.Open(a.cfg.DB.Driver, a.cfg.DB.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", a.cfg.DB.Driver, err)
	}
	if err := repo.AutoMigrate(db.WithContext(ctx)); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.openDB(cmd.Context()); err != nil {
				return err
			}
			a.logger.Info().Str("driver", a.cfg.DB.Driver).Msg("schema up to date")
			return nil
		},
	}
}

func (a *app) importIngredientsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-ingredients <file.csv>",
		Short: "Load name,measurement_unit rows into the ingredient catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			res, err := importer.ImportIngredientsFile(cmd.Context(), db, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "read %d rows, inserted %d ingredients\n", res.Read, res.Inserted)
			return nil
		},
	}
}

func (a *app) createUserCmd() *cobra.Command {
	var u domain.User
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Provision a user account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u.Email = strings.TrimSpace(u.Email)
			u.Username = strings.TrimSpace(u.Username)
			if u.Email == "" || u.Username == "" {
				return errors.New("--email and --username are required")
			}
			db, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			if err := repo.CreateUser(cmd.Context(), db, &u); err != nil {
				if repo.IsDuplicate(err) {
					return fmt.Errorf("user %q or email %q already exists", u.Username, u.Email)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\n", u.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&u.Email, "email", "", "email address")
	f.StringVar(&u.Username, "username", "", "unique username")
	f.StringVar(&u.FirstName, "first-name", "", "first name")
	f.StringVar(&u.LastName, "last-name", "", "last name")
	f.BoolVar(&u.IsAdmin, "admin", false, "grant administrator rights")
	return cmd
}

func (a *app) issueTokenCmd() *cobra.Command {
	var (
		userID int64
		admin  bool
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Mint a bearer token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID <= 0 {
				return errors.New("--user-id must be a positive user id")
			}
			if ttl <= 0 {
				ttl = a.cfg.Auth.TTL
			}
			tok, err := auth.NewTokenService(a.cfg.Auth.Secret, ttl, a.cfg.Auth.Issuer).Issue(userID, admin)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	f := cmd.Flags()
	f.Int64Var(&userID, "user-id", 0, "user id the token identifies")
	f.BoolVar(&admin, "admin", false, "include the admin claim")
	f.DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to JWT_TTL)")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func (a *app) purgeIdempotencyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge-idempotency",
		Short: "Delete expired idempotency keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			n, err := repo.IdempotencyStore{DB: db}.Purge(cmd.Context(), time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired keys\n", n)
			return nil
		},
	}
}

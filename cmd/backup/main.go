package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"familytasks/internal/config"
	"familytasks/internal/database"
	"familytasks/internal/logger"
	"familytasks/internal/models"
	"familytasks/internal/service"
	"familytasks/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "backup",
		Short:         "Family Tasks database maintenance tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env holds what the database subcommands need
type env struct {
	log *zap.Logger
	db  *database.DB
}

// open loads configuration, connects to the database and applies pending
// migrations
func open(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: "console"})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	applied, err := db.RunMigrations(ctx, migrations.FS)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if len(applied) > 0 {
		log.Info("Applied migrations", zap.Strings("migrations", applied))
	}
	return &env{log: log, db: db}, nil
}

func (e *env) close() {
	_ = e.log.Sync()
	e.db.Close()
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()
			fmt.Println("Schema is up to date")
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the database to a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = fmt.Sprintf("backup_%s.json", time.Now().Format("20060102_150405"))
			}
			if dir := filepath.Dir(output); dir != "." && dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("failed to create output directory: %w", err)
				}
			}

			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			backup, err := service.NewBackupService(e.db, e.log).Export(cmd.Context(), output)
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}

			info, err := os.Stat(output)
			if err != nil {
				return err
			}
			fmt.Printf("Exported %d tasks across %d groups to %s (%.2f MB)\n",
				len(backup.Tasks), len(backup.Groups), output, float64(info.Size())/1024/1024)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file path (default: backup_YYYYMMDD_HHMMSS.json)")
	return cmd
}

func importCmd() *cobra.Command {
	var (
		input     string
		clearData bool
		yes       bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a JSON backup into the database",
		Long: `Import a JSON backup. Rows that already exist are kept, so the same
backup can be imported twice. With --clear every table is emptied first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(input); err != nil {
				return fmt.Errorf("input file: %w", err)
			}

			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			backups := service.NewBackupService(e.db, e.log)
			if clearData {
				if !yes && !confirm(cmd, "WARNING: This will delete all existing data. Type 'yes' to confirm: ") {
					fmt.Println("Import cancelled")
					return nil
				}
				if err := backups.Clear(cmd.Context()); err != nil {
					return err
				}
			}

			if err := backups.Import(cmd.Context(), input); err != nil {
				return fmt.Errorf("import failed: %w", err)
			}
			fmt.Println("Import complete")
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "input file path")
	cmd.Flags().BoolVar(&clearData, "clear", false, "clear existing data before import (destructive)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the --clear confirmation prompt")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		email string
		name  string
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token [user-id]",
		Short: "Sign a development access token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			// Signing needs no profile store.
			sessions := service.NewSessionProvider(cfg.AuthJWTSecret, cfg.AuthJWTIssuer, nil, nil)
			token, err := sessions.IssueToken(&models.User{ID: args[0], Email: email, FullName: name}, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&name, "name", "", "display name claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	return strings.TrimSpace(answer) == "yes"
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"asyncops/internal/config"
	"asyncops/internal/logger"
	"asyncops/internal/model"
	"asyncops/internal/service"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	configPath string
	cfg        *config.Config

	ok   = color.New(color.FgGreen).SprintFunc()
	warn = color.New(color.FgYellow).SprintFunc()
	bold = color.New(color.Bold).SprintFunc()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "opsctl",
	Short:        "AsyncOps operator tool",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load(configPath)
		cfg.Log.Console = false
		logger.Init(cfg.Log)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	createAdminCmd.Flags().String("email", "", "admin email")
	createAdminCmd.Flags().String("password", "", "admin password")
	createAdminCmd.Flags().String("name", "Administrator", "full name")
	createAdminCmd.MarkFlagRequired("email")
	createAdminCmd.MarkFlagRequired("password")

	summaryGenerateCmd.Flags().String("date", "", "summary date YYYY-MM-DD (default today, UTC)")
	summaryGenerateCmd.Flags().Bool("force", false, "recompute an existing summary")
	summaryCmd.AddCommand(summaryGenerateCmd, summaryShowCmd)

	rootCmd.AddCommand(migrateCmd, createAdminCmd, makeAdminCmd, summaryCmd)
}

func openDB() (*gorm.DB, error) {
	db, err := cfg.OpenGormDB()
	if err != nil {
		return nil, err
	}
	if err := model.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := openDB(); err != nil {
			return err
		}
		fmt.Println(ok("schema up to date"))
		return nil
	},
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin user",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		name, _ := cmd.Flags().GetString("name")

		db, err := openDB()
		if err != nil {
			return err
		}
		auth := service.NewAuthService(db, service.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL))
		u, err := auth.CreateAdmin(cmd.Context(), email, password, name)
		if err != nil {
			return err
		}
		fmt.Printf("%s admin %s (id %d)\n", ok("created"), bold(u.Email), u.ID)
		return nil
	},
}

var makeAdminCmd = &cobra.Command{
	Use:   "make-admin EMAIL",
	Short: "Promote an existing user to admin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		u, changed, err := service.NewUserService(db).Promote(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !changed {
			fmt.Printf("%s %s is already an admin\n", warn("unchanged"), bold(u.Email))
			return nil
		}
		fmt.Printf("%s %s is now an admin\n", ok("promoted"), bold(u.Email))
		return nil
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Generate or inspect daily summaries",
}

var summaryGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the summary for a day",
	RunE: func(cmd *cobra.Command, args []string) error {
		dateStr, _ := cmd.Flags().GetString("date")
		force, _ := cmd.Flags().GetBool("force")

		var day time.Time
		if dateStr != "" {
			d, err := model.ParseDate(dateStr)
			if err != nil {
				return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", dateStr)
			}
			day = time.Time(d)
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		s, err := service.NewSummaryService(db).Ensure(cmd.Context(), day, force)
		if err != nil {
			return err
		}
		printSummary(s)
		return nil
	},
}

var summaryShowCmd = &cobra.Command{
	Use:   "show DATE",
	Short: "Print a stored summary as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := model.ParseDate(args[0])
		if err != nil {
			return fmt.Errorf("invalid date %q: want YYYY-MM-DD", args[0])
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		s, err := service.NewSummaryService(db).GetByDate(cmd.Context(), time.Time(d))
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(s.Response())
	},
}

func printSummary(s *model.DailySummary) {
	fmt.Printf("%s %s (id %d, generated %s)\n", ok("summary"), bold(model.FormatDate(s.SummaryDate)),
		s.ID, s.GeneratedAt.Format(time.RFC3339))
	st := s.Content.Data().Statistics
	fmt.Printf("  status updates: %d\n", s.StatusUpdatesCount)
	fmt.Printf("  incidents:      %d (%s critical)\n", s.IncidentsCount, colorCount(st.CriticalIncidents))
	fmt.Printf("  blockers:       %d\n", s.BlockersCount)
	fmt.Printf("  decisions (7d): %d\n", s.DecisionsCount)
}

func colorCount(n int) string {
	if n > 0 {
		return color.RedString("%d", n)
	}
	return fmt.Sprint(n)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kadirbelkuyu/docbridge/internal/app"
	"github.com/kadirbelkuyu/docbridge/internal/config"
	"github.com/kadirbelkuyu/docbridge/internal/profiles"
	"github.com/kadirbelkuyu/docbridge/pkg/interactive"
	"github.com/kadirbelkuyu/docbridge/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "docbridge",
	Short: "Move JSON document collections in and out of a relational store",
	Long: `docbridge maps collections of JSON documents onto relational tables described by a
schema configuration, imports directories of <table>.json files (or MongoDB collections)
into an SQLite store and exports them back again.`,
}

var ddlCmd = &cobra.Command{
	Use:   "ddl",
	Short: "Print the CREATE TABLE statements for the configured schema",
	RunE:  runDDL,
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create the store and its tables",
	RunE:  runSetup,
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import document collections into the store",
	RunE:  runImport,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every declared table as a document collection",
	RunE:  runExport,
}

var queryCmd = &cobra.Command{
	Use:   "query <sql>",
	Short: "Run a SELECT statement and print the rows as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

var execCmd = &cobra.Command{
	Use:   "exec <sql>",
	Short: "Run a statement that returns no rows",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExec,
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Show the number of rows in every declared table",
	RunE:  runCount,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Describe the tables found in the store",
	RunE:  runInspect,
}

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List saved configuration profiles",
	RunE:  runListProfiles,
}

var saveProfileCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Save the current configuration as a profile (secrets are not stored)",
	Args:  cobra.ExactArgs(1),
	RunE:  runSaveProfile,
}

var deleteProfileCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a saved profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteProfile,
}

var (
	configPath  string
	profileName string
	profilesDir string
	verbose     bool
	noProgress  bool
	reset       bool
	assumeYes   bool
	directory   string
	endpoint    string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "docbridge.yaml", "Path to the docbridge configuration file")
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", "Use a saved profile instead of --config")
	rootCmd.PersistentFlags().StringVar(&profilesDir, "profiles-dir", profiles.DefaultDir, "Directory holding saved profiles")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging")

	setupCmd.Flags().BoolVar(&reset, "reset", false, "Delete the existing store before creating tables")
	setupCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask before deleting the store")

	importCmd.Flags().StringVar(&directory, "dir", "", "Directory of <table>.json files (overrides import.directory)")
	importCmd.Flags().StringVar(&endpoint, "source", "", "Import source: files or mongo (overrides import.source)")
	importCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Do not draw progress bars")

	exportCmd.Flags().StringVar(&directory, "dir", "", "Target directory (overrides export.directory)")
	exportCmd.Flags().StringVar(&endpoint, "target", "", "Export target: files or mongo (overrides export.target)")
	exportCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Do not draw progress bars")

	rootCmd.AddCommand(ddlCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(inspectCmd)

	profilesCmd.AddCommand(saveProfileCmd)
	profilesCmd.AddCommand(deleteProfileCmd)
	rootCmd.AddCommand(profilesCmd)

	cobra.OnInitialize(func() {
		rootCmd.SilenceUsage = true
		rootCmd.SilenceErrors = true
	})
}

func main() {
	config.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		color.New(color.FgRed, color.Bold).Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if profileName != "" {
		cfg, err := profiles.NewManager(profilesDir).Load(profileName)
		if err != nil {
			return nil, fmt.Errorf("cannot load profile %s: %w", profileName, err)
		}
		return cfg, nil
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("cannot load config: %w", err)
	}
	return cfg, nil
}

func newService() (*app.Service, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.NewService(cfg, logger.NewLogger(verbose), os.Stdout, !noProgress), nil
}

// withService runs fn against a service built from the command line and
// releases the store afterwards.
func withService(fn func(*app.Service) error) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	defer svc.Close()
	return fn(svc)
}

func runDDL(cmd *cobra.Command, args []string) error {
	return withService(func(svc *app.Service) error {
		_, err := svc.DDL()
		return err
	})
}

func runSetup(cmd *cobra.Command, args []string) error {
	return withService(func(svc *app.Service) error {
		if reset && !assumeYes {
			prompter := interactive.NewPrompter(os.Stdin, os.Stdout)
			if !prompter.ConfirmAction("setup --reset", svc.StorePath()) {
				fmt.Println("Operation cancelled by user.")
				return nil
			}
		}
		return svc.Setup(cmd.Context(), reset)
	})
}

func runImport(cmd *cobra.Command, args []string) error {
	return withService(func(svc *app.Service) error {
		if endpoint != "" {
			if err := svc.SetImportSource(endpoint); err != nil {
				return err
			}
		}
		_, err := svc.Import(cmd.Context(), directory)
		return err
	})
}

func runExport(cmd *cobra.Command, args []string) error {
	return withService(func(svc *app.Service) error {
		if endpoint != "" {
			if err := svc.SetExportTarget(endpoint); err != nil {
				return err
			}
		}
		_, err := svc.Export(cmd.Context(), directory)
		return err
	})
}

func runQuery(cmd *cobra.Command, args []string) error {
	return withService(func(svc *app.Service) error {
		_, err := svc.Query(cmd.Context(), strings.Join(args, " "))
		return err
	})
}

func runExec(cmd *cobra.Command, args []string) error {
	return withService(func(svc *app.Service) error {
		return svc.Exec(cmd.Context(), strings.Join(args, " "))
	})
}

func runCount(cmd *cobra.Command, args []string) error {
	return withService(func(svc *app.Service) error {
		_, err := svc.Counts(cmd.Context())
		return err
	})
}

func runInspect(cmd *cobra.Command, args []string) error {
	return withService(func(svc *app.Service) error {
		_, err := svc.Inspect(cmd.Context())
		return err
	})
}

func runListProfiles(cmd *cobra.Command, args []string) error {
	manager := profiles.NewManager(profilesDir)
	saved, err := manager.List()
	if err != nil {
		return fmt.Errorf("cannot list profiles: %w", err)
	}
	if len(saved) == 0 {
		fmt.Printf("No profiles in %s\n", manager.Directory())
		return nil
	}

	bold := color.New(color.Bold)
	for _, p := range saved {
		bold.Printf("%-20s", p.Name)
		fmt.Printf(" store=%s import=%s export=%s (%s)\n", p.Store, p.Source, p.Target, p.Modified.Format("2006-01-02 15:04"))
	}
	return nil
}

func runSaveProfile(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("cannot load config: %w", err)
	}

	profile, err := profiles.NewManager(profilesDir).Save(args[0], cfg)
	if err != nil {
		return fmt.Errorf("cannot save profile: %w", err)
	}
	color.New(color.FgGreen, color.Bold).Printf("Profile %s saved to %s\n", profile.Name, profile.Path)
	return nil
}

func runDeleteProfile(cmd *cobra.Command, args []string) error {
	if err := profiles.NewManager(profilesDir).Delete(args[0]); err != nil {
		return err
	}
	fmt.Printf("Profile %s deleted\n", args[0])
	return nil
}

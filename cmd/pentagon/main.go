package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	_ "github.com/nexxia-ai/pentagon/ai/gemini"
	_ "github.com/nexxia-ai/pentagon/ai/openai"
	"github.com/nexxia-ai/pentagon/config"
)

var rootCmd = &cobra.Command{
	Use:   "pentagon",
	Short: "Five-stage legal review pipeline",
	Long: `pentagon runs a task and its documents through five role-scoped stages:
Analyst (facts), Opponent (counter-arguments), Solicitor (legal position),
Compliance Auditor (audit) and Judge (verdict). Input is screened for prompt
injection before any stage runs; the verdict can be exported as a PDF.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setupLogging(viper.GetString("log-level"), viper.GetString("log-format")); err != nil {
			return err
		}
		if path := viper.GetString("env-file"); path != "" {
			return config.LoadEnvFile(path)
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("PENTAGON")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (pentagon.yml)")
	rootCmd.PersistentFlags().String("provider", "", "model provider (overrides config)")
	rootCmd.PersistentFlags().String("model", "", "model name (overrides config)")
	rootCmd.PersistentFlags().String("env-file", "", "load provider keys from a KEY=VALUE file")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("log-level", "info", "debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", "text", "text or json")
	for _, name := range []string{"config", "env-file", "provider", "model", "json", "log-level", "log-format"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(personasCmd())
	rootCmd.AddCommand(knowledgeCmd())
	rootCmd.AddCommand(trackerCmd())
}

func setupLogging(level, format string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "text", "":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("invalid log format %q", format)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// loadConfig reads the config file and applies flag and environment overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	if p := viper.GetString("provider"); p != "" {
		cfg.Model.Provider = p
		if viper.GetString("model") == "" {
			cfg.Model.Name = ""
		}
	}
	if m := viper.GetString("model"); m != "" {
		cfg.Model.Name = m
	}
	return cfg, cfg.Validate()
}

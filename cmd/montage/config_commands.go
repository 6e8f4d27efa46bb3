package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"montage/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "library_dir      = %s\n", cfg.Paths.LibraryDir)
			fmt.Fprintf(out, "log_dir          = %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "api_bind         = %s\n", cfg.Paths.APIBind)
			fmt.Fprintf(out, "fetch.timeout    = %ds\n", cfg.Fetch.TimeoutSeconds)
			fmt.Fprintf(out, "fetch.max_bytes  = %d\n", cfg.Fetch.MaxBytes)
			fmt.Fprintf(out, "render.keep      = %d per quality\n", cfg.Render.KeepPerQuality)
			fmt.Fprintf(out, "render.step      = %.0f%%\n", cfg.Render.ProgressStep)
			if cfg.Render.Command != "" {
				fmt.Fprintf(out, "render.command   = %s\n", cfg.Render.Command)
			}
			fmt.Fprintf(out, "recovery.startup = %t\n", cfg.Recovery.RunAtStartup)
			fmt.Fprintf(out, "logging          = %s/%s\n", cfg.Logging.Format, cfg.Logging.Level)
			return nil
		},
	}
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/healerd/healer/internal/runtime"
)

var version = "dev"

func resolveConfigPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if env := os.Getenv("HEALER_CONFIG"); env != "" {
		return env
	}
	if _, err := os.Stat("./config.yaml"); err == nil {
		return "./config.yaml"
	}
	return "/etc/healer/config.yaml"
}

func main() {
	var (
		configPath      string
		foreground      bool
		printConfigPath bool
	)

	root := &cobra.Command{
		Use:     "healerd",
		Short:   "healerd supervises processes and recovers them on failure",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolveConfigPath(configPath)
			if printConfigPath {
				fmt.Println(path)
				return nil
			}

			if os.Getenv("HEALER_NO_DAEMON") != "" {
				foreground = true
			}
			if !foreground {
				if err := daemonize(path); err != nil {
					return fmt.Errorf("daemonize: %w", err)
				}
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			return runtime.Run(ctx, runtime.Options{ConfigPath: path, Foreground: foreground})
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	root.PersistentFlags().BoolVar(&foreground, "foreground", false, "run in the foreground, skipping daemonization")
	root.PersistentFlags().BoolVar(&printConfigPath, "print-config-path", false, "resolve and print the effective config path, then exit")
	root.Flags().BoolP("version", "V", false, "version for healerd")
	root.SetVersionTemplate("healerd {{.Version}}\n")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bfgdl/bfg-downloader/internal/config"
	"github.com/bfgdl/bfg-downloader/internal/logger"
	"github.com/bfgdl/bfg-downloader/internal/tui"
)

// logFile receives debug logs; stderr belongs to the terminal UI.
const logFile = "bfg-tui.log"

func main() {
	if err := newCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var configFile string
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:           "bfg-tui",
		Short:         "Interactive Big Fish Games installer downloader",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := config.Load(v, configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			log := logger.NewNop()
			if settings.EnableDebugLogging {
				log, err = logger.New(logger.Config{
					Level:       settings.LogLevel,
					Format:      "json",
					OutputPaths: []string{logFile},
				})
				if err != nil {
					return err
				}
				defer log.Sync()
			}

			return tui.Run(settings, log)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "config file (default ./config.ini if present)")
	flags.StringP("output", "o", ".", "output directory")
	flags.IntP("jobs", "j", 8, "concurrent lookups and segment downloads (1-64)")
	flags.Bool("debug", false, "write debug logs to "+logFile)

	for name, key := range map[string]string{"output": "output_dir", "jobs": "jobs", "debug": "enable_debug_logging"} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
	return cmd
}

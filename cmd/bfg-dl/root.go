package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bfgdl/bfg-downloader/internal/config"
	"github.com/bfgdl/bfg-downloader/internal/model"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// options holds the flags that select what a run does. Flags that map to
// settings are bound to viper instead.
type options struct {
	configFile   string
	download     bool
	extract      bool
	fromHTML     string
	allLanguages bool
	exportFormat string
	exportLimit  int
	verbose      bool
}

// flagKeys maps flag names to the settings keys they override.
var flagKeys = map[string]string{
	"jobs":         "jobs",
	"platform":     "platform",
	"language":     "language",
	"output":       "output_dir",
	"debug":        "enable_debug_logging",
	"log-format":   "log_format",
	"metrics-file": "metrics_file",
	"list-format":  "list_format",
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:   "bfg-dl [flags] [WrapID...]",
		Short: "Big Fish Games installer downloader",
		Long: `Resolve Big Fish Games WrapIDs (e.g. F1234T1L1) to their installer
segments and either write a download list or download them.

With --export-installers-json the whole catalog of the selected platform and
languages is exported to installers_<platform>_L<n>.json files instead.`,
		Example: `  bfg-dl F7028T1L1 F15533T1L2
  bfg-dl -d -j 16 F7028T1L1
  bfg-dl -e -d
  bfg-dl --export-installers-json=min -p mac -l eng,ger`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd, v, opts)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cmd.OutOrStdout(), settings, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&opts.download, "download", "d", false, "download the games instead of writing a download list")
	flags.BoolVarP(&opts.extract, "extract", "e", false, "take WrapIDs from the installers in <output>/installers")
	flags.StringVar(&opts.fromHTML, "from-html", "", "take WrapIDs from the links of a saved HTML page")
	flags.StringVarP(&opts.configFile, "config", "c", "", "config file (default ./config.ini if present)")
	flags.IntP("jobs", "j", 8, "concurrent lookups and segment downloads (1-64)")
	flags.StringP("platform", "p", "win", "platform: win or mac")
	flags.StringP("language", "l", "eng", "languages, comma separated: "+languageCodes())
	flags.BoolVar(&opts.allLanguages, "all-languages", false, "export every known language")
	flags.StringP("output", "o", ".", "output directory")
	flags.StringVar(&opts.exportFormat, "export-installers-json", "", "export installer lists as JSON: pretty or min")
	flags.Lookup("export-installers-json").NoOptDefVal = "pretty"
	flags.IntVar(&opts.exportLimit, "export-limit", 0, "export at most N WrapIDs")
	flags.String("list-format", "aria2", "download list format: aria2 or urls")
	flags.String("metrics-file", "", "write export metrics in Prometheus text format to this file")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "show verbose progress")
	flags.Bool("debug", false, "enable debug logging")
	flags.String("log-format", "console", "log format: console or json")

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}

	cmd.AddCommand(newVersionCommand())
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bfg-dl version %s\n", version)
		},
	}
}

// loadSettings resolves the settings for a run and checks the flags that
// only make sense together.
func loadSettings(cmd *cobra.Command, v *viper.Viper, opts *options) (*config.Settings, error) {
	if opts.allLanguages {
		v.Set("language", languageCodes())
	}
	if cmd.Flags().Changed("export-limit") {
		if opts.exportLimit < 1 {
			return nil, fmt.Errorf("--export-limit must be at least 1, got %d", opts.exportLimit)
		}
		if opts.exportFormat == "" {
			return nil, fmt.Errorf("--export-limit requires --export-installers-json")
		}
	}
	if opts.extract && opts.fromHTML != "" {
		return nil, fmt.Errorf("--extract and --from-html cannot be combined")
	}

	settings, err := config.Load(v, opts.configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return settings, nil
}

func languageCodes() string {
	codes := make([]string, 0, len(model.Languages))
	for _, lang := range model.Languages {
		codes = append(codes, lang.Code)
	}
	return strings.Join(codes, ",")
}

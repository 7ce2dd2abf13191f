/*
Copyright © 2024 paul <paul@denknerd.org>
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/structs"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/toothbrush/canvas-dump/canvas"
	"github.com/toothbrush/canvas-dump/internal/termfmt"
	"gopkg.in/yaml.v2"
)

const (
	configEnvVar  = "CANVAS_DUMP_CONFIG"
	defaultConfig = "~/.config/canvas-dump.yaml"
)

var (
	// Store the result of binding cobra flags
	Config       string
	ConfigActual string
	Debug        bool
	NoColor      bool

	CanvasURL       string
	APIToken        string
	APITokenCmd     []string
	EnvFile         string
	BaseDirectory   string
	EnrollmentState string
	PerPage         int
	RequestTimeout  string
	DownloadTimeout string
	WithVCR         bool

	ParsedConfig YamlConfig
)

// Build the cobra command that handles our command line tool.
var rootCmd = &cobra.Command{
	Use:   "canvas-dump",
	Short: "Mirror your Canvas course files to a local directory",
	Long: `
Tired of clicking through Canvas to find lecture notes?  This tool walks every course you're
enrolled in, and every folder in those courses, and downloads each file you don't have yet into
a local directory tree.  Nothing local is ever overwritten or deleted.
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initializeConfig(cmd); err != nil {
			return fmt.Errorf("canvas-dump: failed to initialise config: %w", err)
		}

		termfmt.SetEnabled(!NoColor)
		setupLogging(cmd.ErrOrStderr(), Debug, NoColor)
		return nil
	},
}

func init() {
	// Define cobra flags, the default value has the lowest (least significant) precedence
	rootCmd.PersistentFlags().StringVar(&Config, "config", "", "config file location (default: "+defaultConfig+", respects "+configEnvVar+")")
	rootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "display debug output")
	rootCmd.PersistentFlags().BoolVar(&NoColor, "no-color", false, "disable coloured output")

	rootCmd.PersistentFlags().StringVar(&CanvasURL, "canvas-url", canvas.DefaultBaseURL, "root of your Canvas instance")
	rootCmd.PersistentFlags().StringVar(&APIToken, "api-token", "", "Canvas personal access token (prefer "+tokenEnvVar+" or --api-token-cmd)")
	rootCmd.PersistentFlags().StringSliceVar(&APITokenCmd, "api-token-cmd", []string{}, "shell command to retrieve your Canvas access token")
	rootCmd.PersistentFlags().StringVar(&EnvFile, "env-file", "", "dotenv file that may define "+tokenEnvVar)
	rootCmd.PersistentFlags().StringVar(&BaseDirectory, "base-directory", "", "where to mirror your courses")
	rootCmd.PersistentFlags().StringVar(&EnrollmentState, "enrollment-state", canvas.DefaultEnrollmentState, "which enrollments to list: active, invited_or_pending, completed")
	rootCmd.PersistentFlags().IntVar(&PerPage, "per-page", canvas.DefaultPerPage, "page size for Canvas listings")
	rootCmd.PersistentFlags().StringVar(&RequestTimeout, "request-timeout", canvas.DefaultRequestTimeout.String(), "timeout for each listing request")
	rootCmd.PersistentFlags().StringVar(&DownloadTimeout, "download-timeout", canvas.DefaultDownloadTimeout.String(), "timeout for each file download")
	rootCmd.PersistentFlags().BoolVar(&WithVCR, "with-vcr", false, "use go-vcr to record and replay Canvas listings")
}

func initializeConfig(cmd *cobra.Command) error {
	explicit := true
	if Config == "" {
		// Did the user provide an ENV?
		envConfig := os.Getenv(configEnvVar)
		if envConfig != "" {
			Config = envConfig
		} else {
			// As fallback, search for config in home XDG-ish directory
			Config = defaultConfig
			explicit = false
		}
	}
	config, err := homedir.Expand(Config)
	if err != nil {
		return fmt.Errorf("canvas-dump: unable to expand homedir: %w", err)
	}
	ConfigActual = config

	yamlFile, err := os.ReadFile(ConfigActual)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		// flags alone are fine, as long as nobody pointed us at a file.
		return nil
	} else if err != nil {
		return fmt.Errorf("canvas-dump: error reading config file %s: %w", ConfigActual, err)
	}

	// I'd like to bark if a user sets a key we don't recognise:
	ParsedConfig = YamlConfig{}
	if err := yaml.UnmarshalStrict(yamlFile, &ParsedConfig); err != nil {
		return fmt.Errorf("canvas-dump: issue parsing config file: %w", err)
	}

	if err := bindFlags(cmd, ParsedConfig); err != nil {
		return fmt.Errorf("canvas-dump: failed to bind flags: %w", err)
	}

	return nil
}

// YamlConfig mirrors the flags.  Pointers mark values where the zero value is meaningful, so we can
// tell "unset" from "false" or "0".
type YamlConfig struct {
	Debug       *bool `yaml:"debug"`
	WithVCR     *bool `yaml:"with-vcr"`
	ExtractZips *bool `yaml:"extract-zips"`
	ConvertHTML *bool `yaml:"convert-html"`
	Progress    *bool `yaml:"progress"`

	PerPage     *int `yaml:"per-page"`
	Concurrency *int `yaml:"concurrency"`

	CanvasURL       string   `yaml:"canvas-url"`
	APIToken        string   `yaml:"api-token"`
	APITokenCmd     []string `yaml:"api-token-cmd"`
	EnvFile         string   `yaml:"env-file"`
	BaseDirectory   string   `yaml:"base-directory"`
	EnrollmentState string   `yaml:"enrollment-state"`
	RequestTimeout  string   `yaml:"request-timeout"`
	DownloadTimeout string   `yaml:"download-timeout"`
	MetricsFile     string   `yaml:"metrics-file"`
}

// Bind each cobra flag to its value from the config file, unless the flag was given explicitly.
func bindFlags(cmd *cobra.Command, v YamlConfig) error {
	for _, field := range structs.Fields(v) {
		key := field.Tag("yaml")
		if key == "" {
			return fmt.Errorf("canvas-dump: could not retrieve struct tag 'yaml'")
		}
		if flag := cmd.Flag(key); flag == nil {
			// hmm... the flag is unknown.  but that can legitimately happen if you're running
			// e.g. `list courses` which has no `extract-zips` flag but your YAML file does
			// define that key...
			continue
		}
		if cmd.Flags().Changed(key) {
			continue
		}

		var values []string
		switch value := field.Value().(type) {
		case *bool:
			if value != nil {
				values = []string{strconv.FormatBool(*value)}
			}
		case *int:
			if value != nil {
				values = []string{strconv.Itoa(*value)}
			}
		case string:
			if value != "" {
				values = []string{value}
			}
		case []string:
			// yes, repeatedly calling Set() appends to the slice...
			values = value
		default:
			return fmt.Errorf("canvas-dump: found unrecognised field: %s", field.Name())
		}

		for _, s := range values {
			if err := cmd.Flags().Set(key, s); err != nil {
				return fmt.Errorf("canvas-dump: bad value for %s: %w", key, err)
			}
		}
	}

	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return fmt.Errorf("canvas-dump: execution error: %w", err)
	}

	return nil
}

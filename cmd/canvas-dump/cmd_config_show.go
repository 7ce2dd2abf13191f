/*
Copyright © 2024 paul <paul@denknerd.org>
*/

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Output current config",
	Long: `
Is something not working for you?  Have a look whether your config is as you expect.  The token
itself is never printed.
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Note, you can only talk about persistent flags here.  Command-specific ones won't be
		// visible.
		return showConfig(cmd.OutOrStdout())
	},
}

func init() {
	configCmd.AddCommand(showCmd)
}

// effectiveConfig is what the persistent flags resolved to, after the config file was applied.
type effectiveConfig struct {
	ConfigFile      string   `yaml:"config-file"`
	Debug           bool     `yaml:"debug"`
	CanvasURL       string   `yaml:"canvas-url"`
	APIToken        string   `yaml:"api-token,omitempty"`
	APITokenCmd     []string `yaml:"api-token-cmd,omitempty"`
	EnvFile         string   `yaml:"env-file,omitempty"`
	BaseDirectory   string   `yaml:"base-directory"`
	EnrollmentState string   `yaml:"enrollment-state"`
	PerPage         int      `yaml:"per-page"`
	RequestTimeout  string   `yaml:"request-timeout"`
	DownloadTimeout string   `yaml:"download-timeout"`
	WithVCR         bool     `yaml:"with-vcr"`
}

func currentConfig() effectiveConfig {
	token := ""
	if APIToken != "" {
		token = "(redacted)"
	}
	return effectiveConfig{
		ConfigFile:      ConfigActual,
		Debug:           Debug,
		CanvasURL:       CanvasURL,
		APIToken:        token,
		APITokenCmd:     APITokenCmd,
		EnvFile:         EnvFile,
		BaseDirectory:   BaseDirectory,
		EnrollmentState: EnrollmentState,
		PerPage:         PerPage,
		RequestTimeout:  RequestTimeout,
		DownloadTimeout: DownloadTimeout,
		WithVCR:         WithVCR,
	}
}

func showConfig(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(currentConfig()); err != nil {
		return fmt.Errorf("config: couldn't encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("config: couldn't encode config: %w", err)
	}
	return nil
}

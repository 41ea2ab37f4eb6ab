package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joshp123/printmon/internal/agenix"
	"github.com/joshp123/printmon/plugins/prusalink"
)

var (
	setupName   string
	setupHost   string
	setupAPIKey string

	setupAgenixRepo   string
	setupAgenixSecret string
	setupAgenixExec   string
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Validate a PrusaLink printer and print its config block",
	Long: `Connects to the printer with the given host and API key, checks the
PrusaLink API version and prints a prusalink: section for config.yaml.

With --agenix-repo the API key is encrypted into the nix-secrets repo
and the block references it through api_key_file instead.`,
	Args: cobra.NoArgs,
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().StringVar(&setupName, "name", "", "Printer name")
	setupCmd.Flags().StringVar(&setupHost, "host", "", "Printer address, e.g. 192.168.1.20")
	setupCmd.Flags().StringVar(&setupAPIKey, "api-key", "", "PrusaLink API key")
	setupCmd.Flags().StringVar(&setupAgenixRepo, "agenix-repo", "", "nix-secrets repo to store the API key in")
	setupCmd.Flags().StringVar(&setupAgenixSecret, "agenix-secret", "printmon-prusalink", "agenix secret name for the API key")
	setupCmd.Flags().StringVar(&setupAgenixExec, "agenix-exec", "", "agenix binary (default: agenix on PATH)")
}

type setupBlock struct {
	PrusaLink setupEntry `yaml:"prusalink" json:"prusalink"`
}

type setupEntry struct {
	EntryID    string `yaml:"entry_id" json:"entry_id"`
	Name       string `yaml:"name" json:"name"`
	Host       string `yaml:"host" json:"host"`
	APIKey     string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	APIKeyFile string `yaml:"api_key_file,omitempty" json:"api_key_file,omitempty"`
}

func runSetup(cmd *cobra.Command, _ []string) error {
	result := prusalink.RunSetupFlow(cmd.Context(), prusalink.SetupInput{
		Name:   setupName,
		Host:   setupHost,
		APIKey: setupAPIKey,
	}, nil)
	if result.ErrorCode != "" {
		return fmt.Errorf("setup failed (%s): %v", result.ErrorCode, result.Err)
	}

	block := setupBlock{PrusaLink: setupEntry{
		EntryID: result.Entry.EntryID,
		Name:    result.Entry.Title,
		Host:    result.Entry.Data.Host,
		APIKey:  result.Entry.Data.APIKey,
	}}
	var storedAt string
	if setupAgenixRepo != "" {
		writer := agenix.Writer{RepoPath: setupAgenixRepo, Exec: setupAgenixExec}
		secret, err := writer.Write(cmd.Context(), setupAgenixSecret, []byte(result.Entry.Data.APIKey))
		if err != nil {
			return fmt.Errorf("store api key: %w", err)
		}
		block.PrusaLink.APIKey = ""
		block.PrusaLink.APIKeyFile = secret.RuntimePath
		storedAt = secret.SecretPath
	}

	out := newOutput(cmd, jsonOutput)
	if out.json {
		return out.printJSON(block)
	}
	data, err := yaml.Marshal(block)
	if err != nil {
		return fmt.Errorf("format yaml: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "# %s (PrusaLink %s, API %s)\n", result.Entry.Title, result.Version.Server, result.Version.API)
	if storedAt != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "# api key stored in %s\n", storedAt)
	}
	fmt.Fprint(cmd.OutOrStdout(), strings.TrimRight(string(data), "\n")+"\n")
	return nil
}

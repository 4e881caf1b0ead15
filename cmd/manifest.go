package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arrowhead-dev/llmbridge/internal/manifest"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Inspect a provider/model manifest file",
	Long:  `Validate and summarize a manifest.yaml without starting the server.`,
}

var manifestValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a manifest file",
	Args:  cobra.ExactArgs(1),
	RunE:  runManifestValidate,
}

var manifestInfoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "Show provider and model counts for a manifest file",
	Args:  cobra.ExactArgs(1),
	RunE:  runManifestInfo,
}

func init() {
	manifestCmd.AddCommand(manifestValidateCmd)
	manifestCmd.AddCommand(manifestInfoCmd)
	rootCmd.AddCommand(manifestCmd)
}

func loadManifestFile(path string) (*manifest.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	m, err := manifest.Load(data)
	if err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	return m, nil
}

func runManifestValidate(cmd *cobra.Command, args []string) error {
	m, err := loadManifestFile(args[0])
	if err != nil {
		return err
	}

	if err := manifest.Validate(m); err != nil {
		color.Red("manifest invalid: %v", err)
		return err
	}

	color.Green("manifest valid")
	fmt.Printf("  %-15s: %s\n", "Version", m.Version)
	fmt.Printf("  %-15s: %d\n", "Providers", len(m.Providers))
	fmt.Printf("  %-15s: %d\n", "Models", len(m.Models))

	return nil
}

func runManifestInfo(cmd *cobra.Command, args []string) error {
	m, err := loadManifestFile(args[0])
	if err != nil {
		return err
	}

	color.Blue("Manifest %s", args[0])
	fmt.Printf("  %-15s: %s\n", "Version", m.Version)
	fmt.Printf("  %-15s: %d\n", "Providers", len(m.Providers))

	for id, p := range m.Providers {
		fmt.Printf("    • %s (%s)\n", id, p.PayloadFormat)
	}

	fmt.Printf("  %-15s: %d\n", "Models", len(m.Models))

	modelsPerProvider := make(map[string]int)
	for _, model := range m.Models {
		modelsPerProvider[model.Provider]++
	}

	for provider, count := range modelsPerProvider {
		fmt.Printf("    • %s: %d model(s)\n", provider, count)
	}

	return nil
}

package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arrowhead-dev/llmbridge/internal/runtimeconfig"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage the llmbridge server's runtime configuration.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration interactively",
	Long:  `Initialize configuration by prompting for manifest path and default provider/model.`,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration.`,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  `Validate the current configuration for errors.`,
	RunE:  runConfigValidate,
}

var configGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate example YAML configuration",
	Long:  `Generate an example YAML configuration file.`,
	RunE:  runConfigGenerate,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configGenerateCmd)

	configGenerateCmd.Flags().BoolP("force", "f", false, "Overwrite existing configuration file")
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	color.Blue("llmbridge Configuration Setup")
	color.Yellow("Follow the prompts to configure the server.")

	reader := bufio.NewReader(os.Stdin)

	fmt.Print("\nPath to provider manifest (YAML/JSON): ")

	manifestPath, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("error reading manifest path: %w", err)
	}
	manifestPath = strings.TrimSpace(manifestPath)

	fmt.Print("Default provider name (must exist in the manifest): ")

	provider, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("error reading provider name: %w", err)
	}
	provider = strings.TrimSpace(provider)

	fmt.Print("Default model ID: ")

	model, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("error reading model: %w", err)
	}
	model = strings.TrimSpace(model)

	fmt.Print("Proxy API key (optional, for authenticating inbound requests): ")

	apiKey, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("error reading API key: %w", err)
	}
	apiKey = strings.TrimSpace(apiKey)

	cfg := &runtimeconfig.Config{
		Host:         runtimeconfig.DefaultHost,
		Port:         runtimeconfig.DefaultPort,
		APIKey:       apiKey,
		ManifestPath: manifestPath,
		Provider:     provider,
		DefaultModel: model,
		HTTPTimeoutS: runtimeconfig.DefaultHTTPTimeoutSec,
	}

	if err := cfgMgr.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	color.Green("Configuration saved successfully to: %s", cfgMgr.GetPath())
	color.Cyan("You can now start the server with: llmbridge start")

	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if !cfgMgr.Exists() {
		color.Yellow("No configuration found. Run 'llmbridge config init' or 'llmbridge config generate' to create one.")
		return nil
	}

	cfg, err := cfgMgr.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	color.Blue("Current Configuration:")
	fmt.Printf("  %-16s: %s\n", "Host", cfg.Host)
	fmt.Printf("  %-16s: %d\n", "Port", cfg.Port)
	fmt.Printf("  %-16s: %s\n", "Proxy API Key", maskString(cfg.APIKey))
	fmt.Printf("  %-16s: %s\n", "Manifest Path", cfg.ManifestPath)
	fmt.Printf("  %-16s: %s\n", "Provider", cfg.Provider)
	fmt.Printf("  %-16s: %s\n", "Default Model", cfg.DefaultModel)
	fmt.Printf("  %-16s: %d\n", "HTTP Timeout (s)", cfg.HTTPTimeoutS)
	fmt.Printf("  %-16s: %s\n", "Config Path", cfgMgr.GetPath())

	configType := "JSON"
	if cfgMgr.HasYAML() {
		configType = "YAML"
	}

	fmt.Printf("  %-16s: %s\n", "Format", configType)

	if len(cfg.Fallbacks) > 0 {
		fmt.Println("\nFallbacks:")

		for model, fallback := range cfg.Fallbacks {
			fmt.Printf("  %s -> %s\n", model, fallback)
		}
	}

	return nil
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	if !cfgMgr.Exists() {
		return errors.New("no configuration found")
	}

	cfg, err := cfgMgr.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	var validationErrors []string

	if cfg.ManifestPath == "" {
		validationErrors = append(validationErrors, "manifest_path is required")
	}

	if cfg.Provider == "" {
		validationErrors = append(validationErrors, "provider is required")
	}

	if cfg.DefaultModel == "" {
		validationErrors = append(validationErrors, "default_model is required")
	}

	if cfg.ManifestPath != "" {
		if _, err := os.Stat(cfg.ManifestPath); err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("manifest file not found: %s", cfg.ManifestPath))
		}
	}

	if len(validationErrors) > 0 {
		color.Red("Configuration validation failed:")

		for _, e := range validationErrors {
			fmt.Printf("  - %s\n", e)
		}

		return errors.New("configuration validation failed")
	}

	color.Green("Configuration is valid!")

	return nil
}

func runConfigGenerate(cmd *cobra.Command, _ []string) error {
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if cfgMgr.Exists() && !force {
		configType := "JSON"
		if cfgMgr.HasYAML() {
			configType = "YAML"
		}

		color.Yellow("Configuration file already exists (%s format): %s", configType, cfgMgr.GetPath())
		color.Cyan("Use --force to overwrite, or 'llmbridge config show' to view current config")

		return nil
	}

	if err := cfgMgr.CreateExampleYAML(); err != nil {
		return fmt.Errorf("failed to create example configuration: %w", err)
	}

	color.Green("Example YAML configuration created: %s", cfgMgr.GetYAMLPath())
	color.Cyan("\nNext steps:")
	fmt.Println("1. Edit the configuration file to point manifest_path at your provider manifest")
	fmt.Println("2. Set provider / default_model to match an entry in that manifest")
	fmt.Println("3. Run 'llmbridge config validate' to check your configuration")
	fmt.Println("4. Start the server with 'llmbridge start'")

	return nil
}

func maskString(s string) string {
	if s == "" {
		return "(not set)"
	}

	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}

	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}

package cmd

import (
	"errors"
	"os"
	"os/exec"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arrowhead-dev/llmbridge/internal/process"
)

var codeCmd = &cobra.Command{
	Use:   "code <binary> [args...]",
	Short: "Run a downstream CLI against the bridge server",
	Long:  `Start the bridge service if needed and execute the given OpenAI-API-compatible CLI with its endpoint pointed at the local server.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCode,
}

func runCode(cmd *cobra.Command, args []string) error {
	procMgr := process.NewManager(baseDir)
	cfg := cfgMgr.Get()

	if cfg == nil {
		return errors.New("no configuration found, run 'llmbridge config init' first")
	}

	serviceStartedByUs, err := procMgr.StartServiceIfNeeded()
	if err != nil {
		return err
	}

	env := os.Environ()

	env = filterEnv(env, "OPENAI_API_KEY")
	env = filterEnv(env, "OPENAI_BASE_URL")

	if cfg.APIKey != "" {
		env = append(env, "OPENAI_API_KEY="+cfg.APIKey)
	} else {
		env = append(env, "OPENAI_API_KEY=proxy")
	}

	env = append(env, "OPENAI_BASE_URL=http://"+cfg.Host+":"+strconv.Itoa(cfg.Port)+"/v1")

	procMgr.IncrementRef()
	defer func() {
		procMgr.DecrementRef()
		if serviceStartedByUs && procMgr.ReadRef() == 0 {
			color.Yellow("No more active sessions, stopping auto-started service...")
			procMgr.Stop()
		}
	}()

	downstream := exec.Command(args[0], args[1:]...)
	downstream.Env = env
	downstream.Stdin = os.Stdin
	downstream.Stdout = os.Stdout
	downstream.Stderr = os.Stderr

	return downstream.Run()
}

func filterEnv(env []string, key string) []string {
	var filtered []string
	prefix := key + "="
	for _, e := range env {
		if !startsWith(e, prefix) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

func startsWith(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

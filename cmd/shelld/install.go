package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
)

// installOptions holds the install command flags.
type installOptions struct {
	name       string
	allowPaths []string
	configFile string
}

var installOpts installOptions

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Register shelld as an MCP server in Claude Desktop",
	Long: `Add or update the shelld entry in claude_desktop_config.json.

Other MCP servers in the file are preserved. Without --allow-path the home
directory is allowed.

Examples:
  shelld install
  shelld install --name shell --allow-path ~/src --allow-path ~/notes`,
	Args: cobra.NoArgs,
	RunE: runInstall,
}

func init() {
	f := installCmd.Flags()
	f.StringVar(&installOpts.name, "name", "shelld", "server name in the Claude Desktop config")
	f.StringArrayVar(&installOpts.allowPaths, "allow-path", nil, "allowed path (repeatable)")
	f.StringVar(&installOpts.configFile, "config-file", "", "Claude Desktop config file (default: platform location)")
}

// runInstall handles the install command
func runInstall(cmd *cobra.Command, args []string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	path := installOpts.configFile
	if path == "" {
		path = desktopConfigPath(runtime.GOOS, home, os.Getenv("APPDATA"))
	}

	command, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate shelld binary: %w", err)
	}

	allowed := installOpts.allowPaths
	if len(allowed) == 0 {
		allowed = []string{home}
	}

	if err := installDesktopConfig(path, installOpts.name, command, allowed); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Installed %q MCP server in %s\n", installOpts.name, path)
	fmt.Fprintf(out, "Allowed paths: %v\n", allowed)
	fmt.Fprintln(out, "Restart Claude Desktop to load the new server.")
	return nil
}

// desktopConfigPath returns the Claude Desktop config file for the platform.
func desktopConfigPath(goos, home, appData string) string {
	switch goos {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Claude", "claude_desktop_config.json")
	case "windows":
		return filepath.Join(appData, "Claude", "claude_desktop_config.json")
	default:
		return filepath.Join(home, ".config", "claude", "claude_desktop_config.json")
	}
}

// installDesktopConfig writes or replaces the named server entry, keeping
// every other key in the file.
func installDesktopConfig(path, name, command string, allowedPaths []string) error {
	settings, err := loadDesktopConfig(path)
	if err != nil {
		return err
	}

	servers, ok := settings["mcpServers"].(map[string]interface{})
	if settings["mcpServers"] != nil && !ok {
		return fmt.Errorf("invalid mcpServers format in %s", path)
	}
	if servers == nil {
		servers = make(map[string]interface{})
		settings["mcpServers"] = servers
	}

	args := []string{"serve", "--name", name}
	for _, p := range allowedPaths {
		args = append(args, "--allow-path", p)
	}
	servers[name] = map[string]interface{}{
		"command": command,
		"args":    args,
	}

	return saveDesktopConfig(path, settings)
}

// loadDesktopConfig reads the config file. A missing file yields an empty
// config.
func loadDesktopConfig(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return make(map[string]interface{}), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var settings map[string]interface{}
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("invalid JSON in %s: %w", path, err)
	}
	if settings == nil {
		settings = make(map[string]interface{})
	}
	return settings, nil
}

// saveDesktopConfig writes the config with owner-only permissions.
func saveDesktopConfig(path string, settings map[string]interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

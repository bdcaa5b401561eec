// Shelld is an MCP server that gives an assistant controlled access to a
// shell, the filesystem and project metadata.
//
// Usage:
//
//	# Serve over stdio, allowing the current directory
//	shelld serve
//
//	# Serve over SSE with two allowed roots
//	shelld serve --transport sse --addr 127.0.0.1:8765 --allow-path ~/src --allow-path /tmp
//
//	# Register with Claude Desktop
//	shelld install --allow-path ~/src
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "shelld",
	Short: "MCP server for shell commands, scripts and files",
	Long: `shelld is a Model Context Protocol server that runs shell commands and
scripts inside allowed directories, with a command denylist, per-session
working directories and secret scrubbing of everything it returns.`,
	Version:      version,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(versionCmd)
}

// printVersion prints version information
func printVersion(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "shelld by Fyrsmith Labs\n")
	fmt.Fprintf(out, "Version:    %s\n", version)
	fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
	fmt.Fprintf(out, "Build Date: %s\n", buildDate)
}

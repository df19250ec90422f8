package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/acu-preview/agent/internal/config"
)

var (
	version   = "0.1.0"
	cfgFile   string
	launchURL string
)

var rootCmd = &cobra.Command{
	Use:   "acu-agent",
	Short: "Acu Preview notification agent",
	Long:  `Acu Preview Agent - background notification dispatch and click navigation for the purchasing approvals app`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the background notification agent",
	Run: func(cmd *cobra.Command, args []string) {
		runAgent()
	},
}

var appCmd = &cobra.Command{
	Use:   "app",
	Short: "Run a foreground app instance connected to the agent",
	Run: func(cmd *cobra.Command, args []string) {
		runApp()
	},
}

var notifyCmd = &cobra.Command{
	Use:   "notify [po|bill|prepayment|purchases]",
	Short: "Dispatch a business-event notification through the agent",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		notifyEvent(args[0])
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Acu Preview Agent v%s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check agent status",
	Run: func(cmd *cobra.Command, args []string) {
		checkStatus()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/acu-preview/agent.yaml)")
	appCmd.Flags().StringVar(&launchURL, "url", "", "launch URL whose view/type params are consumed as the initial navigation")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(appCmd)
	rootCmd.AddCommand(notifyCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func checkStatus() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Println("Status: Not configured")
		return
	}

	if _, err := os.Stat(cfg.SocketPath); err != nil {
		fmt.Println("Status: Agent not running")
		fmt.Printf("Socket: %s\n", cfg.SocketPath)
		return
	}

	fmt.Println("Status: Agent running")
	fmt.Printf("Socket: %s\n", cfg.SocketPath)
	fmt.Printf("App origin: %s\n", cfg.AppOrigin)
	if cfg.PushURL != "" {
		fmt.Printf("Push gateway: %s\n", cfg.PushURL)
	} else {
		fmt.Println("Push gateway: not configured")
	}
}

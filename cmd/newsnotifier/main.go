package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "newsnotifier",
		Short:         "Collect AI and tech headlines and raise desktop notifications",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml, then the user config dir)")

	root.AddCommand(runCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(fetchCmd())
	root.AddCommand(listCmd())
	root.AddCommand(readCmd())
	root.AddCommand(openCmd())
	root.AddCommand(settingsCmd())
	root.AddCommand(autostartCmd())

	return root
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with refresh timer, notifications and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server only",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func fetchCmd() *cobra.Command {
	var sources []string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Run one refresh cycle without notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(sources)
		},
	}

	cmd.Flags().StringSliceVar(&sources, "source", nil, "specific sources to fetch (e.g., newsapi,rss,hn)")
	return cmd
}

func listCmd() *cobra.Command {
	var (
		view       string
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show stored news items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(view, limit, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&view, "view", "latest", "latest, history or unread")
	cmd.Flags().IntVar(&limit, "limit", 0, "max items to show (default: 20, history 100)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func readCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <id>",
		Short: "Mark a news item as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRead(args[0])
		},
	}
}

func openCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <id>",
		Short: "Open a news item in the browser and mark it read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpen(args[0])
		},
	}
}

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read or change persisted settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [key]",
		Short: "Print all settings or a single one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := ""
			if len(args) == 1 {
				key = args[0]
			}
			return runSettingsGet(key)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <json>",
		Short: "Store a JSON value under key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSettingsSet(args[0], args[1])
		},
	})
	return cmd
}

func autostartCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "autostart on|off",
		Short:     "Launch at login (Windows)",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "on":
				return runAutostart(true)
			case "off":
				return runAutostart(false)
			}
			return fmt.Errorf("expected on or off, got %q", args[0])
		},
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/opd-ai/go-tor/pkg/facade"
	"github.com/opd-ai/go-tor/pkg/session"
)

// connectPollInterval and connectPollTimeout bound how long the CLI
// waits for Connect's detached task to reach a terminal state. The
// façade's own connect_with_backoff budget is the real ceiling; this is
// just slack on top of it so the CLI doesn't return to the prompt while
// a bootstrap is still retrying.
const (
	connectPollInterval = 200 * time.Millisecond
	connectPollTimeout  = session.DefaultBudget + 10*time.Second
)

func newConnectCmd(f *facade.Facade) *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Bootstrap a Tor connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Connect()
			deadline := time.Now().Add(connectPollTimeout)
			for time.Now().Before(deadline) {
				if f.GetStatus() == string(facade.StatusConnected) {
					return nil
				}
				time.Sleep(connectPollInterval)
			}
			return fmt.Errorf("timed out waiting for connect to complete")
		},
	}
}

func newDisconnectCmd(f *facade.Facade) *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Tear down the active Tor connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.Disconnect(cmd.Context())
		},
	}
}

func newStatusCmd(f *facade.Facade) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print CONNECTED or DISCONNECTED",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(f.GetStatus())
			return nil
		},
	}
}

func newCircuitCmd(f *facade.Facade) *cobra.Command {
	var origin string
	cmd := &cobra.Command{
		Use:   "circuit",
		Short: "Print the active or isolated circuit's relays",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			var (
				relays interface{}
				err    error
			)
			if origin != "" {
				relays, err = f.GetIsolatedCircuit(ctx, origin)
			} else {
				relays, err = f.GetActiveCircuit(ctx)
			}
			if err != nil {
				return err
			}
			return printJSON(relays)
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "", "isolate the circuit to this origin")
	return cmd
}

func newCountryCmd(f *facade.Facade) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-exit-country <cc>",
		Short: "Restrict the exit hop to a two-letter country code (empty unsets)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var cc string
			if len(args) == 1 {
				cc = args[0]
			}
			return f.SetExitCountry(cc)
		},
	}
	return cmd
}

func newBridgesCmd(f *facade.Facade) *cobra.Command {
	return &cobra.Command{
		Use:   "set-bridges <bridge-line>...",
		Short: "Replace the bridge list used on the next connect",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.SetBridges(args)
			return nil
		},
	}
}

func newStatsCmd(f *facade.Facade) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print traffic and circuit metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			traffic, err := f.GetTrafficStats(ctx)
			if err != nil {
				return err
			}
			metrics, err := f.GetMetrics(ctx)
			if err != nil {
				return err
			}
			return printJSON(map[string]interface{}{
				"traffic": traffic,
				"metrics": metrics,
				"warning": f.TrayWarning(),
			})
		},
	}
	return cmd
}

func newNewIdentityCmd(f *facade.Facade) *cobra.Command {
	return &cobra.Command{
		Use:   "new-identity",
		Short: "Rotate circuits for a fresh identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.NewIdentity(cmd.Context())
		},
	}
}

func newLogsCmd(f *facade.Facade) *cobra.Command {
	root := &cobra.Command{
		Use:   "logs",
		Short: "Read, clear, or locate the façade's log file",
	}
	root.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the log file's contents",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := f.GetLogs()
			if err != nil {
				return err
			}
			fmt.Print(text)
			return nil
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Truncate the log file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.ClearLogs()
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the log file's path",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(f.GetLogFilePath())
			return nil
		},
	})
	return root
}

func printJSON(v interface{}) error {
	enc, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(enc))
	return nil
}

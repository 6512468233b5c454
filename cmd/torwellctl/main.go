// Command torwellctl is a command-line front end for the Tor session
// manager façade. It calls the façade as an in-process Go API: there is
// no control socket to dial, unlike the teacher's torctl, because the
// façade and the session manager it wraps live in the same process as
// this binary.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opd-ai/go-tor/pkg/config"
	"github.com/opd-ai/go-tor/pkg/facade"
	"github.com/opd-ai/go-tor/pkg/geoip"
	"github.com/opd-ai/go-tor/pkg/logger"
	"github.com/opd-ai/go-tor/pkg/session"
	"github.com/opd-ai/go-tor/pkg/torclient"
)

var version = "0.1.0-dev"

func main() {
	root := &cobra.Command{
		Use:          "torwellctl",
		Short:        "Control utility for the Tor session manager",
		Long:         "torwellctl drives connect/disconnect, circuit, and metrics commands against the in-process session manager façade.",
		SilenceUsage: true,
	}
	root.AddCommand(newVersionCmd())

	f := buildFacade()
	root.AddCommand(newConnectCmd(f))
	root.AddCommand(newDisconnectCmd(f))
	root.AddCommand(newStatusCmd(f))
	root.AddCommand(newCircuitCmd(f))
	root.AddCommand(newCountryCmd(f))
	root.AddCommand(newBridgesCmd(f))
	root.AddCommand(newStatsCmd(f))
	root.AddCommand(newNewIdentityCmd(f))
	root.AddCommand(newLogsCmd(f))

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildFacade wires the production façade: an EngineCapability-backed
// session manager over the default configuration, with a console event
// sink so connect's progress and retries are visible without polling.
func buildFacade() *facade.Facade {
	log := logger.NewDefault()
	base := config.DefaultConfig()
	geo := geoip.NewResolver(base.GeoIPDBPath, base.CountryCacheCap)

	mgr := session.NewManager(func() torclient.Capability {
		return torclient.NewEngineCapability(log)
	}, geo, base, log)

	sink := facade.EventSinkFunc(func(e facade.Event) {
		switch e.Status {
		case facade.StatusConnecting:
			if e.BootstrapMessage != "" {
				fmt.Printf("connecting: %s (%d%%)\n", e.BootstrapMessage, e.BootstrapProgress)
			}
		case facade.StatusRetrying:
			fmt.Printf("retry %d in %.0fs: %s\n", e.RetryCount, e.RetryDelay, e.ErrorMessage)
		case facade.StatusConnected:
			fmt.Println("connected")
		case facade.StatusError:
			fmt.Fprintf(os.Stderr, "error: %s\n", e.ErrorMessage)
		case facade.StatusDisconnected:
			fmt.Println("disconnected")
		case facade.StatusNewIdentity:
			fmt.Println("new identity established")
		}
	})

	return facade.New(mgr, facade.Config{
		LogFilePath:        base.LogFilePath,
		MaxLogLines:        base.MaxLogLines,
		MaxMemoryMB:        base.MaxMemoryMB,
		MaxCircuits:        base.MaxCircuits,
		ConnectLimitPerMin: base.FacadeConnectLimiterPerMinute,
		LogLimitPerMin:     base.FacadeLogLimiterPerMinute,
		SessionTokenTTL:    base.SessionTokenTTL,
	}, log, sink)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print torwellctl's version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version)
			return nil
		},
	}
}

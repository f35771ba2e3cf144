package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/icefiredb-store/redhub-store/internal/dispatcher"
	"github.com/icefiredb-store/redhub-store/internal/kv"
	"github.com/icefiredb-store/redhub-store/internal/logging"
	"github.com/icefiredb-store/redhub-store/internal/redhub"
)

var (
	localAddr      string
	localAddrAlt   string
	localMulticore bool
	localReusePort bool
)

var localCmd = &cobra.Command{
	Use:   "local",
	Short: "Serve Redis commands from an in-memory key/value engine",
	Run:   runLocal,
}

func init() {
	localCmd.Flags().StringVar(&localAddr, "addr", "127.0.0.1:6379", "client-facing listen address")
	localCmd.Flags().StringVar(&localAddrAlt, "addr-alt", "", "optional second listen address (e.g. 127.0.0.1:3010)")
	localCmd.Flags().BoolVar(&localMulticore, "multicore", false, "enable gnet multicore event loops")
	localCmd.Flags().BoolVar(&localReusePort, "reuse-port", false, "enable SO_REUSEPORT")
	rootCmd.AddCommand(localCmd)
}

func runLocal(cmd *cobra.Command, args []string) {
	logger := logging.New(logging.Options{Filename: logFile, Level: logLevel})
	defer logger.Sync()

	engine := kv.New()
	backend := kv.NewLocalBackend(engine)
	d := dispatcher.New(func() (dispatcher.Backend, error) { return backend, nil })

	go runConsole(d, logger)

	opts := redhub.Options{Multicore: localMulticore, ReusePort: localReusePort}
	rh := newRedHub(d, logger)

	if localAddrAlt != "" {
		go func() {
			if err := redhub.ListenAndServe("tcp://"+localAddrAlt, opts, newRedHub(d, logger)); err != nil {
				logger.Error("alternate listener stopped", zap.Error(err))
			}
		}()
	}

	logger.Info("redhub-serve local starting", zap.String("addr", localAddr))
	if err := redhub.ListenAndServe("tcp://"+localAddr, opts, rh); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRedHub wires a dispatcher into a redhub server instance: connections
// open/close with a log line, and every command is routed through the
// dispatcher.
func newRedHub(d *dispatcher.Dispatcher, logger *zap.Logger) *redhub.RedHub {
	return redhub.NewRedHub(
		func(c *redhub.Conn) ([]byte, redhub.Action) {
			logger.Debug("connection opened", zap.String("addr", c.RemoteAddr().String()))
			return nil, redhub.None
		},
		func(c *redhub.Conn, err error) redhub.Action {
			logger.Debug("connection closed", zap.Error(err))
			return redhub.None
		},
		d.Handle,
	)
}

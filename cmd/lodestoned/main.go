// Command lodestoned runs the proxy core: it wires a config Provider, a
// route Registry, the process-wide crypto/session-service singletons,
// and the accept loop together, and owns the OS-signal-driven graceful
// shutdown. Configuration file parsing and hot-reload are external
// collaborators per spec.md §1 — this binary only demonstrates the
// wiring with an in-memory StaticProvider.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Shadowner/Infrarust/internal/admission"
	"github.com/Shadowner/Infrarust/internal/config"
	"github.com/Shadowner/Infrarust/internal/crypto"
	"github.com/Shadowner/Infrarust/internal/events"
	"github.com/Shadowner/Infrarust/internal/filter"
	"github.com/Shadowner/Infrarust/internal/logging"
	"github.com/Shadowner/Infrarust/internal/proxy"
	"github.com/Shadowner/Infrarust/internal/route"
	"github.com/Shadowner/Infrarust/internal/sessionservice"
)

var appVersion = "dev"

var listenAddress string
var development bool

var rootCmd = &cobra.Command{
	Use:     "lodestoned",
	Short:   "Minecraft hostname-routing reverse proxy core",
	Version: appVersion,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the proxy accept loop until terminated",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddress, "listen", ":25565", "address to accept client connections on")
	serveCmd.Flags().BoolVar(&development, "development", false, "use human-readable console logging instead of JSON")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	log, flushLog, err := logging.New(logging.Options{Development: development})
	if err != nil {
		return fmt.Errorf("constructing logger: %w", err)
	}
	defer flushLog()

	keys, err := crypto.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("generating rsa key pair: %w", err)
	}

	admit := admission.New(log)
	provider := config.NewStaticProvider(config.Registry{
		Proxy: config.ProxyConfig{
			ListenAddress: listenAddress,
			StatusCache:   config.StatusCacheOptions{TTLSeconds: 30, MaxEntries: 128},
			RateLimiter:   config.RateLimiterOptions{RequestsPerMinute: 120, BurstSize: 20},
		},
		Servers: []route.ServerConfig{},
	})

	p := proxy.New(proxy.Deps{
		Log:      log,
		Admit:    admit,
		Events:   events.New(),
		Configs:  provider,
		Keys:     keys,
		Sessions: sessionservice.NewClient(),
		Bans:     filter.NewInMemoryBanStore(),
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("signal received, shutting down")
		admit.Shutdown(5 * time.Second)
	}()

	log.Info("starting lodestoned", "listen", listenAddress, "version", appVersion)
	return p.Serve(admit.Context(), listenAddress)
}

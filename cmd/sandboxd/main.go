// Command sandboxd runs the sandbox MCP server, grounded on
// pulse-control-plane/main.go and pulse-sensor-proxy/main.go's cobra root
// command + persistent flags shape.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/artifact"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/auth"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/circuit"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/config"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/connmgr"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/engine"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/health"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/isolation"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/logging"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/mcpserver"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/ratelimit"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/security"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/workspace"
)

var (
	// Version is set at build time with -ldflags, matching the teacher's
	// cmd/*/main.go convention.
	Version = "dev"

	flagTransport string
	flagHost      string
	flagPort      int
	flagConfig    string
	flagLogLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "sandboxd",
	Short: "Swiss Sandbox MCP server",
	Long:  `A multi-tenant code-execution sandbox exposed as an MCP tool server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sandboxd %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagTransport, "transport", "", "Transport to serve on: stdio or http (default from config)")
	rootCmd.PersistentFlags().StringVar(&flagHost, "host", "", "HTTP bind host (default from config)")
	rootCmd.PersistentFlags().IntVar(&flagPort, "port", 0, "HTTP bind port (default from config)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to a TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: DEBUG, INFO, WARN, ERROR (default from config)")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	fileCfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := fileCfg.ApplyCLIOverrides(flagTransport, flagHost, flagPort, flagLogLevel)

	log, logSink := logging.NewAsync(cfg.LogLevel, 0)
	defer logSink.Close()
	log.Info().Str("transport", cfg.Transport).Str("base_dir", cfg.BaseDir).Msg("starting sandboxd")

	filter := security.NewFilter()
	validator := security.NewValidator()
	wsMgr := workspace.NewManager(cfg.BaseDir+"/workspaces", log)

	store, err := artifact.NewStore(cfg.BaseDir+"/artifacts", log)
	if err != nil {
		return fmt.Errorf("artifact store: %w", err)
	}

	var isoBackend engine.Isolation
	if cfg.UseDocker {
		docker, err := isolation.NewDockerBackend(cfg.DockerImage, log)
		if err != nil {
			return fmt.Errorf("docker isolation: %w", err)
		}
		defer docker.Close()
		isoBackend = docker
		log.Info().Str("image", cfg.DockerImage).Msg("docker isolation enabled")
	}

	eng := engine.New(filter, validator, wsMgr, store, isoBackend, log)

	breaker := circuit.New(cfg.BreakerFailures, time.Duration(cfg.BreakerRecoveryS)*time.Second, log)
	limiter := ratelimit.New(time.Duration(cfg.RateLimitWindowS)*time.Second, cfg.RateLimitMax, 0, 0)
	connMgr := connmgr.New(connmgr.Config{
		MaxTotal:          cfg.ConnMaxTotal,
		MaxPerIP:          cfg.ConnMaxPerIP,
		ConnectionTimeout: time.Duration(cfg.ConnIdleTimeoutS) * time.Second,
		ReapInterval:      time.Duration(cfg.ReapIntervalS) * time.Second,
	}, breaker, limiter, log)
	stopReaper := connMgr.StartReaper()
	defer stopReaper()

	monitor := health.New(health.DefaultThresholds(), eng, cfg.BaseDir, log)
	stopMonitoring := monitor.StartMonitoring(time.Duration(cfg.HealthIntervalS) * time.Second)
	defer stopMonitoring()

	authMgr := auth.NewManager()
	for _, u := range cfg.Users {
		auth.AddUser(authMgr, u.Username, auth.Role(u.Role), u.APIKey, u.RateLimit)
	}
	if len(cfg.Users) > 0 {
		log.Info().Int("count", len(cfg.Users)).Msg("provisioned users from config")
	}

	srv := mcpserver.New(mcpserver.Deps{
		Engine:     eng,
		Store:      store,
		Workspaces: wsMgr,
		Conns:      connMgr,
		Health:     monitor,
		Auth:       authMgr,
		Log:        log,
	})

	switch cfg.Transport {
	case "http":
		return serveHTTP(ctx, cfg, srv, log)
	default:
		return srv.MCPServer().Run(ctx, &mcp.StdioTransport{})
	}
}

func serveHTTP(ctx context.Context, cfg config.Config, srv *mcpserver.Server, log zerolog.Logger) error {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	log.Info().Str("addr", addr).Msg("serving http transport")
	mux := http.NewServeMux()
	mux.Handle("/mcp", srv.HTTPHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	httpSrv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	err := httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Command skatesim starts the SkateSim server.
//
// It supports two modes:
//  1. "server" (default) – runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//
// Flags control host/port, config directory, session storage (files or
// Redis), the real-time tick runner, logging, and optional ngrok tunneling.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/mcp-training/skatesim/api"
	"github.com/wricardo/mcp-training/skatesim/game/config"
	"github.com/wricardo/mcp-training/skatesim/game/logger"
	"github.com/wricardo/mcp-training/skatesim/game/service"
	"github.com/wricardo/mcp-training/skatesim/game/session"
	"github.com/wricardo/mcp-training/skatesim/transport/mcp"
	"github.com/wricardo/mcp-training/skatesim/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "SkateSim Server"
)

var (
	port         = flag.Int("port", 8080, "HTTP server port")
	host         = flag.String("host", "localhost", "HTTP server host")
	configDir    = flag.String("config-dir", envOr("CONFIG_DIR", "configs"), "Directory containing level configurations")
	sessionsDir  = flag.String("sessions-dir", envOr("SESSIONS_DIR", "sessions"), "Directory for file session storage")
	redisAddr    = flag.String("redis-addr", os.Getenv("REDIS_ADDR"), "Redis address for session storage (file storage when empty)")
	redisTTL     = flag.Duration("redis-ttl", 24*time.Hour, "Expiry of sessions stored in Redis")
	tickRate     = flag.Duration("tick-rate", 0, "Real-time tick interval, e.g. 50ms (0 disables the runner)")
	workers      = flag.Int("workers", 4, "Worker pool size for the tick runner")
	debug        = flag.Bool("debug", false, "Enable debug logging")
	logFormat    = flag.String("log-format", "json", "Log format: json or console")
	version      = flag.Bool("version", false, "Show version information")
	ngrokEnabled = flag.Bool("ngrok", false, "Enable ngrok tunnel")
	ngrokAuth    = flag.String("ngrok-auth", "", "Ngrok auth token (or use NGROK_AUTHTOKEN env var)")
	ngrokDomain  = flag.String("ngrok-domain", "", "Custom ngrok domain (optional)")
)

// envOr returns the environment variable key, or def when unset
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] [MODE]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "%s v%s\n\n", AppName, Version)
		fmt.Fprintf(os.Stderr, "Available modes:\n")
		fmt.Fprintf(os.Stderr, "  server, http     Run HTTP server with API, WebSocket, and MCP endpoint (default)\n")
		fmt.Fprintf(os.Stderr, "  stdio-mcp        Run MCP stdio server with internal HTTP server\n")
		fmt.Fprintf(os.Stderr, "  mcp-stdio, mcp   Aliases for stdio-mcp\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                          # HTTP server on port 8080\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -tick-rate 50ms          # advance every session in real time\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -redis-addr :6379        # keep sessions in Redis\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s mcp -port 9090           # MCP stdio server\n", os.Args[0])
	}
}

// app holds the wired services shared by both modes
type app struct {
	service     service.GameService
	sessions    *session.Manager
	persistence session.SessionPersistence
	log         logger.Logger
}

func newLogger() (logger.Logger, error) {
	cfg := logger.DefaultConfig()
	if *debug {
		cfg = logger.DevelopmentConfig()
	}
	if *logFormat != "" {
		cfg.Format = *logFormat
	}
	return logger.NewZapLogger(cfg)
}

func main() {
	envErr := godotenv.Load()

	flag.Parse()

	if *version {
		fmt.Printf("%s v%s\n", AppName, Version)
		os.Exit(0)
	}

	log, err := newLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if envErr == nil {
		log.Info("loaded environment variables from .env file")
	} else if !os.IsNotExist(envErr) {
		log.Warn("error loading .env file", logger.Err(envErr))
	}

	mode := "server"
	if args := flag.Args(); len(args) > 0 {
		mode = args[0]
	}

	log.Info("starting",
		logger.String("app", AppName),
		logger.String("version", Version),
		logger.String("mode", mode))

	a, err := initializeServices(log)
	if err != nil {
		log.Error("failed to initialize services", logger.Err(err))
		os.Exit(1)
	}
	defer a.close()

	switch mode {
	case "stdio-mcp", "mcp-stdio", "mcp":
		runStdioMCPWithInternalServer(a)

	case "server", "http":
		runHTTPServer(a)

	default:
		log.Error("unknown mode, use 'server' (default) or 'stdio-mcp'", logger.String("mode", mode))
		os.Exit(2)
	}
}

// mcpHTTPHandler serves single JSON-RPC messages on /mcp
func mcpHTTPHandler(mcpServer *server.MCPServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpServer.HandleMessage(r.Context(), body)

		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(responseData)
	}
}

// newRouter combines the REST API, websocket and /mcp endpoint
func newRouter(a *app, hub *websocket.Hub, baseURL string) http.Handler {
	mcpClient := mcp.NewClient(baseURL)

	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", api.NewServer(a.service, hub, a.log.With(logger.String("component", "api"))))
	mainRouter.HandleFunc("/mcp", mcpHTTPHandler(mcpClient.GetMCPServer()))
	return mainRouter
}

// startRunner ticks every session in real time and pushes changes to the hub
func startRunner(ctx context.Context, a *app, hub *websocket.Hub, wg *sync.WaitGroup) (*service.Runner, error) {
	runner, err := service.NewRunner(a.sessions, *tickRate, *workers, a.log.With(logger.String("component", "runner")))
	if err != nil {
		return nil, err
	}
	runner.OnUpdate(func(u service.TickUpdate) {
		hub.BroadcastState(u.SessionID, u.State)
		if len(u.ScoreChanges) > 0 {
			hub.BroadcastScore(u.SessionID, u.ScoreChanges[len(u.ScoreChanges)-1], u.ScoreChanges)
		}
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("tick runner stopped", logger.Err(err))
		}
	}()
	return runner, nil
}

// runHTTPServer starts the HTTP server with REST API, WebSocket hub, and an /mcp proxy endpoint.
// If ngrok is enabled (via flag or environment), it also provisions a public tunnel.
func runHTTPServer(a *app) {
	log := a.log

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	hub := websocket.NewHub(log.With(logger.String("component", "websocket")))
	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()

	addr := fmt.Sprintf("%s:%d", *host, *port)
	handler := newRouter(a, hub, "http://"+addr)

	if *tickRate > 0 {
		runner, err := startRunner(ctx, a, hub, &wg)
		if err != nil {
			log.Error("failed to start tick runner", logger.Err(err))
			return
		}
		defer runner.Close()
	}

	go sessionCleanupRoutine(ctx, a)
	if a.persistence != nil {
		go persistenceSyncRoutine(ctx, a)
	}

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening",
			logger.String("addr", addr),
			logger.String("api", "http://"+addr+"/api"),
			logger.String("websocket", "ws://"+addr+"/ws?sessionId=<session_id>"),
			logger.String("mcp", "http://"+addr+"/mcp"))

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	if ngrokShouldRun() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, log, handler)
		}()
	}

	select {
	case sig := <-stop:
		log.Info("shutting down", logger.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("HTTP server failed", logger.Err(err))
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown error", logger.Err(err))
	}

	wg.Wait()
	log.Info("server stopped")
}

func ngrokShouldRun() bool {
	if *ngrokEnabled {
		return true
	}
	env := os.Getenv("NGROK_ENABLED")
	return env == "true" || env == "1"
}

// runNgrok serves handler through an ngrok tunnel until ctx is cancelled
func runNgrok(ctx context.Context, log logger.Logger, handler http.Handler) {
	authToken := *ngrokAuth
	if authToken == "" {
		authToken = envOr("NGROK_AUTHTOKEN", os.Getenv("NGROK_AUTH_TOKEN"))
	}
	if authToken == "" {
		log.Warn("ngrok enabled but no auth token provided (use -ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN)")
		return
	}

	domain := *ngrokDomain
	if domain == "" {
		domain = os.Getenv("NGROK_DOMAIN")
	}

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	log.Info("starting ngrok tunnel", logger.String("domain", domain))
	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		log.Warn("failed to start ngrok tunnel", logger.Err(err))
		return
	}

	ngrokURL := tun.URL()
	log.Info("ngrok tunnel established",
		logger.String("url", ngrokURL),
		logger.String("api", ngrokURL+"/api"),
		logger.String("mcp", ngrokURL+"/mcp"))

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.Warn("failed to close ngrok tunnel", logger.Err(err))
		}
	}()

	if err := http.Serve(tun, handler); err != nil && ctx.Err() == nil {
		log.Warn("ngrok server error", logger.Err(err))
	}
	log.Info("ngrok tunnel closed")
}

// initializeServices wires config and session managers, session storage and
// the game service.
func initializeServices(log logger.Logger) (*app, error) {
	configManager, err := config.NewManager(*configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}
	log.Info("level configs loaded",
		logger.String("dir", *configDir),
		logger.Int("count", configManager.Count()),
		logger.String("default", configManager.DefaultID()))

	persistence, err := newPersistence(configManager, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create session persistence: %w", err)
	}

	sessionLog := log.With(logger.String("component", "sessions"))
	sessionManager := session.NewManagerWithPersistence(persistence, sessionLog)
	if err := sessionManager.LoadPersistedSessions(); err != nil {
		log.Warn("failed to load persisted sessions", logger.Err(err))
	}

	return &app{
		service:     service.NewGameService(sessionManager, configManager, log.With(logger.String("component", "service"))),
		sessions:    sessionManager,
		persistence: persistence,
		log:         log,
	}, nil
}

// newPersistence picks Redis when an address is configured, files otherwise
func newPersistence(configManager *config.Manager, log logger.Logger) (session.SessionPersistence, error) {
	if *redisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rp, err := session.DialRedisPersistence(ctx, *redisAddr, os.Getenv("REDIS_PASSWORD"), 0, configManager, *redisTTL, log.With(logger.String("component", "sessions")))
		if err != nil {
			return nil, err
		}
		log.Info("using redis session storage", logger.String("addr", *redisAddr), logger.Duration("ttl", *redisTTL))
		return rp, nil
	}

	fp, err := session.NewFilePersistence(*sessionsDir, configManager, log.With(logger.String("component", "sessions")))
	if err != nil {
		return nil, err
	}
	log.Info("using file session storage", logger.String("dir", *sessionsDir))
	return fp, nil
}

// close flushes sessions and releases storage connections
func (a *app) close() {
	if err := a.sessions.SaveAllSessions(); err != nil {
		a.log.Warn("failed to save sessions on shutdown", logger.Err(err))
	}
	if closer, ok := a.persistence.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			a.log.Warn("failed to close session storage", logger.Err(err))
		}
	}
}

// sessionCleanupRoutine periodically removes sessions that have not been
// accessed for a day
func sessionCleanupRoutine(ctx context.Context, a *app) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := a.sessions.CleanupExpiredSessions(24 * time.Hour); removed > 0 {
				a.log.Info("cleaned up expired sessions", logger.Int("removed", removed))
			}
		}
	}
}

// persistenceSyncRoutine drops sessions from memory whose stored copy was
// removed externally (file deleted, Redis key expired)
func persistenceSyncRoutine(ctx context.Context, a *app) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pruneOrphans(a)
		}
	}
}

func pruneOrphans(a *app) int {
	pruned := 0
	for _, sess := range a.sessions.List() {
		if a.persistence.Exists(sess.ID) {
			continue
		}
		if err := a.sessions.DeleteFromMemory(sess.ID); err == nil {
			pruned++
			a.log.Info("pruned session from memory (storage entry removed)", logger.String("session", sess.ID))
		}
	}
	return pruned
}

// runStdioMCPWithInternalServer runs an MCP stdio server.
// It tries to reuse an external API at http://localhost:8080; if unavailable, it
// starts a minimal internal HTTP API bound to a random loopback port and targets that.
func runStdioMCPWithInternalServer(a *app) {
	log := a.log
	externalURL := "http://localhost:8080"
	baseURL := externalURL

	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(externalURL + "/health")
	if err == nil && resp.StatusCode < 500 {
		resp.Body.Close()
		log.Info("external API server found, using it for MCP", logger.String("url", externalURL))
	} else {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			log.Error("failed to get available port", logger.Err(err))
			return
		}
		baseURL = "http://" + listener.Addr().String()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		hub := websocket.NewHub(log.With(logger.String("component", "websocket")))
		go hub.Run(ctx)

		httpServer := &http.Server{Handler: api.NewServer(a.service, hub, log.With(logger.String("component", "api")))}
		go func() {
			if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
				log.Warn("internal HTTP server error", logger.Err(err))
			}
		}()
		defer httpServer.Close()

		log.Info("internal HTTP server started for MCP stdio", logger.String("url", baseURL))
	}

	mcpClient := mcp.NewClient(baseURL)
	log.Info("MCP stdio server ready", logger.String("api", baseURL))

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		log.Error("MCP stdio server error", logger.Err(err))
	}
}

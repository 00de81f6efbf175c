// ABOUTME: Entry point for the warelay gateway server
// ABOUTME: Exposes a single messaging session to realtime subscribers and an HTTP API

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/warelay/internal/api"
	"github.com/2389/warelay/internal/auth"
	"github.com/2389/warelay/internal/config"
	"github.com/2389/warelay/internal/driver"
	"github.com/2389/warelay/internal/gateway"
	"github.com/2389/warelay/internal/hub"
	"github.com/2389/warelay/internal/session"
	"github.com/2389/warelay/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                           _
 __      ____ _ _ __ ___  | |  __ _  _   _
 \ \ /\ / / _' | '__/ _ \ | | / _' || | | |
  \ V  V / (_| | | |  __/ | || (_| || |_| |
   \_/\_/ \__,_|_|  \___| |_| \__,_| \__, |
                                     |___/
`

// getConfigPath returns the path to the warelay config file.
// Priority: WARELAY_CONFIG env var > XDG_CONFIG_HOME/warelay/warelay.yaml > ~/.config/warelay/warelay.yaml
func getConfigPath() string {
	if envPath := os.Getenv("WARELAY_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "warelay.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "warelay", "warelay.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: warelay <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                       Start the gateway server")
		fmt.Println("  init                        Create a new config file interactively")
		fmt.Println("  bootstrap --username NAME   Create the initial admin account")
		fmt.Println("  health                      Check gateway health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "bootstrap":
		err = runBootstrap(ctx)
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config: %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:   %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Driver: %s\n", cfg.WhatsApp.Driver)
	fmt.Println()

	logger.Info("starting warelay",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"driver", cfg.WhatsApp.Driver,
	)

	accounts, err := store.NewAccountStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening account store: %w", err)
	}
	defer accounts.Close()

	drv, err := buildDriver(cfg, logger)
	if err != nil {
		return err
	}

	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	authSvc := auth.NewService(accounts, verifier, cfg.Auth.TokenTTL, logger)

	messages := store.NewMessageStore(cfg.WhatsApp.HistoryCapacity, logger)
	gw := gateway.New(cfg, messages, drv, logger)
	defer gw.Close()

	h := hub.New(gw.Session(), messages, logger)
	defer h.Close()
	gw.AttachHub(h)

	ws := hub.NewWebsocketHandler(h, verifier)
	srv := api.NewServer(cfg, gw, authSvc, verifier, ws, logger)

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Consume driver events for the life of the process.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		gw.Run(ctx)
	}()

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Bring the session up on startup; subscribers watch progress live.
	if _, err := gw.Initialize(ctx); err != nil {
		logger.Error("initial session start failed", "error", err)
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr = <-errCh:
		logger.Error("http server failed", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", "error", err)
	}
	gw.Teardown(shutdownCtx)
	wg.Wait()

	return serveErr
}

// buildDriver constructs the configured session driver. Only the
// simulated driver ships in-tree; real network drivers plug in here.
func buildDriver(cfg *config.Config, logger *slog.Logger) (session.Driver, error) {
	switch cfg.WhatsApp.Driver {
	case "sim":
		return driver.NewSim(cfg.WhatsApp.SessionName, 0, logger), nil
	default:
		return nil, fmt.Errorf("unknown driver %q", cfg.WhatsApp.Driver)
	}
}

// getDataPath returns the path to the warelay data directory.
// Priority: XDG_DATA_HOME/warelay > ~/.local/share/warelay
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "warelay")
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("warelay configuration setup")
	fmt.Println("===========================")
	fmt.Println()

	defaultConfigPath := getConfigPath()
	defaultDataPath := getDataPath()
	defaultDbPath := filepath.Join(defaultDataPath, "warelay.db")

	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:8080")

	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", defaultDbPath)

	fmt.Println("\n--- Authentication ---")
	jwtSecret := prompt(reader, "JWT secret (leave empty to generate)", "")
	if jwtSecret == "" {
		raw := make([]byte, 32)
		if _, err := rand.Read(raw); err != nil {
			return fmt.Errorf("generating jwt secret: %w", err)
		}
		jwtSecret = base64.StdEncoding.EncodeToString(raw)
	}

	fmt.Println("\n--- Messaging Session ---")
	countryCode := prompt(reader, "Default country code for bare numbers (empty to disable)", "")

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# warelay configuration\n")
	cfg.WriteString("# Generated by warelay init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n", httpAddr))
	cfg.WriteString("\n")

	cfg.WriteString("auth:\n")
	cfg.WriteString(fmt.Sprintf("  jwt_secret: \"%s\"\n", jwtSecret))
	cfg.WriteString("  token_ttl: \"24h\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", dbPath))
	cfg.WriteString("\n")

	cfg.WriteString("whatsapp:\n")
	cfg.WriteString("  session_name: \"warelay-session\"\n")
	cfg.WriteString("  driver: \"sim\"\n")
	if countryCode != "" {
		cfg.WriteString(fmt.Sprintf("  default_country_code: \"%s\"\n", countryCode))
	}
	cfg.WriteString("  history_capacity: 1000\n")
	cfg.WriteString("\n")

	cfg.WriteString("upload:\n")
	cfg.WriteString(fmt.Sprintf("  directory: \"%s\"\n", filepath.Join(defaultDataPath, "uploads")))
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  warelay serve\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func runBootstrap(ctx context.Context) error {
	fs := flag.NewFlagSet("bootstrap", flag.ExitOnError)
	username := fs.String("username", "admin", "username for the initial admin account")
	name := fs.String("name", "Administrator", "display name for the initial admin account")
	if err := fs.Parse(os.Args[2:]); err != nil {
		return err
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	accounts, err := store.NewAccountStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening account store: %w", err)
	}
	defer accounts.Close()

	fmt.Print("Password: ")
	reader := bufio.NewReader(os.Stdin)
	password, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}
	password = strings.TrimSpace(password)

	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	authSvc := auth.NewService(accounts, verifier, cfg.Auth.TokenTTL, slog.Default())

	token, account, err := authSvc.Register(ctx, *username, password, *name, "admin")
	if err != nil {
		if errors.Is(err, store.ErrDuplicateAccount) {
			return fmt.Errorf("account %q already exists (a default admin is seeded on first start)", *username)
		}
		return fmt.Errorf("creating admin account: %w", err)
	}

	fmt.Printf("Created admin account %q\n", account.Username)
	fmt.Printf("Token: %s\n", token)
	return nil
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", strings.TrimPrefix(cfg.Server.HTTPAddr, ":"))
	if strings.HasPrefix(cfg.Server.HTTPAddr, ":") {
		url = fmt.Sprintf("http://localhost%s/health", cfg.Server.HTTPAddr)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

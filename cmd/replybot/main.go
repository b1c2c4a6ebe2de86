// ABOUTME: Entry point for the replybot conversation engine
// ABOUTME: serve runs a local console session; seed loads a knowledge file

package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/2389/replybot/internal/bot"
	"github.com/2389/replybot/internal/config"
	"github.com/2389/replybot/internal/flow"
	"github.com/2389/replybot/internal/mutex"
	"github.com/2389/replybot/internal/platform"
	"github.com/2389/replybot/internal/search"
	"github.com/2389/replybot/internal/session"
	"github.com/2389/replybot/internal/store"
	"github.com/2389/replybot/internal/track"
)

// version is stamped by the release build.
var version = "dev"

const banner = `
                 _       _           _
 _ __ ___ _ __ | |_   _| |__   ___ | |_
| '__/ _ \ '_ \| | | | | '_ \ / _ \| __|
| | |  __/ |_) | | |_| | |_) | (_) | |_
|_|  \___| .__/|_|\__, |_.__/ \___/ \__|
         |_|      |___/
`

// getConfigPath returns the path to the replybot config file.
// Priority: REPLYBOT_CONFIG env var > XDG_CONFIG_HOME/replybot/config.yaml > ~/.config/replybot/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("REPLYBOT_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "replybot", "config.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: replybot <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve        Start a local console session")
		fmt.Println("  init         Create a new config file interactively")
		fmt.Println("  seed <file>  Load a knowledge file into the database")
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
	case "seed":
		err = runSeed(ctx)
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
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Database: %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Bot:      @%s (%s)\n", cfg.Bot.Name, cfg.Bot.TeamID)
	fmt.Println()

	logger.Info("starting replybot",
		"config", configPath,
		"database", cfg.Database.Path,
		"bot", cfg.Bot.Name,
	)

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	locker, err := mutex.NewSQLiteLocker(st.DB(), logger)
	if err != nil {
		return fmt.Errorf("initializing locks: %w", err)
	}

	ids := platform.Identities{
		BotID:    cfg.Bot.ID,
		BotName:  cfg.Bot.Name,
		TeamID:   cfg.Bot.TeamID,
		TeamName: cfg.Bot.TeamName,
	}

	chat := platform.NewConsole(os.Stdout)
	sessions := session.NewManager(st, locker, session.Options{
		LockTTL:       cfg.Sessions.LockTTL,
		RetryInterval: cfg.Sessions.RetryInterval,
		MaxMessageAge: cfg.Sessions.MaxMessageAge,
	}, logger)
	runner := flow.NewRunner(chat, sessions, cfg.Flows.TypingInterval, cfg.Flows.Timeout, logger)
	tracker := track.New(logger)
	defer tracker.Close()

	searchSettings := bot.SearchSettings{
		Size:           cfg.Search.Size,
		Retries:        cfg.Search.Retries,
		InitialTimeout: cfg.Search.InitialTimeout,
		RetryStep:      cfg.Search.RetryStep,
	}

	engine := bot.New(bot.Config{
		Chat:       chat,
		Store:      st,
		Sessions:   sessions,
		Locker:     locker,
		Runner:     runner,
		Tracker:    tracker,
		Searcher:   search.NewSQLiteSearcher(st.DB(), logger),
		Identities: ids,
		ClaimTTL:   cfg.Sessions.ClaimTTL,
		Search:     searchSettings,
		Logger:     logger,
	})

	return runConsole(ctx, engine, ids)
}

// runConsole reads stdin lines as direct messages from a local user and
// feeds them through the engine.
func runConsole(ctx context.Context, engine *bot.Engine, ids platform.Identities) error {
	const (
		localUser    = "ULOCAL"
		localChannel = "DULOCAL"
	)

	fmt.Println("Type a message and press enter. Ctrl-D to exit.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	seq := 0
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		text := strings.TrimSpace(scanner.Text())
		seq++
		event := &platform.Event{
			Type:    platform.TypeMessage,
			Event:   platform.EventDirectMessage,
			Text:    text,
			User:    localUser,
			Channel: localChannel,
			TS:      fmt.Sprintf("%d.%06d", time.Now().Unix(), seq),
		}
		if err := engine.HandleEvent(ctx, event); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// seedFile is the YAML shape the seed command loads.
type seedFile struct {
	Bot struct {
		Purpose         string   `yaml:"purpose"`
		PointsOfContact []string `yaml:"points_of_contact"`
	} `yaml:"bot"`
	Users []struct {
		ID      string `yaml:"id"`
		Name    string `yaml:"name"`
		Admin   bool   `yaml:"admin"`
		Invited bool   `yaml:"invited"`
	} `yaml:"users"`
	Replies []struct {
		ID    string `yaml:"id"`
		Title string `yaml:"title"`
		Body  string `yaml:"body"`
	} `yaml:"replies"`
}

func runSeed(ctx context.Context) error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: replybot seed <file>")
	}
	seedPath := os.Args[2]

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	data, err := os.ReadFile(seedPath)
	if err != nil {
		return fmt.Errorf("reading seed file: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parsing seed file: %w", err)
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	green := color.New(color.FgGreen)

	if err := st.SaveBot(ctx, &store.Bot{
		ID:              cfg.Bot.ID,
		TeamID:          cfg.Bot.TeamID,
		Name:            cfg.Bot.Name,
		Purpose:         seed.Bot.Purpose,
		PointsOfContact: seed.Bot.PointsOfContact,
	}); err != nil {
		return fmt.Errorf("saving bot: %w", err)
	}
	green.Printf("  ✓ Bot: @%s\n", cfg.Bot.Name)

	for _, u := range seed.Users {
		if err := st.SaveUser(ctx, &store.User{
			ID:      u.ID,
			TeamID:  cfg.Bot.TeamID,
			Name:    u.Name,
			IsAdmin: u.Admin,
			Invited: u.Invited,
		}); err != nil {
			return fmt.Errorf("saving user %s: %w", u.ID, err)
		}
	}
	green.Printf("  ✓ Users: %d\n", len(seed.Users))

	for _, r := range seed.Replies {
		id := r.ID
		if id == "" {
			id = uuid.NewString()
		}
		if err := st.SaveReply(ctx, &store.Reply{
			ID:     id,
			TeamID: cfg.Bot.TeamID,
			Title:  r.Title,
			Body:   r.Body,
		}); err != nil {
			return fmt.Errorf("saving reply %q: %w", r.Title, err)
		}
	}
	green.Printf("  ✓ Replies: %d\n", len(seed.Replies))

	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("replybot configuration setup")
	fmt.Println("============================")
	fmt.Println()

	defaultConfigPath := getConfigPath()

	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Bot Identity ---")
	botID := prompt(reader, "Bot user id", "B024BE7LH")
	botName := prompt(reader, "Bot name", "replybot")
	teamID := prompt(reader, "Team id", "T024BE7LD")
	teamName := prompt(reader, "Team name", "example")

	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", "replybot.db")

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# replybot configuration\n")
	cfg.WriteString("# Generated by replybot init\n\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", dbPath))
	cfg.WriteString("\n")

	cfg.WriteString("bot:\n")
	cfg.WriteString(fmt.Sprintf("  id: \"%s\"\n", botID))
	cfg.WriteString(fmt.Sprintf("  name: \"%s\"\n", botName))
	cfg.WriteString(fmt.Sprintf("  team_id: \"%s\"\n", teamID))
	cfg.WriteString(fmt.Sprintf("  team_name: \"%s\"\n", teamName))
	cfg.WriteString("\n")

	cfg.WriteString("sessions:\n")
	cfg.WriteString("  lock_ttl: \"5s\"\n")
	cfg.WriteString("  retry_interval: \"20ms\"\n")
	cfg.WriteString("  max_message_age: \"60s\"\n")
	cfg.WriteString("  claim_ttl: \"60s\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("flows:\n")
	cfg.WriteString("  typing_interval: \"2500ms\"\n")
	cfg.WriteString("  timeout: \"15s\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("search:\n")
	cfg.WriteString("  size: 26\n")
	cfg.WriteString("  retries: 3\n")
	cfg.WriteString("  initial_timeout: \"500ms\"\n")
	cfg.WriteString("  retry_step: \"1500ms\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(dbPath)
	if dataDir != "." {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start a session:")
	fmt.Printf("  replybot serve\n")

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
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
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

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
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

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Fprint(os.Stderr, buf.String())
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

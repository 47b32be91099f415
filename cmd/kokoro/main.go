// Command kokoro runs the companion as an interactive terminal session.
// Each line typed is one conversation turn; slash commands expose the
// state, history, and artifact rating operations.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kokoro-ai/kokoro"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("KOKORO_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	app, err := kokoro.New(
		kokoro.WithLogger(logger),
		kokoro.WithVersion(version),
	)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer func() { _ = app.Close() }()

	// Backing stores may be down at startup; chat still works without
	// them, so report and continue.
	if err := app.Bootstrap(ctx); err != nil {
		logger.Warn("bootstrap incomplete, artifact indexing may fail", "error", err)
	}

	fmt.Println("kokoro", version, "— type a message, /help for commands, /quit to exit")

	lines := make(chan string)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print("> ")
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case line, ok = <-lines:
			if !ok {
				return scanner.Err()
			}
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := command(ctx, app, line); quit {
				return nil
			}
			continue
		}

		reply, err := app.ProcessMessage(ctx, line)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			logger.Error("turn failed", "error", err)
			continue
		}
		printReply(reply)
	}
}

func printReply(r kokoro.Reply) {
	fmt.Println(r.Text)
	for _, th := range r.Thoughts {
		fmt.Printf("  (thinking: %s)\n", th)
	}
	if r.Mood != "" {
		fmt.Printf("  [mood: %s]\n", r.Mood)
	}
	for _, img := range r.Images {
		url := img.StoredURL
		if url == "" {
			url = img.URL
		}
		fmt.Printf("  [image %s: %s]\n", img.ID, url)
	}
}

// command handles one slash command and reports whether to exit.
func command(ctx context.Context, app *kokoro.App, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true

	case "/help":
		fmt.Println(`/state              current character state
/health             vector backend reachability
/history [n]        recent turns (default 10)
/thoughts [n]       recent thoughts (default 10)
/moods [n]          recent mood changes (default 10)
/rate <id> <n>      rate an indexed image
/remember <text>    store a moment in long-term memory
/recall <query>     search long-term memory
/quit               exit`)

	case "/state":
		for k, v := range app.State() {
			fmt.Printf("  %s: %s\n", k, v)
		}

	case "/health":
		if err := app.Health(ctx); err != nil {
			fmt.Println("  vector backend:", err)
			break
		}
		fmt.Println("  vector backend: ok")

	case "/history":
		turns, err := app.RecentTurns(ctx, argCount(fields))
		if err != nil {
			fmt.Println("error:", err)
			break
		}
		for _, t := range turns {
			fmt.Printf("  [%s] %s: %s\n", t.CreatedAt.Format("15:04:05"), t.Role, t.Content)
		}

	case "/thoughts":
		thoughts, err := app.RecentThoughts(ctx, argCount(fields))
		if err != nil {
			fmt.Println("error:", err)
			break
		}
		for _, th := range thoughts {
			fmt.Printf("  [%d] %s\n", th.Importance, th.Content)
		}

	case "/moods":
		moods, err := app.RecentMoods(ctx, argCount(fields))
		if err != nil {
			fmt.Println("error:", err)
			break
		}
		for _, m := range moods {
			fmt.Printf("  [%s] %s\n", m.CreatedAt.Format("15:04:05"), m.Mood)
		}

	case "/rate":
		if len(fields) != 3 {
			fmt.Println("usage: /rate <id> <rating>")
			break
		}
		rating, err := strconv.Atoi(fields[2])
		if err != nil {
			fmt.Println("rating must be a number")
			break
		}
		res, err := app.RateArtifact(ctx, fields[1], rating)
		if err != nil {
			fmt.Println("error:", err)
			break
		}
		fmt.Printf("  %s %s\n", res.Outcome, res.ID)

	case "/remember":
		if len(fields) < 2 {
			fmt.Println("usage: /remember <text>")
			break
		}
		if err := app.Remember(ctx, strings.Join(fields[1:], " ")); err != nil {
			fmt.Println("error:", err)
			break
		}
		fmt.Println("  remembered")

	case "/recall":
		if len(fields) < 2 {
			fmt.Println("usage: /recall <query>")
			break
		}
		hits, err := app.SearchMemories(ctx, strings.Join(fields[1:], " "), 5)
		if err != nil {
			fmt.Println("error:", err)
			break
		}
		for _, h := range hits {
			fmt.Printf("  %.2f %s\n", h.Score, h.Content)
		}

	default:
		fmt.Println("unknown command; /help for a list")
	}
	return false
}

func argCount(fields []string) int {
	if len(fields) > 1 {
		if n, err := strconv.Atoi(fields[1]); err == nil && n > 0 {
			return n
		}
	}
	return 10
}

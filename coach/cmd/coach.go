// Command-line entrypoint: a terminal tutoring session for local testing.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"essaycoach/coach/agents/configs"
	"essaycoach/coach/agents/core"
	"essaycoach/coach/config"
	"essaycoach/coach/services/export"
	"essaycoach/coach/services/llm"
	"essaycoach/coach/session"
	"essaycoach/coach/sources/storage"
	"essaycoach/coach/transcript"
	"essaycoach/coach/utils/color"
	"essaycoach/coach/utils/logging"
	"essaycoach/coach/utils/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	args := os.Args[1:]
	if len(args) < 1 || args[0] != "connect" {
		fmt.Println("Essay coach CLI usage:")
		fmt.Println("  coach connect [-email you@example.com] [-no-color]")
		os.Exit(1)
	}
	fs := flag.NewFlagSet("connect", flag.ExitOnError)
	email := fs.String("email", "dev@localhost", "email the chat log is filed under")
	noColor := fs.Bool("no-color", false, "disable coloured output")
	fs.Parse(args[1:])
	if *noColor {
		color.Disable()
	}

	cfg := config.LoadConfig()
	logging.InitLogger(cfg.LogDir)
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	tutor, err := build(ctx, cfg)
	if err != nil {
		fmt.Println(color.ColorError(err.Error()))
		os.Exit(1)
	}

	who := types.Identity{UID: "cli-" + uuid.NewString()[:8], Email: *email}
	sess, out, err := tutor.Begin(ctx, who)
	if err != nil {
		fmt.Println(color.ColorError(err.Error()))
		os.Exit(1)
	}
	logging.AppLogger.Info("cli session started", zap.String("session_id", sess.ID), zap.String("uid", who.UID))

	fmt.Println(color.ColorInfo("Session: " + sess.ID))
	fmt.Println(color.ColorInfo("Type your message, or 'exit' to quit."))
	fmt.Println()
	show(out)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(color.ColorPrompt("you> "))
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "exit" || line == "quit" {
			break
		}
		if line == "" {
			continue
		}
		pending := tutor.Submit(ctx, sess.ID, who.UID, line)
		fmt.Print(color.ColorPending("..."))
		res := <-pending
		fmt.Print("\r   \r")
		show(&res)
		if ctx.Err() != nil {
			break
		}
	}

	endCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tutor.End(endCtx, sess.ID, who.UID); err != nil {
		fmt.Println(color.ColorError(err.Error()))
	}
	fmt.Println(color.ColorInfo("Goodbye!"))
}

func build(ctx context.Context, cfg config.Config) (*core.Tutor, error) {
	store, err := storage.NewMinIOClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("minio: %w", err)
	}
	client, err := llm.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}
	profile, err := configs.LoadProfile(cfg.TutorProfile)
	if err != nil {
		return nil, err
	}
	annotator, err := transcript.NewAnnotator(cfg.Timezone, nil)
	if err != nil {
		return nil, err
	}
	sessions := session.NewManager(ctx, cfg.KeepAliveInterval)
	exporter := export.New(store, annotator, cfg.ExportDir, cfg.ExportKeepLocal)
	return core.NewTutor(client, exporter, profile, annotator, sessions), nil
}

// show prints the turns the tutor added (the user's own line is already on
// screen) and the export notice.
func show(out *core.Outcome) {
	for _, t := range out.Turns {
		if t.Role != transcript.RoleAssistant {
			continue
		}
		fmt.Println(color.ColorTimestamp("["+t.Timestamp+"]"), color.ColorTutor(t.Content))
	}
	switch {
	case out.Err != nil:
		fmt.Println(color.ColorError(out.Err.Error()))
	case out.ExportErr != nil:
		fmt.Println(color.ColorError("chat log not saved: " + out.ExportErr.Error()))
	case out.Export != nil:
		fmt.Println(color.ColorInfo("chat log: " + out.Export.URL))
	}
	fmt.Println()
}

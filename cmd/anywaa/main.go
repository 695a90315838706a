// Package main is the Anywaa AI terminal client: a chat loop over the
// hosted generative-language API with an optional realtime voice mode.
//
// Usage:
//
//	go run ./cmd/anywaa
//
// Environment variables:
//
//	GEMINI_API_KEY - Required
//	DATABASE_URL   - Optional; enables persistent chat history
//
// Commands:
//
//	/new            - Start a new conversation thread
//	/sessions       - List stored conversation threads
//	/open <n>       - Switch to a stored thread
//	/image <path> <prompt> - Ask about a PNG image
//	/temp <0..1>    - Set the response temperature
//	/voice          - Enter realtime voice mode
//	q               - Quit
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
	"time"

	"github.com/joho/godotenv"

	"github.com/kornella/anywaa/pkg/core/chat"
	"github.com/kornella/anywaa/pkg/core/live"
	"github.com/kornella/anywaa/pkg/core/types"
	"github.com/kornella/anywaa/pkg/store"
)

func main() {
	_ = godotenv.Load()

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "GEMINI_API_KEY required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()
	}()

	app, err := newApp(ctx, apiKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}
	defer app.close()

	app.banner()
	app.run(ctx)
}

// app is the terminal client's state: the completion service, the optional
// persistent store, and the conversation threads.
type app struct {
	log      *slog.Logger
	svc      *chat.Service
	store    *store.Store // nil without DATABASE_URL
	apiKey   string
	privacy  types.PrivacySettings
	sessions []types.ChatSession
	current  int // index into sessions
}

func newApp(ctx context.Context, apiKey string) (*app, error) {
	a := &app{
		apiKey:  apiKey,
		privacy: types.DefaultPrivacySettings(),
	}

	level := slog.LevelInfo
	if os.Getenv("ANYWAA_DEBUG") != "" {
		level = slog.LevelDebug
	}
	a.log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.log)

	if url := os.Getenv("DATABASE_URL"); url != "" {
		st, err := store.Open(ctx, url, a.log)
		if err != nil {
			a.log.Warn("history store unavailable, continuing without persistence", "error", err)
		} else {
			a.store = st
		}
	}

	if a.store != nil {
		if settings, err := a.store.LoadPrivacySettings(ctx); err == nil {
			a.privacy = settings
		}
		sessions, err := a.store.LoadSessions(ctx, a.privacy)
		if err != nil {
			a.log.Warn("load sessions", "error", err)
		}
		a.sessions = sessions
	}
	if len(a.sessions) == 0 {
		a.sessions = []types.ChatSession{chat.NewSession(time.Now())}
	}

	svc, err := chat.NewService(ctx, apiKey, a.log)
	if err != nil {
		return nil, err
	}
	a.svc = svc
	return a, nil
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
}

func (a *app) banner() {
	fmt.Println("╔════════════════════════════════════════════════════════════╗")
	fmt.Println("║                       Anywaa AI                            ║")
	fmt.Println("╠════════════════════════════════════════════════════════════╣")
	fmt.Println("║  Type a message, or:                                       ║")
	fmt.Println("║    /new                    New conversation thread         ║")
	fmt.Println("║    /sessions               List threads                    ║")
	fmt.Println("║    /open <n>               Switch to thread n              ║")
	fmt.Println("║    /image <path> <prompt>  Ask about a PNG image           ║")
	fmt.Println("║    /temp <0..1>            Set response temperature        ║")
	fmt.Println("║    /voice                  Realtime voice mode             ║")
	fmt.Println("║    q                       Quit                            ║")
	fmt.Println("╚════════════════════════════════════════════════════════════╝")
	fmt.Println()
}

func (a *app) run(ctx context.Context) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch {
		case strings.ToLower(input) == "q":
			return
		case input == "/new":
			a.sessions = append(a.sessions, chat.NewSession(time.Now()))
			a.current = len(a.sessions) - 1
			fmt.Printf("[thread] %s\n", a.sessions[a.current].Title)
		case input == "/sessions":
			for i, s := range a.sessions {
				marker := " "
				if i == a.current {
					marker = "*"
				}
				fmt.Printf("%s %2d  %s (%d messages)\n", marker, i+1, s.Title, len(s.Messages))
			}
		case strings.HasPrefix(input, "/open "):
			a.openThread(strings.TrimSpace(strings.TrimPrefix(input, "/open ")))
		case strings.HasPrefix(input, "/image "):
			a.imageTurn(ctx, strings.TrimPrefix(input, "/image "))
		case strings.HasPrefix(input, "/temp "):
			a.setTemperature(ctx, strings.TrimSpace(strings.TrimPrefix(input, "/temp ")))
		case input == "/voice":
			a.voiceMode(ctx, scanner)
		default:
			a.turn(ctx, input, nil)
		}
	}
}

func (a *app) openThread(arg string) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(a.sessions) {
		fmt.Printf("[ERROR] no thread %q\n", arg)
		return
	}
	a.current = n - 1
	fmt.Printf("[thread] %s\n", a.sessions[a.current].Title)
}

func (a *app) setTemperature(ctx context.Context, arg string) {
	v, err := strconv.ParseFloat(arg, 64)
	if err != nil || v < 0 || v > 1 {
		fmt.Printf("[ERROR] temperature must be between 0 and 1, got %q\n", arg)
		return
	}
	a.privacy.AITemperature = v
	fmt.Printf("[settings] temperature %.2f\n", v)
	if a.store != nil {
		if err := a.store.SavePrivacySettings(ctx, a.privacy); err != nil {
			a.log.Warn("save privacy settings", "error", err)
		}
	}
}

func (a *app) imageTurn(ctx context.Context, args string) {
	path, prompt, ok := strings.Cut(strings.TrimSpace(args), " ")
	if !ok || strings.TrimSpace(prompt) == "" {
		fmt.Println("[INFO] usage: /image <path> <prompt>")
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("[ERROR] read image: %v\n", err)
		return
	}
	a.turn(ctx, strings.TrimSpace(prompt), data)
}

// turn runs one chat exchange: send the prompt with recent history, print
// the reply or its advisory, and persist the updated thread.
func (a *app) turn(ctx context.Context, prompt string, imagePNG []byte) {
	cur := a.sessions[a.current]
	history := cur.Messages

	reply, err := a.svc.GenerateResponse(ctx, chat.Request{
		Prompt:      prompt,
		ImagePNG:    imagePNG,
		History:     history,
		Temperature: a.privacy.AITemperature,
	})
	if err != nil {
		reply = chat.Advisory(err)
	}
	fmt.Printf("\n%s\n\n", reply)

	now := time.Now()
	cur = chat.AppendMessage(cur, chat.NewMessage(types.RoleUser, prompt, now))
	cur = chat.AppendMessage(cur, chat.NewMessage(types.RoleModel, reply, now))
	a.sessions[a.current] = cur
	a.persist(ctx)
}

func (a *app) persist(ctx context.Context) {
	if a.store == nil || !a.privacy.AllowLocalHistory {
		return
	}
	if err := a.store.SaveSessions(ctx, a.sessions); err != nil {
		a.log.Warn("save sessions", "error", err)
	}
}

// voiceMode runs a realtime voice session until the user quits or the
// session reaches a terminal state.
func (a *app) voiceMode(ctx context.Context, scanner *bufio.Scanner) {
	fmt.Println("[voice] connecting... (type q to leave voice mode)")

	mic := openMic
	if a.privacy.DeveloperMode {
		mic = func(ctx context.Context) (live.Source, error) {
			src, err := openMic(ctx)
			if err != nil {
				return nil, err
			}
			return &meteredSource{src: src, log: a.log}, nil
		}
	}

	sess, err := live.Open(ctx, live.Config{
		APIKey: a.apiKey,
		OnState: func(st live.State) {
			fmt.Printf("[voice] %s\n", st)
		},
		Logger: a.log,
	}, live.Deps{
		Mic:     mic,
		Speaker: openSpeaker,
	})
	if err != nil {
		fmt.Printf("[ERROR] voice session: %v\n", err)
		return
	}

	for scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if strings.ToLower(input) == "q" || ctx.Err() != nil {
			break
		}
		if sess.State().Terminal() {
			if err := sess.Err(); err != nil && !errors.Is(err, live.ErrSessionClosed) {
				fmt.Printf("[ERROR] voice session ended: %v\n", err)
			}
			break
		}
		if input != "" {
			fmt.Println("[INFO] voice mode is hands-free; q returns to chat")
		}
	}

	_ = sess.Close()
	sess.Wait()
	fmt.Println("[voice] closed")
}

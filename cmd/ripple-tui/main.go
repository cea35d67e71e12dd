// ABOUTME: Terminal client for the ripple chat backend.
// ABOUTME: Wires the session, presence, directory, and thread layers into an interactive loop.

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/ripple/internal/api"
	"github.com/2389/ripple/internal/cache"
	"github.com/2389/ripple/internal/config"
	"github.com/2389/ripple/internal/directory"
	"github.com/2389/ripple/internal/presence"
	"github.com/2389/ripple/internal/realtime"
	"github.com/2389/ripple/internal/session"
	"github.com/2389/ripple/internal/thread"
)

var (
	promptColor  = color.New(color.FgCyan)
	selfColor    = color.New(color.FgGreen)
	otherColor   = color.New(color.FgBlue)
	onlineColor  = color.New(color.FgGreen)
	offlineColor = color.New(color.Faint)
	errorColor   = color.New(color.FgRed)
	dimColor     = color.New(color.Faint)
)

func main() {
	configPath := flag.String("config", "", "Path to config file (YAML)")
	apiURL := flag.String("server", "", "REST API base URL (overrides config)")
	socketURL := flag.String("socket", "", "Live channel websocket URL (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *apiURL != "" {
		cfg.Server.APIURL = *apiURL
	}
	if *socketURL != "" {
		cfg.Server.SocketURL = *socketURL
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

// newLogger builds the process logger from the logging config.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// app holds the wired client layers for the interactive loop.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	client   *api.Client
	channel  *realtime.Channel
	session  *session.Manager
	presence *presence.Tracker
	dir      *directory.Directory
	sync     *thread.Synchronizer
	store    *cache.Store

	unbindPresence func()
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	client, err := api.New(cfg.Server.APIURL, logger)
	if err != nil {
		return fmt.Errorf("creating API client: %w", err)
	}

	// The websocket dials with the same cookie jar the REST client
	// authenticates through.
	transport := realtime.NewWebsocketTransport(client.Jar())
	channel := realtime.NewChannel(cfg.Server.SocketURL, transport, logger)
	defer channel.Disconnect()

	a := &app{
		cfg:      cfg,
		logger:   logger.With("component", "tui"),
		client:   client,
		channel:  channel,
		session:  session.NewManager(client, logger),
		presence: presence.NewTracker(logger),
		dir:      directory.New(logger),
	}
	a.sync = thread.NewSynchronizer(client, channel, a.onAccepted, thread.Options{
		TypingDebounce: cfg.Timing.TypingDebounce,
		TypingExpiry:   cfg.Timing.TypingExpiry,
	}, logger)
	defer a.sync.Deselect()

	if cfg.Cache.Enabled {
		store, err := cache.Open(cfg.Cache.Path, logger)
		if err != nil {
			// The cache is an optimization; run without it rather than fail.
			logger.Warn("cache unavailable", "error", err)
		} else {
			a.store = store
			defer store.Close()
		}
	}

	// Session transitions drive the live connection and directory lifecycle.
	a.session.OnChange(func(user *api.User) {
		if user != nil {
			a.onLogin(ctx, user)
		} else {
			a.onLogout(ctx)
		}
	})

	fmt.Printf("ripple connected to %s\n", cfg.Server.APIURL)
	fmt.Println("Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	// Resume an existing cookie session if the backend recognizes us.
	if err := a.session.Probe(ctx); err != nil {
		errorColor.Printf("[error] %v\n", err)
	}
	if a.session.CurrentUser() == nil {
		fmt.Println("Not signed in. Use /login <username> <password> or /register <username> <email> <password>.")
		fmt.Println()
	}

	return a.loop(ctx)
}

// onLogin connects the live channel and loads the directory for the user.
func (a *app) onLogin(ctx context.Context, user *api.User) {
	a.sync.SetSelf(user.ID)

	if err := a.channel.Connect(ctx, user.ID); err != nil {
		errorColor.Printf("[error] live channel: %v\n", err)
	} else {
		a.unbindPresence = a.presence.Bind(a.channel)
	}

	selfColor.Printf("Signed in as %s\n", user.Username)

	// Warm-start from the cache, then replace with the fresh listing.
	if a.store != nil {
		if cached, err := a.store.Conversations(ctx, user.ID); err == nil && len(cached) > 0 {
			a.dir.Replace(cached)
			dimColor.Printf("(%d cached conversations, refreshing...)\n", len(cached))
		}
	}

	convs, err := a.client.Conversations(ctx)
	if err != nil {
		errorColor.Printf("[error] loading conversations: %v\n", err)
		return
	}
	a.dir.Replace(convs)
	fmt.Printf("%d conversations. /list to see them.\n", len(convs))

	if a.store != nil {
		if err := a.store.SaveConversations(ctx, user.ID, convs); err != nil {
			a.logger.Warn("caching conversations", "error", err)
		}
	}
}

// onLogout tears down everything keyed to the previous user.
func (a *app) onLogout(ctx context.Context) {
	a.sync.Deselect()
	a.sync.SetSelf("")
	if a.unbindPresence != nil {
		a.unbindPresence()
		a.unbindPresence = nil
	}
	a.channel.Disconnect()
	a.dir.Replace(nil)

	if a.store != nil {
		if err := a.store.Clear(ctx); err != nil {
			a.logger.Warn("clearing cache", "error", err)
		}
	}
}

// onAccepted is the thread synchronizer's callback for every confirmed
// message: update the directory summary and echo foreign messages to the
// terminal.
func (a *app) onAccepted(conversationID string, msg api.Message) {
	a.dir.UpdateLastMessage(conversationID, msg)

	user := a.session.CurrentUser()
	if user != nil && msg.Sender.ID == user.ID {
		return
	}

	active := a.sync.Conversation()
	if active != nil && active.ID == conversationID {
		fmt.Println()
		otherColor.Printf("%s: ", msg.Sender.Username)
		fmt.Println(msg.Text)
	} else {
		conv, ok := a.dir.Get(conversationID)
		name := "someone"
		if ok {
			name = conv.OtherUser.Username
		}
		dimColor.Printf("\n[new message from %s]\n", name)
	}
	a.prompt()
}

func (a *app) prompt() {
	if a.session.CurrentUser() != nil && !a.channel.Connected() {
		dimColor.Print("(offline) ")
	}
	if conv := a.sync.Conversation(); conv != nil {
		promptColor.Printf("[%s]> ", conv.OtherUser.Username)
	} else {
		promptColor.Print("> ")
	}
}

func (a *app) loop(ctx context.Context) error {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		a.prompt()

		// Read input with context awareness
		inputCh := make(chan string, 1)
		errCh := make(chan error, 1)

		go func() {
			if scanner.Scan() {
				inputCh <- scanner.Text()
			} else {
				if err := scanner.Err(); err != nil {
					errCh <- err
				} else {
					errCh <- io.EOF
				}
			}
		}()

		var input string
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-inputCh:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if input == "/quit" || input == "/exit" || input == "/q" {
			return nil
		}

		if strings.HasPrefix(input, "/") {
			a.handleCommand(ctx, input)
			fmt.Println()
			continue
		}

		// Plain text goes to the open conversation.
		if _, err := a.sync.Send(ctx, input); err != nil {
			errorColor.Printf("[error] %v\n", api.UserMessage(err))
		}
		fmt.Println()
	}
}

func (a *app) handleCommand(ctx context.Context, input string) {
	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/help":
		printHelp()

	case "/login":
		if len(args) != 2 {
			fmt.Println("Usage: /login <username> <password>")
			return
		}
		if _, err := a.session.Login(ctx, session.Credentials{Username: args[0], Password: args[1]}); err != nil {
			errorColor.Printf("[error] %v\n", api.UserMessage(err))
		}

	case "/register":
		if len(args) != 3 {
			fmt.Println("Usage: /register <username> <email> <password>")
			return
		}
		if _, err := a.session.Register(ctx, session.Registration{
			Username: args[0],
			Email:    args[1],
			Password: args[2],
		}); err != nil {
			errorColor.Printf("[error] %v\n", api.UserMessage(err))
		}

	case "/logout":
		if err := a.session.Logout(ctx); err != nil {
			errorColor.Printf("[error] %v\n", api.UserMessage(err))
			return
		}
		fmt.Println("Signed out")

	case "/list":
		a.printConversations(a.dir.List())

	case "/search":
		if len(args) == 0 {
			fmt.Println("Usage: /search <term>")
			return
		}
		a.printConversations(a.dir.Search(strings.Join(args, " ")))

	case "/users":
		a.listUsers(ctx, strings.Join(args, " "))

	case "/new":
		if len(args) != 1 {
			fmt.Println("Usage: /new <username>")
			return
		}
		a.startConversation(ctx, args[0])

	case "/open":
		if len(args) != 1 {
			fmt.Println("Usage: /open <number|username>")
			return
		}
		a.openConversation(ctx, args[0])

	case "/close":
		a.sync.Deselect()
		fmt.Println("Conversation closed")

	default:
		fmt.Printf("Unknown command %s. /help for commands.\n", cmd)
	}
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /login <user> <pass>             Sign in")
	fmt.Println("  /register <user> <email> <pass>  Create an account and sign in")
	fmt.Println("  /logout                          Sign out")
	fmt.Println("  /list                            List conversations")
	fmt.Println("  /search <term>                   Filter conversations by username")
	fmt.Println("  /users [term]                    Find users to talk to")
	fmt.Println("  /new <username>                  Start a conversation")
	fmt.Println("  /open <number|username>          Open a conversation")
	fmt.Println("  /close                           Close the open conversation")
	fmt.Println("  /help                            Show this help")
	fmt.Println("  /quit                            Exit")
}

func (a *app) printConversations(convs []api.Conversation) {
	if len(convs) == 0 {
		fmt.Println("No conversations")
		return
	}

	for i, conv := range convs {
		marker := offlineColor.Sprint("·")
		if a.presence.IsOnline(conv.OtherUser.ID) {
			marker = onlineColor.Sprint("●")
		}

		line := fmt.Sprintf("%2d. %s %s", i+1, marker, conv.OtherUser.Username)
		if conv.LastMessage != nil {
			line += dimColor.Sprintf("  %s  %s",
				truncate(conv.LastMessage.Text, 40),
				formatTimestamp(conv.LastMessage.CreatedAt))
		}
		fmt.Println(line)
	}
}

func (a *app) listUsers(ctx context.Context, term string) {
	users, err := a.client.Users(ctx)
	if err != nil {
		errorColor.Printf("[error] %v\n", api.UserMessage(err))
		return
	}

	self := a.session.CurrentUser()
	shown := 0
	for _, u := range users {
		if self != nil && u.ID == self.ID {
			continue
		}
		if term != "" {
			lower := strings.ToLower(term)
			if !strings.Contains(strings.ToLower(u.Username), lower) &&
				!strings.Contains(strings.ToLower(u.Email), lower) {
				continue
			}
		}
		marker := offlineColor.Sprint("·")
		if a.presence.IsOnline(u.ID) {
			marker = onlineColor.Sprint("●")
		}
		fmt.Printf("  %s %s\n", marker, u.Username)
		shown++
	}
	if shown == 0 {
		fmt.Println("No users found")
	}
}

func (a *app) startConversation(ctx context.Context, username string) {
	users, err := a.client.Users(ctx)
	if err != nil {
		errorColor.Printf("[error] %v\n", api.UserMessage(err))
		return
	}

	var target *api.User
	for _, u := range users {
		if strings.EqualFold(u.Username, username) {
			target = &u
			break
		}
	}
	if target == nil {
		fmt.Printf("No user named %s\n", username)
		return
	}

	conv, err := a.client.CreateConversation(ctx, target.ID)
	if err != nil {
		errorColor.Printf("[error] %v\n", api.UserMessage(err))
		return
	}

	a.dir.Insert(*conv)
	a.open(ctx, *conv)
}

func (a *app) openConversation(ctx context.Context, arg string) {
	convs := a.dir.List()

	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(convs) {
			fmt.Printf("No conversation %d. /list shows %d.\n", n, len(convs))
			return
		}
		a.open(ctx, convs[n-1])
		return
	}

	for _, conv := range convs {
		if strings.EqualFold(conv.OtherUser.Username, arg) {
			a.open(ctx, conv)
			return
		}
	}
	fmt.Printf("No conversation with %s. /new %s to start one.\n", arg, arg)
}

// open selects the conversation, waits briefly for history, and renders it.
func (a *app) open(ctx context.Context, conv api.Conversation) {
	a.sync.Select(ctx, conv)

	deadline := time.Now().Add(5 * time.Second)
	for a.sync.State() == thread.StateLoading && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}

	fmt.Printf("--- %s ---\n", conv.OtherUser.Username)
	msgs := a.sync.Messages()
	self := a.session.CurrentUser()
	for _, msg := range msgs {
		ts := dimColor.Sprint(formatTimestamp(msg.CreatedAt))
		if self != nil && msg.Sender.ID == self.ID {
			selfColor.Printf("you: ")
		} else {
			otherColor.Printf("%s: ", msg.Sender.Username)
		}
		fmt.Printf("%s  %s\n", msg.Text, ts)
	}
	if len(msgs) == 0 {
		dimColor.Println("(no messages yet)")
	}

	if a.store != nil {
		if err := a.store.SaveMessages(ctx, conv.ID, msgs); err != nil {
			a.logger.Warn("caching messages", "error", err)
		}
	}
}

// formatTimestamp renders a message time the way the sidebar does: time of
// day for today, weekday within the last week, date otherwise.
func formatTimestamp(t time.Time) string {
	t = t.Local()
	now := time.Now()

	y1, m1, d1 := t.Date()
	y2, m2, d2 := now.Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return t.Format("3:04 PM")
	}
	yesterday := now.AddDate(0, 0, -1)
	y3, m3, d3 := yesterday.Date()
	if y1 == y3 && m1 == m3 && d1 == d3 {
		return "Yesterday"
	}
	if now.Sub(t) < 7*24*time.Hour {
		return t.Format("Mon")
	}
	return t.Format("Jan 2, 2006")
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

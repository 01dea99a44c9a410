package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/unkn0wn-root/dashsync"
	"github.com/unkn0wn-root/dashsync/config"
	"github.com/unkn0wn-root/dashsync/dashboard"
	"github.com/unkn0wn-root/dashsync/internal/bootstrap"
)

var version = "dev"

// CLI is the top-level command structure for dashsync.
type CLI struct {
	Globals

	Version     kong.VersionFlag `help:"Show version." short:"V"`
	Login       LoginCmd         `cmd:"" help:"Sign in and store the session token."`
	Logout      LogoutCmd        `cmd:"" help:"Forget the session token and cached data."`
	Me          MeCmd            `cmd:"" help:"Show the signed-in user and their tabs."`
	Tab         TabCmd           `cmd:"" help:"Show or switch the active dashboard tab."`
	Settings    SettingsCmd      `cmd:"" help:"List or change event settings."`
	Variables   VariablesCmd     `cmd:"" help:"List or change event variables."`
	Users       UsersCmd         `cmd:"" help:"List users, optionally filtered."`
	Leaderboard LeaderboardCmd   `cmd:"" help:"Show a quiz round leaderboard."`
	Get         GetCmd           `cmd:"" help:"Print any API resource as JSON."`
	Cache       CacheCmd         `cmd:"" help:"Inspect or clear the local cache."`
	HashKey     HashKeyCmd       `cmd:"" name:"hash-master-key" help:"Print a bcrypt hash for master_key_hash."`
}

type Globals struct {
	Config string `help:"Config file." short:"c" type:"path"`

	out   io.Writer
	in    *os.File
	lines *bufio.Reader
}

// env is one command invocation: the built stack plus a cancel-on-interrupt context.
type env struct {
	ctx  context.Context
	app  *bootstrap.App
	stop func()
}

func (g *Globals) open() (*env, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	app, err := bootstrap.Build(ctx, cfg, os.Stderr)
	if err != nil {
		stop()
		return nil, err
	}
	return &env{ctx: ctx, app: app, stop: stop}, nil
}

func (e *env) Close() {
	_ = e.app.Close()
	e.stop()
}

// session opens the dashboard. With withLive a live transport failure only
// costs push updates.
func (g *Globals) session(e *env, withLive bool) (*dashboard.Session, error) {
	opts := dashboard.Options{
		API:        e.app.API,
		Cache:      e.app.Cache,
		Store:      e.app.Store,
		Notifier:   newToastPrinter(os.Stderr),
		Logger:     e.app.Log,
		Verifier:   e.app.Verifier,
		Codec:      e.app.Config.Cache.Codec,
		MaxPayload: e.app.Config.Cache.MaxPayload,
	}
	if withLive {
		b, err := e.app.Bridge(e.ctx)
		if err != nil {
			e.app.Log.Warn("live updates unavailable", dashsync.Fields{"err": err})
		}
		opts.Bridge = b
	}
	return dashboard.Open(e.ctx, opts)
}

// toastPrinter shows notifications on stderr, colored by level when w is a terminal.
type toastPrinter struct {
	w      io.Writer
	levels map[dashsync.Level]lipgloss.Style
}

func newToastPrinter(w io.Writer) toastPrinter {
	r := lipgloss.NewRenderer(w)
	return toastPrinter{
		w: w,
		levels: map[dashsync.Level]lipgloss.Style{
			dashsync.LevelInfo:    r.NewStyle().Foreground(lipgloss.Color("4")),
			dashsync.LevelSuccess: r.NewStyle().Foreground(lipgloss.Color("2")),
			dashsync.LevelError:   r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		},
	}
}

func (p toastPrinter) Notify(n dashsync.Notification) {
	tag := "[" + n.Level.String() + "]"
	if st, ok := p.levels[n.Level]; ok {
		tag = st.Render(tag)
	}
	fmt.Fprintf(p.w, "%s %s\n", tag, n.Message)
}

// readSecret prompts without echo on a terminal and reads a line otherwise.
func (g *Globals) readSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	if term.IsTerminal(int(g.in.Fd())) {
		b, err := term.ReadPassword(int(g.in.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read secret: %w", err)
		}
		return string(b), nil
	}
	if g.lines == nil {
		g.lines = bufio.NewReader(g.in)
	}
	line, err := g.lines.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, dashsync.ErrUnauthorized):
		return 3
	case errors.Is(err, dashboard.ErrNoAccess), errors.Is(err, dashboard.ErrTabNotAllowed):
		return 4
	default:
		return 1
	}
}

func main() {
	cli := CLI{Globals: Globals{out: os.Stdout, in: os.Stdin}}
	ctx := kong.Parse(&cli,
		kong.Name("dashsync"),
		kong.Description("Event dashboard client with a live-synced local cache."),
		kong.Vars{"version": version},
	)
	if err := ctx.Run(&cli.Globals); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(exitCode(err))
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/unkn0wn-root/dashsync"
	"github.com/unkn0wn-root/dashsync/api"
	"github.com/unkn0wn-root/dashsync/dashboard"
	"github.com/unkn0wn-root/dashsync/stepup"
)

const maxSecretAttempts = 3

type LoginCmd struct {
	Email string `arg:"" help:"Account email."`
}

func (c *LoginCmd) Run(g *Globals) error {
	e, err := g.open()
	if err != nil {
		return err
	}
	defer e.Close()

	password, err := g.readSecret("Password: ")
	if err != nil {
		return err
	}
	u, err := e.app.API.Login(e.ctx, c.Email, password)
	if err != nil {
		return fmt.Errorf("login: %s", dashsync.ErrorMessage(err, "Login failed"))
	}
	// A new identity must not see the previous one's responses.
	if err := e.app.Cache.Reset(e.ctx); err != nil {
		e.app.Log.Warn("cache reset after login failed", dashsync.Fields{"err": err})
	}
	fmt.Fprintf(g.out, "Signed in as %s <%s>\n", u.Name, u.Email)
	return nil
}

type LogoutCmd struct{}

func (c *LogoutCmd) Run(g *Globals) error {
	e, err := g.open()
	if err != nil {
		return err
	}
	defer e.Close()
	return errors.Join(e.app.API.Logout(e.ctx), e.app.Cache.Reset(e.ctx))
}

type MeCmd struct{}

func (c *MeCmd) Run(g *Globals) error {
	e, err := g.open()
	if err != nil {
		return err
	}
	defer e.Close()
	s, err := g.session(e, false)
	if err != nil {
		return err
	}
	defer s.Close()

	u := s.User()
	fmt.Fprintf(g.out, "%s <%s>  %s\n", u.Name, u.Email, dashboard.ParticipantCode(u.ID))
	fmt.Fprintf(g.out, "roles: %s\n", strings.Join(dashboard.NormalizeRoles(u.Roles), ", "))
	printTabs(g.out, s.Access().Tabs(), s.ActiveTab())
	return nil
}

type TabCmd struct {
	Name string `arg:"" optional:"" help:"Tab to switch to; fuzzy matched."`
}

func (c *TabCmd) Run(g *Globals) error {
	e, err := g.open()
	if err != nil {
		return err
	}
	defer e.Close()
	s, err := g.session(e, false)
	if err != nil {
		return err
	}
	defer s.Close()

	tabs := s.Access().Tabs()
	if c.Name != "" {
		t, err := matchTab(c.Name, tabs)
		if err != nil {
			return err
		}
		if err := s.Visit(e.ctx, t); err != nil {
			return err
		}
	}
	printTabs(g.out, tabs, s.ActiveTab())
	return nil
}

func printTabs(w io.Writer, tabs []dashboard.Tab, active dashboard.Tab) {
	for _, t := range tabs {
		mark := " "
		if t == active {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %s\n", mark, t)
	}
}

// matchTab resolves name against the allowed tabs, preferring an exact
// case-insensitive match over the closest fuzzy one.
func matchTab(name string, tabs []dashboard.Tab) (dashboard.Tab, error) {
	names := make([]string, len(tabs))
	for i, t := range tabs {
		if strings.EqualFold(string(t), name) {
			return t, nil
		}
		names[i] = string(t)
	}
	ranks := fuzzy.RankFindNormalizedFold(name, names)
	if len(ranks) == 0 {
		return "", fmt.Errorf("%w: %q", dashboard.ErrTabNotAllowed, name)
	}
	best := ranks[0]
	for _, r := range ranks[1:] {
		if r.Distance < best.Distance || (r.Distance == best.Distance && r.OriginalIndex < best.OriginalIndex) {
			best = r
		}
	}
	return tabs[best.OriginalIndex], nil
}

type SettingsCmd struct {
	List SettingsListCmd `cmd:"" default:"1" help:"List settings."`
	Set  SettingsSetCmd  `cmd:"" help:"Change a setting. Requires the master key."`
}

type SettingsListCmd struct{}

func (c *SettingsListCmd) Run(g *Globals) error {
	e, err := g.open()
	if err != nil {
		return err
	}
	defer e.Close()
	s, err := g.session(e, false)
	if err != nil {
		return err
	}
	defer s.Close()
	return printSettings(e.ctx, g.out, s)
}

func printSettings(ctx context.Context, w io.Writer, s *dashboard.Session) error {
	if err := s.Visit(ctx, dashboard.TabSettings); err != nil {
		return err
	}
	r, _ := s.Catalog().Settings().Get(ctx, s.Cache())
	if r.Err != nil {
		return r.Err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, st := range r.Data {
		fmt.Fprintf(tw, "%s\t%t\n", st.Key, st.Value)
	}
	return tw.Flush()
}

type SettingsSetCmd struct {
	Key   string `arg:"" help:"Setting key, e.g. isRegistrationOpen."`
	Value string `arg:"" help:"true or false."`
}

func (c *SettingsSetCmd) Run(g *Globals) error {
	v, err := strconv.ParseBool(c.Value)
	if err != nil {
		return fmt.Errorf("settings set: value %q is not a boolean", c.Value)
	}
	e, err := g.open()
	if err != nil {
		return err
	}
	defer e.Close()
	s, err := g.session(e, false)
	if err != nil {
		return err
	}
	defer s.Close()

	if _, err := s.UpdateSetting(api.UpdateSetting{Key: c.Key, Value: v}); err != nil {
		return err
	}
	if err := g.stepUp(e.ctx, s); err != nil {
		return err
	}
	return printSettings(e.ctx, g.out, s)
}

// stepUp asks for the master key until the pending write ran or the
// attempts ran out. It returns the write's error.
func (g *Globals) stepUp(ctx context.Context, s *dashboard.Session) error {
	for range maxSecretAttempts {
		secret, err := g.readSecret("Master key: ")
		if err != nil {
			s.Gate().Cancel()
			return err
		}
		ok, err := s.SubmitMasterKey(ctx, secret)
		if ok {
			return err
		}
		if err != nil && !errors.Is(err, stepup.ErrEmptySecret) {
			s.Gate().Cancel()
			return err
		}
	}
	s.Gate().Cancel()
	return errors.New(stepup.MsgInvalidSecret)
}

type VariablesCmd struct {
	List VariablesListCmd `cmd:"" default:"1" help:"List variables."`
	Set  VariablesSetCmd  `cmd:"" help:"Create or change a variable. Requires the master key."`
}

type VariablesListCmd struct{}

func (c *VariablesListCmd) Run(g *Globals) error {
	e, err := g.open()
	if err != nil {
		return err
	}
	defer e.Close()
	s, err := g.session(e, false)
	if err != nil {
		return err
	}
	defer s.Close()
	return printVariables(e.ctx, g.out, s)
}

func printVariables(ctx context.Context, w io.Writer, s *dashboard.Session) error {
	if err := s.Visit(ctx, dashboard.TabVariables); err != nil {
		return err
	}
	r, _ := s.Catalog().Variables().Get(ctx, s.Cache())
	if r.Err != nil {
		return r.Err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, v := range r.Data {
		fmt.Fprintf(tw, "%s\t%s\n", v.Key, v.Value)
	}
	return tw.Flush()
}

type VariablesSetCmd struct {
	Key   string `arg:""`
	Value string `arg:""`
}

func (c *VariablesSetCmd) Run(g *Globals) error {
	e, err := g.open()
	if err != nil {
		return err
	}
	defer e.Close()
	s, err := g.session(e, false)
	if err != nil {
		return err
	}
	defer s.Close()

	if _, err := s.UpsertVariable(api.UpsertVariable{Key: c.Key, Value: c.Value}); err != nil {
		return err
	}
	if err := g.stepUp(e.ctx, s); err != nil {
		return err
	}
	return printVariables(e.ctx, g.out, s)
}

type UsersCmd struct {
	Search string `arg:"" optional:"" help:"Name or email filter."`
}

func (c *UsersCmd) Run(g *Globals) error {
	e, err := g.open()
	if err != nil {
		return err
	}
	defer e.Close()
	s, err := g.session(e, false)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Visit(e.ctx, dashboard.TabUsers); err != nil {
		return err
	}
	if err := s.SearchUsers(e.ctx, c.Search); err != nil {
		return err
	}
	r, _ := s.Catalog().Users(s.UserSearch()).Get(e.ctx, s.Cache())
	if r.Err != nil {
		return r.Err
	}
	tw := tabwriter.NewWriter(g.out, 0, 4, 2, ' ', 0)
	for _, u := range r.Data.Users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", dashboard.ParticipantCode(u.ID), u.Name, u.Email,
			strings.Join(dashboard.NormalizeRoles(u.Roles), ","))
	}
	return tw.Flush()
}

type LeaderboardCmd struct {
	Event int64 `arg:"" help:"Event id."`
	Round int   `arg:"" help:"Round number."`
	Watch bool  `help:"Keep running and reprint on live updates." short:"w"`
}

func (c *LeaderboardCmd) Run(g *Globals) error {
	e, err := g.open()
	if err != nil {
		return err
	}
	defer e.Close()
	s, err := g.session(e, c.Watch)
	if err != nil {
		return err
	}
	defer s.Close()

	var onChange func(dashsync.Result[[]api.LeaderboardEntry])
	if c.Watch {
		onChange = func(r dashsync.Result[[]api.LeaderboardEntry]) {
			if r.HasData && r.Status == dashsync.StatusSuccess {
				printLeaderboard(g.out, r.Data)
			}
		}
	}
	w, err := s.WatchLeaderboard(e.ctx, c.Event, c.Round, onChange)
	if err != nil {
		return err
	}
	defer w.Close()

	if !c.Watch {
		r, _ := s.Catalog().Leaderboard(c.Event, c.Round).Get(e.ctx, s.Cache())
		printLeaderboard(g.out, r.Data)
		return nil
	}
	<-e.ctx.Done()
	return nil
}

func printLeaderboard(w io.Writer, entries []api.LeaderboardEntry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTEAM\tNAME\tSCORE\tTIME")
	for i, en := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%g\t%s\n", i+1, dashboard.TeamCode(en.Team.ID), en.Team.Name, en.Score,
			time.Duration(en.TimeTaken)*time.Second)
	}
	_ = tw.Flush()
}

type GetCmd struct {
	Path string `arg:"" help:"API path, e.g. /admin/settings."`
}

func (c *GetCmd) Run(g *Globals) error {
	e, err := g.open()
	if err != nil {
		return err
	}
	defer e.Close()

	q := dashboard.Catalog{API: e.app.API}.Document(c.Path)
	r, err := q.Fetch(e.ctx, e.app.Cache, true)
	if err != nil {
		return err
	}
	b, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(r.Data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(g.out, string(b))
	return err
}

type CacheCmd struct {
	Stats CacheStatsCmd `cmd:"" default:"1" help:"Show provider occupancy."`
	Clear CacheClearCmd `cmd:"" help:"Drop every cached response."`
}

type CacheStatsCmd struct{}

func (c *CacheStatsCmd) Run(g *Globals) error {
	e, err := g.open()
	if err != nil {
		return err
	}
	defer e.Close()

	cfg := e.app.Config.Cache
	st, ok, err := e.app.Cache.ProviderStats(e.ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(g.out, "provider: %s (codec %s, genstore %s)\n", cfg.Provider, cfg.Codec, cfg.GenStore)
	if !ok {
		fmt.Fprintln(g.out, "no statistics available")
		return nil
	}
	fmt.Fprintf(g.out, "entries: %d\nhits: %d\nmisses: %d\n", st.Entries, st.Hits, st.Misses)
	return nil
}

type CacheClearCmd struct{}

func (c *CacheClearCmd) Run(g *Globals) error {
	e, err := g.open()
	if err != nil {
		return err
	}
	defer e.Close()
	return e.app.Cache.Reset(e.ctx)
}

type HashKeyCmd struct {
	Cost int `help:"bcrypt cost; 0 uses the library default."`
}

func (c *HashKeyCmd) Run(g *Globals) error {
	secret, err := g.readSecret("Master key: ")
	if err != nil {
		return err
	}
	if strings.TrimSpace(secret) == "" {
		return errors.New(stepup.MsgSecretNeeded)
	}
	hash, err := stepup.HashSecret(secret, c.Cost)
	if err != nil {
		return err
	}
	fmt.Fprintln(g.out, hash)
	return nil
}

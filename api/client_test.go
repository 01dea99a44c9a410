package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/unkn0wn-root/dashsync"
	"github.com/unkn0wn-root/dashsync/api"
	"github.com/unkn0wn-root/dashsync/internal/apitest"
	"github.com/unkn0wn-root/dashsync/kv"
)

func newClient(t *testing.T, signedIn bool) (*api.Client, *apitest.Backend, *kv.Memory) {
	t.Helper()
	b := apitest.New(t)
	store := kv.NewMemory()
	if signedIn {
		_ = store.Set(context.Background(), kv.KeyToken, apitest.Token)
	}
	c, err := api.New(api.Options{BaseURL: b.URL, Store: store})
	if err != nil {
		t.Fatal(err)
	}
	return c, b, store
}

func TestMissingTokenSendsNoRequest(t *testing.T) {
	c, b, _ := newClient(t, false)
	_, err := c.Settings(context.Background())
	if !errors.Is(err, dashsync.ErrUnauthorized) {
		t.Fatalf("err = %v", err)
	}
	if b.Hits("settings") != 0 {
		t.Fatalf("request sent without a token")
	}
}

func TestRejectedTokenIsUnauthorized(t *testing.T) {
	c, b, store := newClient(t, false)
	_ = store.Set(context.Background(), kv.KeyToken, "expired")
	_, err := c.Me(context.Background())
	if !errors.Is(err, dashsync.ErrUnauthorized) {
		t.Fatalf("err = %v", err)
	}
	var ae *api.Error
	if !errors.As(err, &ae) || ae.Status != http.StatusUnauthorized || b.Hits("me") != 1 {
		t.Fatalf("err = %#v hits=%d", err, b.Hits("me"))
	}
}

func TestLoginStoresToken(t *testing.T) {
	ctx := context.Background()
	c, _, store := newClient(t, false)
	if _, err := c.Login(ctx, "ada@example.com", "wrong"); err == nil {
		t.Fatalf("expected login failure")
	} else if got := dashsync.ErrorMessage(err, "Login failed"); got != "Invalid credentials" {
		t.Fatalf("message = %q", got)
	}
	u, err := c.Login(ctx, "ada@example.com", apitest.Password)
	if err != nil {
		t.Fatal(err)
	}
	if u.ID != 42 {
		t.Fatalf("user = %+v", u)
	}
	if tok, ok, _ := store.Get(ctx, kv.KeyToken); !ok || tok != apitest.Token {
		t.Fatalf("token = %q %v", tok, ok)
	}
	if err := c.Logout(ctx); err != nil || c.HasToken(ctx) {
		t.Fatalf("logout left token: %v", err)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, b, _ := newClient(t, true)

	got, err := c.Settings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Key != "isQuizLive" || got[1].Key != "isRegistrationOpen" || !got[1].Value {
		t.Fatalf("settings = %+v", got)
	}
	s, err := c.UpdateSetting(ctx, api.UpdateSetting{Key: "isRegistrationOpen", Value: false})
	if err != nil {
		t.Fatal(err)
	}
	if s.Value || b.Setting("isRegistrationOpen") {
		t.Fatalf("setting not updated")
	}

	_, err = c.UpdateSetting(ctx, api.UpdateSetting{Key: "nope", Value: true})
	var ae *api.Error
	if !errors.As(err, &ae) || ae.Status != http.StatusNotFound || ae.UserMessage() != "Setting not found" {
		t.Fatalf("err = %v", err)
	}
}

func TestVariablesAndUsers(t *testing.T) {
	ctx := context.Background()
	c, b, _ := newClient(t, true)

	if _, err := c.UpsertVariable(ctx, api.UpsertVariable{Key: "fest year", Value: "2026"}); err != nil {
		t.Fatal(err)
	}
	if b.Variable("fest year") != "2026" {
		t.Fatalf("variable key not escaped correctly")
	}

	page, err := c.Users(ctx, "grace")
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Users) != 1 || page.Users[0].ID != 7 || len(page.AvailableRoles) == 0 {
		t.Fatalf("users = %+v", page)
	}
	u, err := c.UpdateUserRoles(ctx, api.UpdateRoles{UserID: 7, Roles: []string{"DOCUMENTATION"}})
	if err != nil || len(u.Roles) != 1 {
		t.Fatalf("UpdateUserRoles = %+v, %v", u, err)
	}
}

func TestVerifyMasterKey(t *testing.T) {
	ctx := context.Background()
	c, b, _ := newClient(t, true)

	r, err := c.VerifyMasterKey(ctx, apitest.MasterKey)
	if err != nil || !r.OK {
		t.Fatalf("right key = %+v, %v", r, err)
	}
	b.RejectMessage = "Nope"
	r, err = c.MasterKeyVerifier().Verify(ctx, "guess")
	if err != nil || r.OK || r.Message != "Nope" {
		t.Fatalf("wrong key = %+v, %v", r, err)
	}
	b.FailNext("verify-master-key", http.StatusInternalServerError)
	if _, err := c.VerifyMasterKey(ctx, apitest.MasterKey); err == nil {
		t.Fatalf("expected error on server failure")
	}
}

func TestPublicEventNeedsNoToken(t *testing.T) {
	c, b, _ := newClient(t, false)
	b.AddPublicEvent(api.PublicEvent{ID: 3, Name: "Hackathon", RegistrationOpen: true})
	ev, err := c.PublicEvent(context.Background(), 3)
	if err != nil || ev.Name != "Hackathon" {
		t.Fatalf("PublicEvent = %+v, %v", ev, err)
	}
}

func TestDocument(t *testing.T) {
	c, _, _ := newClient(t, true)
	doc, err := c.Document(context.Background(), "auth/me")
	if err != nil {
		t.Fatal(err)
	}
	user := doc.GetFields()["user"].GetStructValue()
	if user == nil || user.GetFields()["id"].GetNumberValue() != 42 {
		t.Fatalf("doc = %v", doc)
	}
}

func TestLeaderboardAndPromotion(t *testing.T) {
	ctx := context.Background()
	c, b, _ := newClient(t, true)
	b.SetLeaderboard(5, 1, []api.LeaderboardEntry{{Team: api.Team{ID: 1, Name: "A"}, Score: 9}})

	got, err := c.Leaderboard(ctx, 5, 1)
	if err != nil || len(got) != 1 || got[0].Team.Name != "A" {
		t.Fatalf("Leaderboard = %+v, %v", got, err)
	}
	if _, err := c.PromoteParticipants(ctx, api.Promotion{EventID: 5, RoundNo: 1}); dashsync.ErrorMessage(err, "") != "No teams selected" {
		t.Fatalf("err = %v", err)
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := api.New(api.Options{}); err == nil {
		t.Fatalf("expected error")
	}
}

// Responses over MaxBody fail instead of being buffered whole.
func TestOversizedResponseRejected(t *testing.T) {
	big := `{"settings":[{"key":"` + strings.Repeat("x", 4096) + `","value":true}]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/admin/variables" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"` + strings.Repeat("y", 128<<10) + `"}`))
			return
		}
		_, _ = w.Write([]byte(big))
	}))
	defer srv.Close()
	store := kv.NewMemory()
	_ = store.Set(context.Background(), kv.KeyToken, apitest.Token)

	small, _ := api.New(api.Options{BaseURL: srv.URL, Store: store, MaxBody: 1024})
	if _, err := small.Settings(context.Background()); !errors.Is(err, api.ErrBodyTooLarge) {
		t.Fatalf("err = %v, want ErrBodyTooLarge", err)
	}
	roomy, _ := api.New(api.Options{BaseURL: srv.URL, Store: store, MaxBody: 8192})
	if got, err := roomy.Settings(context.Background()); err != nil || len(got) != 1 {
		t.Fatalf("Settings = %v, %v", got, err)
	}

	_, err := roomy.Variables(context.Background())
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest || apiErr.Message != "" {
		t.Fatalf("err = %v", err)
	}
}

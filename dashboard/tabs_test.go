package dashboard

import (
	"slices"
	"testing"
	"time"

	"github.com/unkn0wn-root/dashsync/api"
)

func TestAccessOf(t *testing.T) {
	a := AccessOf(api.User{Roles: []string{" admin", "documentation "}, IsJudge: true})
	if !a.Admin || !a.Documentation || !a.Judge || a.Organiser || a.BranchRep {
		t.Fatalf("access = %+v", a)
	}
	want := []Tab{TabSettings, TabVariables, TabUsers, TabLogs, TabDocAccess, TabAssignRep, TabJudging}
	if got := a.Tabs(); !slices.Equal(got, want) {
		t.Fatalf("tabs = %v", got)
	}
	if (Access{}).Any() {
		t.Fatalf("empty access reports a role")
	}
}

func TestPickFallsBack(t *testing.T) {
	cases := []struct {
		a      Access
		prefer Tab
		want   Tab
	}{
		{Access{Admin: true}, TabUsers, TabUsers},
		{Access{Judge: true}, TabUsers, TabJudging},
		{Access{Organiser: true, Judge: true}, TabJudging, TabJudging},
		{Access{}, TabSettings, ""},
	}
	for _, tc := range cases {
		if got := tc.a.Pick(tc.prefer); got != tc.want {
			t.Errorf("%+v.Pick(%q) = %q, want %q", tc.a, tc.prefer, got, tc.want)
		}
	}
}

func TestParseTab(t *testing.T) {
	if tab, ok := ParseTab("Assign Branch Rep"); !ok || tab != TabAssignRep {
		t.Fatalf("ParseTab = %q %v", tab, ok)
	}
	if _, ok := ParseTab("settings"); ok {
		t.Fatalf("tab names are case sensitive")
	}
	if len(AllTabs()) != 9 {
		t.Fatalf("AllTabs = %v", AllTabs())
	}
}

func TestNormalizeRoles(t *testing.T) {
	got := NormalizeRoles([]string{"judge", " JUDGE", "", "Admin"})
	if !slices.Equal(got, []string{"JUDGE", "ADMIN"}) {
		t.Fatalf("roles = %v", got)
	}
}

func TestDisplayFormats(t *testing.T) {
	if TeamCode(7) != "INC-T-007" || ParticipantCode(1234) != "INC-P-1234" {
		t.Fatalf("codes = %s %s", TeamCode(7), ParticipantCode(1234))
	}
	ts := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	if got := FormatDateTime(ts); got != "14 Mar 2026, 02:30 pm" {
		t.Fatalf("FormatDateTime = %q", got)
	}
	if got := FormatDate(time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)); got != "15 Mar 2026" {
		t.Fatalf("FormatDate = %q", got)
	}
	if FormatTime(time.Time{}) != "N/A" {
		t.Fatalf("zero time not rendered as N/A")
	}
}

func TestKeysNest(t *testing.T) {
	if !UsersKey("grace").HasPrefix(KeyUsers) || KeyAccessUsers.HasPrefix(KeyUsers) {
		t.Fatalf("users keys overlap")
	}
	if !LeaderboardKey(5, 1).HasPrefix(KeyLeaderboard) || LeaderboardKey(5, 1).Equal(LeaderboardKey(5, 2)) {
		t.Fatalf("leaderboard keys wrong")
	}
}

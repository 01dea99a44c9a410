package dashboard

import (
	"slices"
	"strings"

	"github.com/unkn0wn-root/dashsync/api"
)

type Tab string

const (
	TabSettings  Tab = "Settings"
	TabVariables Tab = "Variables"
	TabUsers     Tab = "Users"
	TabLogs      Tab = "Logs"
	TabBranchRep Tab = "Branch Rep"
	TabDocAccess Tab = "Doc Access"
	TabAssignRep Tab = "Assign Branch Rep"
	TabOrganiser Tab = "Organiser"
	TabJudging   Tab = "Judging"
)

// DefaultTab is the only tab loaded before the user picks one.
const DefaultTab = TabSettings

var (
	adminTabs     = []Tab{TabSettings, TabVariables, TabUsers, TabLogs}
	branchRepTabs = []Tab{TabBranchRep}
	docTabs       = []Tab{TabDocAccess, TabAssignRep}
	organiserTabs = []Tab{TabOrganiser}
	judgingTabs   = []Tab{TabJudging}
)

// AllTabs in display order.
func AllTabs() []Tab {
	return slices.Concat(adminTabs, branchRepTabs, docTabs, organiserTabs, judgingTabs)
}

// ParseTab accepts only known tab names.
func ParseTab(s string) (Tab, bool) {
	t := Tab(s)
	return t, slices.Contains(AllTabs(), t)
}

// Access is what the signed-in user may see.
type Access struct {
	Admin         bool
	BranchRep     bool
	Documentation bool
	Organiser     bool
	Judge         bool
}

func AccessOf(u api.User) Access {
	roles := NormalizeRoles(u.Roles)
	return Access{
		Admin:         slices.Contains(roles, "ADMIN"),
		BranchRep:     u.IsBranchRep,
		Documentation: slices.Contains(roles, "DOCUMENTATION"),
		Organiser:     u.IsOrganiser,
		Judge:         u.IsJudge,
	}
}

func (a Access) Any() bool {
	return a.Admin || a.BranchRep || a.Documentation || a.Organiser || a.Judge
}

// Tabs lists the tabs a allows, in display order.
func (a Access) Tabs() []Tab {
	var out []Tab
	if a.Admin {
		out = append(out, adminTabs...)
	}
	if a.BranchRep {
		out = append(out, branchRepTabs...)
	}
	if a.Documentation {
		out = append(out, docTabs...)
	}
	if a.Organiser {
		out = append(out, organiserTabs...)
	}
	if a.Judge {
		out = append(out, judgingTabs...)
	}
	return out
}

func (a Access) Allows(t Tab) bool { return slices.Contains(a.Tabs(), t) }

// Pick keeps want when allowed and otherwise falls back to the first allowed
// tab. It returns "" when a allows nothing.
func (a Access) Pick(want Tab) Tab {
	tabs := a.Tabs()
	if slices.Contains(tabs, want) {
		return want
	}
	if len(tabs) == 0 {
		return ""
	}
	return tabs[0]
}

// NormalizeRoles upper-cases, trims and deduplicates role names.
func NormalizeRoles(in []string) []string {
	out := make([]string, 0, len(in))
	for _, r := range in {
		r = strings.ToUpper(strings.TrimSpace(r))
		if r == "" || slices.Contains(out, r) {
			continue
		}
		out = append(out, r)
	}
	return out
}

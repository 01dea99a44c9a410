package dashboard

import (
	"time"

	"github.com/unkn0wn-root/dashsync"
	"github.com/unkn0wn-root/dashsync/api"
)

// Mutations is every server write of the dashboard with the queries it makes
// stale. Update setting and upsert variable are also reachable behind the
// master key gate (see Session).
type Mutations struct {
	UpdateSetting   *dashsync.Mutation[api.UpdateSetting, api.Setting]
	UpsertVariable  *dashsync.Mutation[api.UpsertVariable, api.Variable]
	UpdateUserRoles *dashsync.Mutation[api.UpdateRoles, api.User]

	AddOrganiser    *dashsync.Mutation[api.EventMember, api.Organiser]
	RemoveOrganiser *dashsync.Mutation[api.EventMember, struct{}]

	CreateDocEvent  *dashsync.Mutation[api.DocEvent, api.DocEvent]
	UpdateDocEvent  *dashsync.Mutation[api.DocEvent, api.DocEvent]
	AssignBranchRep *dashsync.Mutation[api.BranchRep, struct{}]
	RemoveBranchRep *dashsync.Mutation[api.BranchRep, struct{}]

	UpdateProfile    *dashsync.Mutation[api.Profile, api.User]
	CreateTeam       *dashsync.Mutation[api.TeamInput, api.Team]
	DeleteTeam       *dashsync.Mutation[api.TeamInput, struct{}]
	AddTeamMember    *dashsync.Mutation[api.TeamInput, api.TeamMember]
	RemoveTeamMember *dashsync.Mutation[api.TeamInput, struct{}]
	CreateRound      *dashsync.Mutation[api.RoundInput, api.Round]
	DeleteRound      *dashsync.Mutation[api.RoundInput, struct{}]
	AddJudge         *dashsync.Mutation[api.RoundInput, struct{}]
	RemoveJudge      *dashsync.Mutation[api.RoundInput, struct{}]
	AddCriteria      *dashsync.Mutation[api.RoundInput, api.Criteria]
	DeleteCriteria   *dashsync.Mutation[api.RoundInput, struct{}]
	CreateQuiz       *dashsync.Mutation[api.QuizDraft, api.Quiz]
	UpdateQuiz       *dashsync.Mutation[api.QuizDraft, api.Quiz]
	DeleteQuiz       *dashsync.Mutation[api.RoundInput, struct{}]
	Promote          *dashsync.Mutation[api.Promotion, struct{}]

	SubmitScore  *dashsync.Mutation[api.ScoreInput, struct{}]
	PromoteTeam  *dashsync.Mutation[api.Selection, struct{}]
	SelectWinner *dashsync.Mutation[api.Selection, struct{}]

	RegisterTeam *dashsync.Mutation[api.Registration, api.Team]
	JoinTeam     *dashsync.Mutation[api.Registration, api.Team]
	StartQuiz    *dashsync.Mutation[api.Attempt, time.Time]
	SubmitAnswer *dashsync.Mutation[api.Attempt, bool]
	FinishQuiz   *dashsync.Mutation[api.Attempt, float64]
}

// NewMutations panics on an invalid definition; the set below is fixed.
func NewMutations(c *dashsync.Cache, n dashsync.Notifier, a *api.Client) *Mutations {
	organiserEvent := func(eventID int64) []dashsync.Key {
		return []dashsync.Key{OrganiserEventKey(eventID)}
	}
	roundQuiz := func(eventID int64, roundNo int) []dashsync.Key {
		return []dashsync.Key{OrganiserEventKey(eventID), QuizRoundKey(eventID, roundNo)}
	}
	return &Mutations{
		UpdateSetting: dashsync.MustMutation(c, n, dashsync.MutationDef[api.UpdateSetting, api.Setting]{
			Name:        "update-setting",
			Do:          a.UpdateSetting,
			Invalidates: []dashsync.Key{KeySettings},
			Success:     "Setting updated",
			Failure:     "Failed to update setting",
		}),
		UpsertVariable: dashsync.MustMutation(c, n, dashsync.MutationDef[api.UpsertVariable, api.Variable]{
			Name:        "upsert-variable",
			Do:          a.UpsertVariable,
			Invalidates: []dashsync.Key{KeyVariables},
			Success:     "Variable saved",
			Failure:     "Failed to save variable",
		}),
		UpdateUserRoles: dashsync.MustMutation(c, n, dashsync.MutationDef[api.UpdateRoles, api.User]{
			Name:        "update-user-roles",
			Do:          a.UpdateUserRoles,
			Invalidates: []dashsync.Key{KeyUsers, KeyAccessUsers},
			Success:     "Roles updated",
			Failure:     "Failed to update roles",
		}),

		AddOrganiser: dashsync.MustMutation(c, n, dashsync.MutationDef[api.EventMember, api.Organiser]{
			Name:        "add-organiser",
			Do:          a.AddOrganiser,
			Invalidates: []dashsync.Key{KeyBranchRepEvents},
			Success:     "Organiser added",
			Failure:     "Failed to add organiser",
		}),
		RemoveOrganiser: dashsync.MustMutation(c, n, dashsync.MutationDef[api.EventMember, struct{}]{
			Name:        "remove-organiser",
			Do:          a.RemoveOrganiser,
			Invalidates: []dashsync.Key{KeyBranchRepEvents},
			Success:     "Organiser removed",
			Failure:     "Failed to remove organiser",
		}),

		CreateDocEvent: dashsync.MustMutation(c, n, dashsync.MutationDef[api.DocEvent, api.DocEvent]{
			Name:        "create-doc-event",
			Do:          a.CreateDocumentationEvent,
			Invalidates: []dashsync.Key{KeyDocEvents},
			Success:     "Event created",
			Failure:     "Failed to create event",
		}),
		UpdateDocEvent: dashsync.MustMutation(c, n, dashsync.MutationDef[api.DocEvent, api.DocEvent]{
			Name:        "update-doc-event",
			Do:          a.UpdateDocumentationEvent,
			Invalidates: []dashsync.Key{KeyDocEvents},
			InvalidatesFor: func(p api.DocEvent, _ api.DocEvent) []dashsync.Key {
				return []dashsync.Key{DocEventKey(p.ID)}
			},
			Success: "Event updated",
			Failure: "Failed to update event",
		}),
		AssignBranchRep: dashsync.MustMutation(c, n, dashsync.MutationDef[api.BranchRep, struct{}]{
			Name:        "assign-branch-rep",
			Do:          a.AssignBranchRep,
			Invalidates: []dashsync.Key{KeyBranches},
			Success:     "Branch rep assigned",
			Failure:     "Failed to assign branch rep",
		}),
		RemoveBranchRep: dashsync.MustMutation(c, n, dashsync.MutationDef[api.BranchRep, struct{}]{
			Name:        "remove-branch-rep",
			Do:          a.RemoveBranchRep,
			Invalidates: []dashsync.Key{KeyBranches},
			Success:     "Branch rep removed",
			Failure:     "Failed to remove branch rep",
		}),

		UpdateProfile: dashsync.MustMutation(c, n, dashsync.MutationDef[api.Profile, api.User]{
			Name:        "update-organiser-profile",
			Do:          a.UpdateOrganiserProfile,
			Invalidates: []dashsync.Key{KeyMe, KeyOrganiserEvents},
			Success:     "Profile updated",
			Failure:     "Failed to update profile",
		}),
		CreateTeam: dashsync.MustMutation(c, n, dashsync.MutationDef[api.TeamInput, api.Team]{
			Name:           "create-team",
			Do:             a.CreateTeam,
			InvalidatesFor: func(p api.TeamInput, _ api.Team) []dashsync.Key { return organiserEvent(p.EventID) },
			Success:        "Team created",
			Failure:        "Failed to create team",
		}),
		DeleteTeam: dashsync.MustMutation(c, n, dashsync.MutationDef[api.TeamInput, struct{}]{
			Name:           "delete-team",
			Do:             a.DeleteTeam,
			InvalidatesFor: func(p api.TeamInput, _ struct{}) []dashsync.Key { return organiserEvent(p.EventID) },
			Success:        "Team deleted",
			Failure:        "Failed to delete team",
		}),
		AddTeamMember: dashsync.MustMutation(c, n, dashsync.MutationDef[api.TeamInput, api.TeamMember]{
			Name:           "add-team-member",
			Do:             a.AddTeamMember,
			InvalidatesFor: func(p api.TeamInput, _ api.TeamMember) []dashsync.Key { return organiserEvent(p.EventID) },
			Success:        "Member added",
			Failure:        "Failed to add member",
		}),
		RemoveTeamMember: dashsync.MustMutation(c, n, dashsync.MutationDef[api.TeamInput, struct{}]{
			Name:           "remove-team-member",
			Do:             a.RemoveTeamMember,
			InvalidatesFor: func(p api.TeamInput, _ struct{}) []dashsync.Key { return organiserEvent(p.EventID) },
			Success:        "Member removed",
			Failure:        "Failed to remove member",
		}),
		CreateRound: dashsync.MustMutation(c, n, dashsync.MutationDef[api.RoundInput, api.Round]{
			Name:           "create-round",
			Do:             a.CreateRound,
			InvalidatesFor: func(p api.RoundInput, _ api.Round) []dashsync.Key { return organiserEvent(p.EventID) },
			Success:        "Round created",
			Failure:        "Failed to create round",
		}),
		DeleteRound: dashsync.MustMutation(c, n, dashsync.MutationDef[api.RoundInput, struct{}]{
			Name:           "delete-round",
			Do:             a.DeleteRound,
			InvalidatesFor: func(p api.RoundInput, _ struct{}) []dashsync.Key { return organiserEvent(p.EventID) },
			Success:        "Round deleted",
			Failure:        "Failed to delete round",
		}),
		AddJudge: dashsync.MustMutation(c, n, dashsync.MutationDef[api.RoundInput, struct{}]{
			Name:           "add-judge",
			Do:             a.AddJudge,
			InvalidatesFor: func(p api.RoundInput, _ struct{}) []dashsync.Key { return organiserEvent(p.EventID) },
			Success:        "Judge added",
			Failure:        "Failed to add judge",
		}),
		RemoveJudge: dashsync.MustMutation(c, n, dashsync.MutationDef[api.RoundInput, struct{}]{
			Name:           "remove-judge",
			Do:             a.RemoveJudge,
			InvalidatesFor: func(p api.RoundInput, _ struct{}) []dashsync.Key { return organiserEvent(p.EventID) },
			Success:        "Judge removed",
			Failure:        "Failed to remove judge",
		}),
		AddCriteria: dashsync.MustMutation(c, n, dashsync.MutationDef[api.RoundInput, api.Criteria]{
			Name:           "add-criteria",
			Do:             a.AddCriteria,
			InvalidatesFor: func(p api.RoundInput, _ api.Criteria) []dashsync.Key { return organiserEvent(p.EventID) },
			Success:        "Criteria added",
			Failure:        "Failed to add criteria",
		}),
		DeleteCriteria: dashsync.MustMutation(c, n, dashsync.MutationDef[api.RoundInput, struct{}]{
			Name:           "delete-criteria",
			Do:             a.DeleteCriteria,
			InvalidatesFor: func(p api.RoundInput, _ struct{}) []dashsync.Key { return organiserEvent(p.EventID) },
			Success:        "Criteria deleted",
			Failure:        "Failed to delete criteria",
		}),
		CreateQuiz: dashsync.MustMutation(c, n, dashsync.MutationDef[api.QuizDraft, api.Quiz]{
			Name:           "create-quiz",
			Do:             a.CreateQuiz,
			InvalidatesFor: func(p api.QuizDraft, _ api.Quiz) []dashsync.Key { return roundQuiz(p.EventID, p.RoundNo) },
			Success:        "Quiz created",
			Failure:        "Failed to create quiz",
		}),
		UpdateQuiz: dashsync.MustMutation(c, n, dashsync.MutationDef[api.QuizDraft, api.Quiz]{
			Name:           "update-quiz",
			Do:             a.UpdateQuiz,
			InvalidatesFor: func(p api.QuizDraft, _ api.Quiz) []dashsync.Key { return roundQuiz(p.EventID, p.RoundNo) },
			Success:        "Quiz saved",
			Failure:        "Failed to save quiz",
		}),
		DeleteQuiz: dashsync.MustMutation(c, n, dashsync.MutationDef[api.RoundInput, struct{}]{
			Name:           "delete-quiz",
			Do:             a.DeleteQuiz,
			InvalidatesFor: func(p api.RoundInput, _ struct{}) []dashsync.Key { return roundQuiz(p.EventID, p.RoundNo) },
			Success:        "Quiz deleted",
			Failure:        "Failed to delete quiz",
		}),
		Promote: dashsync.MustMutation(c, n, dashsync.MutationDef[api.Promotion, struct{}]{
			Name: "promote-participants",
			Do:   a.PromoteParticipants,
			InvalidatesFor: func(p api.Promotion, _ struct{}) []dashsync.Key {
				return []dashsync.Key{LeaderboardKey(p.EventID, p.RoundNo), OrganiserEventKey(p.EventID)}
			},
			Success: "Participants promoted successfully",
			Failure: "Failed to promote",
		}),

		SubmitScore: dashsync.MustMutation(c, n, dashsync.MutationDef[api.ScoreInput, struct{}]{
			Name: "submit-score",
			Do:   a.SubmitScore,
			InvalidatesFor: func(p api.ScoreInput, _ struct{}) []dashsync.Key {
				return []dashsync.Key{JudgeTeamsKey(p.EventID, p.RoundNo)}
			},
			Success: "Score saved",
			Failure: "Failed to save score",
		}),
		PromoteTeam: dashsync.MustMutation(c, n, dashsync.MutationDef[api.Selection, struct{}]{
			Name:        "promote-team",
			Do:          a.PromoteTeam,
			Invalidates: []dashsync.Key{KeyJudgeRounds},
			InvalidatesFor: func(p api.Selection, _ struct{}) []dashsync.Key {
				return []dashsync.Key{JudgeTeamsKey(p.EventID, p.RoundNo)}
			},
			Success: "Team promoted",
			Failure: "Failed to promote team",
		}),
		SelectWinner: dashsync.MustMutation(c, n, dashsync.MutationDef[api.Selection, struct{}]{
			Name:        "select-winner",
			Do:          a.SelectWinner,
			Invalidates: []dashsync.Key{KeyJudgeRounds},
			InvalidatesFor: func(p api.Selection, _ struct{}) []dashsync.Key {
				return []dashsync.Key{JudgeTeamsKey(p.EventID, p.RoundNo)}
			},
			Success: "Winner selected",
			Failure: "Failed to select winner",
		}),

		RegisterTeam: dashsync.MustMutation(c, n, dashsync.MutationDef[api.Registration, api.Team]{
			Name: "register-team",
			Do:   a.RegisterTeam,
			InvalidatesFor: func(p api.Registration, _ api.Team) []dashsync.Key {
				return []dashsync.Key{MyTeamKey(p.EventID), PublicEventKey(p.EventID)}
			},
			Success: "Team created",
			Failure: "Failed to create team",
		}),
		JoinTeam: dashsync.MustMutation(c, n, dashsync.MutationDef[api.Registration, api.Team]{
			Name: "join-team",
			Do:   a.JoinTeam,
			InvalidatesFor: func(p api.Registration, _ api.Team) []dashsync.Key {
				return []dashsync.Key{MyTeamKey(p.EventID)}
			},
			Success: "Joined team",
			Failure: "Failed to join team",
		}),
		StartQuiz: dashsync.MustMutation(c, n, dashsync.MutationDef[api.Attempt, time.Time]{
			Name: "start-quiz",
			Do:   a.StartQuiz,
			InvalidatesFor: func(p api.Attempt, _ time.Time) []dashsync.Key {
				return []dashsync.Key{QuizKey(p.QuizID)}
			},
			Failure: "Failed to start quiz",
		}),
		SubmitAnswer: dashsync.MustMutation(c, n, dashsync.MutationDef[api.Attempt, bool]{
			Name:         "submit-answer",
			Do:           a.SubmitAnswer,
			NoInvalidate: true,
			Failure:      "Failed to submit answer",
		}),
		FinishQuiz: dashsync.MustMutation(c, n, dashsync.MutationDef[api.Attempt, float64]{
			Name: "finish-quiz",
			Do:   a.FinishQuiz,
			InvalidatesFor: func(p api.Attempt, _ float64) []dashsync.Key {
				return []dashsync.Key{QuizKey(p.QuizID)}
			},
			Success: "Quiz submitted",
			Failure: "Failed to finish quiz",
		}),
	}
}

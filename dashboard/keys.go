package dashboard

import "github.com/unkn0wn-root/dashsync"

// Cache keys. Every parameter that changes a response is part of its key;
// the bare single-element keys double as prefixes for invalidation.
var (
	KeyMe              = dashsync.K("auth-me")
	KeySettings        = dashsync.K("admin-settings")
	KeyVariables       = dashsync.K("admin-variables")
	KeyUsers           = dashsync.K("admin-users")
	KeyAccessUsers     = dashsync.K("admin-access-users")
	KeyLogs            = dashsync.K("web-logs")
	KeyBranchRepEvents = dashsync.K("branch-rep-events")
	KeyDocEvents       = dashsync.K("documentation-events")
	KeyDocEvent        = dashsync.K("doc-event")
	KeyBranches        = dashsync.K("branches")
	KeyOrganiserEvents = dashsync.K("organiser-events")
	KeyOrganiserEvent  = dashsync.K("organiser-event")
	KeyLeaderboard     = dashsync.K("quiz-leaderboard")
	KeyJudgeRounds     = dashsync.K("judge-rounds")
	KeyJudgeTeams      = dashsync.K("judge-teams")
	KeyPublicEvent     = dashsync.K("public-event")
	KeyMyTeam          = dashsync.K("my-team")
	KeyQuiz            = dashsync.K("quiz")
	KeyDocument        = dashsync.K("api-document")
)

func UsersKey(search string) dashsync.Key { return KeyUsers.Append(search) }

func LogsKey(page int) dashsync.Key { return KeyLogs.Append(page) }

func DocEventKey(id int64) dashsync.Key { return KeyDocEvent.Append(id) }

func OrganiserEventKey(id int64) dashsync.Key { return KeyOrganiserEvent.Append(id) }

func LeaderboardKey(eventID int64, roundNo int) dashsync.Key {
	return KeyLeaderboard.Append(eventID, roundNo)
}

func JudgeTeamsKey(eventID int64, roundNo int) dashsync.Key {
	return KeyJudgeTeams.Append(eventID, roundNo)
}

func PublicEventKey(id int64) dashsync.Key { return KeyPublicEvent.Append(id) }

func MyTeamKey(eventID int64) dashsync.Key { return KeyMyTeam.Append(eventID) }

func QuizKey(quizID string) dashsync.Key { return KeyQuiz.Append(quizID) }

// QuizRoundKey is the quiz editor's view of a round's quiz.
func QuizRoundKey(eventID int64, roundNo int) dashsync.Key {
	return KeyQuiz.Append(eventID, roundNo)
}

// DocumentKey addresses a raw API document by path.
func DocumentKey(path string) dashsync.Key { return KeyDocument.Append(path) }

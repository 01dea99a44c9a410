package dashboard

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/unkn0wn-root/dashsync"
	"github.com/unkn0wn-root/dashsync/api"
	"github.com/unkn0wn-root/dashsync/codec"
)

// DefaultMaxPayload bounds a cached payload read back from the provider.
const DefaultMaxPayload = 8 << 20

// Catalog builds the typed queries of the dashboard over one API client.
type Catalog struct {
	API *api.Client
	// Codec names the payload encoding: "json" (default), "cbor" or "msgpack".
	Codec string
	// MaxPayload caps decoded payloads; 0 => DefaultMaxPayload.
	MaxPayload int
}

func query[V any](c Catalog, key dashsync.Key, load func(context.Context) (V, error)) dashsync.Query[V] {
	limit := c.MaxPayload
	if limit == 0 {
		limit = DefaultMaxPayload
	}
	return dashsync.Query[V]{Key: key, Codec: codec.Bounded[V](c.Codec, limit), Load: load}
}

func (c Catalog) Me() dashsync.Query[api.User] { return query(c, KeyMe, c.API.Me) }

func (c Catalog) Settings() dashsync.Query[[]api.Setting] {
	return query(c, KeySettings, c.API.Settings)
}

func (c Catalog) Variables() dashsync.Query[[]api.Variable] {
	return query(c, KeyVariables, c.API.Variables)
}

func (c Catalog) Users(search string) dashsync.Query[api.UsersPage] {
	return query(c, UsersKey(search), func(ctx context.Context) (api.UsersPage, error) {
		return c.API.Users(ctx, search)
	})
}

// AccessUsers is everyone holding a dashboard role.
func (c Catalog) AccessUsers() dashsync.Query[api.UsersPage] {
	return query(c, KeyAccessUsers, func(ctx context.Context) (api.UsersPage, error) {
		return c.API.Users(ctx, "")
	})
}

func (c Catalog) Logs(page int) dashsync.Query[api.LogsPage] {
	return query(c, LogsKey(page), func(ctx context.Context) (api.LogsPage, error) {
		return c.API.Logs(ctx, page, 50)
	})
}

func (c Catalog) BranchRepEvents() dashsync.Query[api.BranchRepEvents] {
	return query(c, KeyBranchRepEvents, c.API.BranchRepEvents)
}

func (c Catalog) DocEvents() dashsync.Query[[]api.DocEvent] {
	return query(c, KeyDocEvents, c.API.DocumentationEvents)
}

func (c Catalog) DocEvent(id int64) dashsync.Query[api.DocEvent] {
	return query(c, DocEventKey(id), func(ctx context.Context) (api.DocEvent, error) {
		return c.API.DocumentationEvent(ctx, id)
	})
}

func (c Catalog) Branches() dashsync.Query[[]api.Branch] {
	return query(c, KeyBranches, c.API.Branches)
}

func (c Catalog) OrganiserEvents() dashsync.Query[[]api.OrganiserEvent] {
	return query(c, KeyOrganiserEvents, c.API.OrganiserEvents)
}

func (c Catalog) OrganiserEvent(id int64) dashsync.Query[api.OrganiserEvent] {
	return query(c, OrganiserEventKey(id), func(ctx context.Context) (api.OrganiserEvent, error) {
		return c.API.OrganiserEvent(ctx, id)
	})
}

func (c Catalog) Leaderboard(eventID int64, roundNo int) dashsync.Query[[]api.LeaderboardEntry] {
	return query(c, LeaderboardKey(eventID, roundNo), func(ctx context.Context) ([]api.LeaderboardEntry, error) {
		return c.API.Leaderboard(ctx, eventID, roundNo)
	})
}

func (c Catalog) JudgeRounds() dashsync.Query[[]api.JudgeRound] {
	return query(c, KeyJudgeRounds, c.API.JudgeRounds)
}

func (c Catalog) JudgeTeams(eventID int64, roundNo int) dashsync.Query[[]api.Team] {
	return query(c, JudgeTeamsKey(eventID, roundNo), func(ctx context.Context) ([]api.Team, error) {
		return c.API.JudgeTeams(ctx, eventID, roundNo)
	})
}

func (c Catalog) PublicEvent(id int64) dashsync.Query[api.PublicEvent] {
	return query(c, PublicEventKey(id), func(ctx context.Context) (api.PublicEvent, error) {
		return c.API.PublicEvent(ctx, id)
	})
}

// MyTeam holds nil when the caller has not registered for the event.
func (c Catalog) MyTeam(eventID int64) dashsync.Query[*api.Team] {
	return query(c, MyTeamKey(eventID), func(ctx context.Context) (*api.Team, error) {
		t, ok, err := c.API.MyTeam(ctx, eventID)
		if err != nil || !ok {
			return nil, err
		}
		return &t, nil
	})
}

func (c Catalog) Quiz(quizID string) dashsync.Query[api.Quiz] {
	return query(c, QuizKey(quizID), func(ctx context.Context) (api.Quiz, error) {
		return c.API.Quiz(ctx, quizID)
	})
}

func (c Catalog) RoundQuiz(eventID int64, roundNo int) dashsync.Query[api.Quiz] {
	return query(c, QuizRoundKey(eventID, roundNo), func(ctx context.Context) (api.Quiz, error) {
		return c.API.RoundQuiz(ctx, eventID, roundNo)
	})
}

// Document is any GET endpoint as an untyped document. It is stored as
// protobuf whatever Codec says.
func (c Catalog) Document(path string) dashsync.Query[*structpb.Struct] {
	return dashsync.Query[*structpb.Struct]{
		Key:   DocumentKey(path),
		Codec: codec.NewProtobuf(func() *structpb.Struct { return &structpb.Struct{} }),
		Load:  func(ctx context.Context) (*structpb.Struct, error) { return c.API.Document(ctx, path) },
	}
}

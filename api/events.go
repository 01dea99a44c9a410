package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Branch representatives.

func (c *Client) BranchRepEvents(ctx context.Context) (BranchRepEvents, error) {
	return call[BranchRepEvents](ctx, c, http.MethodGet, "/branch-rep/events", nil, nil)
}

func (c *Client) SearchBranchRepUsers(ctx context.Context, term string) ([]User, error) {
	r, err := call[struct {
		Users []User `json:"users"`
	}](ctx, c, http.MethodGet, "/branch-rep/users", url.Values{"search": {term}}, nil)
	return r.Users, err
}

type EventMember struct {
	EventID int64  `json:"-"`
	Email   string `json:"email,omitempty"`
	UserID  int64  `json:"-"`
}

func (c *Client) AddOrganiser(ctx context.Context, p EventMember) (Organiser, error) {
	r, err := call[struct {
		Organiser Organiser `json:"organiser"`
	}](ctx, c, http.MethodPost, fmt.Sprintf("/branch-rep/events/%d/organisers", p.EventID), nil, p)
	return r.Organiser, err
}

func (c *Client) RemoveOrganiser(ctx context.Context, p EventMember) (struct{}, error) {
	_, err := call[none](ctx, c, http.MethodDelete,
		fmt.Sprintf("/branch-rep/events/%d/organisers/%d", p.EventID, p.UserID), nil, nil)
	return struct{}{}, err
}

// Documentation staff.

func (c *Client) DocumentationEvents(ctx context.Context) ([]DocEvent, error) {
	r, err := call[struct {
		Events []DocEvent `json:"events"`
	}](ctx, c, http.MethodGet, "/documentation/events", nil, nil)
	return r.Events, err
}

func (c *Client) DocumentationEvent(ctx context.Context, id int64) (DocEvent, error) {
	r, err := call[struct {
		Event DocEvent `json:"event"`
	}](ctx, c, http.MethodGet, fmt.Sprintf("/documentation/events/%d", id), nil, nil)
	return r.Event, err
}

func (c *Client) CreateDocumentationEvent(ctx context.Context, ev DocEvent) (DocEvent, error) {
	r, err := call[struct {
		Event DocEvent `json:"event"`
	}](ctx, c, http.MethodPost, "/documentation/events", nil, ev)
	return r.Event, err
}

func (c *Client) UpdateDocumentationEvent(ctx context.Context, ev DocEvent) (DocEvent, error) {
	r, err := call[struct {
		Event DocEvent `json:"event"`
	}](ctx, c, http.MethodPut, fmt.Sprintf("/documentation/events/%d", ev.ID), nil, ev)
	return r.Event, err
}

func (c *Client) Branches(ctx context.Context) ([]Branch, error) {
	r, err := call[struct {
		Branches []Branch `json:"branches"`
	}](ctx, c, http.MethodGet, "/documentation/branches", nil, nil)
	return r.Branches, err
}

type BranchRep struct {
	BranchID int64  `json:"-"`
	Email    string `json:"email,omitempty"`
	UserID   int64  `json:"-"`
}

func (c *Client) AssignBranchRep(ctx context.Context, p BranchRep) (struct{}, error) {
	_, err := call[none](ctx, c, http.MethodPost, fmt.Sprintf("/documentation/branches/%d/reps", p.BranchID), nil, p)
	return struct{}{}, err
}

func (c *Client) RemoveBranchRep(ctx context.Context, p BranchRep) (struct{}, error) {
	_, err := call[none](ctx, c, http.MethodDelete,
		fmt.Sprintf("/documentation/branches/%d/reps/%d", p.BranchID, p.UserID), nil, nil)
	return struct{}{}, err
}

// Organisers.

func (c *Client) OrganiserEvents(ctx context.Context) ([]OrganiserEvent, error) {
	r, err := call[struct {
		Events []OrganiserEvent `json:"events"`
	}](ctx, c, http.MethodGet, "/organiser/events", nil, nil)
	return r.Events, err
}

func (c *Client) OrganiserEvent(ctx context.Context, id int64) (OrganiserEvent, error) {
	r, err := call[struct {
		Event OrganiserEvent `json:"event"`
	}](ctx, c, http.MethodGet, fmt.Sprintf("/organiser/events/%d", id), nil, nil)
	return r.Event, err
}

type Profile struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

func (c *Client) UpdateOrganiserProfile(ctx context.Context, p Profile) (User, error) {
	r, err := call[struct {
		User User `json:"user"`
	}](ctx, c, http.MethodPut, "/organiser/profile", nil, p)
	return r.User, err
}

type TeamInput struct {
	EventID int64  `json:"-"`
	TeamID  int64  `json:"-"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	UserID  int64  `json:"-"`
}

func (c *Client) CreateTeam(ctx context.Context, p TeamInput) (Team, error) {
	r, err := call[struct {
		Team Team `json:"team"`
	}](ctx, c, http.MethodPost, fmt.Sprintf("/organiser/events/%d/teams", p.EventID), nil, p)
	return r.Team, err
}

func (c *Client) DeleteTeam(ctx context.Context, p TeamInput) (struct{}, error) {
	_, err := call[none](ctx, c, http.MethodDelete,
		fmt.Sprintf("/organiser/events/%d/teams/%d", p.EventID, p.TeamID), nil, nil)
	return struct{}{}, err
}

func (c *Client) AddTeamMember(ctx context.Context, p TeamInput) (TeamMember, error) {
	r, err := call[struct {
		Member TeamMember `json:"member"`
	}](ctx, c, http.MethodPost, fmt.Sprintf("/organiser/events/%d/teams/%d/members", p.EventID, p.TeamID), nil, p)
	return r.Member, err
}

func (c *Client) RemoveTeamMember(ctx context.Context, p TeamInput) (struct{}, error) {
	_, err := call[none](ctx, c, http.MethodDelete,
		fmt.Sprintf("/organiser/events/%d/teams/%d/members/%d", p.EventID, p.TeamID, p.UserID), nil, nil)
	return struct{}{}, err
}

type RoundInput struct {
	EventID    int64  `json:"-"`
	RoundNo    int    `json:"-"`
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	UserID     int64  `json:"-"`
	CriteriaID int64  `json:"-"`
	MaxScore   int    `json:"maxScore,omitempty"`
}

func (c *Client) CreateRound(ctx context.Context, p RoundInput) (Round, error) {
	r, err := call[struct {
		Round Round `json:"round"`
	}](ctx, c, http.MethodPost, fmt.Sprintf("/organiser/events/%d/rounds", p.EventID), nil, p)
	return r.Round, err
}

func (c *Client) DeleteRound(ctx context.Context, p RoundInput) (struct{}, error) {
	_, err := call[none](ctx, c, http.MethodDelete, roundPath(p.EventID, p.RoundNo), nil, nil)
	return struct{}{}, err
}

func (c *Client) AddJudge(ctx context.Context, p RoundInput) (struct{}, error) {
	_, err := call[none](ctx, c, http.MethodPost, roundPath(p.EventID, p.RoundNo)+"/judges", nil, p)
	return struct{}{}, err
}

func (c *Client) RemoveJudge(ctx context.Context, p RoundInput) (struct{}, error) {
	_, err := call[none](ctx, c, http.MethodDelete,
		fmt.Sprintf("%s/judges/%d", roundPath(p.EventID, p.RoundNo), p.UserID), nil, nil)
	return struct{}{}, err
}

func (c *Client) AddCriteria(ctx context.Context, p RoundInput) (Criteria, error) {
	r, err := call[struct {
		Criteria Criteria `json:"criteria"`
	}](ctx, c, http.MethodPost, roundPath(p.EventID, p.RoundNo)+"/criteria", nil, p)
	return r.Criteria, err
}

func (c *Client) DeleteCriteria(ctx context.Context, p RoundInput) (struct{}, error) {
	_, err := call[none](ctx, c, http.MethodDelete,
		fmt.Sprintf("%s/criteria/%d", roundPath(p.EventID, p.RoundNo), p.CriteriaID), nil, nil)
	return struct{}{}, err
}

// Leaderboard is the quiz ranking of one round, best first.
func (c *Client) Leaderboard(ctx context.Context, eventID int64, roundNo int) ([]LeaderboardEntry, error) {
	r, err := call[struct {
		Leaderboard []LeaderboardEntry `json:"leaderboard"`
	}](ctx, c, http.MethodGet, roundPath(eventID, roundNo)+"/leaderboard", nil, nil)
	return r.Leaderboard, err
}

type Promotion struct {
	EventID int64   `json:"-"`
	RoundNo int     `json:"-"`
	TeamIDs []int64 `json:"teamIds"`
}

func (c *Client) PromoteParticipants(ctx context.Context, p Promotion) (struct{}, error) {
	_, err := call[none](ctx, c, http.MethodPost, roundPath(p.EventID, p.RoundNo)+"/promote", nil, p)
	return struct{}{}, err
}

func (c *Client) DeleteQuiz(ctx context.Context, p RoundInput) (struct{}, error) {
	_, err := call[none](ctx, c, http.MethodDelete, roundPath(p.EventID, p.RoundNo)+"/quiz", nil, nil)
	return struct{}{}, err
}

// QuizDraft is the organiser's quiz editor form. QuizID is set for updates.
type QuizDraft struct {
	EventID          int64           `json:"-"`
	RoundNo          int             `json:"-"`
	QuizID           string          `json:"-"`
	Name             string          `json:"name"`
	Description      string          `json:"description,omitempty"`
	StartTime        time.Time       `json:"startTime"`
	EndTime          time.Time       `json:"endTime"`
	Password         string          `json:"password"`
	OverridePassword string          `json:"overridePassword,omitempty"`
	Questions        []DraftQuestion `json:"questions,omitempty"`
}

type DraftQuestion struct {
	Question    string        `json:"question"`
	Description string        `json:"description,omitempty"`
	IsCode      bool          `json:"isCode"`
	Image       string        `json:"image,omitempty"`
	Options     []DraftOption `json:"options"`
}

type DraftOption struct {
	Value    string `json:"value"`
	IsAnswer bool   `json:"isAnswer"`
}

// RoundQuiz is the quiz attached to a round, as the editor loads it.
func (c *Client) RoundQuiz(ctx context.Context, eventID int64, roundNo int) (Quiz, error) {
	r, err := call[quizBody](ctx, c, http.MethodGet, roundPath(eventID, roundNo)+"/quiz", nil, nil)
	return r.Quiz, err
}

func (c *Client) CreateQuiz(ctx context.Context, p QuizDraft) (Quiz, error) {
	r, err := call[quizBody](ctx, c, http.MethodPost, roundPath(p.EventID, p.RoundNo)+"/quiz", nil, p)
	return r.Quiz, err
}

func (c *Client) UpdateQuiz(ctx context.Context, p QuizDraft) (Quiz, error) {
	if p.QuizID == "" {
		return Quiz{}, errors.New("api: update quiz: missing quiz id")
	}
	r, err := call[quizBody](ctx, c, http.MethodPut,
		fmt.Sprintf("/organiser/events/%d/quiz/%s", p.EventID, url.PathEscape(p.QuizID)), nil, p)
	return r.Quiz, err
}

type quizBody struct {
	Quiz Quiz `json:"quiz"`
}

func roundPath(eventID int64, roundNo int) string {
	return fmt.Sprintf("/organiser/events/%d/rounds/%d", eventID, roundNo)
}

// Judges.

func (c *Client) JudgeRounds(ctx context.Context) ([]JudgeRound, error) {
	r, err := call[struct {
		Rounds []JudgeRound `json:"rounds"`
	}](ctx, c, http.MethodGet, "/judge/rounds", nil, nil)
	return r.Rounds, err
}

func (c *Client) JudgeTeams(ctx context.Context, eventID int64, roundNo int) ([]Team, error) {
	r, err := call[struct {
		Teams []Team `json:"teams"`
	}](ctx, c, http.MethodGet, judgePath(eventID, roundNo)+"/teams", nil, nil)
	return r.Teams, err
}

type ScoreInput struct {
	EventID int64 `json:"-"`
	RoundNo int   `json:"-"`
	Score
}

func (c *Client) SubmitScore(ctx context.Context, p ScoreInput) (struct{}, error) {
	_, err := call[none](ctx, c, http.MethodPost, judgePath(p.EventID, p.RoundNo)+"/score", nil, p.Score)
	return struct{}{}, err
}

type Selection struct {
	EventID  int64 `json:"-"`
	RoundNo  int   `json:"-"`
	TeamID   int64 `json:"teamId"`
	Position int   `json:"position,omitempty"`
}

func (c *Client) PromoteTeam(ctx context.Context, p Selection) (struct{}, error) {
	_, err := call[none](ctx, c, http.MethodPost, judgePath(p.EventID, p.RoundNo)+"/promote", nil, p)
	return struct{}{}, err
}

func (c *Client) SelectWinner(ctx context.Context, p Selection) (struct{}, error) {
	_, err := call[none](ctx, c, http.MethodPost, judgePath(p.EventID, p.RoundNo)+"/winner", nil, p)
	return struct{}{}, err
}

func judgePath(eventID int64, roundNo int) string {
	return fmt.Sprintf("/judge/events/%d/rounds/%d", eventID, roundNo)
}

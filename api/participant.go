package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// PublicEvent needs no session.
func (c *Client) PublicEvent(ctx context.Context, id int64) (PublicEvent, error) {
	r, err := public[struct {
		Event PublicEvent `json:"event"`
	}](ctx, c, http.MethodGet, fmt.Sprintf("/events/%d", id), nil)
	return r.Event, err
}

// MyTeam returns the caller's team for an event; ok is false when the caller
// has not registered.
func (c *Client) MyTeam(ctx context.Context, eventID int64) (team Team, ok bool, err error) {
	r, err := call[struct {
		Team *Team `json:"team"`
	}](ctx, c, http.MethodGet, fmt.Sprintf("/events/%d/my-team", eventID), nil, nil)
	if err != nil || r.Team == nil {
		return Team{}, false, err
	}
	return *r.Team, true, nil
}

type Registration struct {
	EventID int64  `json:"-"`
	Name    string `json:"name,omitempty"`
	Code    string `json:"code,omitempty"`
}

func (c *Client) RegisterTeam(ctx context.Context, p Registration) (Team, error) {
	r, err := call[struct {
		Team Team `json:"team"`
	}](ctx, c, http.MethodPost, fmt.Sprintf("/events/%d/teams", p.EventID), nil, p)
	return r.Team, err
}

func (c *Client) JoinTeam(ctx context.Context, p Registration) (Team, error) {
	r, err := call[struct {
		Team Team `json:"team"`
	}](ctx, c, http.MethodPost, fmt.Sprintf("/events/%d/teams/join", p.EventID), nil, p)
	return r.Team, err
}

// Quiz attempt flow.

func (c *Client) Quiz(ctx context.Context, quizID string) (Quiz, error) {
	r, err := call[struct {
		Quiz Quiz `json:"quiz"`
	}](ctx, c, http.MethodGet, "/quiz/"+url.PathEscape(quizID), nil, nil)
	return r.Quiz, err
}

type Attempt struct {
	QuizID   string `json:"-"`
	TeamID   int64  `json:"teamId"`
	OptionID string `json:"optionId,omitempty"`
}

func (c *Client) StartQuiz(ctx context.Context, p Attempt) (time.Time, error) {
	r, err := call[struct {
		Success          bool      `json:"success"`
		AttemptStartTime time.Time `json:"attemptStartTime"`
	}](ctx, c, http.MethodPost, "/quiz/"+url.PathEscape(p.QuizID)+"/start", nil, p)
	return r.AttemptStartTime, err
}

func (c *Client) SubmitAnswer(ctx context.Context, p Attempt) (bool, error) {
	r, err := call[struct {
		Success bool `json:"success"`
	}](ctx, c, http.MethodPost, "/quiz/"+url.PathEscape(p.QuizID)+"/submit", nil, p)
	return r.Success, err
}

func (c *Client) FinishQuiz(ctx context.Context, p Attempt) (float64, error) {
	r, err := call[struct {
		Success bool    `json:"success"`
		Score   float64 `json:"score"`
	}](ctx, c, http.MethodPost, "/quiz/"+url.PathEscape(p.QuizID)+"/finish", nil, p)
	return r.Score, err
}

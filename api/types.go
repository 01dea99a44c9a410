package api

import "time"

type User struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name,omitempty"`
	Email       string   `json:"email,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	IsBranchRep bool     `json:"isBranchRep,omitempty"`
	IsOrganiser bool     `json:"isOrganiser,omitempty"`
	IsJudge     bool     `json:"isJudge,omitempty"`
}

type Setting struct {
	Key   string `json:"key"`
	Value bool   `json:"value"`
}

type Variable struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type UsersPage struct {
	Users          []User   `json:"users"`
	AvailableRoles []string `json:"availableRoles"`
}

type LogEntry struct {
	ID        int64     `json:"id"`
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	Status    int       `json:"status"`
	UserID    *int64    `json:"userId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type LogsPage struct {
	Logs       []LogEntry `json:"logs"`
	Page       int        `json:"page"`
	TotalPages int        `json:"totalPages"`
}

type Organiser struct {
	UserID int64  `json:"userId"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
}

type BranchRepEvent struct {
	ID         int64       `json:"id"`
	Name       string      `json:"name"`
	Organisers []Organiser `json:"organisers,omitempty"`
}

type BranchRepEvents struct {
	BranchName string           `json:"branchName"`
	Events     []BranchRepEvent `json:"events"`
}

type DocEvent struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Type        string     `json:"type,omitempty"`
	BranchID    int64      `json:"branchId,omitempty"`
	Description string     `json:"description,omitempty"`
	Venue       string     `json:"venue,omitempty"`
	StartTime   *time.Time `json:"startTime,omitempty"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	Published   bool       `json:"published,omitempty"`
}

type Branch struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Reps []User `json:"reps,omitempty"`
}

type TeamMember struct {
	UserID int64  `json:"userId"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
}

type Team struct {
	ID      int64        `json:"id"`
	Name    string       `json:"name"`
	Code    string       `json:"code,omitempty"`
	Members []TeamMember `json:"members,omitempty"`
}

type Criteria struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	MaxScore int    `json:"maxScore"`
}

type QuizSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

type Round struct {
	No       int          `json:"roundNo"`
	Name     string       `json:"name"`
	Judges   []User       `json:"judges,omitempty"`
	Criteria []Criteria   `json:"criteria,omitempty"`
	Quiz     *QuizSummary `json:"quiz,omitempty"`
}

type OrganiserEvent struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Rounds []Round `json:"rounds,omitempty"`
	Teams  []Team  `json:"teams,omitempty"`
}

type LeaderboardEntry struct {
	Team      Team    `json:"Team"`
	Score     float64 `json:"score"`
	TimeTaken int64   `json:"timeTaken"` // seconds
}

type JudgeRound struct {
	EventID   int64      `json:"eventId"`
	EventName string     `json:"eventName"`
	RoundNo   int        `json:"roundNo"`
	Criteria  []Criteria `json:"criteria,omitempty"`
}

type Score struct {
	TeamID     int64 `json:"teamId"`
	CriteriaID int64 `json:"criteriaId"`
	Score      int   `json:"score"`
}

type PublicEvent struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	Description      string     `json:"description,omitempty"`
	Venue            string     `json:"venue,omitempty"`
	StartTime        *time.Time `json:"startTime,omitempty"`
	MinTeamSize      int        `json:"minTeamSize,omitempty"`
	MaxTeamSize      int        `json:"maxTeamSize,omitempty"`
	RegistrationOpen bool       `json:"registrationOpen"`
}

type QuizOption struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

type QuizQuestion struct {
	ID          string       `json:"id"`
	Question    string       `json:"question"`
	Description string       `json:"description,omitempty"`
	IsCode      bool         `json:"isCode"`
	Image       string       `json:"image,omitempty"`
	Options     []QuizOption `json:"options"`
}

type Quiz struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Description      string         `json:"description,omitempty"`
	StartTime        time.Time      `json:"startTime"`
	EndTime          time.Time      `json:"endTime"`
	AllowAttempts    bool           `json:"allowAttempts"`
	Questions        []QuizQuestion `json:"questions"`
	TeamID           *int64         `json:"teamId,omitempty"`
	AttemptStartTime *time.Time     `json:"attemptStartTime,omitempty"`
}

// Package apitest runs an in-memory dashboard backend for tests.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"

	"github.com/unkn0wn-root/dashsync/api"
)

const (
	Token     = "test-token"
	Password  = "hunter2"
	MasterKey = "master-key"
)

type Backend struct {
	URL string

	mu          sync.Mutex
	me          api.User
	users       map[int64]api.User
	settings    map[string]bool
	variables   map[string]string
	leaderboard map[string][]api.LeaderboardEntry
	events      map[int64]api.PublicEvent
	quizzes     map[string]api.Quiz
	hits        map[string]int
	failNext    map[string]int

	// RejectMessage is returned with a failed master key verification.
	RejectMessage string
}

// New starts a backend signed in as an admin (id 42) and closes it with t.
func New(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		me:          api.User{ID: 42, Name: "Ada", Email: "ada@example.com", Roles: []string{"ADMIN"}},
		users:       map[int64]api.User{},
		settings:    map[string]bool{"isRegistrationOpen": true, "isQuizLive": false},
		variables:   map[string]string{"eventName": "Incridea"},
		leaderboard: map[string][]api.LeaderboardEntry{},
		events:      map[int64]api.PublicEvent{},
		quizzes:     map[string]api.Quiz{},
		hits:        map[string]int{},
		failNext:    map[string]int{},
	}
	b.users[42] = b.me
	b.users[7] = api.User{ID: 7, Name: "Grace", Email: "grace@example.com"}
	b.users[9] = api.User{ID: 9, Name: "Linus", Email: "linus@example.com", Roles: []string{"JUDGE"}}

	srv := httptest.NewServer(b.router())
	t.Cleanup(srv.Close)
	b.URL = srv.URL
	return b
}

func (b *Backend) router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/auth/login", b.login).Methods(http.MethodPost).Name("login")
	r.HandleFunc("/events/{id:[0-9]+}", b.publicEvent).Methods(http.MethodGet).Name("public-event")

	p := r.NewRoute().Subrouter()
	p.Use(b.requireToken)
	p.HandleFunc("/auth/me", b.getMe).Methods(http.MethodGet).Name("me")
	p.HandleFunc("/auth/verify-master-key", b.verifyMasterKey).Methods(http.MethodPost).Name("verify-master-key")
	p.HandleFunc("/admin/settings", b.listSettings).Methods(http.MethodGet).Name("settings")
	p.HandleFunc("/admin/settings/{key}", b.putSetting).Methods(http.MethodPut).Name("update-setting")
	p.HandleFunc("/admin/variables", b.listVariables).Methods(http.MethodGet).Name("variables")
	p.HandleFunc("/admin/variables/{key}", b.putVariable).Methods(http.MethodPut).Name("upsert-variable")
	p.HandleFunc("/admin/users", b.listUsers).Methods(http.MethodGet).Name("users")
	p.HandleFunc("/admin/users/{id:[0-9]+}/roles", b.putRoles).Methods(http.MethodPut).Name("update-user-roles")
	p.HandleFunc("/organiser/events/{event:[0-9]+}/rounds/{round:[0-9]+}/leaderboard", b.getLeaderboard).
		Methods(http.MethodGet).Name("leaderboard")
	p.HandleFunc("/organiser/events/{event:[0-9]+}/rounds/{round:[0-9]+}/promote", b.promote).
		Methods(http.MethodPost).Name("promote")
	p.HandleFunc("/organiser/events/{event:[0-9]+}", b.organiserEvent).Methods(http.MethodGet).Name("organiser-event")
	p.HandleFunc("/organiser/events/{event:[0-9]+}/rounds/{round:[0-9]+}/quiz", b.getQuiz).
		Methods(http.MethodGet).Name("round-quiz")
	p.HandleFunc("/organiser/events/{event:[0-9]+}/rounds/{round:[0-9]+}/quiz", b.createQuiz).
		Methods(http.MethodPost).Name("create-quiz")
	p.HandleFunc("/organiser/events/{event:[0-9]+}/quiz/{id}", b.updateQuiz).Methods(http.MethodPut).Name("update-quiz")
	return b.count(r)
}

// count records hits by route name and serves queued failures.
func (b *Backend) count(next *mux.Router) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var m mux.RouteMatch
		if next.Match(r, &m) && m.Route != nil {
			name := m.Route.GetName()
			b.mu.Lock()
			b.hits[name]++
			status := b.failNext[name]
			delete(b.failNext, name)
			b.mu.Unlock()
			if status != 0 {
				writeJSON(w, status, map[string]string{"message": "Injected failure"})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+Token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Hits returns how many requests reached the named route.
func (b *Backend) Hits(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[route]
}

// FailNext makes the next request to route answer with status.
func (b *Backend) FailNext(route string, status int) {
	b.mu.Lock()
	b.failNext[route] = status
	b.mu.Unlock()
}

func (b *Backend) Setting(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.settings[key]
}

func (b *Backend) Variable(key string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.variables[key]
}

// SetMyRoles changes the signed-in user's roles server-side.
func (b *Backend) SetMyRoles(roles ...string) {
	b.mu.Lock()
	b.me.Roles = roles
	b.users[b.me.ID] = b.me
	b.mu.Unlock()
}

// SetMe replaces the signed-in user.
func (b *Backend) SetMe(u api.User) {
	b.mu.Lock()
	b.me = u
	b.users[u.ID] = u
	b.mu.Unlock()
}

func (b *Backend) SetLeaderboard(eventID int64, roundNo int, entries []api.LeaderboardEntry) {
	b.mu.Lock()
	b.leaderboard[boardKey(eventID, roundNo)] = entries
	b.mu.Unlock()
}

func (b *Backend) AddPublicEvent(ev api.PublicEvent) {
	b.mu.Lock()
	b.events[ev.ID] = ev
	b.mu.Unlock()
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)
	b.mu.Lock()
	me := b.me
	b.mu.Unlock()
	if in.Email != me.Email || in.Password != Password {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": Token, "user": me})
}

func (b *Backend) getMe(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	me := b.me
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"user": me})
}

func (b *Backend) verifyMasterKey(w http.ResponseWriter, r *http.Request) {
	var in struct {
		MasterKey string `json:"masterKey"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)
	if in.MasterKey == MasterKey {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": b.RejectMessage})
}

func (b *Backend) listSettings(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	out := make([]api.Setting, 0, len(b.settings))
	for k, v := range b.settings {
		out = append(out, api.Setting{Key: k, Value: v})
	}
	b.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	writeJSON(w, http.StatusOK, map[string]any{"settings": out})
}

func (b *Backend) putSetting(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	var in struct {
		Value bool `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid body"})
		return
	}
	b.mu.Lock()
	_, ok := b.settings[key]
	if ok {
		b.settings[key] = in.Value
	}
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Setting not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"setting": api.Setting{Key: key, Value: in.Value}})
}

func (b *Backend) listVariables(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	out := make([]api.Variable, 0, len(b.variables))
	for k, v := range b.variables {
		out = append(out, api.Variable{Key: k, Value: v})
	}
	b.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	writeJSON(w, http.StatusOK, map[string]any{"variables": out})
}

func (b *Backend) putVariable(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	var in struct {
		Value string `json:"value"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)
	b.mu.Lock()
	b.variables[key] = in.Value
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"variable": api.Variable{Key: key, Value: in.Value}})
}

func (b *Backend) listUsers(w http.ResponseWriter, r *http.Request) {
	search := strings.ToLower(r.URL.Query().Get("search"))
	b.mu.Lock()
	out := make([]api.User, 0, len(b.users))
	for _, u := range b.users {
		if search == "" || strings.Contains(strings.ToLower(u.Name+" "+u.Email), search) {
			out = append(out, u)
		}
	}
	b.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, api.UsersPage{
		Users:          out,
		AvailableRoles: []string{"ADMIN", "DOCUMENTATION", "JUDGE"},
	})
}

func (b *Backend) putRoles(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	var in struct {
		Roles []string `json:"roles"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)
	b.mu.Lock()
	u, ok := b.users[id]
	if ok {
		u.Roles = in.Roles
		b.users[id] = u
		if id == b.me.ID {
			b.me = u
		}
	}
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "User not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u, "message": "Roles updated"})
}

func (b *Backend) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	b.mu.Lock()
	out := b.leaderboard[v["event"]+"/"+v["round"]]
	b.mu.Unlock()
	if out == nil {
		out = []api.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": out})
}

func (b *Backend) promote(w http.ResponseWriter, r *http.Request) {
	var in struct {
		TeamIDs []int64 `json:"teamIds"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)
	if len(in.TeamIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "No teams selected"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"promoted": len(in.TeamIDs)})
}

// organiserEvent lists rounds 1 and 2 with whatever quizzes were saved.
func (b *Backend) organiserEvent(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["event"], 10, 64)
	ev := api.OrganiserEvent{ID: id, Name: "Event " + strconv.FormatInt(id, 10)}
	b.mu.Lock()
	for no := 1; no <= 2; no++ {
		rd := api.Round{No: no, Name: "Round " + strconv.Itoa(no)}
		if q, ok := b.quizzes[boardKey(id, no)]; ok {
			rd.Quiz = &api.QuizSummary{ID: q.ID, Name: q.Name, StartTime: q.StartTime, EndTime: q.EndTime}
		}
		ev.Rounds = append(ev.Rounds, rd)
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"event": ev})
}

func (b *Backend) getQuiz(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	b.mu.Lock()
	q, ok := b.quizzes[v["event"]+"/"+v["round"]]
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Quiz not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quiz": q})
}

func (b *Backend) createQuiz(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	var in api.QuizDraft
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Name == "" || in.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Please fill all required fields"})
		return
	}
	key := v["event"] + "/" + v["round"]
	q := api.Quiz{ID: "quiz-" + strings.ReplaceAll(key, "/", "-"), Name: in.Name, Description: in.Description,
		StartTime: in.StartTime, EndTime: in.EndTime}
	b.mu.Lock()
	_, exists := b.quizzes[key]
	if !exists {
		b.quizzes[key] = q
	}
	b.mu.Unlock()
	if exists {
		writeJSON(w, http.StatusConflict, map[string]string{"message": "Quiz already exists"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"quiz": q})
}

func (b *Backend) updateQuiz(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	var in api.QuizDraft
	_ = json.NewDecoder(r.Body).Decode(&in)
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, q := range b.quizzes {
		if q.ID != v["id"] || !strings.HasPrefix(key, v["event"]+"/") {
			continue
		}
		q.Name, q.Description = in.Name, in.Description
		q.Questions = nil
		for i, dq := range in.Questions {
			qq := api.QuizQuestion{ID: q.ID + "-q" + strconv.Itoa(i+1), Question: dq.Question, IsCode: dq.IsCode}
			for j, o := range dq.Options {
				qq.Options = append(qq.Options, api.QuizOption{ID: qq.ID + "-o" + strconv.Itoa(j+1), Value: o.Value})
			}
			q.Questions = append(q.Questions, qq)
		}
		b.quizzes[key] = q
		writeJSON(w, http.StatusOK, map[string]any{"quiz": q})
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Quiz not found"})
}

func (b *Backend) publicEvent(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	b.mu.Lock()
	ev, ok := b.events[id]
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Event not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event": ev})
}

func boardKey(eventID int64, roundNo int) string {
	return strconv.FormatInt(eventID, 10) + "/" + strconv.Itoa(roundNo)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

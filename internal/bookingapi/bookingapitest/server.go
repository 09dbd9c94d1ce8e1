// Package bookingapitest provides an in-memory booking service for tests.
package bookingapitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"courtbook/internal/model"
	"courtbook/internal/slots"
)

// Server is a fake booking service. It enforces slot uniqueness the way the real
// service is expected to, so races between clients can be simulated.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	validTokens  map[string]bool
	email        string
	password     string
	nextToken    int
	nextID       int64
	reservations []model.Reservation
	users        []model.User
	calls        map[string]int
	failures     map[string]int // endpoint -> status to answer with
}

// NewServer starts a fake service accepting the given credentials.
func NewServer(email, password string) *Server {
	s := &Server{
		validTokens: make(map[string]bool),
		email:       email,
		password:    password,
		nextID:      1,
		calls:       make(map[string]int),
		failures:    make(map[string]int),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", s.handleLogin)
	mux.HandleFunc("/auth/verify-token", s.handleVerify)
	mux.HandleFunc("/reservas", s.handleReservations)
	mux.HandleFunc("/reservas/", s.handleDelete)
	mux.HandleFunc("/usuarios", s.handleUsers)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	s.Server = httptest.NewServer(mux)
	return s
}

// IssueToken registers a valid token without going through login.
func (s *Server) IssueToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validTokens[token] = true
}

// RevokeToken makes token invalid.
func (s *Server) RevokeToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.validTokens, token)
}

// AddUser seeds a member.
func (s *Server) AddUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, u)
}

// AddReservation seeds a reservation, assigning an id when r.ID is zero.
func (s *Server) AddReservation(r model.Reservation) model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == 0 {
		r.ID = s.nextID
	}
	if r.ID >= s.nextID {
		s.nextID = r.ID + 1
	}
	s.reservations = append(s.reservations, r)
	return r
}

// Reservations returns a copy of the stored reservations.
func (s *Server) Reservations() []model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Reservation(nil), s.reservations...)
}

// Calls returns how many times an endpoint ("POST /reservas", "GET /usuarios", ...) was hit.
func (s *Server) Calls(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[endpoint]
}

// FailWith makes endpoint answer status until cleared with status 0.
func (s *Server) FailWith(endpoint string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, endpoint)
		return
	}
	s.failures[endpoint] = status
}

func (s *Server) begin(w http.ResponseWriter, r *http.Request, endpoint string, auth bool) bool {
	s.mu.Lock()
	s.calls[endpoint]++
	status, failing := s.failures[endpoint]
	authorized := s.validTokens[r.Header.Get("Authorization")]
	s.mu.Unlock()

	if failing {
		writeJSON(w, status, map[string]string{"mensaje": "injected failure"})
		return false
	}
	if auth && !authorized {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"mensaje": "token inválido"})
		return false
	}
	return true
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, "POST /auth/login", false) {
		return
	}
	var creds struct {
		Email    string `json:"correo"`
		Password string `json:"contraseña"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"mensaje": "invalid body"})
		return
	}
	if creds.Email != s.email || creds.Password != s.password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"mensaje": "credenciales inválidas"})
		return
	}

	s.mu.Lock()
	s.nextToken++
	token := "token-" + strconv.Itoa(s.nextToken)
	s.validTokens[token] = true
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, "POST /auth/verify-token", false) {
		return
	}
	var body struct {
		Token string `json:"token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	valid := s.validTokens[body.Token]
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]bool{"valido": valid})
}

func (s *Server) handleReservations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !s.begin(w, r, "GET /reservas", true) {
			return
		}
		writeJSON(w, http.StatusOK, s.Reservations())
	case http.MethodPost:
		if !s.begin(w, r, "POST /reservas", true) {
			return
		}
		var nr model.NewReservation
		if err := json.NewDecoder(r.Body).Decode(&nr); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"mensaje": err.Error()})
			return
		}

		s.mu.Lock()
		key := slots.KeyOf(nr.Court, nr.Start)
		for _, existing := range s.reservations {
			if existing.Key() == key {
				s.mu.Unlock()
				writeJSON(w, http.StatusConflict, map[string]string{"mensaje": "cancha ocupada"})
				return
			}
		}
		created := model.Reservation{
			ID:          s.nextID,
			Court:       nr.Court,
			Start:       nr.Start,
			RequesterID: nr.RequesterID,
			Recurring:   nr.Recurring,
			CreatedAt:   nr.CreatedAt,
		}
		s.nextID++
		s.reservations = append(s.reservations, created)
		s.mu.Unlock()

		writeJSON(w, http.StatusCreated, created)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.begin(w, r, "DELETE /reservas", true) {
		return
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/reservas/"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"mensaje": "invalid id"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, res := range s.reservations {
		if res.ID == id {
			s.reservations = append(s.reservations[:i:i], s.reservations[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"mensaje": "reserva no encontrada"})
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, "GET /usuarios", true) {
		return
	}
	s.mu.Lock()
	users := append([]model.User(nil), s.users...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string][]model.User{"usuarios": users})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Package fakeapi levanta un backend falso con chi para los tests de
// transporte y sesión. Las rutas se registran por método y path relativo a
// /api, y se cuentan los hits de cada una.
package fakeapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const Prefix = "/api"

type Server struct {
	srv *httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	hits     map[string]int
	last     map[string]*http.Request
	bodies   map[string][]byte
}

// New arranca el servidor y lo cierra con t.Cleanup.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		handlers: map[string]http.HandlerFunc{},
		hits:     map[string]int{},
		last:     map[string]*http.Request{},
		bodies:   map[string][]byte{},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Route(Prefix, func(r chi.Router) {
		r.HandleFunc("/*", s.dispatch)
	})
	s.srv = httptest.NewServer(r)
	t.Cleanup(s.srv.Close)
	return s
}

// URL es la base de la API (incluye /api).
func (s *Server) URL() string { return s.srv.URL + Prefix }

func key(method, path string) string { return method + " " + path }

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, Prefix)
	k := key(r.Method, path)

	var body []byte
	if r.Body != nil {
		body, _ = io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))
	}

	s.mu.Lock()
	s.hits[k]++
	s.last[k] = r.Clone(r.Context())
	s.bodies[k] = body
	h := s.handlers[k]
	s.mu.Unlock()

	if h == nil {
		JSON(w, http.StatusNotFound, map[string]any{"message": "ruta no encontrada: " + k})
		return
	}
	h(w, r)
}

// Handle registra (o reemplaza) el handler de method + path.
func (s *Server) Handle(method, path string, h http.HandlerFunc) {
	s.mu.Lock()
	s.handlers[key(method, path)] = h
	s.mu.Unlock()
}

// Respond registra una respuesta fija.
func (s *Server) Respond(method, path string, status int, body any) {
	s.Handle(method, path, func(w http.ResponseWriter, _ *http.Request) {
		JSON(w, status, body)
	})
}

func (s *Server) Hits(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[key(method, path)]
}

// LastRequest devuelve el último request recibido (nil si no hubo).
func (s *Server) LastRequest(method, path string) *http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last[key(method, path)]
}

// LastBody decodifica el último body JSON recibido en method + path.
func (s *Server) LastBody(method, path string) map[string]any {
	s.mu.Lock()
	raw := s.bodies[key(method, path)]
	s.mu.Unlock()
	var m map[string]any
	_ = json.Unmarshal(raw, &m)
	return m
}

// JSON escribe v como respuesta JSON.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// SetCookie agrega una cookie de sesión con path /.
func SetCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{Name: name, Value: value, Path: "/", HttpOnly: name != "csrf_token"})
}

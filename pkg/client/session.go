// Package client is a small Go client for the registry API. Its main job
// is session management: it caches the bearer token between runs and
// resolves the signed-in identity on startup without blocking callers on
// the network.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// State describes what the session store currently knows about the user.
type State string

const (
	// StateUninitialized means Bootstrap has not been called yet.
	StateUninitialized State = "uninitialized"
	// StateBootstrapping means a cached token was found and is being
	// verified against the server in the background.
	StateBootstrapping State = "bootstrapping"
	// StateAuthenticated means the store holds a token the server has
	// accepted, or a cached one still awaiting its background check.
	StateAuthenticated State = "authenticated"
	// StateAnonymous means there is no usable session.
	StateAnonymous State = "anonymous"
)

// Identity is the signed-in user as the server reports it.
type Identity struct {
	ID        uint64 `json:"id"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

// Snapshot is what survives between runs: the token plus the identity it
// belonged to when last verified.
type Snapshot struct {
	Token    string   `json:"token"`
	Identity Identity `json:"identity"`
}

// Store persists session snapshots between runs.
type Store interface {
	Load() (*Snapshot, error)
	Save(*Snapshot) error
	Clear() error
}

// FileStore keeps the snapshot as a JSON file with user-only permissions.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore { return &FileStore{Path: path} }

func (s *FileStore) Load() (*Snapshot, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		// A corrupt cache is the same as no cache.
		return nil, nil
	}
	if snap.Token == "" {
		return nil, nil
	}
	return &snap, nil
}

func (s *FileStore) Save(snap *Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.Path, raw, 0o600)
}

func (s *FileStore) Clear() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// SessionStore tracks the current session against one server. All methods
// are safe for concurrent use.
type SessionStore struct {
	baseURL string
	http    *http.Client
	store   Store

	mu       sync.Mutex
	state    State
	snapshot *Snapshot
	// gen increments on every explicit Login/Logout so a slow background
	// verification from an earlier Bootstrap can never overwrite a newer
	// session.
	gen uint64
}

// NewSessionStore builds a session store talking to baseURL, e.g.
// "http://localhost:8080". Pass nil for httpClient to use a 15s default.
func NewSessionStore(baseURL string, store Store, httpClient *http.Client) *SessionStore {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &SessionStore{
		baseURL: baseURL,
		http:    httpClient,
		store:   store,
		state:   StateUninitialized,
	}
}

// State returns the current session state.
func (s *SessionStore) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Current returns the identity of the signed-in user, or nil when the
// session is anonymous or still unresolved.
func (s *SessionStore) Current() *Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return nil
	}
	id := s.snapshot.Identity
	return &id
}

// Token returns the bearer token for authenticated requests, or "" when
// there is none.
func (s *SessionStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return ""
	}
	return s.snapshot.Token
}

// Bootstrap restores the session from the persistent store. With no cached
// token it settles on anonymous immediately and never touches the network.
// With a cached token it reports authenticated right away, optimistically,
// and verifies the token against the server in the background; a definitive
// rejection flips the session to anonymous and clears the cache. Network
// failures leave the optimistic session in place so the app still works
// offline.
func (s *SessionStore) Bootstrap(ctx context.Context) State {
	snap, err := s.store.Load()
	if err != nil || snap == nil {
		s.mu.Lock()
		s.state = StateAnonymous
		s.snapshot = nil
		s.mu.Unlock()
		return StateAnonymous
	}

	s.mu.Lock()
	s.state = StateBootstrapping
	s.snapshot = snap
	gen := s.gen
	s.mu.Unlock()

	go s.verify(ctx, snap.Token, gen)

	s.mu.Lock()
	// verify may already have finished.
	if s.state == StateBootstrapping {
		s.state = StateAuthenticated
	}
	st := s.state
	s.mu.Unlock()
	return st
}

// verify resolves the cached token against GET /v1/me. Results are applied
// only while gen still matches; otherwise the user logged in or out in the
// meantime and this result is stale.
func (s *SessionStore) verify(ctx context.Context, token string, gen uint64) {
	id, err := s.fetchIdentity(ctx, token)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}

	switch {
	case err == nil:
		s.state = StateAuthenticated
		s.snapshot = &Snapshot{Token: token, Identity: *id}
		_ = s.store.Save(s.snapshot)
	case errors.Is(err, errUnauthorized):
		// The server rejected the token outright, so the cached session
		// is dead. Transient failures fall through and keep it.
		s.state = StateAnonymous
		s.snapshot = nil
		_ = s.store.Clear()
	default:
		s.state = StateAuthenticated
	}
}

var errUnauthorized = errors.New("client: token rejected")

func (s *SessionStore) fetchIdentity(ctx context.Context, token string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, errUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("client: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Success bool     `json:"success"`
		User    Identity `json:"user"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return nil, err
	}
	if !body.Success {
		return nil, fmt.Errorf("client: server reported failure")
	}
	return &body.User, nil
}

// Login exchanges credentials for a fresh session. On success the snapshot
// is persisted and any in-flight bootstrap verification is invalidated.
func (s *SessionStore) Login(ctx context.Context, email, password string) (*Identity, error) {
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/auth/login", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body struct {
		Success bool     `json:"success"`
		Message string   `json:"message"`
		Token   string   `json:"token"`
		User    Identity `json:"user"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK || !body.Success {
		if body.Message != "" {
			return nil, fmt.Errorf("client: login failed: %s", body.Message)
		}
		return nil, fmt.Errorf("client: login failed with status %d", resp.StatusCode)
	}

	snap := &Snapshot{Token: body.Token, Identity: body.User}

	s.mu.Lock()
	s.gen++
	s.state = StateAuthenticated
	s.snapshot = snap
	s.mu.Unlock()

	if err := s.store.Save(snap); err != nil {
		return nil, fmt.Errorf("client: session persisted in memory only: %w", err)
	}
	id := snap.Identity
	return &id, nil
}

// Logout drops the session unconditionally. It never fails because of the
// server; there is no server-side session to revoke.
func (s *SessionStore) Logout() error {
	s.mu.Lock()
	s.gen++
	s.state = StateAnonymous
	s.snapshot = nil
	s.mu.Unlock()
	return s.store.Clear()
}

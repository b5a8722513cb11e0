package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"backlog/api/internal/auth"
	"backlog/api/internal/authpw"
	"backlog/api/internal/config"
	"backlog/api/internal/export"
	"backlog/api/internal/gitrepo"
	"backlog/api/internal/rbac"
	"backlog/api/internal/search"
	"backlog/api/internal/store"
)

type Session struct {
	Token     string
	UserID    string
	UserName  string
	Role      string
	ExpiresAt time.Time
}

// revisionSource is implemented by backends that keep document history.
type revisionSource interface {
	History(key string, limit int) ([]gitrepo.Revision, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Service owns the workspace document. Every mutation works on a private
// copy, saves it, and only then replaces the live document, so a failed
// validation or save leaves state untouched.
type Service struct {
	cfg      config.Config
	gateway  *store.Gateway
	meili    *search.Meili
	search   *search.Service
	exporter *export.Service
	validate *validator.Validate
	tokens   *auth.Issuer
	logger   *slog.Logger
	now      func() time.Time

	mu  sync.Mutex
	doc *store.Document
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMeili routes search through Meilisearch while it is healthy.
func WithMeili(m *search.Meili) Option {
	return func(s *Service) {
		s.meili = m
	}
}

func WithExporter(exporter *export.Service) Option {
	return func(s *Service) {
		if exporter != nil {
			s.exporter = exporter
		}
	}
}

// Open loads the document through gateway and persists it once when the
// load had to repair it.
func Open(ctx context.Context, cfg config.Config, gateway *store.Gateway, opts ...Option) (*Service, error) {
	s := &Service{
		cfg:      cfg,
		gateway:  gateway,
		exporter: export.NewService(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.tokens = auth.NewIssuer(cfg.JWTSecret, cfg.AccessTTL, s.now)

	doc, report, err := gateway.Load(ctx)
	if err != nil {
		return nil, err
	}
	if report.Changed() {
		if err := gateway.Save(ctx, doc); err != nil {
			return nil, fmt.Errorf("persist repaired document: %w", err)
		}
	}
	s.doc = doc

	var engine search.Indexer
	if s.meili != nil {
		engine = s.meili
	}
	s.search = search.NewService(engine, search.NewMemory(s.searchRecords), s.logger)
	issues, wikis := s.searchRecords()
	s.search.ReindexAll(issues, wikis)
	return s, nil
}

// Close waits for pending search index writes.
func (s *Service) Close() {
	s.search.Close()
}

func (s *Service) snapshot() *store.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// mutate applies fn to a copy of the document and swaps the copy in after
// it has been saved.
func (s *Service) mutate(ctx context.Context, fn func(doc *store.Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := cloneDocument(s.doc)
	if err != nil {
		return err
	}
	if err := fn(next); err != nil {
		return err
	}
	if err := s.gateway.Save(ctx, next); err != nil {
		return err
	}
	s.doc = next
	return nil
}

func cloneDocument(doc *store.Document) (*store.Document, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("copy document: %w", err)
	}
	var out store.Document
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("copy document: %w", err)
	}
	return &out, nil
}

func (s *Service) check(input any) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return validationFailed(err.Error(), nil)
	}
	details := make([]map[string]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, map[string]string{"field": fe.Namespace(), "rule": fe.Tag()})
	}
	return validationFailed("Validation failed", details)
}

func (s *Service) timestamp() string {
	return store.Timestamp(s.now())
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// Ping checks the storage backend when it supports health checks.
func (s *Service) Ping(ctx context.Context) error {
	if p, ok := s.gateway.Backend().(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Revisions lists saved versions of the document when the backend keeps
// history; otherwise it returns an empty list.
func (s *Service) Revisions(limit int) ([]gitrepo.Revision, error) {
	src, ok := s.gateway.Backend().(revisionSource)
	if !ok {
		return []gitrepo.Revision{}, nil
	}
	return src.History(s.gateway.DocumentKey(), limit)
}

func (s *Service) Config() store.Configuration {
	return copyConfig(*s.snapshot().Config)
}

// UpdateConfig replaces the global workflow configuration. A nil
// Departments list keeps the current departments.
func (s *Service) UpdateConfig(ctx context.Context, cfg store.Configuration) (store.Configuration, error) {
	cfg = copyConfig(cfg)
	if cfg.Priorities == nil {
		cfg.Priorities = []store.Priority{}
	}
	if cfg.Categories == nil {
		cfg.Categories = []string{}
	}
	if err := s.check(cfg); err != nil {
		return store.Configuration{}, err
	}

	err := s.mutate(ctx, func(doc *store.Document) error {
		if cfg.Departments == nil {
			cfg.Departments = append([]string{}, doc.Config.Departments...)
		}
		doc.Config = &cfg
		return nil
	})
	if err != nil {
		return store.Configuration{}, err
	}
	return copyConfig(cfg), nil
}

func copyConfig(cfg store.Configuration) store.Configuration {
	out := store.Configuration{
		Statuses:   append([]store.Status(nil), cfg.Statuses...),
		Priorities: append([]store.Priority(nil), cfg.Priorities...),
		Categories: append([]string(nil), cfg.Categories...),
	}
	if cfg.Departments != nil {
		out.Departments = append([]string{}, cfg.Departments...)
	}
	return out
}

// Login checks id and password against the member list and issues a
// signed session token. Legacy plaintext passwords are upgraded to bcrypt
// on success when hashing is enabled.
func (s *Service) Login(ctx context.Context, id, password string) (Session, error) {
	id = strings.TrimSpace(id)
	member, ok := findMember(s.snapshot(), id)
	if !ok || !authpw.Verify(member.Password, password) {
		return Session{}, unauthorized("Invalid id or password")
	}

	if s.cfg.HashPasswords && !authpw.IsHashed(member.Password) {
		hashed, err := authpw.Hash(password)
		if err != nil {
			return Session{}, err
		}
		err = s.mutate(ctx, func(doc *store.Document) error {
			if idx := memberIndex(doc, id); idx >= 0 {
				doc.Members[idx].Password = hashed
			}
			return nil
		})
		if err != nil {
			return Session{}, err
		}
		// the token is stamped with the stored credential, so use the upgraded one
		member.Password = hashed
	}

	return s.issueSession(member)
}

func (s *Service) issueSession(member store.Member) (Session, error) {
	token, claims, err := s.tokens.Issue(member)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    member.ID,
		UserName:  member.Name,
		Role:      string(claims.Role),
		ExpiresAt: claims.Expires(),
	}, nil
}

// SessionFromToken resolves a bearer token to the member it was issued to.
// Deleting the member or changing their password or role revokes it.
func (s *Service) SessionFromToken(_ context.Context, token string) (Session, error) {
	doc := s.snapshot()
	member, claims, err := s.tokens.Resolve(token, func(id string) (store.Member, bool) {
		return findMember(doc, id)
	})
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    member.ID,
		UserName:  member.Name,
		Role:      string(claims.Role),
		ExpiresAt: claims.Expires(),
	}, nil
}

// RememberLogin stores the remembered-login blob.
func (s *Service) RememberLogin(ctx context.Context, id, password string) error {
	return s.gateway.SaveCredentials(ctx, store.Credentials{ID: id, Pass: password})
}

func (s *Service) RememberedLogin(ctx context.Context) (*store.Credentials, error) {
	return s.gateway.LoadCredentials(ctx)
}

func (s *Service) ForgetLogin(ctx context.Context) error {
	return s.gateway.ForgetCredentials(ctx)
}

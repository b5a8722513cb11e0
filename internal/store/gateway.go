package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	DefaultDocumentKey    = "dx_backlog_v7"
	DefaultCredentialsKey = "loginInfo"
)

// Gateway loads and saves the whole workspace document through a Backend.
type Gateway struct {
	backend        Backend
	documentKey    string
	credentialsKey string
	logger         *slog.Logger
	now            func() time.Time
}

type Option func(*Gateway)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithKeys overrides the document and credential keys. Empty values keep the defaults.
func WithKeys(documentKey, credentialsKey string) Option {
	return func(g *Gateway) {
		if documentKey != "" {
			g.documentKey = documentKey
		}
		if credentialsKey != "" {
			g.credentialsKey = credentialsKey
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

func NewGateway(backend Backend, opts ...Option) *Gateway {
	g := &Gateway{
		backend:        backend,
		documentKey:    DefaultDocumentKey,
		credentialsKey: DefaultCredentialsKey,
		logger:         slog.Default(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) Backend() Backend {
	return g.backend
}

func (g *Gateway) DocumentKey() string {
	return g.documentKey
}

// Load returns the stored document, or the seed document when nothing is
// stored yet, after running Repair on it. Load never writes.
func (g *Gateway) Load(ctx context.Context) (*Document, RepairReport, error) {
	raw, err := g.backend.Get(ctx, g.documentKey)
	var doc *Document
	switch {
	case errors.Is(err, ErrNotFound):
		g.logger.Info("no stored document, using seed", slog.String("key", g.documentKey))
		doc = DefaultDocument()
	case err != nil:
		return nil, RepairReport{}, fmt.Errorf("load document: %w", err)
	default:
		doc = &Document{}
		if err := json.Unmarshal(raw, doc); err != nil {
			return nil, RepairReport{}, fmt.Errorf("decode document %s: %w", g.documentKey, err)
		}
	}

	report := Repair(doc, g.now(), g.logger)
	if report.Changed() {
		g.logger.Info("document repaired",
			slog.Bool("config_installed", report.ConfigInstalled),
			slog.Bool("departments_installed", report.DepartmentsInstalled),
			slog.Int("projects_with_members", len(report.ProjectsWithMembers)),
			slog.Int("wikis_assigned", len(report.WikisAssigned)),
			slog.Int("issues_with_reactions", len(report.IssuesWithReactions)),
			slog.Int("renamed_issues", len(report.RenamedIssues)),
		)
	}
	return doc, report, nil
}

func (g *Gateway) Save(ctx context.Context, doc *Document) error {
	if doc == nil {
		return errors.New("save document: nil document")
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := g.backend.Put(ctx, g.documentKey, raw); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

// LoadCredentials returns the remembered login, or nil when none is stored.
func (g *Gateway) LoadCredentials(ctx context.Context) (*Credentials, error) {
	raw, err := g.backend.Get(ctx, g.credentialsKey)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	var creds Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	return &creds, nil
}

func (g *Gateway) SaveCredentials(ctx context.Context, creds Credentials) error {
	raw, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := g.backend.Put(ctx, g.credentialsKey, raw); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

func (g *Gateway) ForgetCredentials(ctx context.Context) error {
	if err := g.backend.Delete(ctx, g.credentialsKey); err != nil {
		return fmt.Errorf("forget credentials: %w", err)
	}
	return nil
}

func (g *Gateway) Close() error {
	return g.backend.Close()
}

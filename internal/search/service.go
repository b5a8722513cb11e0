package search

import (
	"log/slog"
	"sync"
)

// Indexer is a search engine that also accepts writes.
type Indexer interface {
	Searcher
	IndexIssues(issues []IssueRecord) error
	IndexWikis(wikis []WikiRecord) error
	DeleteIssue(id string) error
	DeleteWiki(id string) error
}

const queueSize = 256

type indexOp struct {
	name string
	id   string
	run  func(Indexer) error
}

// Service is the facade that tries the engine first and falls back to the
// in-memory scan. Index writes are applied by one worker in call order.
type Service struct {
	engine   Indexer
	fallback Searcher
	logger   *slog.Logger

	mu     sync.Mutex
	closed bool
	ops    chan indexOp
	done   chan struct{}
}

// NewService creates a search service. engine may be nil when Meilisearch is
// not configured; logger may be nil to use slog's default.
func NewService(engine Indexer, fallback Searcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{engine: engine, fallback: fallback, logger: logger}
	if engine != nil {
		s.ops = make(chan indexOp, queueSize)
		s.done = make(chan struct{})
		go s.work()
	}
	return s
}

func (s *Service) Search(q Query) Response {
	if s.engine != nil && s.engine.Healthy() {
		results, total, err := s.engine.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Engine: "meilisearch"}
		}
		s.logger.Warn("search engine failed, falling back to memory scan", slog.String("query", q.Text), slog.Any("error", err))
	}

	if s.fallback == nil {
		return Response{Results: []Result{}, Query: q.Text, Engine: "none"}
	}
	results, total, err := s.fallback.Search(q)
	if err != nil {
		s.logger.Warn("memory search failed", slog.String("query", q.Text), slog.Any("error", err))
		return Response{Results: []Result{}, Total: 0, Query: q.Text, Engine: "memory"}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Engine: "memory"}
}

func (s *Service) IndexIssue(issue IssueRecord) {
	s.enqueue(indexOp{name: "index issue", id: issue.ID, run: func(e Indexer) error {
		return e.IndexIssues([]IssueRecord{issue})
	}})
}

func (s *Service) IndexWiki(wiki WikiRecord) {
	s.enqueue(indexOp{name: "index wiki", id: wiki.ID, run: func(e Indexer) error {
		return e.IndexWikis([]WikiRecord{wiki})
	}})
}

func (s *Service) DeleteIssue(id string) {
	s.enqueue(indexOp{name: "delete issue", id: id, run: func(e Indexer) error {
		return e.DeleteIssue(id)
	}})
}

func (s *Service) DeleteWiki(id string) {
	s.enqueue(indexOp{name: "delete wiki", id: id, run: func(e Indexer) error {
		return e.DeleteWiki(id)
	}})
}

// ReindexAll pushes every record to the engine. Called once at startup.
func (s *Service) ReindexAll(issues []IssueRecord, wikis []WikiRecord) {
	s.enqueue(indexOp{name: "reindex issues", run: func(e Indexer) error {
		return e.IndexIssues(issues)
	}})
	s.enqueue(indexOp{name: "reindex wikis", run: func(e Indexer) error {
		return e.IndexWikis(wikis)
	}})
}

// enqueue blocks when the queue is full so writes are never reordered or
// dropped while the engine is healthy.
func (s *Service) enqueue(op indexOp) {
	if s == nil || s.engine == nil || !s.engine.Healthy() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.ops <- op
}

func (s *Service) work() {
	defer close(s.done)
	for op := range s.ops {
		if err := op.run(s.engine); err != nil {
			s.logger.Warn("search index write failed", slog.String("op", op.name), slog.String("id", op.id), slog.Any("error", err))
		}
	}
}

// Close drains pending index writes and stops the worker.
func (s *Service) Close() {
	if s == nil || s.engine == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.ops)
	s.mu.Unlock()
	<-s.done
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}

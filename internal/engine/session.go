package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crimson-sun/apsdiag/internal/engine/classifier"
	"github.com/crimson-sun/apsdiag/internal/model"
)

// Session holds one uploaded batch and, once trained, its model. It lets
// callers run the analysis stages one at a time. Calls are serialized;
// Train replaces the model as a whole.
type Session struct {
	id      string
	engine  *Engine
	created time.Time

	mu     sync.Mutex
	batch  *model.CleanedBatch
	result *classifier.Result
}

// NewSession sanitizes raw and opens a session on the cleaned batch.
func (e *Engine) NewSession(ctx context.Context, raw model.RawBatch) (*Session, error) {
	b, err := e.Sanitize(ctx, raw)
	if err != nil {
		return nil, err
	}
	return &Session{id: uuid.NewString(), engine: e, created: time.Now(), batch: b}, nil
}

// ID identifies the session in the server registry.
func (s *Session) ID() string { return s.id }

// Created is when the batch was sanitized.
func (s *Session) Created() time.Time { return s.created }

// Batch returns the cleaned batch. It must not be modified.
func (s *Session) Batch() *model.CleanedBatch { return s.batch }

// Summary describes what sanitization changed.
func (s *Session) Summary() model.SanitizationSummary { return model.Summarize(s.batch) }

// Trained reports whether Train has completed successfully.
func (s *Session) Trained() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result != nil
}

// Model returns the trained model, or nil before Train.
func (s *Session) Model() *classifier.Model {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return nil
	}
	return s.result.Model
}

// DetectAnomalies scores the session batch.
func (s *Session) DetectAnomalies(ctx context.Context) (*model.AnomalyReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.DetectAnomalies(ctx, s.batch)
}

// Statistics summarizes the session batch.
func (s *Session) Statistics(ctx context.Context) (*model.Statistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Statistics(ctx, s.batch)
}

// Train fits a new model on the session batch. A failed run leaves any
// previous model in place.
func (s *Session) Train(ctx context.Context) (*model.ClassificationReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.engine.Train(ctx, s.batch)
	if err != nil {
		return nil, err
	}
	s.result = res
	return res.Report, nil
}

// Importance ranks the trained model's features. It fails with
// model.ErrModelNotTrained before Train.
func (s *Session) Importance(ctx context.Context) (*model.FeatureImportance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireModelLocked(); err != nil {
		return nil, err
	}
	return s.engine.Rank(ctx, s.result.Model)
}

// CrossReference compares the trained model's held-out predictions with the
// anomaly flags of the session batch.
func (s *Session) CrossReference(ctx context.Context) (*model.CrossReference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireModelLocked(); err != nil {
		return nil, err
	}
	return s.crossReferenceLocked(ctx)
}

// RootCause returns the importance ranking and the cross-reference of the
// same model. A concurrent Train cannot land between the two.
func (s *Session) RootCause(ctx context.Context) (*model.FeatureImportance, *model.CrossReference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireModelLocked(); err != nil {
		return nil, nil, err
	}
	fi, err := s.engine.Rank(ctx, s.result.Model)
	if err != nil {
		return nil, nil, err
	}
	cr, err := s.crossReferenceLocked(ctx)
	if err != nil {
		return nil, nil, err
	}
	return fi, cr, nil
}

func (s *Session) requireModelLocked() error {
	if s.result == nil {
		return fmt.Errorf("session %s: %w", s.id, model.ErrModelNotTrained)
	}
	return nil
}

func (s *Session) crossReferenceLocked(ctx context.Context) (*model.CrossReference, error) {
	rep, err := s.engine.DetectAnomalies(ctx, s.batch)
	if err != nil {
		return nil, err
	}
	return CrossReference(s.result, rep.Flags), nil
}

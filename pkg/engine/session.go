package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/sdejongh/dircompare/pkg/models"
)

// Session holds the last successful comparison. A run that fails leaves
// the previous result untouched.
type Session struct {
	engine *Engine

	mu     sync.Mutex
	result models.FolderComparison
	stats  *models.Statistics
}

// NewSession creates a session without a result
func NewSession(engine *Engine) *Session {
	return &Session{engine: engine}
}

// Run compares cfgs and publishes the result on success. Runs of the same
// session are serialized.
func (s *Session) Run(ctx context.Context, cfgs []models.FolderPairCfg) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrAborted, p)
		}
	}()

	result, stats, err := s.engine.Compare(ctx, cfgs)
	if err != nil {
		return err
	}
	if len(result) != len(cfgs) {
		return ErrOutputMismatch
	}

	s.result = result
	s.stats = stats
	return nil
}

// Result returns the last published comparison and its statistics
func (s *Session) Result() (models.FolderComparison, *models.Statistics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.stats
}

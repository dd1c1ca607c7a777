package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/viant/vecflow/apierr"
	"github.com/viant/vecflow/vectordb"
)

// Connect describes the index and, when asked, waits until it is ready.
func (s *Service) Connect(ctx context.Context, req ConnectRequest) (*vectordb.IndexDescription, error) {
	if req.Index == "" {
		return nil, apierr.New(apierr.KindNotFound, "describe index", "index name is required")
	}
	desc, err := s.db.DescribeIndex(ctx, req.Index)
	if err != nil {
		return nil, err
	}
	if desc.Ready || !req.Wait {
		return desc, nil
	}
	return s.WaitReady(ctx, req.Index, req.Logf)
}

// WaitReady polls the index description until it reports ready.
// Describe errors while polling are logged and polling continues; running out
// of the readiness policy yields a KindTimeout error.
func (s *Service) WaitReady(ctx context.Context, index string, logf func(format string, args ...any)) (*vectordb.IndexDescription, error) {
	logf = s.resolveLogf(logf)
	var last *vectordb.IndexDescription
	var lastErr error
	polls := 0
	err := s.readiness.Poll(ctx, s.clock, func(ctx context.Context) (bool, error) {
		polls++
		desc, err := s.db.DescribeIndex(ctx, index)
		if err != nil {
			lastErr = err
			return false, err
		}
		last, lastErr = desc, nil
		if !desc.Ready {
			logf("index %v not ready (state: %v), poll %d", index, desc.State, polls)
		}
		return desc.Ready, nil
	}, func(err error) {
		logf("describe index %v: %v", index, err)
	})
	if err == nil {
		return last, nil
	}
	if !errors.Is(err, ErrPolicyExhausted) {
		return nil, err
	}
	state := "unknown"
	if last != nil && last.State != "" {
		state = last.State
	}
	return nil, &apierr.Error{
		Kind:    apierr.KindTimeout,
		Op:      "wait ready",
		Message: fmt.Sprintf("index %v did not become ready after %d polls (last state: %v)", index, polls, state),
		Err:     lastErr,
	}
}

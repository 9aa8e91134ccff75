package handler

import (
	"context"

	"datamod/internal/modification"
)

// RunnerService adapts *modification.Runner to Service.
type RunnerService struct {
	Runner *modification.Runner
}

func NewRunnerService(runner *modification.Runner) *RunnerService {
	return &RunnerService{Runner: runner}
}

func (s *RunnerService) List() []modification.Info {
	return s.Runner.List()
}

func (s *RunnerService) StartDryRun(ctx context.Context, name string) (EventStream, error) {
	stream, err := s.Runner.StartDryRun(ctx, name)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func (s *RunnerService) StartRun(ctx context.Context, name, confirmation string) (EventStream, error) {
	stream, err := s.Runner.StartRun(ctx, name, confirmation)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

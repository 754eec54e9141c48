package usecase

import (
	"context"
	"fmt"

	"BarForge/pkg/queue"
)

// PipelineRunPayload is the queue message that triggers a pipeline run.
type PipelineRunPayload struct {
	Symbols []string `json:"symbols"`
}

// PipelineRunJob lets external producers trigger pipeline runs through
// the Redis queue instead of the HTTP API.
type PipelineRunJob struct {
	pipeline *Pipeline
	symbols  []string // fallback when the message names none
}

func NewPipelineRunJob(pipeline *Pipeline, symbols []string) *PipelineRunJob {
	return &PipelineRunJob{pipeline: pipeline, symbols: symbols}
}

func (j *PipelineRunJob) Name() string { return "pipeline_run" }
func (j *PipelineRunJob) Type() string { return "pipeline.run" }

func (j *PipelineRunJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[PipelineRunPayload](payload)
	if err != nil {
		return fmt.Errorf("parse payload: %w", err)
	}
	symbols := p.Symbols
	if len(symbols) == 0 {
		symbols = j.symbols
	}
	return j.pipeline.Run(ctx, symbols)
}

var _ queue.Job = (*PipelineRunJob)(nil)

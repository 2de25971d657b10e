// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package services

import (
	"context"
)

// ContextRunner matches the event pipeline's Run method without importing
// the ingest package.
type ContextRunner interface {
	Run(ctx context.Context) error
}

// PipelineService wraps the internal event pipeline as a supervised
// service. The pipeline subscribes to the in-process topic and dispatches
// events to the detection engine until the context is canceled; if the
// subscription fails, suture restarts it with backoff.
type PipelineService struct {
	pipeline ContextRunner
	name     string
}

// NewPipelineService creates a new pipeline service wrapper.
func NewPipelineService(pipeline ContextRunner) *PipelineService {
	return &PipelineService{
		pipeline: pipeline,
		name:     "event-pipeline",
	}
}

// Serve implements suture.Service.
func (p *PipelineService) Serve(ctx context.Context) error {
	return p.pipeline.Run(ctx)
}

// String implements fmt.Stringer for supervision logs.
func (p *PipelineService) String() string {
	return p.name
}

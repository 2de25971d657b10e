// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package ingest

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"

	"github.com/klaxonhq/klaxon/internal/logging"
)

// watermillLogger adapts the global zerolog logger to watermill's
// LoggerAdapter so pipeline internals log through the same sink as the
// rest of the process.
type watermillLogger struct {
	fields watermill.LogFields
}

// NewWatermillLogger returns a watermill LoggerAdapter backed by the
// process logger.
func NewWatermillLogger() watermill.LoggerAdapter {
	return &watermillLogger{}
}

func (l *watermillLogger) log(ev *zerolog.Event, msg string, err error, fields watermill.LogFields) {
	if err != nil {
		ev = ev.Err(err)
	}
	for k, v := range l.fields {
		ev = ev.Interface(k, v)
	}
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

// Error implements watermill.LoggerAdapter.
func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.log(logging.Error(), msg, err, fields)
}

// Info implements watermill.LoggerAdapter.
func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.log(logging.Info(), msg, nil, fields)
}

// Debug implements watermill.LoggerAdapter.
func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.log(logging.Debug(), msg, nil, fields)
}

// Trace implements watermill.LoggerAdapter.
func (l *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.log(logging.Trace(), msg, nil, fields)
}

// With implements watermill.LoggerAdapter.
func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	merged := make(watermill.LogFields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &watermillLogger{fields: merged}
}

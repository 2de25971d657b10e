// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

// Package testinfra provides shared infrastructure for integration tests.
//
// The NATS container helper stands up a real JetStream broker with
// testcontainers-go so feed consumer tests exercise the actual wire path
// instead of an in-process stub:
//
//	func TestFeedConsumer(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    broker, err := testinfra.NewNATSContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer broker.Terminate(ctx)
//	    // connect to broker.URL ...
//	}
//
// The webhook capture server records every delivery a notifier makes so
// tests can assert on payloads, headers, and retry behavior.
//
// Everything here is behind the integration build tag; the unit suites run
// without Docker.
package testinfra

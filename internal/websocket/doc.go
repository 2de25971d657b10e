// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

// Package websocket implements the live notification transport: a hub that
// relays alert store change events to subscribed connections, each with an
// independent attribute filter.
//
// Protocol (JSON messages over one persistent connection):
//
//	client -> server: subscribe, unsubscribe, acknowledge, resolve,
//	                  get_active, get_stats
//	server -> client: connected, subscribed, alert, alert_update,
//	                  active_alerts, statistics, error
//
// Delivery is best effort: a slow client whose send buffer fills is
// disconnected rather than allowed to stall the hub, and there is no
// replay of alerts missed while disconnected. Per-connection delivery
// order matches the order of store state transitions.
package websocket

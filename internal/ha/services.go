package ha

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// TimerDomain is the backend integration's service domain.
const TimerDomain = "simple_timer"

// Services is the typed remote-call surface the cards use. Every method
// maps onto one hub service call; the resulting state change arrives
// later through the normal push channel.
type Services struct {
	client HubClient
	logger *zap.Logger
}

// NewServices wraps a hub client with the timer service surface.
func NewServices(client HubClient, logger *zap.Logger) *Services {
	return &Services{
		client: client,
		logger: logger.Named("services"),
	}
}

// TurnOn switches an entity on via the generic homeassistant domain.
func (s *Services) TurnOn(entityID string) error {
	return s.client.CallService("homeassistant", "turn_on", map[string]any{
		"entity_id": entityID,
	})
}

// TurnOff switches an entity off via the generic homeassistant domain.
func (s *Services) TurnOff(entityID string) error {
	return s.client.CallService("homeassistant", "turn_off", map[string]any{
		"entity_id": entityID,
	})
}

// StartTimer begins a timed cycle for the backend instance.
func (s *Services) StartTimer(entryID string, minutes int) error {
	return s.client.CallService(TimerDomain, "start_timer", map[string]any{
		"entry_id": entryID,
		"duration": minutes,
	})
}

// CancelTimer ends the instance's current cycle early.
func (s *Services) CancelTimer(entryID string) error {
	return s.client.CallService(TimerDomain, "cancel_timer", map[string]any{
		"entry_id": entryID,
	})
}

// ManualPowerToggle flips the instance's switch outside a timer cycle so
// the backend can commit accumulated runtime. action is "turn_on" or
// "turn_off".
func (s *Services) ManualPowerToggle(entryID, action string) error {
	return s.client.CallService(TimerDomain, "manual_power_toggle", map[string]any{
		"entry_id": entryID,
		"action":   action,
	})
}

// ResetDailyUsage zeroes the instance's accumulated runtime. Destructive;
// callers must have confirmed with the user first.
func (s *Services) ResetDailyUsage(entryID string) error {
	return s.client.CallService(TimerDomain, "reset_daily_usage", map[string]any{
		"entry_id": entryID,
	})
}

// UpdateSwitchLink tells the backend which switch entity an instance
// controls.
func (s *Services) UpdateSwitchLink(entryID, switchEntityID string) error {
	return s.client.CallService(TimerDomain, "update_switch_link", map[string]any{
		"entry_id":         entryID,
		"switch_entity_id": switchEntityID,
	})
}

// Notify sends a best-effort notification to a "domain.service" target.
// Failures are swallowed: an unreachable notifier must never disturb the
// card. A target of "" or "none_selected" disables notifications.
func (s *Services) Notify(target, message string) {
	if target == "" || target == "none_selected" {
		return
	}

	domain, service, ok := splitServiceTarget(target)
	if !ok {
		s.logger.Warn("Invalid notification target", zap.String("target", target))
		return
	}

	if err := s.client.CallService(domain, service, map[string]any{"message": message}); err != nil {
		s.logger.Warn("Notification failed",
			zap.String("target", target),
			zap.Error(err))
	}
}

// splitServiceTarget splits "notify.mobile_app_phone" into its domain and
// service parts.
func splitServiceTarget(target string) (domain, service string, ok bool) {
	i := strings.IndexByte(target, '.')
	if i <= 0 || i == len(target)-1 {
		return "", "", false
	}
	return target[:i], target[i+1:], true
}

// ValidateServiceTarget reports whether a notification target is usable:
// empty and "none_selected" are valid (disabled), anything else must be
// a "domain.service" pair.
func ValidateServiceTarget(target string) error {
	if target == "" || target == "none_selected" {
		return nil
	}
	if _, _, ok := splitServiceTarget(target); !ok {
		return fmt.Errorf("notification target %q is not a domain.service pair", target)
	}
	return nil
}

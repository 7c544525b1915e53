package server

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Registration records one device known to the relay. LastSeen advances
// on every heartbeat, so stale entries identify devices that vanished
// without a close frame. SessionID names the connection that currently
// owns the entry; a re-registration from a new connection takes it over.
type Registration struct {
	DeviceID    string
	UserID      string
	AppUserID   string
	SessionID   string
	ConnectedAt time.Time
	LastSeen    time.Time
}

// Registry tracks registered devices by device id.
type Registry struct {
	mu      sync.Mutex
	devices map[string]*Registration
	logger  *zap.Logger
}

// NewRegistry creates an empty device registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		devices: make(map[string]*Registration),
		logger:  logger,
	}
}

// Register adds or refreshes a device registration, handing ownership of
// the entry to the given session.
func (r *Registry) Register(deviceID, userID, appUserID, sessionID string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.devices[deviceID]
	if !ok {
		reg = &Registration{DeviceID: deviceID, ConnectedAt: now}
		r.devices[deviceID] = reg
		r.logger.Info("Device registered",
			zap.String("device_id", deviceID),
			zap.String("app_user_id", appUserID),
		)
	}
	reg.UserID = userID
	reg.AppUserID = appUserID
	reg.SessionID = sessionID
	reg.LastSeen = now
}

// Touch advances a device's LastSeen. Unknown devices are ignored; a
// heartbeat can race a registration during reconnect.
func (r *Registry) Touch(deviceID string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg, ok := r.devices[deviceID]; ok {
		reg.LastSeen = now
	}
}

// Remove drops a device registration, but only while the given session
// still owns it. A connection's late cleanup must not evict the entry a
// reconnected device has already re-registered.
func (r *Registry) Remove(deviceID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg, ok := r.devices[deviceID]; ok && reg.SessionID == sessionID {
		delete(r.devices, deviceID)
	}
}

// Sweep evicts devices not seen within maxAge and returns how many were
// removed. Scheduled periodically by the server command.
func (r *Registry) Sweep(maxAge time.Duration, now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for deviceID, reg := range r.devices {
		if now.Sub(reg.LastSeen) > maxAge {
			delete(r.devices, deviceID)
			evicted++
			r.logger.Info("Evicted stale device",
				zap.String("device_id", deviceID),
				zap.Time("last_seen", reg.LastSeen),
			)
		}
	}
	return evicted
}

// Count returns the number of registered devices.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices)
}

// CountForAccount returns how many devices are registered for an account.
func (r *Registry) CountForAccount(appUserID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, reg := range r.devices {
		if reg.AppUserID == appUserID {
			n++
		}
	}
	return n
}

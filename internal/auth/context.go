package auth

import "context"

type contextKey string

const deviceKey contextKey = "authDevice"

// Device is the paired client a request is acting as.
type Device struct {
	ID   string
	Name string
	Type TokenType
}

// WithDevice stores the authenticated device in the context.
func WithDevice(ctx context.Context, device Device) context.Context {
	return context.WithValue(ctx, deviceKey, device)
}

// DeviceFromContext returns the authenticated device, if present.
func DeviceFromContext(ctx context.Context) (Device, bool) {
	device, ok := ctx.Value(deviceKey).(Device)
	return device, ok
}

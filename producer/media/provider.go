package media

import (
	"context"
)

// DeviceInfo describes one capture device.
type DeviceInfo struct {
	DeviceID string     `json:"deviceId"`
	GroupID  string     `json:"groupId,omitempty"`
	Kind     DeviceKind `json:"kind"`
	Label    string     `json:"label"`
}

// CaptureProvider acquires local tracks. GetUserMedia fails with
// ErrPermissionDenied or ErrNoDeviceAvailable, GetDisplayMedia returns a
// video track and optionally an audio track.
type CaptureProvider interface {
	EnumerateDevices(ctx context.Context) ([]DeviceInfo, error)
	GetUserMedia(ctx context.Context, constraints UserMediaConstraints) ([]Track, error)
	GetDisplayMedia(ctx context.Context, constraints DisplayMediaConstraints) ([]Track, error)
}

// FilterDevices returns the devices of the given kind.
func FilterDevices(devices []DeviceInfo, kind DeviceKind) []DeviceInfo {
	var ret []DeviceInfo

	for _, device := range devices {
		if device.Kind == kind {
			ret = append(ret, device)
		}
	}

	return ret
}

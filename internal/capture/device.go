package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrDeviceUnavailable signals that the capture device is missing or could
// not be acquired. It is not fatal: the controller falls back to the
// simulated device.
var ErrDeviceUnavailable = errors.New("capture device unavailable")

// Device is one exclusive frame source. Open acquires it, Frame samples one
// encoded JPEG, Close releases it.
type Device interface {
	Open(ctx context.Context) error
	Frame(ctx context.Context) ([]byte, error)
	Close() error
}

// SnapshotDevice samples frames from a camera's HTTP snapshot endpoint,
// which is how the kiosk webcams expose stills. Open probes the endpoint so
// acquisition failure is detected up front rather than mid-countdown.
type SnapshotDevice struct {
	url        string
	httpClient *http.Client
	open       bool
}

func NewSnapshotDevice(url string) *SnapshotDevice {
	return &SnapshotDevice{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (d *SnapshotDevice) Open(ctx context.Context) error {
	if d.url == "" {
		return ErrDeviceUnavailable
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, d.url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: snapshot endpoint returned status %d", ErrDeviceUnavailable, resp.StatusCode)
	}

	d.open = true
	return nil
}

func (d *SnapshotDevice) Frame(ctx context.Context) ([]byte, error) {
	if !d.open {
		return nil, ErrDeviceUnavailable
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch frame: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch frame: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}

	return data, nil
}

func (d *SnapshotDevice) Close() error {
	d.open = false
	return nil
}

// placeholderPNG is a 1x1 pixel image, the same stand-in the kiosk uses when
// the AI backend is mocked.
const placeholderPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNk+M9QDwADhgGAWjR9awAAAABJRU5ErkJggg=="

// SimulatedDevice is the deterministic fallback used when no camera is
// available. Open never fails and Frame always returns the same payload, so
// the rest of the flow can be exercised end to end without hardware.
type SimulatedDevice struct{}

func NewSimulatedDevice() *SimulatedDevice { return &SimulatedDevice{} }

func (d *SimulatedDevice) Open(_ context.Context) error { return nil }

func (d *SimulatedDevice) Frame(_ context.Context) ([]byte, error) {
	return base64.StdEncoding.DecodeString(placeholderPNG)
}

func (d *SimulatedDevice) Close() error { return nil }

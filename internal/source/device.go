package source

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/charliek/logdog/internal/constants"
	"github.com/charliek/logdog/internal/domain"
	"github.com/charliek/logdog/internal/observe"
)

// AdbExecutor runs a shell command and returns the first line of its
// standard output. It allows mocking adb in tests.
type AdbExecutor interface {
	FirstLine(ctx context.Context, cmd string) (string, error)
}

type shellExecutor struct{}

func (shellExecutor) FirstLine(ctx context.Context, cmd string) (string, error) {
	out, err := exec.CommandContext(ctx, "sh", "-c", cmd).Output()
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), err
}

// DeviceObserver is told when the device status changes
type DeviceObserver interface {
	DeviceChanged(status domain.DeviceStatus)
}

// DeviceMonitor polls adb for the attached device's state and kernel log mode.
type DeviceMonitor struct {
	exec     AdbExecutor
	interval time.Duration
	logger   *slog.Logger
	obs      observe.Hub[DeviceObserver]

	mu     sync.RWMutex
	status domain.DeviceStatus
}

// NewDeviceMonitor creates a monitor. A nil executor runs real adb
// commands; a zero interval uses the default.
func NewDeviceMonitor(executor AdbExecutor, interval time.Duration, logger *slog.Logger) *DeviceMonitor {
	if executor == nil {
		executor = shellExecutor{}
	}
	if interval <= 0 {
		interval = constants.DefaultDevicePollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DeviceMonitor{
		exec:     executor,
		interval: interval,
		logger:   logger,
		status: domain.DeviceStatus{
			State:     domain.DeviceStateUnknown,
			KernelLog: domain.KernelLogUnknown,
		},
	}
}

// Subscribe registers o for status changes
func (m *DeviceMonitor) Subscribe(o DeviceObserver) *observe.Subscription {
	return m.obs.Subscribe(o)
}

// Status returns the last polled status
func (m *DeviceMonitor) Status() domain.DeviceStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Run reports the initial status and then polls until ctx is done
func (m *DeviceMonitor) Run(ctx context.Context) {
	initial := m.Status()
	m.obs.Notify(func(o DeviceObserver) { o.DeviceChanged(initial) })

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Poll(ctx)
		}
	}
}

// Poll queries adb once and notifies observers if the status changed
func (m *DeviceMonitor) Poll(ctx context.Context) {
	next := domain.DeviceStatus{
		State:     m.deviceState(ctx),
		KernelLog: m.kernelLog(ctx),
	}

	m.mu.Lock()
	changed := next != m.status
	m.status = next
	m.mu.Unlock()

	if changed {
		m.logger.Info("device status changed", "state", next.State, "kernel_log", next.KernelLog)
		m.obs.Notify(func(o DeviceObserver) { o.DeviceChanged(next) })
	}
}

func (m *DeviceMonitor) deviceState(ctx context.Context) domain.DeviceState {
	line, err := m.exec.FirstLine(ctx, "adb -d get-state")
	if line == "" {
		if err != nil {
			m.logger.Debug("adb get-state failed", "error", err)
		}
		return domain.DeviceStateUnknown
	}
	if line == "device" {
		return domain.DeviceStateAvailable
	}
	return domain.DeviceStateNotAvailable
}

func (m *DeviceMonitor) kernelLog(ctx context.Context) domain.KernelLogMode {
	line, err := m.exec.FirstLine(ctx, "adb -d shell getprop sys.kernel.log")
	if err != nil && line == "" {
		m.logger.Debug("adb getprop failed", "error", err)
	}
	switch line {
	case "logcat":
		return domain.KernelLogLogcat
	case "default":
		return domain.KernelLogDefault
	default:
		return domain.KernelLogUnknown
	}
}


package source

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/charliek/logdog/internal/domain"
)

type fakeAdb struct {
	mu      sync.Mutex
	outputs map[string]string
	err     error
}

func (f *fakeAdb) set(cmd, out string) {
	f.mu.Lock()
	f.outputs[cmd] = out
	f.mu.Unlock()
}

func (f *fakeAdb) FirstLine(_ context.Context, cmd string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outputs[cmd], f.err
}

type statusLog struct {
	mu  sync.Mutex
	got []domain.DeviceStatus
}

func (s *statusLog) DeviceChanged(st domain.DeviceStatus) {
	s.mu.Lock()
	s.got = append(s.got, st)
	s.mu.Unlock()
}

func (s *statusLog) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func TestDeviceMonitor_Poll(t *testing.T) {
	adb := &fakeAdb{outputs: map[string]string{}}
	m := NewDeviceMonitor(adb, time.Hour, nil)
	log := &statusLog{}
	m.Subscribe(log)

	t.Run("starts unknown", func(t *testing.T) {
		assert.Equal(t, domain.DeviceStatus{State: domain.DeviceStateUnknown, KernelLog: domain.KernelLogUnknown}, m.Status())
	})

	t.Run("no output and no change is silent", func(t *testing.T) {
		m.Poll(context.Background())
		assert.Equal(t, 0, log.len())
	})

	t.Run("device appears", func(t *testing.T) {
		adb.set("adb -d get-state", "device")
		adb.set("adb -d shell getprop sys.kernel.log", "logcat")
		m.Poll(context.Background())

		assert.Equal(t, 1, log.len())
		assert.Equal(t, domain.DeviceStateAvailable, m.Status().State)
		assert.Equal(t, domain.KernelLogLogcat, m.Status().KernelLog)
	})

	t.Run("same status does not notify", func(t *testing.T) {
		m.Poll(context.Background())
		assert.Equal(t, 1, log.len())
	})

	t.Run("offline device", func(t *testing.T) {
		adb.set("adb -d get-state", "offline")
		adb.set("adb -d shell getprop sys.kernel.log", "default")
		m.Poll(context.Background())

		assert.Equal(t, 2, log.len())
		assert.Equal(t, domain.DeviceStateNotAvailable, m.Status().State)
		assert.Equal(t, domain.KernelLogDefault, m.Status().KernelLog)
	})

	t.Run("adb failure is unknown", func(t *testing.T) {
		adb.set("adb -d get-state", "")
		adb.set("adb -d shell getprop sys.kernel.log", "")
		adb.err = errors.New("adb: not found")
		m.Poll(context.Background())

		assert.Equal(t, domain.DeviceStateUnknown, m.Status().State)
	})
}

func TestDeviceMonitor_Run(t *testing.T) {
	adb := &fakeAdb{outputs: map[string]string{"adb -d get-state": "device"}}
	m := NewDeviceMonitor(adb, 10*time.Millisecond, nil)
	log := &statusLog{}
	m.Subscribe(log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return log.len() >= 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done
	assert.Equal(t, domain.DeviceStateAvailable, m.Status().State)
}

package systemd

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestGetListenersWithoutActivation(t *testing.T) {
	t.Setenv("LISTEN_PID", "")
	t.Setenv("LISTEN_FDS", "")

	listeners, err := GetListeners()
	if err != nil {
		t.Fatalf("GetListeners failed: %v", err)
	}
	if listeners.Activated || listeners.API != nil || listeners.Metrics != nil {
		t.Errorf("Expected no activated listeners, got %+v", listeners)
	}
}

func TestNotifyWithoutSocket(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")

	for _, fn := range []func() error{NotifyReady, NotifyReloading, NotifyStopping} {
		if err := fn(); err != nil {
			t.Errorf("Expected notify outside systemd to be a no-op, got %v", err)
		}
	}
}

func TestStartWatchdogDisabled(t *testing.T) {
	t.Setenv("WATCHDOG_USEC", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartWatchdog(ctx, zerolog.Nop())
}

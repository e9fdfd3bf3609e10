package discovery

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResponder struct {
	mu      sync.Mutex
	added   []string
	removed []string
	txt     []string
	port    uint16
	stopped bool
	addErr  error
}

func (f *fakeResponder) AddService(service, host string, port uint16, txt ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, service+"/"+host)
	f.txt = txt
	f.port = port
	return nil
}

func (f *fakeResponder) RemoveService(service, host string, port uint16, txt ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, service+"/"+host)
	return nil
}

func (f *fakeResponder) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func newTestAnnouncer(t *testing.T, fake *fakeResponder) *Announcer {
	t.Helper()
	a, err := NewAnnouncer(Config{
		Instance:    "OTA Server",
		Description: "OTA Update Server",
		Port:        8080,
		Hostname:    "builder",
	}, nil)
	require.NoError(t, err)
	a.newMD = func(string) (responder, error) { return fake, nil }
	return a
}

func TestBuildTXT(t *testing.T) {
	txt, err := BuildTXT("OTA Update Server")
	require.NoError(t, err)
	assert.Equal(t, []string{"version=1.0", "path=/version", "description=OTA Update Server"}, txt)
}

func TestBuildTXTTooLong(t *testing.T) {
	_, err := BuildTXT(strings.Repeat("x", 250))
	require.ErrorIs(t, err, ErrInvalidTXT)
}

func TestValidateTXT(t *testing.T) {
	require.NoError(t, ValidateTXT([]string{"a=", "b=c"}))
	require.ErrorIs(t, ValidateTXT([]string{"novalue"}), ErrInvalidTXT)
	require.ErrorIs(t, ValidateTXT([]string{"=value"}), ErrInvalidTXT)
}

func TestNewAnnouncerValidation(t *testing.T) {
	_, err := NewAnnouncer(Config{Instance: "OTA Server"}, nil)
	require.ErrorIs(t, err, ErrInvalidPort)

	_, err = NewAnnouncer(Config{Port: 8080}, nil)
	require.ErrorIs(t, err, ErrInvalidInstance)

	_, err = NewAnnouncer(Config{Instance: "ota.example", Port: 8080}, nil)
	require.ErrorIs(t, err, ErrInvalidInstance)
}

func TestValidateInstance(t *testing.T) {
	require.NoError(t, ValidateInstance("OTA Server"))

	for _, name := range []string{"", "  ", "a.b", strings.Repeat("x", 64)} {
		require.ErrorIs(t, ValidateInstance(name), ErrInvalidInstance, name)
	}
}

func TestValidateTXTRecordTooLarge(t *testing.T) {
	var txt []string
	for i := range 6 {
		txt = append(txt, string(rune('a'+i))+"="+strings.Repeat("x", 250))
	}
	require.ErrorIs(t, ValidateTXT(txt), ErrInvalidTXT)
	require.NoError(t, ValidateTXT(txt[:4]))
}

func TestAnnouncerLifecycle(t *testing.T) {
	fake := &fakeResponder{}
	a := newTestAnnouncer(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, <-a.Start(ctx))

	fake.mu.Lock()
	assert.Equal(t, []string{"ota/OTA Server"}, fake.added)
	assert.Equal(t, uint16(8080), fake.port)
	assert.Equal(t, a.TXT(), fake.txt)
	fake.mu.Unlock()

	a.Stop()
	a.Stop()

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, []string{"ota/OTA Server"}, fake.removed)
	assert.True(t, fake.stopped)
}

func TestAnnouncerStopsOnCancel(t *testing.T) {
	fake := &fakeResponder{}
	a := newTestAnnouncer(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, <-a.Start(ctx))
	cancel()

	require.Eventually(t, func() bool {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		return fake.stopped
	}, time.Second, 10*time.Millisecond)
}

func TestAnnouncerRegistrationFailure(t *testing.T) {
	fake := &fakeResponder{addErr: errors.New("boom")}
	a := newTestAnnouncer(t, fake)

	err := <-a.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	a.Stop()

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.True(t, fake.stopped)
	assert.Empty(t, fake.removed)
}

func TestAnnouncerStartTwice(t *testing.T) {
	a := newTestAnnouncer(t, &fakeResponder{})
	defer a.Stop()

	require.NoError(t, <-a.Start(context.Background()))
	require.ErrorIs(t, <-a.Start(context.Background()), ErrAlreadyStarted)
}

// hangingResponder never returns from Stop until released, like a
// responder whose main loop has already exited.
type hangingResponder struct {
	fakeResponder
	release chan struct{}
}

func (h *hangingResponder) Stop() {
	<-h.release
}

func newHangingAnnouncer(t *testing.T) *Announcer {
	t.Helper()
	hanging := &hangingResponder{release: make(chan struct{})}
	t.Cleanup(func() { close(hanging.release) })

	a, err := NewAnnouncer(Config{Instance: "OTA Server", Port: 8080, Hostname: "builder"}, nil)
	require.NoError(t, err)
	a.newMD = func(string) (responder, error) { return hanging, nil }
	a.stopTimeout = 50 * time.Millisecond
	return a
}

func TestAnnouncerStopDoesNotHang(t *testing.T) {
	a := newHangingAnnouncer(t)
	require.NoError(t, <-a.Start(context.Background()))

	stopped := make(chan struct{})
	go func() {
		a.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on the responder")
	}
}

func TestAnnouncerCancelThenStopDoesNotHang(t *testing.T) {
	a := newHangingAnnouncer(t)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, <-a.Start(ctx))
	cancel()

	stopped := make(chan struct{})
	go func() {
		a.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked after ctx was cancelled")
	}
}

func TestStopWithin(t *testing.T) {
	assert.True(t, stopWithin(func() {}, time.Second))

	block := make(chan struct{})
	defer close(block)
	assert.False(t, stopWithin(func() { <-block }, 10*time.Millisecond))
}

// Package discovery advertises the OTA server on the local network over
// mDNS/DNS-SD and finds other advertised servers.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
	mdns "github.com/vanadium/go-mdns-sd"
)

const (
	// Service is the DNS-SD service name, advertised as _ota._tcp.local.
	Service = "ota"

	// ProtocolVersion is advertised in the version TXT attribute.
	ProtocolVersion = "1.0"

	// VersionPath is advertised in the path TXT attribute.
	VersionPath = "/version"

	maxTXTEntry = 255

	// maxTXTRecord keeps the whole TXT record inside one mDNS packet.
	maxTXTRecord = 1300

	defaultStopTimeout = 2 * time.Second
)

// ServiceFQDN is the fully qualified service type browsed for.
const ServiceFQDN = "_" + Service + "._tcp.local."

var (
	// ErrInvalidTXT is returned for TXT attributes that cannot be encoded.
	ErrInvalidTXT = errors.New("invalid txt record")

	// ErrInvalidInstance is returned for instance names that are not a
	// single DNS label.
	ErrInvalidInstance = errors.New("invalid instance name")

	// ErrInvalidPort is returned when no port is given to advertise.
	ErrInvalidPort = errors.New("invalid port")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("announcer already started")
)

// Config describes what to advertise.
type Config struct {
	// Instance is the DNS-SD instance name, e.g. "OTA Server".
	Instance    string
	Description string
	Port        uint16
	// Hostname defaults to the system host name.
	Hostname string
}

// responder is the subset of the mDNS responder the announcer drives.
type responder interface {
	AddService(service, host string, port uint16, txt ...string) error
	RemoveService(service, host string, port uint16, txt ...string) error
	Stop()
}

type responderFactory func(hostname string) (responder, error)

// Announcer registers the service once and withdraws it on stop.
type Announcer struct {
	cfg    Config
	txt    []string
	logger *slog.Logger
	newMD  responderFactory
	// stopTimeout bounds how long withdrawal waits on the responder.
	stopTimeout time.Duration

	mu      sync.Mutex
	started bool
	stop    chan struct{}
	done    chan struct{}
}

// NewAnnouncer validates cfg and builds the TXT attributes.
func NewAnnouncer(cfg Config, logger *slog.Logger) (*Announcer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Port == 0 {
		return nil, ErrInvalidPort
	}
	if err := ValidateInstance(cfg.Instance); err != nil {
		return nil, err
	}

	txt, err := BuildTXT(cfg.Description)
	if err != nil {
		return nil, err
	}

	if cfg.Hostname == "" {
		if h, err := os.Hostname(); err == nil {
			cfg.Hostname = h
		}
	}

	return &Announcer{
		cfg:    cfg,
		txt:    txt,
		logger: logger,
		newMD:  newMDNSResponder,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),

		stopTimeout: defaultStopTimeout,
	}, nil
}

// TXT returns the advertised attributes.
func (a *Announcer) TXT() []string {
	return append([]string(nil), a.txt...)
}

// Start registers the service in the background. The returned channel yields
// exactly one value: nil once the records are registered, or the failure.
// After a successful registration the records stay up until ctx is
// cancelled or Stop is called.
func (a *Announcer) Start(ctx context.Context) <-chan error {
	result := make(chan error, 1)

	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		result <- ErrAlreadyStarted
		close(result)
		return result
	}
	a.started = true
	a.mu.Unlock()

	go a.run(ctx, result)
	return result
}

func (a *Announcer) run(ctx context.Context, result chan<- error) {
	defer close(a.done)

	a.logger.InfoContext(ctx, "registering mdns service",
		"service", ServiceFQDN,
		"instance", a.cfg.Instance,
		"port", a.cfg.Port)

	md, err := a.newMD(a.cfg.Hostname)
	if err != nil {
		result <- fmt.Errorf("create mdns responder: %w", err)
		close(result)
		return
	}

	if err := md.AddService(Service, a.cfg.Instance, a.cfg.Port, a.txt...); err != nil {
		a.stopResponder(md.Stop)
		result <- fmt.Errorf("register mdns service: %w", err)
		close(result)
		return
	}

	a.logger.InfoContext(ctx, "mdns service registered", "instance", a.cfg.Instance)
	result <- nil
	close(result)

	select {
	case <-ctx.Done():
	case <-a.stop:
	}

	a.stopResponder(func() {
		if err := md.RemoveService(Service, a.cfg.Instance, a.cfg.Port, a.txt...); err != nil {
			a.logger.Warn("failed to withdraw mdns service", "error", err)
		}
		md.Stop()
	})
	a.logger.Info("mdns service stopped", "instance", a.cfg.Instance)
}

func (a *Announcer) stopResponder(stop func()) {
	if !stopWithin(stop, a.stopTimeout) {
		a.logger.Warn("mdns responder did not stop in time, abandoning it", "timeout", a.stopTimeout)
	}
}

// stopWithin runs stop in the background and waits at most timeout for it.
// The responder's Stop can block forever once its main loop has exited, so
// shutdown never waits on it unbounded.
func stopWithin(stop func(), timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		defer close(done)
		stop()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// Stop withdraws the records and waits for the responder to shut down, at
// most the stop timeout. It is safe to call more than once, and before Start.
func (a *Announcer) Stop() {
	a.mu.Lock()
	started := a.started
	select {
	case <-a.stop:
	default:
		close(a.stop)
	}
	a.mu.Unlock()

	if started {
		<-a.done
	}
}

// BuildTXT returns the advertised TXT attributes in key=value form.
func BuildTXT(description string) ([]string, error) {
	txt := []string{
		"version=" + ProtocolVersion,
		"path=" + VersionPath,
		"description=" + description,
	}
	if err := ValidateTXT(txt); err != nil {
		return nil, err
	}
	return txt, nil
}

// ValidateTXT checks that every entry is a non-empty key=value pair that fits
// in a single TXT character-string, and that the record fits in one packet.
func ValidateTXT(txt []string) error {
	for _, entry := range txt {
		key, _, ok := strings.Cut(entry, "=")
		switch {
		case !ok || key == "":
			return fmt.Errorf("%w: %q is not key=value", ErrInvalidTXT, entry)
		case len(entry) > maxTXTEntry:
			return fmt.Errorf("%w: %s exceeds %d bytes", ErrInvalidTXT, key, maxTXTEntry)
		}
	}

	rr := &dns.TXT{
		Hdr: dns.RR_Header{Name: ServiceFQDN, Rrtype: dns.TypeTXT, Class: dns.ClassINET},
		Txt: txt,
	}
	if n := dns.Len(rr); n > maxTXTRecord {
		return fmt.Errorf("%w: record is %d bytes, limit %d", ErrInvalidTXT, n, maxTXTRecord)
	}
	return nil
}

// ValidateInstance checks that instance forms exactly one label in front of
// the service name.
func ValidateInstance(instance string) error {
	if strings.TrimSpace(instance) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidInstance)
	}
	labels, ok := dns.IsDomainName(instance + "." + ServiceFQDN)
	if !ok || labels != dns.CountLabel(ServiceFQDN)+1 {
		return fmt.Errorf("%w: %q", ErrInvalidInstance, instance)
	}
	return nil
}

// newMDNSResponder creates a responder for hostname. A taken name is retried
// once with a suffix the library expands to the hardware address.
func newMDNSResponder(hostname string) (responder, error) {
	switch {
	case hostname == "":
		hostname = "ota()"
	case hostname == "localhost":
		hostname += "()"
	}

	m, err := mdns.NewMDNS(hostname, "", "", false, 0)
	if err != nil && !strings.HasSuffix(hostname, "()") {
		m, err = mdns.NewMDNS(hostname+"()", "", "", false, 0)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

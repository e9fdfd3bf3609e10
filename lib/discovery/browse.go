package discovery

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"slices"
	"strings"
	"time"

	mdns "github.com/vanadium/go-mdns-sd"
	mdnsdns "github.com/vanadium/go-mdns-sd/go_dns"
)

// browseInterval is how often Browse re-asks the network and re-reads the
// responder cache.
const browseInterval = 500 * time.Millisecond

// Server is one advertised OTA server found by Browse.
type Server struct {
	Instance string
	Host     string
	Port     uint16
	Addrs    []net.IP
	TXT      map[string]string
}

// Address returns host:port, preferring a resolved IPv4 address.
func (s Server) Address() string {
	host := strings.TrimSuffix(s.Host, ".")
	for _, ip := range s.Addrs {
		if ip.To4() != nil {
			host = ip.String()
			break
		}
	}
	return net.JoinHostPort(host, fmt.Sprint(s.Port))
}

// browser is the subset of the mDNS responder Browse drives.
type browser interface {
	SubscribeToService(service string)
	ServiceDiscovery(service string) []mdns.ServiceInstance
	ResolveAddress(dn string) ([]net.IP, uint32)
	Stop()
}

var newBrowser = func() (browser, error) {
	// No host name: the responder only listens and never answers questions.
	md, err := mdns.NewMDNS("", "", "", false, 0)
	if err != nil {
		return nil, err
	}
	return md, nil
}

// Browse subscribes to the OTA service and collects the instances that
// answer until timeout elapses. Cancelling ctx aborts the browse.
func Browse(ctx context.Context, timeout time.Duration) ([]Server, error) {
	md, err := newBrowser()
	if err != nil {
		return nil, fmt.Errorf("create mdns browser: %w", err)
	}
	defer stopWithin(md.Stop, defaultStopTimeout)

	return browse(ctx, md, timeout)
}

func browse(ctx context.Context, md browser, timeout time.Duration) ([]Server, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(browseInterval)
	defer ticker.Stop()

	found := map[string]mdns.ServiceInstance{}
	discover := func() {
		for _, si := range md.ServiceDiscovery(Service) {
			found[si.Name] = si
		}
	}

	md.SubscribeToService(Service)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			discover()
			// Repeat the question for responders that missed it.
			md.SubscribeToService(Service)
		case <-deadline.C:
			discover()
			instances := make([]mdns.ServiceInstance, 0, len(found))
			for _, si := range found {
				instances = append(instances, si)
			}
			return collect(instances, func(host string) []net.IP {
				ips, _ := md.ResolveAddress(host)
				return ips
			}), nil
		}
	}
}

// collect turns resolved instances into servers sorted by instance name.
// Instances without an SRV record are skipped.
func collect(instances []mdns.ServiceInstance, resolve func(host string) []net.IP) []Server {
	servers := make([]Server, 0, len(instances))
	for _, si := range instances {
		if len(si.SrvRRs) == 0 {
			continue
		}

		srvs := slices.Clone(si.SrvRRs)
		slices.SortFunc(srvs, func(a, b *mdnsdns.RR_SRV) int {
			return strings.Compare(a.Target, b.Target)
		})
		srv := srvs[0]

		var txt []string
		for _, rr := range si.TxtRRs {
			txt = append(txt, rr.Txt...)
		}

		var addrs []net.IP
		for _, ip := range resolve(srv.Target) {
			addrs = appendIP(addrs, ip)
		}
		slices.SortFunc(addrs, compareIP)

		servers = append(servers, Server{
			Instance: instanceName(si.Name),
			Host:     srv.Target,
			Port:     srv.Port,
			Addrs:    addrs,
			TXT:      parseTXT(txt),
		})
	}

	slices.SortFunc(servers, func(a, b Server) int {
		return strings.Compare(a.Instance, b.Instance)
	})
	return servers
}

func appendIP(ips []net.IP, ip net.IP) []net.IP {
	for _, existing := range ips {
		if existing.Equal(ip) {
			return ips
		}
	}
	return append(ips, ip)
}

// compareIP orders IPv4 addresses before IPv6 ones.
func compareIP(a, b net.IP) int {
	a4, b4 := a.To4(), b.To4()
	switch {
	case a4 != nil && b4 == nil:
		return -1
	case a4 == nil && b4 != nil:
		return 1
	case a4 != nil:
		return bytes.Compare(a4, b4)
	}
	return bytes.Compare(a.To16(), b.To16())
}

// instanceName strips the service suffix and DNS escaping from an instance name.
func instanceName(fqdn string) string {
	name := fqdn
	if len(name) > len(ServiceFQDN) && strings.EqualFold(name[len(name)-len(ServiceFQDN):], ServiceFQDN) {
		name = name[:len(name)-len(ServiceFQDN)-1]
	}

	var b strings.Builder
	for i := 0; i < len(name); i++ {
		if name[i] == '\\' && i+1 < len(name) {
			i++
		}
		b.WriteByte(name[i])
	}
	return b.String()
}

func parseTXT(entries []string) map[string]string {
	attrs := make(map[string]string, len(entries))
	for _, entry := range entries {
		key, value, _ := strings.Cut(entry, "=")
		if key == "" {
			continue
		}
		if _, seen := attrs[key]; !seen {
			attrs[key] = value
		}
	}
	return attrs
}

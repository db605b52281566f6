package net

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

const serviceType = "_emojiart._tcp"

// Host is a share server found on the local network.
type Host struct {
	Name    string
	Addr    string // host:port
	Session string
}

// Link is the share link for h.
func (h Host) Link() string { return Scheme + h.Addr }

// Advertise announces a share server on the local network until the
// returned server is shut down.
func Advertise(name string, port int, session string) (*mdns.Server, error) {
	info := []string{"EmojiArt", "session=" + session}

	service, err := mdns.NewMDNSService(
		name,        // instance, shown to browsing viewers
		serviceType, // _emojiart._tcp
		"",          // .local
		"",          // OS host name
		port,
		nil, // all interface addresses
		info,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}
	return server, nil
}

// Browse looks for share servers for timeout and calls found for each.
func Browse(timeout time.Duration, found func(Host)) error {
	entries := make(chan *mdns.ServiceEntry, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range entries {
			if e.AddrV4 == nil || e.Port == 0 {
				continue
			}
			found(hostFromEntry(e))
		}
	}()

	params := mdns.DefaultParams(serviceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true
	err := mdns.Query(params)
	close(entries)
	<-done
	return err
}

func hostFromEntry(e *mdns.ServiceEntry) Host {
	h := Host{
		Name: strings.TrimSuffix(e.Name, "."+serviceType+".local."),
		Addr: net.JoinHostPort(e.AddrV4.String(), fmt.Sprint(e.Port)),
	}
	for _, f := range e.InfoFields {
		if v, ok := strings.CutPrefix(f, "session="); ok {
			h.Session = v
		}
	}
	return h
}

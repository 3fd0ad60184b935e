// ABOUTME: Tests for mDNS discovery
// ABOUTME: Tests entry parsing, defaults and browse cancellation
package discovery

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/hashicorp/mdns"
)

func TestNewManagerDefaults(t *testing.T) {
	mgr := NewManager(Config{ServiceName: "Test Backend", Port: 8000})
	defer mgr.Stop()

	if mgr.config.Path != DefaultPath {
		t.Errorf("expected default path %s, got %s", DefaultPath, mgr.config.Path)
	}
	if mgr.config.Timeout != 3*time.Second {
		t.Errorf("expected 3s timeout, got %v", mgr.config.Timeout)
	}
}

func TestServerFromEntry(t *testing.T) {
	tests := []struct {
		name  string
		entry *mdns.ServiceEntry
		want  *ServerInfo
	}{
		{
			name: "ipv4 with path",
			entry: &mdns.ServiceEntry{
				Name:       "Kitchen._voicechat._tcp.local.",
				AddrV4:     net.ParseIP("192.168.1.20"),
				Port:       8000,
				InfoFields: []string{"path=/chat/"},
			},
			want: &ServerInfo{Name: "Kitchen", Host: "192.168.1.20", Port: 8000, Path: "/chat/"},
		},
		{
			name: "default path",
			entry: &mdns.ServiceEntry{
				Name:   "Desk._voicechat._tcp.local.",
				AddrV4: net.ParseIP("10.0.0.5"),
				Port:   9000,
			},
			want: &ServerInfo{Name: "Desk", Host: "10.0.0.5", Port: 9000, Path: DefaultPath},
		},
		{
			name: "host fallback",
			entry: &mdns.ServiceEntry{
				Name: "Lab._voicechat._tcp.local.",
				Host: "lab.local.",
				Port: 8000,
			},
			want: &ServerInfo{Name: "Lab", Host: "lab.local", Port: 8000, Path: DefaultPath},
		},
		{
			name: "other service",
			entry: &mdns.ServiceEntry{
				Name:   "Printer._ipp._tcp.local.",
				AddrV4: net.ParseIP("10.0.0.9"),
				Port:   631,
			},
			want: nil,
		},
		{
			name: "missing port",
			entry: &mdns.ServiceEntry{
				Name:   "Broken._voicechat._tcp.local.",
				AddrV4: net.ParseIP("10.0.0.9"),
			},
			want: nil,
		},
		{name: "nil entry", entry: nil, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := serverFromEntry(tt.entry)
			if tt.want == nil {
				if got != nil {
					t.Errorf("expected nil, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("expected server, got nil")
			}
			if *got != *tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestServerAddress(t *testing.T) {
	s := &ServerInfo{Host: "192.168.1.20", Port: 8000}
	if got := s.Address(); got != "192.168.1.20:8000" {
		t.Errorf("expected 192.168.1.20:8000, got %s", got)
	}

	v6 := &ServerInfo{Host: "fe80::1", Port: 8000}
	if got := v6.Address(); got != "[fe80::1]:8000" {
		t.Errorf("expected bracketed IPv6 address, got %s", got)
	}
}

func TestCollectForwardsServers(t *testing.T) {
	mgr := NewManager(Config{})
	defer mgr.Stop()

	entries := make(chan *mdns.ServiceEntry, 2)
	entries <- &mdns.ServiceEntry{Name: "Noise._other._tcp.local."}
	entries <- &mdns.ServiceEntry{
		Name:   "Desk._voicechat._tcp.local.",
		AddrV4: net.ParseIP("10.0.0.5"),
		Port:   8000,
	}
	close(entries)

	mgr.collect(entries)

	select {
	case s := <-mgr.Servers():
		if s.Name != "Desk" {
			t.Errorf("expected Desk, got %s", s.Name)
		}
	default:
		t.Fatal("expected a server on the channel")
	}

	select {
	case s := <-mgr.Servers():
		t.Errorf("unexpected extra server %+v", s)
	default:
	}
}

func TestFindServerStopped(t *testing.T) {
	mgr := NewManager(Config{Timeout: 50 * time.Millisecond})
	mgr.Stop()

	_, err := mgr.FindServer(context.Background())
	if !errors.Is(err, ErrNoServer) {
		t.Errorf("expected ErrNoServer, got %v", err)
	}
}

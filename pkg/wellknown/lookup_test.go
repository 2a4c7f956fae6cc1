package wellknown

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEmbeddedTables(t *testing.T) {
	// The embedded tables must be populated without any external file.
	l := mustLoad(t)
	protocols, ports, types, codes := l.Sizes()
	if protocols <= 10 || ports <= 50 || types <= 10 || codes <= 10 {
		t.Fatalf("embedded tables look truncated: protocols=%d ports=%d types=%d codes=%d", protocols, ports, types, codes)
	}
	if l.Defaults() == nil {
		t.Fatalf("expected predefined applications to be loaded")
	}
	if len(l.Defaults().FindAll("applications/application")) == 0 {
		t.Fatalf("expected predefined applications document to list applications")
	}
}

func TestNormalizeProtocol(t *testing.T) {
	// Names are lowercased and numbers map back to their names.
	l := mustLoad(t)
	tests := []struct {
		token string
		want  string
		known bool
	}{
		{"tcp", "tcp", true},
		{"TCP", "tcp", true},
		{"6", "tcp", true},
		{"17", "udp", true},
		{"132", "sctp", true},
		{"bogus", "bogus", false},
		{"250", "250", false},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, ok := l.NormalizeProtocol(tt.token)
			if got != tt.want || ok != tt.known {
				t.Errorf("NormalizeProtocol(%q) = %q, %v; want %q, %v", tt.token, got, ok, tt.want, tt.known)
			}
		})
	}
}

func TestResolvePort(t *testing.T) {
	// Named ports, numbers and ranges resolve to numeric text.
	l := mustLoad(t)
	tests := []struct {
		token string
		want  string
		ok    bool
	}{
		{"443", "443", true},
		{"https", "443", true},
		{"ftp-data", "20", true},
		{"1024-65535", "1024-65535", true},
		{"http-8080", "80-8080", true},
		{"70000", "", false},
		{"no-such-port", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, ok := l.ResolvePort(tt.token)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ResolvePort(%q) = %q, %v; want %q, %v", tt.token, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestICMPLookups(t *testing.T) {
	// ICMP types and codes accept names and numbers.
	l := mustLoad(t)
	if n, ok := l.ICMPType("echo-request"); !ok || n != 8 {
		t.Errorf("ICMPType(echo-request) = %d, %v; want 8, true", n, ok)
	}
	if n, ok := l.ICMPType("13"); !ok || n != 13 {
		t.Errorf("ICMPType(13) = %d, %v; want 13, true", n, ok)
	}
	if n, ok := l.ICMPCode("port-unreachable"); !ok || n != 3 {
		t.Errorf("ICMPCode(port-unreachable) = %d, %v; want 3, true", n, ok)
	}
	if _, ok := l.ICMPType("not-a-type"); ok {
		t.Errorf("expected unknown ICMP type to return ok=false")
	}
}

func TestLoadFilesMissingSourceIsFatal(t *testing.T) {
	// A missing override file must fail loading instead of falling back.
	if _, err := LoadFiles(Sources{Protocols: "/nonexistent/protocols.csv"}); !errors.Is(err, ErrReferenceData) {
		t.Errorf("expected ErrReferenceData for missing protocols file, got %v", err)
	}
	if _, err := LoadFiles(Sources{Defaults: "/nonexistent/defaults.xml"}); !errors.Is(err, ErrReferenceData) {
		t.Errorf("expected ErrReferenceData for missing defaults file, got %v", err)
	}
}

func TestLoadFilesOverridesEmbeddedData(t *testing.T) {
	// An override replaces the embedded table entirely; an empty one is rejected.
	dir := t.TempDir()
	protocols := writeFile(t, dir, "protocols.csv", "kind,name,number\nprotocol,tcp,6\nport,custom-svc,9999\n")
	empty := writeFile(t, dir, "icmp.csv", "kind,name,number\n")

	if _, err := LoadFiles(Sources{Protocols: protocols, ICMP: empty}); !errors.Is(err, ErrReferenceData) {
		t.Fatalf("expected empty icmp table to be rejected, got %v", err)
	}

	l, err := LoadFiles(Sources{Protocols: protocols})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, ok := l.ResolvePort("custom-svc"); !ok || got != "9999" {
		t.Errorf("ResolvePort(custom-svc) = %q, %v; want 9999, true", got, ok)
	}
	if _, ok := l.ResolvePort("https"); ok {
		t.Errorf("expected embedded port names to be replaced by the override")
	}
}

func mustLoad(t *testing.T) *Lookup {
	// Helper loads the embedded tables once per test.
	t.Helper()
	l, err := Load()
	if err != nil {
		t.Fatalf("failed to load embedded reference data: %v", err)
	}
	return l
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

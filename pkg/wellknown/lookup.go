// Package wellknown holds the reference tables that translate Junos protocol,
// port and ICMP names to numbers, and the predefined junos-* application
// definitions. A Lookup is built once by an explicit Load call and is
// read-only afterwards.
package wellknown

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	_ "embed"

	"srx-config-parser/internal/xmldoc"
)

//go:embed protocols.csv
var protocolsData string

//go:embed icmp.csv
var icmpData string

//go:embed junos_defaults.xml
var defaultsData string

// ErrReferenceData wraps every failure to obtain a reference table.
var ErrReferenceData = errors.New("reference data unavailable")

// ICMPAnyType is the sentinel icmp-type meaning "generic icmp, type unspecified".
const ICMPAnyType = 99

type Lookup struct {
	protocols     map[string]int
	protocolNames map[int]string
	ports         map[string]int
	icmpTypes     map[string]int
	icmpCodes     map[string]int
	defaults      *xmldoc.Node
}

// Sources names files that replace the embedded reference data. Empty fields
// keep the embedded copy.
type Sources struct {
	Protocols string
	ICMP      string
	Defaults  string
}

// Load builds a Lookup from the embedded reference data.
func Load() (*Lookup, error) {
	return LoadFiles(Sources{})
}

// LoadFiles builds a Lookup, reading each table from disk when a path is set.
func LoadFiles(src Sources) (*Lookup, error) {
	protocols, err := openSource(src.Protocols, protocolsData)
	if err != nil {
		return nil, err
	}
	defer protocols.Close()
	icmp, err := openSource(src.ICMP, icmpData)
	if err != nil {
		return nil, err
	}
	defer icmp.Close()

	l := newLookup()
	if err := l.readTable(protocols, l.addProtocolEntry); err != nil {
		return nil, fmt.Errorf("%w: protocols table: %v", ErrReferenceData, err)
	}
	if err := l.readTable(icmp, l.addICMPEntry); err != nil {
		return nil, fmt.Errorf("%w: icmp table: %v", ErrReferenceData, err)
	}
	if err := l.loadDefaults(src.Defaults); err != nil {
		return nil, err
	}
	return l, nil
}

func newLookup() *Lookup {
	return &Lookup{
		protocols:     make(map[string]int),
		protocolNames: make(map[int]string),
		ports:         make(map[string]int),
		icmpTypes:     make(map[string]int),
		icmpCodes:     make(map[string]int),
	}
}

func openSource(path, embedded string) (io.ReadCloser, error) {
	if path == "" {
		return io.NopCloser(bytes.NewBufferString(embedded)), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReferenceData, err)
	}
	return f, nil
}

func (l *Lookup) loadDefaults(path string) error {
	src, err := openSource(path, defaultsData)
	if err != nil {
		return err
	}
	defer src.Close()
	root, err := xmldoc.Parse(src)
	if err != nil {
		return fmt.Errorf("%w: default applications: %v", ErrReferenceData, err)
	}
	l.defaults = root
	return nil
}

func (l *Lookup) readTable(r io.Reader, add func(kind, name string, number int) error) error {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	// Skip header
	if _, err := reader.Read(); err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if len(record) < 3 {
			continue
		}
		number, err := strconv.Atoi(strings.TrimSpace(record[2]))
		if err != nil {
			continue // Skip if number is not valid
		}
		if err := add(strings.TrimSpace(record[0]), strings.TrimSpace(record[1]), number); err != nil {
			return err
		}
		rows++
	}
	if rows == 0 {
		return errors.New("table is empty")
	}
	return nil
}

func (l *Lookup) addProtocolEntry(kind, name string, number int) error {
	name = strings.ToLower(name)
	switch kind {
	case "protocol":
		l.protocols[name] = number
		if _, ok := l.protocolNames[number]; !ok {
			l.protocolNames[number] = name
		}
	case "port":
		l.ports[name] = number
	default:
		return fmt.Errorf("unknown protocol table kind %q", kind)
	}
	return nil
}

func (l *Lookup) addICMPEntry(kind, name string, number int) error {
	name = strings.ToLower(name)
	switch kind {
	case "type":
		l.icmpTypes[name] = number
	case "code":
		l.icmpCodes[name] = number
	default:
		return fmt.Errorf("unknown icmp table kind %q", kind)
	}
	return nil
}

// NormalizeProtocol maps a protocol token (name or number) to its canonical
// name. Numbers without a known name are returned unchanged.
func (l *Lookup) NormalizeProtocol(token string) (string, bool) {
	token = strings.ToLower(strings.TrimSpace(token))
	if _, ok := l.protocols[token]; ok {
		return token, true
	}
	if n, err := strconv.Atoi(token); err == nil {
		if name, ok := l.protocolNames[n]; ok {
			return name, true
		}
	}
	return token, false
}

func (l *Lookup) ProtocolNumber(name string) (int, bool) {
	n, ok := l.protocols[strings.ToLower(name)]
	return n, ok
}

// ResolvePort turns a Junos port token ("443", "https", "1024-65535",
// "http-https") into its numeric form.
func (l *Lookup) ResolvePort(token string) (string, bool) {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return "", false
	}
	if low, high, isRange := strings.Cut(token, "-"); isRange {
		if n, ok := l.portNumber(low); ok {
			if m, ok := l.portNumber(high); ok && n <= m {
				return fmt.Sprintf("%d-%d", n, m), true
			}
		}
		// Names such as ftp-data contain a dash themselves.
	}
	n, ok := l.portNumber(token)
	if !ok {
		return "", false
	}
	return strconv.Itoa(n), true
}

func (l *Lookup) portNumber(token string) (int, bool) {
	if n, err := strconv.Atoi(token); err == nil {
		return n, n >= 0 && n <= 65535
	}
	n, ok := l.ports[token]
	return n, ok
}

// ICMPType resolves an icmp-type name or number.
func (l *Lookup) ICMPType(token string) (int, bool) {
	return resolveICMP(l.icmpTypes, token)
}

// ICMPCode resolves an icmp-code name or number.
func (l *Lookup) ICMPCode(token string) (int, bool) {
	return resolveICMP(l.icmpCodes, token)
}

func resolveICMP(table map[string]int, token string) (int, bool) {
	token = strings.ToLower(strings.TrimSpace(token))
	if n, err := strconv.Atoi(token); err == nil {
		return n, n >= 0 && n <= 255
	}
	n, ok := table[token]
	return n, ok
}

// Defaults returns the root of the predefined applications document.
func (l *Lookup) Defaults() *xmldoc.Node {
	return l.defaults
}

// Sizes reports table sizes for logging.
func (l *Lookup) Sizes() (protocols, ports, icmpTypes, icmpCodes int) {
	return len(l.protocols), len(l.ports), len(l.icmpTypes), len(l.icmpCodes)
}

package parser

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/August26/proxytest-go/internal/model"
)

// DefaultPort is used when a spec has no port.
const DefaultPort = 8080

var schemes = map[string]bool{
	"http":   true,
	"https":  true,
	"socks5": true,
}

// InvalidSpecError reports a proxy spec that cannot be expanded.
type InvalidSpecError struct {
	Spec   string
	Line   int // 1-based line in an input file, 0 for command-line specs
	Reason string
}

func (e *InvalidSpecError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("invalid proxy %q on line %d: %s", e.Spec, e.Line, e.Reason)
	}
	return fmt.Sprintf("invalid proxy %q: %s", e.Spec, e.Reason)
}

// LoadFromFile reads proxy specs from a file, one per line.
// Empty lines and lines starting with '#' are ignored. Every line is parsed
// so a bad entry fails the load instead of being skipped.
func LoadFromFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, err := ParseSpec(line); err != nil {
			if ise, ok := err.(*InvalidSpecError); ok {
				ise.Line = lineNo
			}
			return nil, err
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan input file: %w", err)
	}
	return out, nil
}

// MaxTargets bounds the size of an expanded target list.
const MaxTargets = 100000

// Expand turns specs into concrete targets, preserving input order and
// expanding port ranges in ascending order.
func Expand(specs []string) ([]*model.ProxyTarget, error) {
	parsed := make([]model.ProxySpec, 0, len(specs))
	total := 0
	for _, raw := range specs {
		spec, err := ParseSpec(raw)
		if err != nil {
			return nil, err
		}
		total += spec.Count()
		if total > MaxTargets {
			return nil, &InvalidSpecError{Spec: raw, Reason: fmt.Sprintf("expands past %d targets", MaxTargets)}
		}
		parsed = append(parsed, spec)
	}

	out := make([]*model.ProxyTarget, 0, total)
	for _, spec := range parsed {
		if spec.Direct {
			out = append(out, &model.ProxyTarget{ID: len(out), Direct: true})
			continue
		}
		for port := spec.StartPort; port <= spec.EndPort; port++ {
			out = append(out, &model.ProxyTarget{
				ID:       len(out),
				Scheme:   spec.Scheme,
				Host:     spec.Host,
				Port:     port,
				Username: spec.Username,
				Password: spec.Password,
			})
		}
	}
	return out, nil
}

// ParseSpec parses a single proxy spec.
//
// Supported:
//
//	host
//	host:port
//	host:startport-endport
//	[scheme://][user[:pass]@]host[:port[-endport]]
//	none
func ParseSpec(raw string) (model.ProxySpec, error) {
	s := strings.TrimSpace(raw)
	invalid := func(format string, args ...any) (model.ProxySpec, error) {
		return model.ProxySpec{}, &InvalidSpecError{Spec: raw, Reason: fmt.Sprintf(format, args...)}
	}
	if s == "" {
		return invalid("empty spec")
	}
	if s == model.NoProxy {
		return model.ProxySpec{Raw: raw, Direct: true}, nil
	}

	spec := model.ProxySpec{Scheme: "http", Raw: raw}
	if scheme, rest, ok := strings.Cut(s, "://"); ok {
		scheme = strings.ToLower(scheme)
		if !schemes[scheme] {
			return invalid("unsupported scheme %q", scheme)
		}
		spec.Scheme = scheme
		s = rest
	}

	hostport := s
	if i := strings.LastIndex(s, "@"); i >= 0 {
		spec.Username, spec.Password, _ = strings.Cut(s[:i], ":")
		hostport = s[i+1:]
	}
	hostport = strings.TrimSuffix(hostport, "/")
	if strings.ContainsAny(hostport, "/?#") {
		return invalid("nothing is allowed after the port or port range")
	}

	host, ports, err := splitHostPorts(hostport)
	if err != nil {
		return invalid("%v", err)
	}
	if host == "" {
		return invalid("missing host")
	}
	spec.Host = host

	if ports == "" {
		spec.StartPort, spec.EndPort = DefaultPort, DefaultPort
		return spec, nil
	}
	startStr, endStr, ranged := strings.Cut(ports, "-")
	if !ranged {
		endStr = startStr
	}
	if spec.StartPort, err = parsePort(startStr); err != nil {
		return invalid("%v", err)
	}
	if spec.EndPort, err = parsePort(endStr); err != nil {
		return invalid("%v", err)
	}
	if spec.EndPort < spec.StartPort {
		return invalid("inverted port range %d-%d", spec.StartPort, spec.EndPort)
	}
	return spec, nil
}

// splitHostPorts separates the host from the port part. The port part may be
// empty (no port, or a trailing ':'). IPv6 hosts must be bracketed.
func splitHostPorts(s string) (host, ports string, err error) {
	if strings.HasPrefix(s, "[") {
		end := strings.Index(s, "]")
		if end < 0 {
			return "", "", fmt.Errorf("missing ']' in host")
		}
		host, rest := s[1:end], s[end+1:]
		if rest == "" {
			return host, "", nil
		}
		if rest[0] != ':' {
			return "", "", fmt.Errorf("unexpected %q after host", rest)
		}
		return host, rest[1:], nil
	}
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return s, "", nil
	}
	host, ports = s[:i], s[i+1:]
	if strings.Contains(host, ":") {
		return "", "", fmt.Errorf("too many colons in %q", s)
	}
	return host, ports, nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range 1-65535", port)
	}
	return port, nil
}

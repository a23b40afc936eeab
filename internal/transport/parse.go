package transport

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Parse parses a target specification string and returns an SSH transport.
// Supported formats:
//   - "ssh://user@host:port" -> SSH transport
//   - "ssh://user@host:port?key=/path&insecure=true" -> SSH with options
//   - "user@host", "host:port", "host" (bare forms) -> SSH with defaults
func Parse(spec string) (*SSH, error) {
	return ParseWithOptions(spec, DefaultSSHOptions())
}

// ParseWithOptions parses a target specification, layering anything the
// spec string carries (user, port, query options) over opts.
func ParseWithOptions(spec string, opts SSHOptions) (*SSH, error) {
	if spec == "" {
		return nil, fmt.Errorf("target is required")
	}

	if strings.Contains(spec, "://") {
		return parseURL(spec, opts)
	}

	return parseHost(spec, opts)
}

// parseURL parses a URL-style target spec.
func parseURL(spec string, opts SSHOptions) (*SSH, error) {
	u, err := url.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}

	if u.Scheme != "ssh" {
		return nil, fmt.Errorf("unsupported target scheme: %s", u.Scheme)
	}

	if u.User != nil {
		opts.User = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			opts.Password = pw
		}
	}

	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid port %q: %w", p, err)
		}
		opts.Port = port
	}

	q := u.Query()
	if v := q.Get("key"); v != "" {
		opts.KeyFile = v
	}
	if v := q.Get("passphrase"); v != "" {
		opts.KeyPassphrase = v
	}
	if v := q.Get("known_hosts"); v != "" {
		opts.KnownHostsFile = v
	}
	if v := q.Get("insecure"); v != "" {
		insecure, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid insecure value %q: %w", v, err)
		}
		opts.InsecureIgnoreHost = insecure
	}
	if v := q.Get("agent"); v != "" {
		useAgent, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid agent value %q: %w", v, err)
		}
		opts.Agent = useAgent
	}

	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("missing host in target %q", spec)
	}

	return NewSSH(host, opts)
}

// parseHost parses a bare "user@host:port" target spec.
func parseHost(spec string, opts SSHOptions) (*SSH, error) {
	host := spec

	if at := strings.LastIndex(host, "@"); at >= 0 {
		opts.User = host[:at]
		host = host[at+1:]
	}

	// Only split a port off non-bracketed hosts with a single colon, so
	// bare IPv6 addresses keep working.
	if strings.Count(host, ":") == 1 {
		h, p, found := strings.Cut(host, ":")
		if found {
			port, err := strconv.Atoi(p)
			if err != nil {
				return nil, fmt.Errorf("invalid port %q: %w", p, err)
			}
			host = h
			opts.Port = port
		}
	}

	if host == "" {
		return nil, fmt.Errorf("missing host in target %q", spec)
	}

	return NewSSH(host, opts)
}

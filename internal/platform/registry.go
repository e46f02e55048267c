// Package platform holds the per-platform URL rules and backend endpoint
// layout. Each platform is described by a Rule; the Registry merges the
// built-in rules with configuration overrides so per-platform behavior is
// data, not copy-pasted code.
package platform

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/vidgrab/vidgrab/internal/config"
	"github.com/vidgrab/vidgrab/internal/domain"
)

// Rule describes how to recognize one platform's video URLs and where its
// backend lives.
type Rule struct {
	Platform domain.Platform

	// BaseURL is the backend base path, e.g. http://localhost:8081/api/tiktok.
	BaseURL string

	// Domains are accepted hostnames; a candidate host matches when it
	// equals an entry or ends with "." + entry.
	Domains []string

	// PathPrefixes, when non-empty, require the URL path to start with one
	// of the entries.
	PathPrefixes []string
}

// builtinRules mirrors the validation the per-platform panels shipped with.
func builtinRules() map[domain.Platform]Rule {
	return map[domain.Platform]Rule{
		domain.PlatformFacebook: {
			Platform: domain.PlatformFacebook,
			Domains:  []string{"facebook.com", "fb.watch"},
		},
		domain.PlatformInstagram: {
			Platform:     domain.PlatformInstagram,
			Domains:      []string{"instagram.com"},
			PathPrefixes: []string{"/reel/", "/reels/", "/p/", "/tv/"},
		},
		domain.PlatformTikTok: {
			Platform: domain.PlatformTikTok,
			Domains:  []string{"tiktok.com", "vm.tiktok.com"},
		},
	}
}

// Registry resolves platforms to their rules.
type Registry struct {
	rules map[domain.Platform]Rule
}

// NewRegistry builds a registry from the built-in platform set merged with
// configuration overrides. An override may re-point the base URL, replace
// the domain set, or introduce a platform the binary does not know about.
func NewRegistry(overrides map[string]config.PlatformConfig) *Registry {
	rules := builtinRules()

	for name, pc := range overrides {
		p := domain.Platform(name)
		rule, ok := rules[p]
		if !ok {
			rule = Rule{Platform: p}
		}
		if pc.BaseURL != "" {
			rule.BaseURL = pc.BaseURL
		}
		if len(pc.Domains) > 0 {
			rule.Domains = append([]string(nil), pc.Domains...)
		}
		if len(pc.PathPrefixes) > 0 {
			rule.PathPrefixes = append([]string(nil), pc.PathPrefixes...)
		}
		rules[p] = rule
	}

	// Fill default base URLs after overrides so only missing ones default.
	for p, rule := range rules {
		if rule.BaseURL == "" {
			rule.BaseURL = config.DefaultBaseURL(p)
			rules[p] = rule
		}
	}

	return &Registry{rules: rules}
}

// Rule returns the rule for a platform.
func (r *Registry) Rule(p domain.Platform) (Rule, error) {
	rule, ok := r.rules[p]
	if !ok {
		return Rule{}, fmt.Errorf("%w: %s", domain.ErrUnknownPlatform, p)
	}
	return rule, nil
}

// Platforms returns all registered platforms.
func (r *Registry) Platforms() []domain.Platform {
	out := make([]domain.Platform, 0, len(r.rules))
	for p := range r.rules {
		out = append(out, p)
	}
	return out
}

// PreviewURL returns the platform's preview endpoint.
func (rule Rule) PreviewURL() string {
	return rule.BaseURL + "/preview"
}

// StreamURL returns the progress-stream endpoint for a validated video URL.
func (rule Rule) StreamURL(videoURL string) string {
	return rule.BaseURL + "/download/stream?url=" + url.QueryEscape(videoURL)
}

// FileURL returns the file-retrieval endpoint for a completed download.
func (rule Rule) FileURL(filename string) string {
	return rule.BaseURL + "/download?filename=" + url.QueryEscape(filename)
}

// Parse validates a raw pasted string against the rule and returns the
// cleaned URL. The input is trimmed and percent-decoded before structural
// parsing; any failure yields domain.ErrInvalidURL.
func (rule Rule) Parse(raw string) (string, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return "", domain.ErrInvalidURL
	}

	// PathUnescape rather than QueryUnescape: a literal '+' in a video URL
	// must survive decoding.
	decoded, err := url.PathUnescape(cleaned)
	if err != nil {
		return "", domain.ErrInvalidURL
	}

	u, err := url.Parse(decoded)
	if err != nil || !u.IsAbs() {
		return "", domain.ErrInvalidURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", domain.ErrInvalidURL
	}

	host := strings.ToLower(u.Hostname())
	if !rule.matchesDomain(host) {
		return "", domain.ErrInvalidURL
	}
	if !rule.matchesPath(u.Path) {
		return "", domain.ErrInvalidURL
	}

	return decoded, nil
}

// Validate reports whether raw is a well-formed, platform-matching URL.
// Cheap and side-effect free; safe to call on every keystroke.
func (rule Rule) Validate(raw string) bool {
	_, err := rule.Parse(raw)
	return err == nil
}

func (rule Rule) matchesDomain(host string) bool {
	for _, d := range rule.Domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func (rule Rule) matchesPath(path string) bool {
	if len(rule.PathPrefixes) == 0 {
		return true
	}
	for _, prefix := range rule.PathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

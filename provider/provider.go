// Package provider holds the registry of upstream JSON-RPC providers, the
// resolution of a call target into a concrete provider set, and the
// capability grants that gate registry mutations.
package provider

import (
	"errors"
	"fmt"
	"maps"
	"net/url"
	"strings"
)

var (
	ErrAlreadyExists   = errors.New("provider already exists")
	ErrNotFound        = errors.New("provider not found")
	ErrInvalidProvider = errors.New("invalid provider")
	ErrImmutable       = errors.New("built-in providers cannot be modified")
)

// ID uniquely identifies a provider within the registry.
type ID string

// TrustClass tells built-in providers apart from the ones added at runtime.
type TrustClass string

const (
	TrustBuiltIn        TrustClass = "built_in"
	TrustUserRegistered TrustClass = "user_registered"
	// TrustCustom marks ad-hoc endpoints supplied inline with a single call.
	TrustCustom TrustClass = "custom"
)

// AuthKind selects how a credential is attached to outbound requests.
type AuthKind string

const (
	AuthBearerToken AuthKind = "bearer_token"
	AuthQueryParam  AuthKind = "query_param"
	AuthPathSegment AuthKind = "path_segment"
	AuthHeader      AuthKind = "header"
)

// Auth is the credential decoration applied to every request sent to a provider.
//
// Name is the query parameter or header name for AuthQueryParam and AuthHeader.
type Auth struct {
	Kind  AuthKind `json:"kind" yaml:"kind"`
	Name  string   `json:"name,omitempty" yaml:"name,omitempty"`
	Value string   `json:"value" yaml:"value"`
}

func (a Auth) validate() error {
	if a.Value == "" {
		return fmt.Errorf("%w: auth value is empty", ErrInvalidProvider)
	}

	switch a.Kind {
	case AuthBearerToken, AuthPathSegment:
		return nil
	case AuthQueryParam, AuthHeader:
		if a.Name == "" {
			return fmt.Errorf("%w: auth kind %q requires a name", ErrInvalidProvider, a.Kind)
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported auth kind %q", ErrInvalidProvider, a.Kind)
	}
}

// Provider is an immutable description of an upstream JSON-RPC endpoint.
// Values handed out by the registry are copies: mutating them has no
// effect on the registry.
type Provider struct {
	ID      ID                `json:"id" yaml:"id"`
	URL     string            `json:"url" yaml:"url"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Auth    *Auth             `json:"auth,omitempty" yaml:"auth,omitempty"`
	Trust   TrustClass        `json:"trust" yaml:"-"`
	Owner   Principal         `json:"owner,omitempty" yaml:"-"`
}

func (p Provider) clone() Provider {
	c := p
	if p.Headers != nil {
		c.Headers = maps.Clone(p.Headers)
	}
	if p.Auth != nil {
		auth := *p.Auth
		c.Auth = &auth
	}
	return c
}

func (p Provider) validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: id is empty", ErrInvalidProvider)
	}
	if _, err := parseEndpointURL(p.URL); err != nil {
		return err
	}
	if p.Auth != nil {
		return p.Auth.validate()
	}
	return nil
}

// Host returns the host portion of the provider URL.
func (p Provider) Host() string {
	u, err := url.Parse(p.URL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// CustomHostLabel is the metrics host label shared by all custom providers.
const CustomHostLabel = "custom"

// MetricsHost returns the host label used in metrics. Custom endpoints come
// from callers and are all reported as CustomHostLabel.
func (p Provider) MetricsHost() string {
	if p.Trust == TrustCustom {
		return CustomHostLabel
	}
	return p.Host()
}

// Outcall returns the URL and headers of an outbound request to the provider,
// with the auth decoration applied. A JSON content type is added unless the
// provider headers already set one.
func (p Provider) Outcall() (string, map[string]string, error) {
	u, err := parseEndpointURL(p.URL)
	if err != nil {
		return "", nil, err
	}

	headers := make(map[string]string, len(p.Headers)+2)
	for k, v := range p.Headers {
		headers[k] = v
	}

	if p.Auth != nil {
		switch p.Auth.Kind {
		case AuthBearerToken:
			headers["Authorization"] = "Bearer " + p.Auth.Value
		case AuthHeader:
			headers[p.Auth.Name] = p.Auth.Value
		case AuthQueryParam:
			q := u.Query()
			q.Set(p.Auth.Name, p.Auth.Value)
			u.RawQuery = q.Encode()
		case AuthPathSegment:
			u = u.JoinPath(p.Auth.Value)
		}
	}

	if !hasHeader(headers, "Content-Type") {
		headers["Content-Type"] = "application/json"
	}

	return u.String(), headers, nil
}

func hasHeader(headers map[string]string, name string) bool {
	for k := range headers {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

func parseEndpointURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed url %q: %v", ErrInvalidProvider, raw, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("%w: url %q must use http or https", ErrInvalidProvider, raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: url %q has no host", ErrInvalidProvider, raw)
	}
	return u, nil
}

// Package gateway turns content-addressed layer references into ordered lists
// of HTTP URLs that can be fetched.
package gateway

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ipfs/go-cid"
)

var ErrInvalidRef = errors.New("gateway: invalid layer reference")

// Resolver yields the candidate URLs for one reference, best first.
type Resolver interface {
	FetchableURLs(ref string) ([]string, error)
}

// Ref is a parsed layer reference. Either CID is defined, or URL holds a
// plain HTTP(S) location that is not content addressed.
type Ref struct {
	CID  cid.Cid
	Path string
	// Origin is the URL the reference was written as, when it was already
	// an HTTP gateway URL. It is tried before the configured gateways.
	Origin string
	URL    string
}

// ParseRef accepts ipfs://<cid>[/path], /ipfs/<cid>[/path], ipfs/<cid>[/path],
// a bare <cid>[/path], or an http(s) URL (path or subdomain gateway form, or
// any other location).
func ParseRef(ref string) (Ref, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Ref{}, fmt.Errorf("%w: empty", ErrInvalidRef)
	}

	lower := strings.ToLower(ref)
	switch {
	case strings.HasPrefix(lower, "ipfs://"):
		rest := ref[len("ipfs://"):]
		rest = strings.TrimPrefix(rest, "ipfs/")
		return parseCIDPath(rest)
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return parseHTTP(ref)
	}

	rest := strings.TrimPrefix(ref, "/")
	rest = strings.TrimPrefix(rest, "ipfs/")
	return parseCIDPath(rest)
}

func parseHTTP(ref string) (Ref, error) {
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return Ref{}, fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	if i := strings.Index(u.Path, "/ipfs/"); i >= 0 {
		if r, err := parseCIDPath(u.Path[i+len("/ipfs/"):]); err == nil {
			r.Origin = ref
			return r, nil
		}
	}
	// subdomain gateways: https://<cid>.ipfs.<host>/path
	if label, rest, ok := strings.Cut(u.Hostname(), ".ipfs."); ok && rest != "" {
		if c, err := cid.Decode(label); err == nil {
			return Ref{CID: c, Path: u.EscapedPath(), Origin: ref}, nil
		}
	}
	return Ref{URL: ref}, nil
}

func parseCIDPath(s string) (Ref, error) {
	id, path, _ := strings.Cut(s, "/")
	if id == "" {
		return Ref{}, fmt.Errorf("%w: missing cid", ErrInvalidRef)
	}
	c, err := cid.Decode(id)
	if err != nil {
		return Ref{}, fmt.Errorf("%w: %q: %v", ErrInvalidRef, id, err)
	}
	if path != "" {
		path = "/" + path
	}
	return Ref{CID: c, Path: path}, nil
}

// IPFS resolves references against an ordered list of path gateways.
type IPFS struct {
	gateways []string
}

// NewIPFS validates the gateway base URLs, e.g. "https://ipfs.io".
func NewIPFS(gateways []string) (*IPFS, error) {
	if len(gateways) == 0 {
		return nil, errors.New("gateway: no gateways configured")
	}
	out := make([]string, 0, len(gateways))
	for _, g := range gateways {
		u, err := url.Parse(strings.TrimSpace(g))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("gateway: invalid gateway %q", g)
		}
		out = append(out, strings.TrimRight(u.String(), "/"))
	}
	return &IPFS{gateways: out}, nil
}

func (g *IPFS) FetchableURLs(ref string) ([]string, error) {
	r, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}
	if r.URL != "" {
		return []string{r.URL}, nil
	}

	seen := make(map[string]struct{}, len(g.gateways)+1)
	var urls []string
	add := func(u string) {
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	if r.Origin != "" {
		add(r.Origin)
	}
	for _, base := range g.gateways {
		add(base + "/ipfs/" + r.CID.String() + r.Path)
	}
	return urls, nil
}

package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

var (
	ErrUnknownScheme = errors.New("filesystem: no client for url scheme")
	ErrReadOnly      = errors.New("filesystem: url is read only")
)

// Router dispatches urls to the Client registered for their scheme. Plain
// paths and file:// urls go to the local filesystem, http(s):// urls are
// fetched read only.
//
//	/data/in.txt, file:///data/in.txt
//	hdfs://namenode:9000/user/data/in.txt
//	azure://container/dir/in.txt
//	https://example.com/in.txt
type Router struct {
	HTTP *http.Client

	mu      sync.RWMutex
	clients map[string]Client
}

func NewRouter() *Router {
	local := NewLocalFSClient()
	return &Router{
		HTTP:    http.DefaultClient,
		clients: map[string]Client{"": local, "file": local},
	}
}

// Register binds a client to a url scheme, replacing any previous one.
func (r *Router) Register(scheme string, c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[strings.ToLower(scheme)] = c
}

// Client returns the client serving rawurl and the name it knows the file by.
func (r *Router) Client(rawurl string) (Client, string, error) {
	scheme, name, _, err := split(rawurl)
	if err != nil {
		return nil, "", err
	}
	r.mu.RLock()
	c, ok := r.clients[scheme]
	r.mu.RUnlock()
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrUnknownScheme, rawurl)
	}
	return c, name, nil
}

// split breaks rawurl into its scheme, the backend name and the prefix that
// turns a backend name back into a url.
func split(rawurl string) (scheme, name, prefix string, err error) {
	i := strings.Index(rawurl, "://")
	if i < 0 {
		return "", rawurl, "", nil
	}
	u, err := url.Parse(rawurl)
	if err != nil {
		return "", "", "", err
	}
	scheme = strings.ToLower(u.Scheme)
	switch scheme {
	case "file":
		return scheme, u.Path, "file://", nil
	case "azure":
		return scheme, u.Host + u.Path, "azure://", nil
	case "http", "https":
		return scheme, rawurl, "", nil
	}
	return scheme, u.Path, scheme + "://" + u.Host, nil
}

func isHTTP(scheme string) bool {
	return scheme == "http" || scheme == "https"
}

// OpenReader opens rawurl for reading and reports its size, or -1 when the
// backend can't tell.
func (r *Router) OpenReader(ctx context.Context, rawurl string) (io.ReadCloser, int64, error) {
	scheme, _, _, err := split(rawurl)
	if err != nil {
		return nil, 0, err
	}
	if isHTTP(scheme) {
		return r.get(ctx, rawurl)
	}
	c, name, err := r.Client(rawurl)
	if err != nil {
		return nil, 0, err
	}
	size, err := c.Size(name)
	if err != nil {
		return nil, 0, err
	}
	rc, err := c.OpenReadCloser(name)
	if err != nil {
		return nil, 0, err
	}
	return rc, size, nil
}

func (r *Router) get(ctx context.Context, rawurl string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := r.HTTP.Do(req)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("filesystem: GET %s: %s", rawurl, resp.Status)
	}
	return resp.Body, resp.ContentLength, nil
}

// OpenWriter creates or truncates rawurl.
func (r *Router) OpenWriter(ctx context.Context, rawurl string) (io.WriteCloser, error) {
	if err := r.writable(rawurl); err != nil {
		return nil, err
	}
	c, name, err := r.Client(rawurl)
	if err != nil {
		return nil, err
	}
	return c.OpenWriteCloser(name)
}

func (r *Router) writable(rawurl string) error {
	scheme, _, _, err := split(rawurl)
	if err != nil {
		return err
	}
	if isHTTP(scheme) {
		return fmt.Errorf("%w: %s", ErrReadOnly, rawurl)
	}
	return nil
}

// Rename moves a file within one backend.
func (r *Router) Rename(oldurl, newurl string) error {
	if err := r.writable(oldurl); err != nil {
		return err
	}
	c, oldname, err := r.Client(oldurl)
	if err != nil {
		return err
	}
	c2, newname, err := r.Client(newurl)
	if err != nil {
		return err
	}
	if c != c2 {
		return fmt.Errorf("filesystem: can't rename %s to %s across backends", oldurl, newurl)
	}
	return c.Rename(oldname, newname)
}

func (r *Router) Remove(rawurl string) error {
	if err := r.writable(rawurl); err != nil {
		return err
	}
	c, name, err := r.Client(rawurl)
	if err != nil {
		return err
	}
	return c.Remove(name)
}

// Glob expands pattern on its backend and returns the matches as urls of the
// same form. http(s) urls are returned as they are.
func (r *Router) Glob(pattern string) ([]string, error) {
	scheme, _, prefix, err := split(pattern)
	if err != nil {
		return nil, err
	}
	if isHTTP(scheme) {
		return []string{pattern}, nil
	}
	c, name, err := r.Client(pattern)
	if err != nil {
		return nil, err
	}
	matches, err := c.Glob(name)
	if err != nil {
		return nil, err
	}
	for i, m := range matches {
		matches[i] = prefix + m
	}
	return matches, nil
}

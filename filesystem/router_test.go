package filesystem

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"testing"
)

func TestRouterLocal(t *testing.T) {
	dir := t.TempDir()
	r := NewRouter()
	ctx := context.Background()
	for _, name := range []string{"part-0", "part-1"} {
		w, err := r.OpenWriter(ctx, "file://"+filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("OpenWriter failed: %v", err)
		}
		w.Write([]byte("abc"))
		if err := w.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}

	matches, err := r.Glob("file://" + filepath.Join(dir, "part-*"))
	if err != nil {
		t.Fatalf("Glob failed: %v", err)
	}
	sort.Strings(matches)
	want := []string{"file://" + filepath.Join(dir, "part-0"), "file://" + filepath.Join(dir, "part-1")}
	if len(matches) != 2 || matches[0] != want[0] || matches[1] != want[1] {
		t.Fatalf("Glob = %v, want %v", matches, want)
	}

	// bare paths stay bare
	matches, err = r.Glob(filepath.Join(dir, "part-1"))
	if err != nil || len(matches) != 1 || matches[0] != filepath.Join(dir, "part-1") {
		t.Fatalf("Glob = %v, %v", matches, err)
	}

	rc, size, err := r.OpenReader(ctx, filepath.Join(dir, "part-0"))
	if err != nil {
		t.Fatalf("OpenReader failed: %v", err)
	}
	b, _ := io.ReadAll(rc)
	rc.Close()
	if size != 3 || string(b) != "abc" {
		t.Errorf("OpenReader = %q size %d", b, size)
	}

	if err := r.Rename(filepath.Join(dir, "part-0"), filepath.Join(dir, "done", "part-0")); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if err := r.Remove(filepath.Join(dir, "done", "part-0")); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
}

func TestRouterHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/in.txt" {
			http.NotFound(w, req)
			return
		}
		io.WriteString(w, "one\ntwo\n")
	}))
	defer srv.Close()

	r := NewRouter()
	ctx := context.Background()
	rc, size, err := r.OpenReader(ctx, srv.URL+"/in.txt")
	if err != nil {
		t.Fatalf("OpenReader failed: %v", err)
	}
	b, _ := io.ReadAll(rc)
	rc.Close()
	if string(b) != "one\ntwo\n" || size != 8 {
		t.Errorf("OpenReader = %q size %d", b, size)
	}

	if _, _, err := r.OpenReader(ctx, srv.URL+"/missing"); err == nil {
		t.Errorf("OpenReader of a 404 should fail")
	}
	if _, err := r.OpenWriter(ctx, srv.URL+"/out"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("OpenWriter error = %v, want ErrReadOnly", err)
	}
	matches, err := r.Glob(srv.URL + "/in.txt")
	if err != nil || len(matches) != 1 || matches[0] != srv.URL+"/in.txt" {
		t.Errorf("Glob = %v, %v", matches, err)
	}
}

func TestRouterUnknownScheme(t *testing.T) {
	r := NewRouter()
	if _, _, err := r.OpenReader(context.Background(), "s3://bucket/key"); !errors.Is(err, ErrUnknownScheme) {
		t.Errorf("OpenReader error = %v, want ErrUnknownScheme", err)
	}
}

type recordingClient struct {
	Client
	names []string
}

func (c *recordingClient) Glob(pattern string) ([]string, error) {
	c.names = append(c.names, pattern)
	return []string{"/user/a/part-0"}, nil
}

func TestRouterRegisteredScheme(t *testing.T) {
	r := NewRouter()
	rec := &recordingClient{}
	r.Register("hdfs", rec)
	matches, err := r.Glob("hdfs://nn:9000/user/a/part-*")
	if err != nil {
		t.Fatalf("Glob failed: %v", err)
	}
	if len(rec.names) != 1 || rec.names[0] != "/user/a/part-*" {
		t.Errorf("backend saw %v", rec.names)
	}
	if len(matches) != 1 || matches[0] != "hdfs://nn:9000/user/a/part-0" {
		t.Errorf("Glob = %v", matches)
	}

	r.Register("azure", rec)
	if _, err := r.Glob("azure://logs/job/part-*"); err != nil {
		t.Fatalf("Glob failed: %v", err)
	}
	if rec.names[1] != "logs/job/part-*" {
		t.Errorf("azure backend saw %q", rec.names[1])
	}
}

package stream

import (
	"errors"
	"io"
	"testing"

	"github.com/taskgraph/mrworker"
)

type closeRecorder struct {
	name   string
	closed *[]string
	err    error
}

func (c *closeRecorder) Close() error {
	*c.closed = append(*c.closed, c.name)
	return c.err
}

func recordingStage(name string, closed *[]string, err error) Stage {
	return StageFunc(func(fd Handle, size int64, url string) (Handle, int64, string, error) {
		return &closeRecorder{name: name, closed: closed, err: err}, size, url, nil
	})
}

func TestChainClosesInReverseOrder(t *testing.T) {
	var closed []string
	s2Err := errors.New("s2 close failed")
	stages := []Stage{
		recordingStage("s1", &closed, nil),
		recordingStage("s2", &closed, s2Err),
		recordingStage("s3", &closed, nil),
	}
	raw := &closeRecorder{name: "raw", closed: &closed}
	c, err := Open(raw, 10, "file:///in", stages, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if len(c.Handles()) != 4 {
		t.Fatalf("Handles() = %d handles, want 4", len(c.Handles()))
	}
	err = c.Close()
	if !errors.Is(err, s2Err) {
		t.Fatalf("Close() = %v, want %v", err, s2Err)
	}
	want := []string{"s3", "s2", "s1", "raw"}
	if len(closed) != len(want) {
		t.Fatalf("closed %v, want %v", closed, want)
	}
	for i := range want {
		if closed[i] != want[i] {
			t.Fatalf("closed %v, want %v", closed, want)
		}
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close() = %v, want nil", err)
	}
	if len(closed) != 4 {
		t.Fatalf("second Close closed handles again: %v", closed)
	}
}

func TestChainSkipsHandlesWithoutClose(t *testing.T) {
	var closed []string
	plain := StageFunc(func(fd Handle, size int64, url string) (Handle, int64, string, error) {
		return struct{}{}, size, url, nil
	})
	c, err := Open(&closeRecorder{name: "raw", closed: &closed}, 0, "u", []Stage{plain, recordingStage("top", &closed, nil)}, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if len(closed) != 2 || closed[0] != "top" || closed[1] != "raw" {
		t.Fatalf("closed %v, want [top raw]", closed)
	}
}

func TestChainStageFailureClosesOpenedHandles(t *testing.T) {
	var closed []string
	boom := errors.New("boom")
	failing := StageFunc(func(fd Handle, size int64, url string) (Handle, int64, string, error) {
		return nil, size, url, boom
	})
	_, err := Open(&closeRecorder{name: "raw", closed: &closed}, 0, "u",
		[]Stage{recordingStage("s1", &closed, nil), failing}, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("Open() = %v, want %v", err, boom)
	}
	if len(closed) != 2 || closed[0] != "s1" || closed[1] != "raw" {
		t.Fatalf("closed %v, want [s1 raw]", closed)
	}
}

func TestChainSizeAndURLOverrides(t *testing.T) {
	var seen []int64
	var seenURL []string
	observe := StageFunc(func(fd Handle, size int64, url string) (Handle, int64, string, error) {
		seen = append(seen, size)
		seenURL = append(seenURL, url)
		return fd, size, url, nil
	})
	rewrite := StageFunc(func(fd Handle, size int64, url string) (Handle, int64, string, error) {
		return fd, 99, "rewritten", nil
	})
	c, err := Open(nil, 5, "orig", []Stage{observe, rewrite, observe}, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if seen[0] != 5 || seenURL[0] != "orig" || seen[1] != 99 || seenURL[1] != "rewritten" {
		t.Fatalf("stages saw sizes %v urls %v", seen, seenURL)
	}
	if c.Size() != 99 || c.URL() != "rewritten" {
		t.Fatalf("chain size/url = %d %q", c.Size(), c.URL())
	}
}

func TestChainPassesParamsOnlyToParamsStages(t *testing.T) {
	var got interface{}
	withParams := ParamsStageFunc(func(fd Handle, size int64, url string, params interface{}) (Handle, int64, string, error) {
		got = params
		return fd, size, url, nil
	})
	if _, err := Open(nil, 0, "u", []Stage{withParams}, "the params"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if got != "the params" {
		t.Fatalf("params stage got %v", got)
	}
}

func TestChainAliasesFinalHandle(t *testing.T) {
	it := mrworker.SliceIterator(mrworker.Record{Key: "a", Value: 1})
	top := StageFunc(func(fd Handle, size int64, url string) (Handle, int64, string, error) {
		return it, size, url, nil
	})
	c, err := Open(nil, 0, "u", []Stage{top}, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	r, err := c.Next()
	if err != nil || r.Key != "a" {
		t.Fatalf("Next() = %v, %v", r, err)
	}
	if _, err := c.Next(); err != io.EOF {
		t.Fatalf("Next() at end = %v, want io.EOF", err)
	}
	if err := c.Add("k", "v"); err != ErrNotWritable {
		t.Fatalf("Add() on a reader = %v, want ErrNotWritable", err)
	}
}

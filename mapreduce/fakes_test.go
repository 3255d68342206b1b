package mapreduce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/taskgraph/mrworker"
	"github.com/taskgraph/mrworker/stream"
)

// memStore is an in-memory Opener that tracks how many handles are open.
type memStore struct {
	mu     sync.Mutex
	files  map[string][]byte
	open   int
	opened []string
}

func newMemStore() *memStore {
	return &memStore{files: make(map[string][]byte)}
}

// putRecords stores records in the intermediate json format.
func (m *memStore) putRecords(url string, records ...mrworker.Record) {
	var buf bytes.Buffer
	for _, r := range records {
		data, _ := json.Marshal(map[string]interface{}{"key": r.Key, "value": r.Value})
		buf.Write(data)
		buf.WriteByte('\n')
	}
	m.files[url] = buf.Bytes()
}

func (m *memStore) OpenReader(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[url]
	if !ok {
		return nil, 0, fmt.Errorf("%s: %w", url, os.ErrNotExist)
	}
	m.open++
	m.opened = append(m.opened, url)
	return &memReader{Reader: bytes.NewReader(data), store: m}, int64(len(data)), nil
}

func (m *memStore) OpenWriter(ctx context.Context, url string) (io.WriteCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open++
	return &memWriter{url: url, store: m}, nil
}

// lines returns the stored lines of url.
func (m *memStore) lines(url string) []string {
	data := strings.TrimSuffix(string(m.files[url]), "\n")
	if data == "" {
		return nil
	}
	return strings.Split(data, "\n")
}

type memReader struct {
	*bytes.Reader
	store *memStore
}

func (r *memReader) Close() error {
	r.store.mu.Lock()
	r.store.open--
	r.store.mu.Unlock()
	return nil
}

type memWriter struct {
	bytes.Buffer
	url   string
	store *memStore
}

func (w *memWriter) Close() error {
	w.store.mu.Lock()
	w.store.files[w.url] = w.Bytes()
	w.store.open--
	w.store.mu.Unlock()
	return nil
}

// fakeTask is a TaskContext whose outputs go to mem://out/<part>.
type fakeTask struct {
	mode   mrworker.Mode
	id     int
	inputs []mrworker.Location
	dir    string
	parts  []string
}

func (t *fakeTask) JobName() string { return "test" }
func (t *fakeTask) Mode() mrworker.Mode { return t.mode }
func (t *fakeTask) TaskID() int { return t.id }
func (t *fakeTask) Inputs() []mrworker.Location { return t.inputs }
func (t *fakeTask) Path(name string) string { return filepath.Join(t.dir, name) }
func (t *fakeTask) Output(part string, open OpenFunc) (*stream.Chain, error) {
	t.parts = append(t.parts, part)
	return open(outURL(part))
}

func outURL(part string) string { return "mem://out/" + part }

func locs(urls ...string) []mrworker.Location {
	var l []mrworker.Location
	for _, u := range urls {
		l = append(l, mrworker.Location{URL: u, Size: mrworker.SizeUnknown})
	}
	return l
}

type messages struct {
	got []string
}

func (m *messages) Notify(message string) { m.got = append(m.got, message) }

func newTestWorker(cfg Config, store *memStore, n mrworker.Notifier) *Worker {
	w := NewWorker(cfg, store, n, log.New(ioutil.Discard, "", 0))
	w.Rand = rand.New(rand.NewSource(1))
	return w
}

func identity(entry mrworker.Record, params interface{}) ([]mrworker.Record, error) {
	return []mrworker.Record{entry}, nil
}

func recordsIn(t *testing.T, store *memStore, url string) []mrworker.Record {
	var out []mrworker.Record
	for _, line := range store.lines(url) {
		var kv struct {
			Key   interface{} `json:"key"`
			Value interface{} `json:"value"`
		}
		if err := json.Unmarshal([]byte(line), &kv); err != nil {
			t.Fatalf("bad output line %q: %v", line, err)
		}
		out = append(out, mrworker.Record{Key: kv.Key, Value: kv.Value})
	}
	return out
}

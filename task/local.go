// Package task provides a TaskContext for running one task from the
// command line against any storage the filesystem router reaches.
package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/taskgraph/mrworker"
	"github.com/taskgraph/mrworker/mapreduce"
	"github.com/taskgraph/mrworker/stream"
)

// Storage is the part of filesystem.Router a task needs.
type Storage interface {
	Rename(oldurl, newurl string) error
	Remove(url string) error
	Glob(pattern string) ([]string, error)
}

type output struct {
	part  string
	tmp   string
	final string
}

// Local runs a task in this process. Outputs are written under temporary
// names and only get their final names on Commit.
type Local struct {
	Job       string
	TaskMode  mrworker.Mode
	ID        int
	Locations []mrworker.Location
	// OutputDir is a url or path outputs are written under.
	OutputDir string
	// WorkDir holds scratch files such as sort spills.
	WorkDir string
	Storage Storage

	outputs []output
}

func (t *Local) JobName() string { return t.Job }
func (t *Local) Mode() mrworker.Mode { return t.TaskMode }
func (t *Local) TaskID() int { return t.ID }
func (t *Local) Inputs() []mrworker.Location { return t.Locations }

func (t *Local) Path(name string) string {
	return filepath.Join(t.WorkDir, t.Job, fmt.Sprintf("%s-%d", t.TaskMode, t.ID), name)
}

// OutputURL is where the output of partition part of a task ends up.
func OutputURL(dir, job string, mode mrworker.Mode, id int, part string) string {
	base := fmt.Sprintf("%s/%s/%s-%d", strings.TrimSuffix(dir, "/"), job, mode, id)
	if part == "" {
		return base + "/out"
	}
	return base + "/part-" + part
}

func (t *Local) Output(part string, open mapreduce.OpenFunc) (*stream.Chain, error) {
	for _, o := range t.outputs {
		if o.part == part {
			return nil, fmt.Errorf("task: output %q opened twice", part)
		}
	}
	final := OutputURL(t.OutputDir, t.Job, t.TaskMode, t.ID, part)
	tmp := final + ".tmp-" + uuid.NewString()[:8]
	c, err := open(tmp)
	if err != nil {
		return nil, err
	}
	t.outputs = append(t.outputs, output{part: part, tmp: tmp, final: final})
	return c, nil
}

// Commit moves every output to its final name.
func (t *Local) Commit() error {
	for _, o := range t.outputs {
		if err := t.Storage.Rename(o.tmp, o.final); err != nil {
			return fmt.Errorf("task: commit %s: %w", o.final, err)
		}
	}
	return nil
}

// Abort removes whatever output was written.
func (t *Local) Abort() error {
	var errs []error
	for _, o := range t.outputs {
		if err := t.Storage.Remove(o.tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	t.outputs = nil
	return errors.Join(errs...)
}

// Outputs lists the committed outputs as inputs for a following phase.
func (t *Local) Outputs() []mrworker.Location {
	locs := make([]mrworker.Location, 0, len(t.outputs))
	for _, o := range t.outputs {
		locs = append(locs, mrworker.Location{
			URL:         o.final,
			Size:        mrworker.SizeUnknown,
			Partition:   o.part,
			Partitioned: o.part != "",
		})
	}
	return locs
}

// Expand turns input patterns into locations. Patterns with glob
// metacharacters must match at least one file.
func Expand(s Storage, patterns []string) ([]mrworker.Location, error) {
	var locs []mrworker.Location
	for _, p := range patterns {
		if !strings.ContainsAny(p, "*?[") {
			locs = append(locs, mrworker.Location{URL: p, Size: mrworker.SizeUnknown})
			continue
		}
		matches, err := s.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("task: glob %s: %w", p, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("task: no input matches %s", p)
		}
		for _, m := range matches {
			locs = append(locs, mrworker.Location{URL: m, Size: mrworker.SizeUnknown})
		}
	}
	return locs, nil
}

func WriteManifest(w io.Writer, locs []mrworker.Location) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(locs)
}

func ReadManifest(r io.Reader) ([]mrworker.Location, error) {
	var locs []mrworker.Location
	if err := json.NewDecoder(r).Decode(&locs); err != nil {
		return nil, fmt.Errorf("task: manifest: %w", err)
	}
	return locs, nil
}

// LoadManifests reads and concatenates manifest files, e.g. the ones
// written by every map task of a job.
func LoadManifests(paths ...string) ([]mrworker.Location, error) {
	var all []mrworker.Location
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		locs, err := ReadManifest(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		all = append(all, locs...)
	}
	return all, nil
}

// Package external runs map and reduce functions shipped as executables.
//
// The job carries the program's files; the executable must be named "op".
// It is started once per task as `op <mode>` in its install directory, with
// MRWORKER_MODE and MRWORKER_PARAMS (the path of a JSON file holding the
// external params) in its environment. Records travel as JSON lines of the
// form {"key": ..., "value": ...}:
//
//	map:    one input line per entry; the program answers with zero or
//	        more output lines followed by an empty line.
//	reduce: every entry is written, then stdin is closed; every line the
//	        program prints until it exits is an output record.
package external

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/taskgraph/mrworker"
)

const Executable = "op"

var ErrNotStarted = errors.New("external: program not started")

type record struct {
	Key   interface{} `json:"key"`
	Value interface{} `json:"value"`
}

// Program is a running external program.
type Program struct {
	logger *log.Logger

	dir    string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	in     *bufio.Writer
	out    *bufio.Reader
	stderr chan struct{}
	closed bool
}

func New(logger *log.Logger) *Program {
	if logger == nil {
		logger = log.New(os.Stdout, "", log.Ldate|log.Ltime|log.Lshortfile)
	}
	return &Program{logger: logger}
}

// install writes files below dir. Names may not leave dir.
func install(dir string, files map[string][]byte) error {
	for name, data := range files {
		clean := filepath.Clean("/" + name)[1:]
		if clean == "" {
			return fmt.Errorf("external: bad file name %q", name)
		}
		path := filepath.Join(dir, clean)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		mode := os.FileMode(0644)
		if clean == Executable {
			mode = 0755
		}
		if err := os.WriteFile(path, data, mode); err != nil {
			return err
		}
	}
	if _, ok := files[Executable]; !ok {
		return fmt.Errorf("external: no %q among the program files", Executable)
	}
	return nil
}

func (p *Program) Prepare(ctx context.Context, files map[string][]byte, params interface{}, mode mrworker.Mode, dir string) error {
	if p.cmd != nil {
		return fmt.Errorf("external: program already prepared in %s", p.dir)
	}
	p.dir = filepath.Join(dir, uuid.NewString())
	if err := install(p.dir, files); err != nil {
		return err
	}
	paramsPath := filepath.Join(p.dir, "params.json")
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("external: encode params: %w", err)
	}
	if err := os.WriteFile(paramsPath, data, 0644); err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, filepath.Join(p.dir, Executable), string(mode))
	cmd.Dir = p.dir
	cmd.Env = append(os.Environ(), "MRWORKER_MODE="+string(mode), "MRWORKER_PARAMS="+paramsPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("external: start %s: %w", Executable, err)
	}
	p.cmd, p.stdin = cmd, stdin
	p.in, p.out = bufio.NewWriter(stdin), bufio.NewReader(stdout)
	p.stderr = make(chan struct{})
	go func() {
		defer close(p.stderr)
		sc := bufio.NewScanner(stderr)
		for sc.Scan() {
			p.logger.Printf("External : %s", sc.Text())
		}
	}()
	p.logger.Printf("External : started %s %s in %s", Executable, mode, p.dir)
	return nil
}

func (p *Program) send(key, value interface{}) error {
	data, err := json.Marshal(record{Key: key, Value: value})
	if err != nil {
		return fmt.Errorf("external: encode record: %w", err)
	}
	data = append(data, '\n')
	_, err = p.in.Write(data)
	return err
}

// receive reads one output line. ok is false on an empty line.
func (p *Program) receive() (r mrworker.Record, ok bool, err error) {
	line, err := p.out.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return r, false, err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return r, false, nil
	}
	dec := json.NewDecoder(strings.NewReader(line))
	dec.UseNumber()
	var rec record
	if err := dec.Decode(&rec); err != nil {
		return r, false, fmt.Errorf("external: bad output line %q: %w", line, err)
	}
	return mrworker.Record{Key: rec.Key, Value: rec.Value}, true, nil
}

func (p *Program) Map(entry mrworker.Record, params interface{}) ([]mrworker.Record, error) {
	if p.cmd == nil {
		return nil, ErrNotStarted
	}
	if err := p.send(entry.Key, entry.Value); err != nil {
		return nil, err
	}
	if err := p.in.Flush(); err != nil {
		return nil, err
	}
	var out []mrworker.Record
	for {
		r, ok, err := p.receive()
		if err == io.EOF {
			return nil, fmt.Errorf("external: %s exited in the middle of an entry", Executable)
		}
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, r)
	}
}

func (p *Program) Reduce(entries mrworker.RecordIterator, out mrworker.RecordWriter, params interface{}) error {
	if p.cmd == nil {
		return ErrNotStarted
	}
	// the program may answer before reading everything, so feed it from
	// another goroutine
	fed := make(chan error, 1)
	go func() {
		err := mrworker.Drain(entries, mrworker.WriterFunc(p.send))
		if ferr := p.in.Flush(); err == nil {
			err = ferr
		}
		if cerr := p.stdin.Close(); err == nil {
			err = cerr
		}
		fed <- err
	}()
	var rerr error
	for {
		r, ok, err := p.receive()
		if err == io.EOF {
			break
		}
		if err != nil {
			rerr = err
			break
		}
		if !ok {
			continue
		}
		if err := out.Add(r.Key, r.Value); err != nil {
			rerr = err
			break
		}
	}
	if rerr != nil {
		// unblock the feeder
		p.cmd.Process.Kill()
		<-fed
		return rerr
	}
	return <-fed
}

// Close stops the program and removes its install directory.
func (p *Program) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	var errs []error
	if p.cmd != nil {
		if err := p.in.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("external: flush input: %w", err))
		}
		if err := p.stdin.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, fmt.Errorf("external: close input: %w", err))
		}
		<-p.stderr
		if err := p.cmd.Wait(); err != nil {
			errs = append(errs, fmt.Errorf("external: %s: %w", Executable, err))
		}
	}
	if p.dir != "" {
		if err := os.RemoveAll(p.dir); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

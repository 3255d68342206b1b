package filesystem

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/colinmarc/hdfs/v2"
)

// Requirement:
//   Hadoop/HDFS version: 2 or later
//   Namenode RPC reachable from the worker

type HdfsClient struct {
	client       *hdfs.Client
	namenodeAddr string
	user         string
}

func NewHdfsClient(namenodeAddr, user string) (*HdfsClient, error) {
	client, err := hdfs.NewClient(hdfs.ClientOptions{
		Addresses: strings.Split(namenodeAddr, ","),
		User:      user,
	})
	if err != nil {
		return nil, err
	}
	return &HdfsClient{
		client:       client,
		namenodeAddr: namenodeAddr,
		user:         user,
	}, nil
}

func (c *HdfsClient) OpenReadCloser(name string) (io.ReadCloser, error) {
	return c.client.Open(name)
}

// HDFS files are write once, so an existing file is replaced.
func (c *HdfsClient) OpenWriteCloser(name string) (io.WriteCloser, error) {
	exist, err := c.Exists(name)
	if err != nil {
		return nil, err
	}
	if exist {
		if err := c.client.Remove(name); err != nil {
			return nil, err
		}
	} else if err := c.client.MkdirAll(path.Dir(name), 0755); err != nil {
		return nil, err
	}
	return c.client.Create(name)
}

func (c *HdfsClient) Exists(name string) (bool, error) {
	_, err := c.client.Stat(name)
	return existCommon(err)
}

func (c *HdfsClient) Rename(oldpath, newpath string) error {
	if err := c.client.MkdirAll(path.Dir(newpath), 0755); err != nil {
		return err
	}
	return c.client.Rename(oldpath, newpath)
}

func (c *HdfsClient) Remove(name string) error {
	return c.client.Remove(name)
}

func (c *HdfsClient) Size(name string) (int64, error) {
	fi, err := c.client.Stat(name)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (c *HdfsClient) Close() error {
	return c.client.Close()
}

// only supports '*', '?' and '[...]'
// Syntax:
//    /user/hdfs/etl*/part.*
func (c *HdfsClient) Glob(pattern string) (matches []string, err error) {
	names, err := splitPattern(pattern)
	if err != nil {
		return nil, err
	}
	return c.glob("/", names)
}

func (c *HdfsClient) glob(dir string, names []string) (m []string, err error) {
	name := names[0]
	var dirs []string
	if hasMeta(name) {
		fileInfos, err := c.client.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		for _, fi := range fileInfos {
			matched, err := path.Match(name, fi.Name())
			if err != nil {
				return nil, err
			}
			if matched {
				dirs = append(dirs, path.Join(dir, fi.Name()))
			}
		}
	} else {
		dirs = append(dirs, path.Join(dir, name))
	}
	for _, pathname := range dirs {
		if len(names) == 1 {
			exist, err := c.Exists(pathname)
			if err != nil {
				return nil, err
			}
			if exist {
				m = append(m, pathname)
			}
			continue
		}
		sub, err := c.glob(pathname, names[1:])
		if err != nil {
			return nil, err
		}
		m = append(m, sub...)
	}
	return m, nil
}

// splitPattern breaks an absolute glob pattern into its path elements.
// e.g. "/a/b/c" => [a, b, c]
func splitPattern(pattern string) ([]string, error) {
	if pattern == "" {
		return nil, fmt.Errorf("Glob pattern shouldn't be empty")
	}
	if pattern[len(pattern)-1] == '/' {
		return nil, fmt.Errorf("Glob pattern shouldn't be a directory")
	}
	if pattern[0] != '/' {
		return nil, fmt.Errorf("Glob pattern should be an absolute path: %s", pattern)
	}
	var names []string
	for path.Dir(pattern) != "/" {
		names = append(names, path.Base(pattern))
		pattern = path.Dir(pattern)
	}
	names = append(names, pattern[1:])
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return names, nil
}

func hasMeta(name string) bool {
	return strings.ContainsAny(name, "*?[")
}

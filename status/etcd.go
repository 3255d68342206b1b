package status

import (
	"context"
	"fmt"
	"log"
	"path"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/taskgraph/mrworker/pkg/etcdutil"
)

const defaultEtcdTimeout = 2 * time.Second

// EtcdNotifier sets the task's status key to every message it gets, so a
// master watching /{job}/tasks can follow the task.
type EtcdNotifier struct {
	client  *clientv3.Client
	kv      clientv3.KV
	key     string
	timeout time.Duration
	logger  *log.Logger
}

// NewEtcdNotifier connects to the given etcd endpoints.
func NewEtcdNotifier(etcdURLs []string, job, mode string, taskID int, logger *log.Logger) (*EtcdNotifier, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   etcdURLs,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	n := newEtcdNotifier(client.KV, etcdutil.TaskStatusPath(job, mode, taskID), logger)
	n.client = client
	return n, nil
}

func newEtcdNotifier(kv clientv3.KV, key string, logger *log.Logger) *EtcdNotifier {
	return &EtcdNotifier{kv: kv, key: key, timeout: defaultEtcdTimeout, logger: logger}
}

func (n *EtcdNotifier) Notify(message string) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()
	if _, err := n.kv.Put(ctx, n.key, message); err != nil {
		n.logger.Printf("etcd status put failed; key: %s, value: %s, error: %v", n.key, message, err)
	}
}

// PublishOutputs stores the output index of a committed task next to its
// status key.
func (n *EtcdNotifier) PublishOutputs(index []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()
	key := path.Join(path.Dir(n.key), etcdutil.OutputNode)
	if _, err := n.kv.Put(ctx, key, string(index)); err != nil {
		return fmt.Errorf("etcd put %s: %w", key, err)
	}
	return nil
}

// Close releases the etcd connection, if the notifier owns one.
func (n *EtcdNotifier) Close() error {
	if n.client == nil {
		return nil
	}
	return n.client.Close()
}

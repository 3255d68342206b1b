// Command mrworker runs a single map or reduce task of a job, or collects
// the status messages tasks send over grpc.
package main

import (
	"bytes"
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"

	"github.com/taskgraph/mrworker"
	"github.com/taskgraph/mrworker/example/wordcount"
	"github.com/taskgraph/mrworker/external"
	"github.com/taskgraph/mrworker/filesystem"
	"github.com/taskgraph/mrworker/mapreduce"
	"github.com/taskgraph/mrworker/status"
	"github.com/taskgraph/mrworker/task"
)

func envOr(flagValue, key string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(key)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func main() {
	mode := flag.String("mode", "", "map, reduce or collect")
	jobFile := flag.String("job", "", "path to the JSON job spec")
	taskID := flag.Int("task_id", 0, "ID of the task within its phase")
	inputs := flag.String("inputs", "", "input urls or glob patterns, sep by ','")
	manifests := flag.String("manifests", "", "manifests of a previous phase to read inputs from, sep by ','")
	outputDir := flag.String("output_dir", "", "url or path outputs are written under")
	workDir := flag.String("work_dir", os.TempDir(), "local directory for scratch files")
	outManifest := flag.String("output_manifest", "", "where to write the manifest of this task's outputs")
	etcdURLs := flag.String("etcd_urls", "", "List of etcd instances, sep by ','.")
	statusAddr := flag.String("status_addr", "", "grpc address of a status collector")
	listen := flag.String("listen", ":7070", "address the collector listens on")
	namenode := flag.String("hdfs_namenode", "", "HDFS namenode address (env HDFS_NAMENODE)")
	hdfsUser := flag.String("hdfs_user", "", "HDFS user (env HDFS_USER)")
	azureAccount := flag.String("azure_account", "", "Azure storage account (env AZURE_STORAGE_ACCOUNT)")
	azureKey := flag.String("azure_key", "", "Azure storage key (env AZURE_STORAGE_KEY)")
	azureURL := flag.String("azure_url", "", "Azure blob service url (env AZURE_STORAGE_URL)")

	flag.Parse()

	logger := log.New(os.Stdout, "", log.Ldate|log.Ltime|log.Lshortfile)

	if *mode == "collect" {
		collect(*listen, logger)
		return
	}
	taskMode := mrworker.Mode(*mode)
	if taskMode != mrworker.MapMode && taskMode != mrworker.ReduceMode {
		log.Fatal("Please choose a mode: map, reduce or collect.")
	}
	if *jobFile == "" || *outputDir == "" {
		log.Fatal("Both -job and -output_dir are required.")
	}

	spec, err := mapreduce.LoadJobSpec(*jobFile)
	if err != nil {
		log.Fatalf("Loading job spec failed: %v", err)
	}
	registry := mapreduce.DefaultRegistry()
	wordcount.Register(registry)
	cfg, err := registry.Resolve(spec)
	if err != nil {
		log.Fatalf("Resolving job spec failed: %v", err)
	}
	job := spec.Name
	if job == "" {
		job = "job"
	}

	router := filesystem.NewRouter()
	if addr := envOr(*namenode, "HDFS_NAMENODE"); addr != "" {
		c, err := filesystem.NewHdfsClient(addr, envOr(*hdfsUser, "HDFS_USER"))
		if err != nil {
			log.Fatalf("Connecting to HDFS at %s failed: %v", addr, err)
		}
		defer c.Close()
		router.Register("hdfs", c)
	}
	if account := envOr(*azureAccount, "AZURE_STORAGE_ACCOUNT"); account != "" {
		c, err := filesystem.NewAzureClient(account, envOr(*azureKey, "AZURE_STORAGE_KEY"), envOr(*azureURL, "AZURE_STORAGE_URL"), logger)
		if err != nil {
			log.Fatalf("Creating Azure client failed: %v", err)
		}
		router.Register("azure", c)
	}

	notifiers := status.Multi{status.NewLogNotifier(logger, "Status : ")}
	var etcdNotifier *status.EtcdNotifier
	if urls := splitList(*etcdURLs); len(urls) > 0 {
		etcdNotifier, err = status.NewEtcdNotifier(urls, job, string(taskMode), *taskID, logger)
		if err != nil {
			log.Fatalf("Connecting to etcd failed: %v", err)
		}
		defer etcdNotifier.Close()
		notifiers = append(notifiers, etcdNotifier)
	}
	if *statusAddr != "" {
		n, err := status.DialGRPCNotifier(*statusAddr, logger)
		if err != nil {
			log.Fatalf("Dialing status collector failed: %v", err)
		}
		defer n.Close()
		notifiers = append(notifiers, n)
	}

	var locs []mrworker.Location
	if list := splitList(*manifests); len(list) > 0 {
		if locs, err = task.LoadManifests(list...); err != nil {
			log.Fatalf("Reading manifests failed: %v", err)
		}
	}
	expanded, err := task.Expand(router, splitList(*inputs))
	if err != nil {
		log.Fatalf("Expanding inputs failed: %v", err)
	}
	locs = append(locs, expanded...)

	tc := &task.Local{
		Job:       job,
		TaskMode:  taskMode,
		ID:        *taskID,
		Locations: locs,
		OutputDir: *outputDir,
		WorkDir:   *workDir,
		Storage:   router,
	}
	w := mapreduce.NewWorker(*cfg, router, notifiers, logger)
	w.External = external.New(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := w.Run(ctx, tc); err != nil {
		if aerr := tc.Abort(); aerr != nil {
			logger.Printf("Worker : removing partial output failed: %v", aerr)
		}
		log.Fatalf("Task failed: %v", err)
	}
	if err := tc.Commit(); err != nil {
		log.Fatalf("Committing output failed: %v", err)
	}
	var index bytes.Buffer
	if err := task.WriteManifest(&index, tc.Outputs()); err != nil {
		log.Fatalf("Encoding manifest failed: %v", err)
	}
	if *outManifest != "" {
		if err := os.WriteFile(*outManifest, index.Bytes(), 0644); err != nil {
			log.Fatalf("Writing manifest failed: %v", err)
		}
	}
	if etcdNotifier != nil {
		if err := etcdNotifier.PublishOutputs(index.Bytes()); err != nil {
			log.Fatalf("Publishing outputs failed: %v", err)
		}
	}
}

// collect serves the status collector until the process is killed.
func collect(addr string, logger *log.Logger) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("net.Listen(\"tcp\", %q) failed: %v", addr, err)
	}
	server := status.NewCollectorServer(&status.NotifierCollector{Notifier: status.NewLogNotifier(logger, "Collector : ")})
	logger.Printf("Collector : listening on %s", l.Addr())
	if err := server.Serve(l); err != nil {
		log.Fatalf("Collector stopped: %v", err)
	}
}

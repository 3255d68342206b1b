package filesystem

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

type AzureClient struct {
	client *azblob.Client
	logger *log.Logger
}

// AzureFile streams writes into a block blob. The upload runs while the
// caller writes and is committed on Close.
type AzureFile struct {
	path string
	pw   *io.PipeWriter
	done chan error
}

// convertToAzurePath function
// like this pattern "ContainerName/BlobName"
// BlobName may contain further slashes.
func convertToAzurePath(name string) (string, string, error) {
	name = strings.TrimPrefix(name, "/")
	i := strings.Index(name, "/")
	if i <= 0 || i == len(name)-1 {
		return "", "", fmt.Errorf("AzureClient : Need Correct Path Name: %q", name)
	}
	return name[:i], name[i+1:], nil
}

// AzureClient -> Exist function
// Only check the BlobName if exist or not
func (c *AzureClient) Exists(name string) (bool, error) {
	_, err := c.Size(name)
	if err == nil {
		return true, nil
	}
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return false, nil
	}
	return false, err
}

func (c *AzureClient) Size(name string) (int64, error) {
	cnt, blob, err := convertToAzurePath(name)
	if err != nil {
		return 0, err
	}
	props, err := c.client.ServiceClient().NewContainerClient(cnt).NewBlobClient(blob).GetProperties(context.Background(), nil)
	if err != nil {
		return 0, err
	}
	if props.ContentLength == nil {
		return -1, nil
	}
	return *props.ContentLength, nil
}

// AzureClient -> Rename function
// Azure prevent user renaming their blob
// Thus this function firstly copies the source blob,
// when finished, deletes the source blob.
func (c *AzureClient) Rename(oldpath, newpath string) error {
	if oldpath == newpath {
		return nil
	}
	r, err := c.OpenReadCloser(oldpath)
	if err != nil {
		return err
	}
	defer r.Close()
	dstCnt, dstBlob, err := convertToAzurePath(newpath)
	if err != nil {
		return err
	}
	if err := c.ensureContainer(dstCnt); err != nil {
		return err
	}
	if _, err := c.client.UploadStream(context.Background(), dstCnt, dstBlob, r, nil); err != nil {
		return fmt.Errorf("AzureClient : copy %s to %s: %w", oldpath, newpath, err)
	}
	return c.Remove(oldpath)
}

// AzureClient -> OpenReadCloser function
func (c *AzureClient) OpenReadCloser(name string) (io.ReadCloser, error) {
	cnt, blob, err := convertToAzurePath(name)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.DownloadStream(context.Background(), cnt, blob, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// AzureClient -> OpenWriteCloser function
// If not exist, Create corresponding Container.
// The blob only becomes visible once the writer is closed.
func (c *AzureClient) OpenWriteCloser(name string) (io.WriteCloser, error) {
	cnt, blob, err := convertToAzurePath(name)
	if err != nil {
		return nil, err
	}
	if err := c.ensureContainer(cnt); err != nil {
		return nil, err
	}
	pr, pw := io.Pipe()
	f := &AzureFile{path: name, pw: pw, done: make(chan error, 1)}
	go func() {
		_, err := c.client.UploadStream(context.Background(), cnt, blob, pr, nil)
		if err != nil {
			c.logger.Printf("AzureClient : upload of %s failed: %v", name, err)
		}
		// unblock writers if the upload gave up early
		pr.CloseWithError(err)
		f.done <- err
	}()
	return f, nil
}

func (c *AzureClient) ensureContainer(cnt string) error {
	_, err := c.client.CreateContainer(context.Background(), cnt, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return err
	}
	return nil
}

func (f *AzureFile) Write(b []byte) (int, error) {
	return f.pw.Write(b)
}

func (f *AzureFile) Close() error {
	if err := f.pw.Close(); err != nil {
		return err
	}
	return <-f.done
}

func (c *AzureClient) Remove(name string) error {
	cnt, blob, err := convertToAzurePath(name)
	if err != nil {
		return err
	}
	_, err = c.client.DeleteBlob(context.Background(), cnt, blob, nil)
	return err
}

// AzureClient -> Glob function
// Syntax : container*/dir/part-?
// Follows path.Match syntax on both the container and the blob name.
func (c *AzureClient) Glob(pattern string) (matches []string, err error) {
	cntPattern, blobPattern, err := convertToAzurePath(pattern)
	if err != nil {
		return nil, fmt.Errorf("Glob pattern should follow the Syntax: %w", err)
	}
	ctx := context.Background()
	var containers []string
	if hasMeta(cntPattern) {
		pager := c.client.NewListContainersPager(nil)
		for pager.More() {
			resp, err := pager.NextPage(ctx)
			if err != nil {
				return nil, err
			}
			for _, cnt := range resp.ContainerItems {
				if cnt.Name == nil {
					continue
				}
				if ok, err := path.Match(cntPattern, *cnt.Name); err != nil {
					return nil, err
				} else if ok {
					containers = append(containers, *cnt.Name)
				}
			}
		}
	} else {
		containers = append(containers, cntPattern)
	}
	prefix := blobPattern
	if i := strings.IndexAny(blobPattern, "*?["); i >= 0 {
		prefix = blobPattern[:i]
	}
	for _, cnt := range containers {
		pager := c.client.NewListBlobsFlatPager(cnt, &azblob.ListBlobsFlatOptions{Prefix: &prefix})
		for pager.More() {
			resp, err := pager.NextPage(ctx)
			if err != nil {
				if bloberror.HasCode(err, bloberror.ContainerNotFound) {
					break
				}
				return nil, err
			}
			if resp.Segment == nil {
				continue
			}
			for _, v := range resp.Segment.BlobItems {
				if v.Name == nil {
					continue
				}
				if ok, err := path.Match(blobPattern, *v.Name); err != nil {
					return nil, err
				} else if ok {
					matches = append(matches, cnt+"/"+*v.Name)
				}
			}
		}
	}
	return matches, nil
}

// NewAzureClient function
// NewAzureClient constructs a blob client with a shared key. serviceURL is
// the account's blob endpoint, e.g. "https://myaccount.blob.core.windows.net/".
func NewAzureClient(accountName, accountKey, serviceURL string, logger *log.Logger) (*AzureClient, error) {
	cred, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, err
	}
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net/", accountName)
	}
	cli, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(os.Stdout, "", log.Lshortfile|log.LstdFlags)
	}
	return &AzureClient{client: cli, logger: logger}, nil
}

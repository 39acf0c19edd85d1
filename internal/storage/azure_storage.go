package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/appendblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/itsadi-24/smart-note/internal/observer"
)

// appendBlob is the part of *appendblob.Client the event log uses
type appendBlob interface {
	Create(ctx context.Context, o *appendblob.CreateOptions) (appendblob.CreateResponse, error)
	AppendBlock(ctx context.Context, body io.ReadSeekCloser, o *appendblob.AppendBlockOptions) (appendblob.AppendBlockResponse, error)
}

// AzureEventLog writes lifecycle events as JSON lines into one append blob
// per UTC day: events/YYYY-MM-DD.jsonl. When a blob hits the service's block
// limit the log rolls over to events/YYYY-MM-DD.N.jsonl.
type AzureEventLog struct {
	container       string
	blobFor         func(name string) appendBlob
	ensureContainer func(ctx context.Context) error
	now             func() time.Time

	mu             sync.Mutex
	containerReady bool
	day            string
	seq            int
	blobReady      bool
}

// NewAzureEventLog authenticates with a shared key and targets container
func NewAzureEventLog(accountName, accountKey, container string) (*AzureEventLog, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}

	containerClient := client.ServiceClient().NewContainerClient(container)
	return &AzureEventLog{
		container: container,
		blobFor: func(name string) appendBlob {
			return containerClient.NewAppendBlobClient(name)
		},
		ensureContainer: func(ctx context.Context) error {
			_, err := client.CreateContainer(ctx, container, nil)
			if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
				return err
			}
			return nil
		},
		now: time.Now,
	}, nil
}

// Name implements observer.EventSink
func (s *AzureEventLog) Name() string { return "azure_blob" }

// Append implements observer.EventSink
func (s *AzureEventLog) Append(ctx context.Context, event observer.AnalysisEvent) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.containerReady {
		if err := s.ensureContainer(ctx); err != nil {
			return fmt.Errorf("create container %s: %w", s.container, err)
		}
		s.containerReady = true
	}

	if day := s.now().UTC().Format("2006-01-02"); day != s.day {
		s.day, s.seq, s.blobReady = day, 0, false
	}

	for {
		name := s.blobName()
		b := s.blobFor(name)
		if !s.blobReady {
			if err := createIfMissing(ctx, b); err != nil {
				return fmt.Errorf("create blob %s: %w", name, err)
			}
			s.blobReady = true
		}

		_, err := b.AppendBlock(ctx, streaming.NopCloser(bytes.NewReader(line)), nil)
		if err == nil {
			return nil
		}
		if bloberror.HasCode(err, bloberror.BlockCountExceedsLimit) {
			s.seq++
			s.blobReady = false
			continue
		}
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			// deleted behind our back; recreate on the next append
			s.blobReady = false
		}
		return fmt.Errorf("append to %s: %w", name, err)
	}
}

// Close implements observer.EventSink. The SDK client holds no resources
// that need releasing.
func (s *AzureEventLog) Close() error { return nil }

func (s *AzureEventLog) blobName() string {
	if s.seq == 0 {
		return fmt.Sprintf("events/%s.jsonl", s.day)
	}
	return fmt.Sprintf("events/%s.%d.jsonl", s.day, s.seq)
}

func createIfMissing(ctx context.Context, b appendBlob) error {
	_, err := b.Create(ctx, &appendblob.CreateOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr("application/x-ndjson")},
		AccessConditions: &blob.AccessConditions{
			ModifiedAccessConditions: &blob.ModifiedAccessConditions{IfNoneMatch: to.Ptr(azcore.ETagAny)},
		},
	})
	if err != nil && !bloberror.HasCode(err, bloberror.BlobAlreadyExists, bloberror.ConditionNotMet) {
		return err
	}
	return nil
}

package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/Carmen-Shannon/oxy-capture/engine/sequencer"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// ObjectStore is the subset of *minio.Client the object sink uses.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

var _ ObjectStore = &minio.Client{}

// minioSink uploads each frame as an object under <prefix>/<runID>/.
type minioSink struct {
	store      ObjectStore
	bucket     string
	region     string
	prefix     string
	runID      string
	pattern    string
	putTimeout time.Duration
	logger     *log.Logger
}

var _ Sink = &minioSink{}

// NewMinIOSink creates a sink uploading frames to bucket, creating the bucket if it does not exist.
// Every sink gets a fresh run ID so repeated exports never overwrite each other.
//
// Parameters:
//   - ctx: bounds the bucket check
//   - store: the object store client, usually a *minio.Client
//   - bucket: the destination bucket
//   - options: object sink options
//
// Returns:
//   - Sink: the object sink
//   - error: an error if the bucket cannot be checked or created
func NewMinIOSink(ctx context.Context, store ObjectStore, bucket string, options ...MinIOSinkBuilderOption) (Sink, error) {
	if store == nil || bucket == "" {
		return nil, fmt.Errorf("object sink needs a client and a bucket")
	}
	s := &minioSink{
		store:      store,
		bucket:     bucket,
		region:     "us-east-1",
		prefix:     "exports",
		runID:      uuid.NewString(),
		pattern:    DefaultPattern,
		putTimeout: 15 * time.Second,
		logger:     log.New(io.Discard),
	}
	for _, opt := range options {
		opt(s)
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", bucket, err)
	}
	s.logger.Info("uploading frames", "bucket", bucket, "prefix", path.Join(s.prefix, s.runID))
	return s, nil
}

func (s *minioSink) ensureBucket(ctx context.Context) error {
	exists, err := s.store.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.store.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
}

// objectKey returns the key a frame is stored under.
func (s *minioSink) objectKey(frame int) string {
	return path.Join(s.prefix, s.runID, frameName(s.pattern, frame))
}

func (s *minioSink) Write(ctx context.Context, frame *sequencer.FrameResult) error {
	key := s.objectKey(frame.Frame)
	putCtx, cancel := context.WithTimeout(ctx, s.putTimeout)
	defer cancel()
	_, err := s.store.PutObject(
		putCtx,
		s.bucket,
		key,
		bytes.NewReader(frame.EXR),
		int64(len(frame.EXR)),
		minio.PutObjectOptions{ContentType: "image/x-exr"},
	)
	if err != nil {
		return fmt.Errorf("upload frame %d: %w", frame.Frame, err)
	}
	s.logger.Debug("frame uploaded", "key", key, "bytes", len(frame.EXR))
	return nil
}

func (s *minioSink) Close() error {
	return nil
}

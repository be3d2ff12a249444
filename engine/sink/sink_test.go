package sink

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-capture/common"
	"github.com/Carmen-Shannon/oxy-capture/engine/sequencer"
	"github.com/disintegration/imaging"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrame(t *testing.T, n, width, height int, rgba [4]float32) *sequencer.FrameResult {
	t.Helper()
	pb, err := common.NewPixelBuffer(width, height, common.PixelFormatRGBA32Float)
	require.NoError(t, err)
	for i := 0; i < len(pb.Float32); i += 4 {
		copy(pb.Float32[i:i+4], rgba[:])
	}
	return &sequencer.FrameResult{Frame: n, Width: width, Height: height, EXR: []byte{0x76, 0x2f, 0x31, 0x01, byte(n)}, Pixels: pb}
}

type putCall struct {
	bucket, key, contentType string
	body                     []byte
}

type fakeStore struct {
	exists  bool
	made    []string
	puts    []putCall
	failPut error
}

func (s *fakeStore) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return s.exists, nil
}

func (s *fakeStore) MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error {
	s.made = append(s.made, bucket+"@"+opts.Region)
	return nil
}

func (s *fakeStore) PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if s.failPut != nil {
		return minio.UploadInfo{}, s.failPut
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	s.puts = append(s.puts, putCall{bucket: bucket, key: object, contentType: opts.ContentType, body: body})
	return minio.UploadInfo{Bucket: bucket, Key: object, Size: size}, nil
}

func TestFileSink_WritesNumberedFrames(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	s, err := NewFileSink(dir)
	require.NoError(t, err)

	for _, n := range []int{7, 8} {
		require.NoError(t, s.Write(context.Background(), testFrame(t, n, 1, 1, [4]float32{})))
	}
	require.NoError(t, s.Close())

	data, err := os.ReadFile(filepath.Join(dir, "frame_0007.exr"))
	require.NoError(t, err)
	assert.Equal(t, byte(7), data[4])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temporary files may be left behind")
}

func TestFileSink_Pattern(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileSink(dir, WithFilePattern("shot_%03d.exr"))
	require.NoError(t, err)
	require.NoError(t, s.Write(context.Background(), testFrame(t, 2, 1, 1, [4]float32{})))
	assert.FileExists(t, filepath.Join(dir, "shot_002.exr"))

	_, err = NewFileSink(dir, WithFilePattern("static.exr"))
	assert.Error(t, err)
}

func TestMinIOSink_CreatesBucketAndUploads(t *testing.T) {
	store := &fakeStore{}
	s, err := NewMinIOSink(context.Background(), store, "renders", WithPrefix("shots/a"), WithRunID("run-1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"renders@us-east-1"}, store.made)

	frame := testFrame(t, 12, 1, 1, [4]float32{})
	require.NoError(t, s.Write(context.Background(), frame))
	require.Len(t, store.puts, 1)
	assert.Equal(t, "renders", store.puts[0].bucket)
	assert.Equal(t, "shots/a/run-1/frame_0012.exr", store.puts[0].key)
	assert.Equal(t, "image/x-exr", store.puts[0].contentType)
	assert.Equal(t, frame.EXR, store.puts[0].body)
}

func TestMinIOSink_ExistingBucketAndFailures(t *testing.T) {
	boom := errors.New("connection reset")
	store := &fakeStore{exists: true, failPut: boom}
	s, err := NewMinIOSink(context.Background(), store, "renders")
	require.NoError(t, err)
	assert.Empty(t, store.made)

	err = s.Write(context.Background(), testFrame(t, 1, 1, 1, [4]float32{}))
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "frame 1")

	_, err = NewMinIOSink(context.Background(), nil, "renders")
	assert.Error(t, err)
}

func TestMinIOSink_RunIDsDiffer(t *testing.T) {
	a, err := NewMinIOSink(context.Background(), &fakeStore{exists: true}, "b")
	require.NoError(t, err)
	b, err := NewMinIOSink(context.Background(), &fakeStore{exists: true}, "b")
	require.NoError(t, err)
	assert.NotEqual(t, a.(*minioSink).objectKey(0), b.(*minioSink).objectKey(0))
}

func TestPreviewSink_Thumbnail(t *testing.T) {
	dir := t.TempDir()
	s, err := NewPreviewSink(dir, WithPreviewWidth(64), WithPreviewPattern("frame_%04d.exr"))
	require.NoError(t, err)

	require.NoError(t, s.Write(context.Background(), testFrame(t, 3, 128, 32, [4]float32{1, 0, 0, 1})))

	img, err := imaging.Open(filepath.Join(dir, "frame_0003.png"))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 16, img.Bounds().Dy())
}

func TestToSRGB(t *testing.T) {
	pb, err := common.NewPixelBuffer(2, 1, common.PixelFormatRGBA16Float)
	require.NoError(t, err)
	copy(pb.Float32, []float32{0.2, 0.001, 4, 0.5, -1, 0, 1, 1})

	img, err := ToSRGB(pb)
	require.NoError(t, err)
	c := img.NRGBAAt(0, 0)
	assert.Equal(t, uint8(124), c.R)
	assert.Equal(t, uint8(3), c.G)
	assert.Equal(t, uint8(255), c.B, "overbright samples clamp")
	assert.Equal(t, uint8(128), c.A, "alpha stays linear")
	assert.Equal(t, uint8(0), img.NRGBAAt(1, 0).R, "negative samples clamp")

	_, err = ToSRGB(nil)
	assert.ErrorIs(t, err, common.ErrPrecondition)
}

type recordingSink struct {
	frames []int
	err    error
	closed bool
}

func (s *recordingSink) Write(ctx context.Context, frame *sequencer.FrameResult) error {
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, frame.Frame)
	return nil
}

func (s *recordingSink) Close() error {
	s.closed = true
	return s.err
}

func TestMulti(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	m := Multi(a, nil, b)
	require.NoError(t, m.Write(context.Background(), testFrame(t, 4, 1, 1, [4]float32{})))
	assert.Equal(t, []int{4}, a.frames)
	assert.Equal(t, []int{4}, b.frames)

	boom := errors.New("disk full")
	failing := &recordingSink{err: boom}
	after := &recordingSink{}
	m = Multi(failing, after)
	assert.ErrorIs(t, m.Write(context.Background(), testFrame(t, 5, 1, 1, [4]float32{})), boom)
	assert.Empty(t, after.frames)
	assert.ErrorIs(t, m.Close(), boom)
	assert.True(t, after.closed)
}

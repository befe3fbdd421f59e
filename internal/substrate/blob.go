package substrate

import (
	"context"
	"fmt"
	"io"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
)

// Blob implements Interface on a gocloud.dev bucket. A file-backed bucket
// commits writes by temp-then-rename, which gives the per-key atomicity the
// share and channel protocols rely on; memory-backed buckets serve tests
type Blob struct {
	bucket *blob.Bucket
	prefix string
}

var _ Interface = (*Blob)(nil)

// OpenBlob opens a bucket by URL (file://, mem://, or any registered driver)
func OpenBlob(ctx context.Context, bucketURL, prefix string) (*Blob, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, err
	}
	return NewBlob(bucket, prefix), nil
}

// NewBlob wraps an already opened bucket
func NewBlob(bucket *blob.Bucket, prefix string) *Blob {
	return &Blob{bucket: bucket, prefix: prefix}
}

func (b *Blob) ReadAll(ctx context.Context, key string) ([]byte, error) {
	data, err := b.bucket.ReadAll(ctx, b.prefix+key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, err
	}
	return data, nil
}

func (b *Blob) WriteAll(ctx context.Context, key string, data []byte) error {
	return b.bucket.WriteAll(ctx, b.prefix+key, data, nil)
}

func (b *Blob) Exists(ctx context.Context, key string) (bool, error) {
	return b.bucket.Exists(ctx, b.prefix+key)
}

func (b *Blob) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := b.bucket.List(&blob.ListOptions{Prefix: b.prefix + prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			return keys, nil
		}
		if err != nil {
			return nil, err
		}
		keys = append(keys, obj.Key[len(b.prefix):])
	}
}

func (b *Blob) Delete(ctx context.Context, key string) error {
	err := b.bucket.Delete(ctx, b.prefix+key)
	if err != nil && gcerrors.Code(err) == gcerrors.NotFound {
		return nil
	}
	return err
}

func (b *Blob) Close() error {
	return b.bucket.Close()
}

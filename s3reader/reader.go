// Package s3reader adapts an S3 object to io.ReadSeeker and io.ReaderAt using
// ranged GetObject calls, so that a pak archive can be indexed in place from a
// bucket without downloading it first. The directory reader's access pattern
// (a few short reads near the end of the object, then one sweep over the
// central directory) maps well onto ranged requests.
package s3reader

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/time/rate"
)

// Client abstracts the S3 APIs needed by this package.
type Client interface {
	GetObject(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Options customises New.
type Options struct {
	// CtxFn returns a context.Context to be used with every GetObject or
	// HeadObject call.
	//
	// By default, context.Background is used.
	CtxFn func() context.Context

	// ModifyGetObjectInput can be used to modify the GetObject input
	// parameters such as adding ExpectedBucketOwner.
	ModifyGetObjectInput func(*s3.GetObjectInput) *s3.GetObjectInput

	// MaxBytesPerSecond, when positive, throttles how fast object bytes are
	// pulled down.
	MaxBytesPerSecond int
}

// bufferSize is the minimum ranged-GET granularity; short reads are served
// from the remainder of the previous range.
const bufferSize = 64 * 1024

// New returns a ReadSeeker over the given bucket and key. A HeadObject call
// determines the object size, which Seek with io.SeekEnd relies on.
func New(client Client, bucket, key string, optFns ...func(*Options)) (*ReadSeeker, error) {
	opts := &Options{
		CtxFn: context.Background,
		ModifyGetObjectInput: func(input *s3.GetObjectInput) *s3.GetObjectInput {
			return input
		},
	}
	for _, fn := range optFns {
		fn(opts)
	}

	headObjectOutput, err := client.HeadObject(opts.CtxFn(), &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("determine object size error: %w", err)
	}

	r := &ReadSeeker{
		client:               client,
		bucket:               bucket,
		key:                  key,
		ctxFn:                opts.CtxFn,
		modifyGetObjectInput: opts.ModifyGetObjectInput,
		size:                 aws.ToInt64(headObjectOutput.ContentLength),
	}
	if opts.MaxBytesPerSecond > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(opts.MaxBytesPerSecond), opts.MaxBytesPerSecond)
	}
	return r, nil
}

// ReadSeeker implements io.ReadSeeker and io.ReaderAt over one S3 object.
//
// ReadSeeker is not safe for use across multiple goroutines.
type ReadSeeker struct {
	client               Client
	bucket, key          string
	ctxFn                func() context.Context
	modifyGetObjectInput func(*s3.GetObjectInput) *s3.GetObjectInput
	limiter              *rate.Limiter

	size int64
	off  int64
	// buf holds the unread remainder of the last range fetched at off.
	buf bytes.Buffer
}

// Size returns the object's content length.
func (r *ReadSeeker) Size() int64 {
	return r.size
}

func (r *ReadSeeker) Read(p []byte) (n int, err error) {
	m := len(p)
	if m == 0 {
		return 0, nil
	}

	if r.off >= r.size {
		return 0, io.EOF
	}

	// serve from the buffered remainder of the previous range if possible.
	if r.buf.Len() >= m {
		n, err = r.buf.Read(p)
		r.off += int64(n)
		return
	}

	rangeStart := r.off + int64(r.buf.Len())
	rangeEnd := min(r.off+max(int64(m), bufferSize), r.size) - 1
	if rangeEnd >= rangeStart {
		if err = r.fetch(rangeStart, rangeEnd); err != nil {
			return 0, err
		}
	}

	n, err = r.buf.Read(p)
	r.off += int64(n)
	if err == io.EOF && r.off < r.size {
		// the range simply ran out; the next Read fetches more.
		err = nil
	}
	return
}

func (r *ReadSeeker) ReadAt(p []byte, off int64) (n int, err error) {
	m := int64(len(p))
	if m == 0 {
		return 0, nil
	}

	getObjectOutput, err := r.client.GetObject(r.ctxFn(), r.modifyGetObjectInput(&s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, off+m-1)),
	}))
	if err != nil {
		return 0, err
	}

	n, err = io.ReadFull(getObjectOutput.Body, p)
	_ = getObjectOutput.Body.Close()
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return
}

func (r *ReadSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = r.off + offset
	case io.SeekEnd:
		abs = r.size + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}

	if abs < 0 {
		return 0, fmt.Errorf("seek to negative offset %d", abs)
	}

	if abs != r.off {
		r.buf.Reset()
	}
	r.off = abs
	return abs, nil
}

// fetch pulls [start, end] into the buffer.
func (r *ReadSeeker) fetch(start, end int64) error {
	if r.limiter != nil {
		n := int(end - start + 1)
		burst := r.limiter.Burst()
		for n > 0 {
			chunk := min(n, burst)
			if err := r.limiter.WaitN(r.ctxFn(), chunk); err != nil {
				return fmt.Errorf("rate limit wait error: %w", err)
			}
			n -= chunk
		}
	}

	getObjectOutput, err := r.client.GetObject(r.ctxFn(), r.modifyGetObjectInput(&s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", start, end)),
	}))
	if err != nil {
		return err
	}

	_, err = r.buf.ReadFrom(getObjectOutput.Body)
	if closeErr := getObjectOutput.Body.Close(); err == nil {
		err = closeErr
	}
	return err
}

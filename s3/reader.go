package s3

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/hupe1980/blockbucket"
)

// openContent opens a new content stream for the object at key. A nil rng
// requests the whole object; otherwise a range request for [Start, End) is
// issued with an inclusive upper bound of End-1, per the HTTP Range header.
// Every call opens a fresh stream; nothing is cached across calls.
func openContent(ctx context.Context, client Client, bucket, key string, rng *blockbucket.Range) (io.ReadCloser, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if rng != nil {
		if rng.Start < 0 || rng.End <= rng.Start {
			return nil, fmt.Errorf("invalid byte range [%d,%d)", rng.Start, rng.End)
		}
		input.Range = aws.String(fmt.Sprintf("bytes=%d-%d", rng.Start, rng.End-1))
	}

	resp, err := client.GetObject(ctx, input)
	if err != nil {
		return nil, err
	}

	return &drainingReadCloser{rc: resp.Body}, nil
}

// drainingReadCloser drains the remaining bytes before closing the
// underlying stream. Handing a half-read body back to a pooled HTTP client
// would otherwise corrupt the pool or force a fresh TCP connection.
//
// Close is idempotent and safe to call concurrently with an in-flight Read:
// when a read is active the drain is skipped and the transport stream is
// closed directly, which unblocks the reader. The drain runs only on the
// quiescent path and is best-effort; only the underlying close error
// surfaces. Reads after Close report io.ErrClosedPipe.
type drainingReadCloser struct {
	rc io.ReadCloser

	mu      sync.Mutex
	reading bool
	closed  bool
}

func (d *drainingReadCloser) Read(p []byte) (int, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	d.reading = true
	d.mu.Unlock()

	n, err := d.rc.Read(p)

	d.mu.Lock()
	d.reading = false
	d.mu.Unlock()

	return n, err
}

func (d *drainingReadCloser) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	// Draining would read the same stream a blocked Read is on; closing
	// the transport directly is the safe way to unblock it.
	if d.reading {
		return d.rc.Close()
	}

	_, _ = io.Copy(io.Discard, d.rc)
	return d.rc.Close()
}

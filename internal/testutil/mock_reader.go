package testutil

import "io"

var _ io.Reader = (*Reader)(nil)

// Reader stands in for crypto/rand. By default it fills p with zeroes.
type Reader struct {
	fail  bool
	short int
}

type readerOpt func(*Reader)

// WithFailOnRead makes every read fail with io.ErrUnexpectedEOF.
func WithFailOnRead() readerOpt {
	return func(r *Reader) { r.fail = true }
}

// WithShortRead makes every read report n bytes, however large p is.
func WithShortRead(n int) readerOpt {
	return func(r *Reader) { r.short = n }
}

func NewMockReader(opts ...readerOpt) io.Reader {
	r := new(Reader)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reader) Read(p []byte) (int, error) {
	switch {
	case r.fail:
		return 0, io.ErrUnexpectedEOF
	case r.short > 0:
		return min(r.short, len(p)), nil
	}
	clear(p)
	return len(p), nil
}

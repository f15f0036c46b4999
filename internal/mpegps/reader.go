package mpegps

import "github.com/gpaccore/mediacore/internal/importer"

// sourceReader adapts importer.Source to io.Reader while tracking the
// current absolute byte offset, so the demuxer can record RecordedAccessPoint
// byte offsets and compute rewinds (e.g. the 2-byte B9 rewind) without the
// underlying Source exposing a Tell().
type sourceReader struct {
	src importer.Source
	pos int64
}

func newSourceReader(src importer.Source) *sourceReader {
	return &sourceReader{src: src}
}

func (r *sourceReader) Read(p []byte) (int, error) {
	n, err := r.src.Read(p)
	r.pos += int64(n)
	return n, err
}

// Offset returns the current absolute read position.
func (r *sourceReader) Offset() int64 {
	return r.pos
}

// SeekTo repositions both the underlying source and the tracked offset.
func (r *sourceReader) SeekTo(abs int64) error {
	if err := r.src.Seek(abs); err != nil {
		return err
	}
	r.pos = abs
	return nil
}

package importer

// Source is the collaborator interface implemented by the host to supply
// input bytes (spec §6 "Source interface").
type Source interface {
	// Read fills buf and returns the number of bytes read. A zero n with a
	// nil error is not a valid return; implementations return io.EOF once
	// exhausted.
	Read(buf []byte) (n int, err error)

	// Seek moves the read cursor to an absolute byte offset.
	Seek(absOffset int64) error

	// Size returns the total byte length of the source, or (0, false) if
	// unknown (e.g. a live pipe).
	Size() (size int64, known bool)
}

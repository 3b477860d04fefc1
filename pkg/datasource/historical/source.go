package historical

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"unsafe"

	"golang.org/x/exp/mmap"
)

var ErrEof = errors.New("EOF")

// Source is a memory mapped file of fixed size records of T. T must not contain
// pointers or padding.
type Source[T any] struct {
	path       string
	reader     *mmap.ReaderAt
	entrySize  int64
	entryCount int64
	bufferPool *sync.Pool
}

func NewSource[T any](path string) *Source[T] {
	entrySize := int64(unsafe.Sizeof(*new(T)))
	return &Source[T]{
		path:      path,
		entrySize: entrySize,
		bufferPool: &sync.Pool{
			New: func() interface{} {
				buffer := make([]byte, entrySize)
				return &buffer
			},
		},
	}
}

func (s *Source[T]) Open() error {
	if s.entrySize == 0 {
		return fmt.Errorf("size of record is zero")
	}

	reader, err := mmap.Open(s.path)
	if err != nil {
		return fmt.Errorf("unable to open data source %q: %w", s.path, err)
	}

	size := int64(reader.Len())
	if size%s.entrySize != 0 {
		_ = reader.Close()
		return fmt.Errorf("data source %q size %d is not a multiple of record size %d", s.path, size, s.entrySize)
	}

	s.reader = reader
	s.entryCount = size / s.entrySize
	return nil
}

func (s *Source[T]) Close() error {
	if s.reader == nil {
		return nil
	}
	err := s.reader.Close()
	s.reader = nil
	return err
}

func (s *Source[T]) Path() string {
	return s.path
}

func (s *Source[T]) EntryCount() int64 {
	return s.entryCount
}

func (s *Source[T]) Read(index int64, data *T) error {
	if s.reader == nil {
		return fmt.Errorf("data source %q is not open", s.path)
	}
	if index < 0 || index >= s.entryCount {
		return ErrEof
	}

	buffer := s.bufferPool.Get().(*[]byte)
	defer s.bufferPool.Put(buffer)

	n, err := s.reader.ReadAt(*buffer, index*s.entrySize)
	if err != nil && err != io.EOF {
		return fmt.Errorf("unable to read record %d: %w", index, err)
	}
	if n < len(*buffer) {
		return ErrEof
	}

	*data = *(*T)(unsafe.Pointer(&(*buffer)[0])) // #nosec G103
	return nil
}

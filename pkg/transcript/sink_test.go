package transcript

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/matryer/is"
)

func TestSink_AppendsLines(t *testing.T) {
	is := is.New(t)
	var b strings.Builder
	s := NewWriterSink(&b)

	is.NoErr(s.Append("hello"))
	is.NoErr(s.Append("two\nlines"))
	is.NoErr(s.Append("   ")) // skipped
	is.Equal(b.String(), "hello\ntwo lines\n")
	is.Equal(s.Lines(), 2)
}

func TestSink_FileAppendsAcrossOpens(t *testing.T) {
	is := is.New(t)
	path := filepath.Join(t.TempDir(), "transcript.txt")

	s, err := Open(path)
	is.NoErr(err)
	is.NoErr(s.Append("first"))
	is.NoErr(s.Close())

	s, err = Open(path)
	is.NoErr(err)
	is.NoErr(s.Append("second"))
	is.NoErr(s.Close())
	is.NoErr(s.Close()) // idempotent

	data, err := os.ReadFile(path)
	is.NoErr(err)
	is.Equal(string(data), "first\nsecond\n")
}

func TestSink_AppendAfterClose(t *testing.T) {
	is := is.New(t)
	s := Discard()
	is.NoErr(s.Close())
	is.True(errors.Is(s.Append("late"), os.ErrClosed))
}

func TestSink_Concurrent(t *testing.T) {
	is := is.New(t)
	var b strings.Builder
	s := NewWriterSink(&b)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Append("line")
		}()
	}
	wg.Wait()

	is.Equal(s.Lines(), 20)
	is.Equal(strings.Count(b.String(), "line\n"), 20) // lines never interleave
}

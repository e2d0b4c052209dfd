package oracle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubOracle struct {
	name     string
	closeErr error
	closed   bool
}

func (s *stubOracle) Name() string             { return s.name }
func (s *stubOracle) Granularity() Granularity { return GranularityFile }
func (s *stubOracle) Available() bool          { return true }
func (s *stubOracle) Query(context.Context, string, int) ([]Result, error) {
	return []Result{}, nil
}
func (s *stubOracle) Close() error {
	s.closed = true
	return s.closeErr
}

func TestRegistry_OrderAndLookup(t *testing.T) {
	r, err := NewRegistry(&stubOracle{name: "b"}, &stubOracle{name: "a"})
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "a"}, r.Names())
	assert.Equal(t, 2, r.Len())
	o, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", o.Name())
	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(&stubOracle{name: "x"}, &stubOracle{name: "x"})
	assert.Error(t, err)
}

func TestRegistry_CloseJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	a := &stubOracle{name: "a", closeErr: boom}
	b := &stubOracle{name: "b"}
	r, err := NewRegistry(a, b)
	require.NoError(t, err)

	err = r.Close()

	assert.ErrorIs(t, err, boom)
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestFilePathFromID(t *testing.T) {
	assert.Equal(t, "a/b.go", FilePathFromID("a/b.go::Func"))
	assert.Equal(t, "a/b.go", FilePathFromID("a/b.go"))
	assert.Equal(t, "", FilePathFromID("::x"))
}

func TestParseGranularity(t *testing.T) {
	assert.Equal(t, GranularitySymbol, ParseGranularity("Symbol"))
	assert.Equal(t, GranularityFile, ParseGranularity(""))
}

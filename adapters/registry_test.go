package adapters

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/brettbedarf/termfs/internal/mocks"
)

func mockFactory(src Source) Factory {
	return func([]byte) (Source, error) { return src, nil }
}

func TestRegister_SingleSource(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	mockSource := &mocks.MockSource{}

	r.Register("mock", mockFactory(mockSource))
	src, err := r.GetSource([]byte(`{"type": "mock"}`))

	require.NoError(t, err)
	assert.Same(t, mockSource, src)
}

func TestRegister_MultipleSources(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	mockSource1 := &mocks.MockSource{}
	mockSource2 := &mocks.MockSource{}

	r.Register("test1", mockFactory(mockSource1))
	r.Register("test2", mockFactory(mockSource2))

	src1, err := r.GetSource([]byte(`{"type": "test1"}`))
	require.NoError(t, err)
	assert.Same(t, mockSource1, src1)

	src2, err := r.GetSource([]byte(`{"type": "test2"}`))
	require.NoError(t, err)
	assert.Same(t, mockSource2, src2)
}

func TestRegister_DuplicateSource(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	mockSource1 := &mocks.MockSource{}
	mockSource2 := &mocks.MockSource{}

	r.Register("test", mockFactory(mockSource1))
	r.Register("test", mockFactory(mockSource2))

	src, err := r.GetSource([]byte(`{"type": "test"}`))
	require.NoError(t, err)
	assert.Same(t, mockSource1, src, "first registration wins")
}

func TestGetSource_Errors(t *testing.T) {
	t.Parallel()

	r := NewRegistry()

	_, err := r.GetSource([]byte(`{"type": "ftp"}`))
	assert.ErrorIs(t, err, ErrUnknownSource)

	_, err = r.GetSource([]byte(`not json`))
	assert.Error(t, err)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Go(func() {
			sourceType := fmt.Sprintf("type%d", i)
			src := &mocks.MockSource{}
			r.Register(sourceType, mockFactory(src))
			got, err := r.GetSource(fmt.Appendf(nil, `{"type": %q}`, sourceType))
			assert.NoError(t, err)
			assert.Same(t, src, got)
		})
	}
	wg.Wait()
}

func TestDefaultRegistry(t *testing.T) {
	t.Parallel()

	mockSource := &mocks.MockSource{}
	mockSource.On("Fetch", mock.Anything).Return("from mock", nil)
	Register("registry-test", mockFactory(mockSource))
	RegisterBuiltins()

	src, err := GetSource([]byte(`{"type": "registry-test"}`))
	require.NoError(t, err)
	content, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from mock", content)
	mockSource.AssertExpectations(t)

	src, err = GetSource([]byte(`{"type": "file", "path": "/etc/hostname"}`))
	require.NoError(t, err)
	assert.IsType(t, &FileSource{}, src)

	src, err = GetSource([]byte(`{"type": "http", "url": "http://example.com"}`))
	require.NoError(t, err)
	assert.IsType(t, &HTTPSource{}, src)
}

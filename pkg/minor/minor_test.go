package minor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	size   int64
	writes int
}

func (s *stubStore) ReadAt(p []byte, off int64) (int, error) { return len(p), nil }
func (s *stubStore) WriteAt(p []byte, off int64) (int, error) { s.writes++; return len(p), nil }
func (s *stubStore) Size() int64 { return s.size }
func (s *stubStore) Close() error { return nil }

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"RO", ModeReadOnly, false},
		{"ro", ModeReadOnly, false},
		{"WR", ModeReadWrite, false},
		{"rw", ModeReadWrite, false},
		{"", ModeReadWrite, false},
		{"append", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	assert.Equal(t, "RO", ModeReadOnly.String())
	assert.Equal(t, "WR", ModeReadWrite.String())
}

func TestMinorReadOnlyRefusesWrites(t *testing.T) {
	st := &stubStore{size: 4096}
	m, err := New(0, "stub", TypeMemory, ModeReadOnly, st)
	require.NoError(t, err)

	_, err = m.WriteAt([]byte{1}, 0)
	assert.ErrorIs(t, err, ErrReadOnly)
	assert.Zero(t, st.writes)
}

func TestMinorSizeIsCapturedAtOpen(t *testing.T) {
	st := &stubStore{size: 4096}
	m, err := New(1, "stub", TypeFile, ModeReadWrite, st)
	require.NoError(t, err)

	st.size = 8192
	assert.Equal(t, int64(4096), m.Size())
	assert.Equal(t, uint32(8), m.Blocks())
	assert.Equal(t, "nd1", m.String())
}

func TestMinorRejectsOversizedStore(t *testing.T) {
	m, err := New(0, "edge", TypeFile, ModeReadOnly, &stubStore{size: MaxSize})
	require.NoError(t, err)
	assert.Equal(t, uint32(0xFFFFFFFF), m.Blocks())

	for _, size := range []int64{MaxSize + 1, 2 << 40, 1 << 50} {
		_, err := New(0, "huge", TypeFile, ModeReadOnly, &stubStore{size: size})
		assert.ErrorIs(t, err, ErrTooLarge, "size %d", size)
	}
}

package carve

import (
	"testing"

	"github.com/chazu/nanocarve/pkg/crystal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindCenterUnique(t *testing.T) {
	lat, err := crystal.Cubic(2)
	require.NoError(t, err)
	s := crystal.New(lat)
	s.Append(
		crystal.NewAtom("A", 0.1, 0.1, 0.1),
		crystal.NewAtom("B", 0.45, 0.5, 0.55),
		crystal.NewAtom("C", 0.9, 0.9, 0.9),
	)

	for i := 0; i < 3; i++ {
		idx, err := FindCenter(s)
		require.NoError(t, err)
		assert.Equal(t, 1, idx)
	}
}

func TestFindCenterTieLowestIndexWins(t *testing.T) {
	lat, err := crystal.Cubic(1)
	require.NoError(t, err)

	s := crystal.New(lat)
	s.Append(
		crystal.NewAtom("X", 0, 0, 0),
		crystal.NewAtom("Y", 0.25, 0.5, 0.5),
		crystal.NewAtom("Z", 0.75, 0.5, 0.5),
	)
	idx, err := FindCenter(s)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	s.Atoms[1], s.Atoms[2] = s.Atoms[2], s.Atoms[1]
	idx, err = FindCenter(s)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
}

func TestFindCenterUsesLatticeMetric(t *testing.T) {
	// Along a the cell is long, so a small fractional offset in x costs
	// more than a larger one in z.
	lat, err := crystal.NewLattice(100, 1, 1, 90, 90, 90)
	require.NoError(t, err)
	s := crystal.New(lat)
	s.Append(
		crystal.NewAtom("far-in-frac", 0.5, 0.5, 0.9),
		crystal.NewAtom("near-in-frac", 0.55, 0.5, 0.5),
	)
	idx, err := FindCenter(s)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
}

func TestFindCenterEmpty(t *testing.T) {
	lat, err := crystal.Cubic(1)
	require.NoError(t, err)
	idx, err := FindCenter(crystal.New(lat))
	assert.ErrorIs(t, err, ErrEmptyStructure)
	assert.Equal(t, -1, idx)
}

func TestFindCenterNil(t *testing.T) {
	idx, err := FindCenter(nil)
	assert.ErrorIs(t, err, ErrEmptyStructure)
	assert.Equal(t, -1, idx)
}

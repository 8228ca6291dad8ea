package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPageTrimsAndEncodesNextOffset(t *testing.T) {
	rows := []*int{new(int), new(int), new(int)}

	page, info := BuildPage(rows, 10, 2, "newest")
	require.Len(t, page, 2)
	require.True(t, info.HasMore)

	offset, err := Pagination{PageToken: info.NextPageToken}.Offset()
	require.NoError(t, err)
	assert.Equal(t, 12, offset)
}

func TestBuildPageLastPage(t *testing.T) {
	rows := []*int{new(int)}
	page, info := BuildPage(rows, 0, 5, "")
	assert.Len(t, page, 1)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}

func TestOffsetRejectsGarbage(t *testing.T) {
	_, err := Pagination{PageToken: "%%%"}.Offset()
	assert.ErrorIs(t, err, ErrInvalidPageToken)
}

func TestNormalizeClampsPageSize(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Normalize().PageSize)
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 1000}.Normalize().PageSize)
	assert.Equal(t, 7, Pagination{PageSize: 7}.Normalize().PageSize)
}

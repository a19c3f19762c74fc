package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
)

func TestJSONMetadataCache_AppendAndLookup(t *testing.T) {
	c := NewJSONMetadataCache(t.TempDir(), zap.NewNop())

	_, ok, err := c.Lookup("gedit")
	require.NoError(t, err)
	assert.False(t, ok)

	meta := domain.ProcessMetadata{ProcessName: "gedit", DisplayName: "Text Editor", IconReference: "file:///icons/gedit.png"}
	require.NoError(t, c.Append(meta))

	got, ok, err := c.Lookup("gedit")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, meta, *got)
}

func TestJSONMetadataCache_AppendKeepsFirstRecord(t *testing.T) {
	c := NewJSONMetadataCache(t.TempDir(), zap.NewNop())

	require.NoError(t, c.Append(domain.ProcessMetadata{ProcessName: "gedit", DisplayName: "first"}))
	require.NoError(t, c.Append(domain.ProcessMetadata{ProcessName: "gedit", DisplayName: "second"}))

	all, err := c.All()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "first", all["gedit"].DisplayName)
}

func TestJSONMetadataCache_ConcurrentAppends(t *testing.T) {
	c := NewJSONMetadataCache(t.TempDir(), zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("app%d", i%10)
			assert.NoError(t, c.Append(domain.ProcessMetadata{ProcessName: name, DisplayName: name}))
		}(i)
	}
	wg.Wait()

	all, err := c.All()
	require.NoError(t, err)
	assert.Len(t, all, 10)
}

func TestJSONMetadataCache_TolerantRead(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{name: "empty file", content: "", want: 0},
		{name: "not a list", content: `{"processName":"x"}`, want: 0},
		{name: "malformed record skipped", content: `[{"processName":"a","displayName":"A"}, 42, {"displayName":"no name"}]`, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "info.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0600))
			c := NewJSONMetadataCacheWithPath(path, zap.NewNop())

			all, err := c.All()
			require.NoError(t, err)
			assert.Len(t, all, tt.want)
		})
	}
}

func TestJSONMetadataCache_Clear(t *testing.T) {
	c := NewJSONMetadataCache(t.TempDir(), zap.NewNop())
	require.NoError(t, c.Append(domain.ProcessMetadata{ProcessName: "a"}))

	require.NoError(t, c.Clear())
	require.NoError(t, c.Clear())

	all, err := c.All()
	require.NoError(t, err)
	assert.Empty(t, all)
}

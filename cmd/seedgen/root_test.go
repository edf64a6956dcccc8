package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brightsteps-backend-go/internal/services"
)

func TestWriteCountry(t *testing.T) {
	curriculum, err := services.LoadCurriculum()
	require.NoError(t, err)
	opts := seedOptions{
		OutDir: t.TempDir(),
		Years:  []int{3},
		Now:    time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}

	path, count, err := writeCountry(curriculum, "gb", opts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(opts.OutDir, "lessons-gb.csv"), path)
	assert.Equal(t, 24, count)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, count+1)
	assert.True(t, strings.HasPrefix(lines[1], "MATH_Y3_counting_GB,GB,3,mathematics,"))

	again, _, err := writeCountry(curriculum, "GB", opts)
	require.NoError(t, err)
	second, err := os.ReadFile(again)
	require.NoError(t, err)
	assert.Equal(t, data, second)
}

func TestWriteCountry_Unsupported(t *testing.T) {
	curriculum, err := services.LoadCurriculum()
	require.NoError(t, err)
	_, _, err = writeCountry(curriculum, "FR", seedOptions{OutDir: t.TempDir()})
	assert.EqualError(t, err, "unsupported country")
}

package components

import (
	"testing"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestSparklineWindow(t *testing.T) {
	s := NewSparkline(3, "ops/s", lipgloss.NewStyle())
	for _, v := range []float64{10, 2, 4, 8} {
		s.Add(v)
	}

	assert.Equal(t, []float64{2, 4, 8}, s.Data)
	assert.Equal(t, 8.0, s.Max)
	assert.Equal(t, 8.0, s.Last())
	assert.Equal(t, "▂▄█", s.Graph())
}

func TestSparklinePadsAndClampsNegative(t *testing.T) {
	s := NewSparkline(4, "p99", lipgloss.NewStyle())
	s.Add(-5)

	g := s.Graph()
	assert.Equal(t, 4, utf8.RuneCountInString(g))
	assert.Equal(t, "    ", g)
	assert.Equal(t, 0.0, s.Last())
}

func TestSparklineShrunkWidth(t *testing.T) {
	s := NewSparkline(5, "ops/s", lipgloss.NewStyle())
	for i := 1; i <= 5; i++ {
		s.Add(float64(i))
	}
	s.Width = 2
	assert.Equal(t, 2, utf8.RuneCountInString(s.Graph()))
}

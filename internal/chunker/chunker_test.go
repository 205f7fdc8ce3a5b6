package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func requireContiguous(t *testing.T, chunks []Chunk) {
	t.Helper()
	for i, c := range chunks {
		require.Equal(t, i, c.Position)
		require.NotEmpty(t, strings.TrimSpace(c.Text))
	}
}

func TestSplit_Empty(t *testing.T) {
	require.Empty(t, Split(""))
	require.Empty(t, Split("   "))
	require.Empty(t, Split("\n\n\t\r\n"))
}

func TestSplit_NormalizesInput(t *testing.T) {
	chunks := Split("  first\r\nline\twith tab\r\n\r\n\r\nsecond  ")
	require.Len(t, chunks, 1)
	require.Equal(t, "first\nline  with tab\n\nsecond", chunks[0].Text)
	require.Equal(t, LanguageMixed, chunks[0].Language)
}

func TestSplit_GreedyParagraphBuffer(t *testing.T) {
	a := strings.Repeat("a", 40)
	b := strings.Repeat("b", 40)
	c := strings.Repeat("c", 40)
	chunks := Split(a+"\n\n"+b+"\n\n"+c, WithTargetSize(100), WithOverlap(10))
	require.Len(t, chunks, 2)
	require.Equal(t, a+"\n\n"+b, chunks[0].Text)
	require.Equal(t, c, chunks[1].Text)
	requireContiguous(t, chunks)
}

func TestSplit_ExactFitStaysInBuffer(t *testing.T) {
	a := strings.Repeat("a", 49)
	b := strings.Repeat("b", 49)
	chunks := Split(a+"\n\n"+b, WithTargetSize(100))
	require.Len(t, chunks, 1)
}

func TestSplit_OversizedParagraphUsesSlidingWindow(t *testing.T) {
	long := strings.Repeat("x", 250)
	chunks := Split("intro\n\n"+long+"\n\noutro", WithTargetSize(100), WithOverlap(20))
	requireContiguous(t, chunks)
	require.Equal(t, "intro", chunks[0].Text)
	// windows start at 0, 80, 160 and the last one is clipped
	require.Len(t, chunks, 5)
	require.Equal(t, 100, len(chunks[1].Text))
	require.Equal(t, 100, len(chunks[2].Text))
	require.Equal(t, 90, len(chunks[3].Text))
	require.Equal(t, "outro", chunks[4].Text)
}

func TestSplit_OverlapNotSmallerThanTargetTerminates(t *testing.T) {
	long := strings.Repeat("y", 30)
	chunks := Split(long, WithTargetSize(10), WithOverlap(10))
	require.NotEmpty(t, chunks)
	requireContiguous(t, chunks)
	for _, c := range chunks {
		require.LessOrEqual(t, len(c.Text), 10)
	}
}

func TestSplit_CountsCharactersNotBytes(t *testing.T) {
	para := strings.Repeat("学", 30)
	chunks := Split(para, WithTargetSize(30))
	require.Len(t, chunks, 1)
	chunks = Split(para, WithTargetSize(10), WithOverlap(0))
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		require.Equal(t, 10, utf8.RuneCountInString(c.Text))
	}
}

func TestSplit_SizeBound(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 60; i++ {
		sb.WriteString(strings.Repeat("word ", 1+i%17))
		sb.WriteString("\n\n")
	}
	target, overlap := 120, 30
	chunks := Split(sb.String(), WithTargetSize(target), WithOverlap(overlap))
	requireContiguous(t, chunks)
	for _, c := range chunks {
		require.LessOrEqual(t, utf8.RuneCountInString(c.Text), target+overlap+len(paragraphSeparator))
	}
}

func TestChunkBilingual_IdenticalIsMixedOnce(t *testing.T) {
	text := "same content\n\nsecond paragraph"
	got := ChunkBilingual(BilingualInput{ZH: text, EN: "  " + text + "\n"})
	want := Split(text)
	require.Equal(t, want, got)
	for _, c := range got {
		require.Equal(t, LanguageMixed, c.Language)
	}
}

func TestChunkBilingual_BothLanguages(t *testing.T) {
	got := ChunkBilingual(BilingualInput{ZH: "中文", EN: "English"})
	require.Len(t, got, 2)
	requireContiguous(t, got)
	require.Equal(t, LanguageZH, got[0].Language)
	require.Equal(t, "中文", got[0].Text)
	require.Equal(t, LanguageEN, got[1].Language)
	require.Equal(t, "English", got[1].Text)
}

func TestChunkBilingual_SharedCounter(t *testing.T) {
	zh := strings.Repeat("甲", 20) + "\n\n" + strings.Repeat("乙", 20)
	en := strings.Repeat("a", 20) + "\n\n" + strings.Repeat("b", 20)
	got := ChunkBilingual(BilingualInput{ZH: zh, EN: en}, WithTargetSize(25))
	require.Len(t, got, 4)
	requireContiguous(t, got)
	seen := map[int]bool{}
	for _, c := range got {
		require.False(t, seen[c.Position])
		seen[c.Position] = true
	}
}

func TestChunkBilingual_SingleSide(t *testing.T) {
	got := ChunkBilingual(BilingualInput{EN: "only english"})
	require.Len(t, got, 1)
	require.Equal(t, LanguageEN, got[0].Language)
	require.Equal(t, 0, got[0].Position)
	require.Empty(t, ChunkBilingual(BilingualInput{ZH: " ", EN: "\n"}))
}

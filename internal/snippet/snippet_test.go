package snippet

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillhq/quill/internal/genai"
)

type stubClient struct {
	genai.Client
	completeText string
	completeErr  error
}

func (c *stubClient) Complete(_ context.Context, _ string) (string, error) {
	return c.completeText, c.completeErr
}

const sourceChunk = "The quillback reaches maturity at four years. Sample size was 412 fish across nine rivers. Spawning occurs in gravel shallows during spring."

func TestExtractor_Extract(t *testing.T) {
	tests := []struct {
		name         string
		completeText string
		completeErr  error
		chunk        string
		want         string
		wantErr      bool
	}{
		{
			name:         "verbatim span passes through",
			completeText: "Sample size was 412 fish across nine rivers.",
			chunk:        sourceChunk,
			want:         "Sample size was 412 fish across nine rivers.",
		},
		{
			name:         "quoted span is unwrapped",
			completeText: `"Sample size was 412 fish across nine rivers."`,
			chunk:        sourceChunk,
			want:         "Sample size was 412 fish across nine rivers.",
		},
		{
			name:         "code fenced span is unwrapped",
			completeText: "```\nSample size was 412 fish across nine rivers.\n```",
			chunk:        sourceChunk,
			want:         "Sample size was 412 fish across nine rivers.",
		},
		{
			name:         "edge ellipses added by the model are removed",
			completeText: "...Sample size was 412 fish across nine rivers....",
			chunk:        sourceChunk,
			want:         "Sample size was 412 fish across nine rivers.",
		},
		{
			name:         "paraphrased span is rejected",
			completeText: "The sample included 412 fish from 9 rivers.",
			chunk:        sourceChunk,
			want:         "",
		},
		{
			name:         "NONE means nothing relevant",
			completeText: "NONE",
			chunk:        sourceChunk,
			want:         "",
		},
		{
			name:         "NONE with trailing period still counts",
			completeText: "None.",
			chunk:        sourceChunk,
			want:         "",
		},
		{
			name:         "empty chunk short-circuits",
			completeText: "irrelevant",
			chunk:        "   ",
			want:         "",
		},
		{
			name:         "oversized span is rejected",
			completeText: strings.Repeat("a", maxSpanLen+1),
			chunk:        strings.Repeat("a", maxSpanLen+10),
			want:         "",
		},
		{
			name:        "model failure propagates",
			completeErr: errors.New("quota exceeded"),
			chunk:       sourceChunk,
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExtractor(&stubClient{completeText: tt.completeText, completeErr: tt.completeErr}, nil)
			got, err := e.Extract(context.Background(), "what was the sample size?", tt.chunk)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtract_ResultIsSubstringOfSource(t *testing.T) {
	// When the span carries no interruption, every emitted character must
	// come verbatim from the chunk.
	e := NewExtractor(&stubClient{completeText: "Spawning occurs in gravel shallows during spring."}, nil)
	got, err := e.Extract(context.Background(), "when do they spawn?", sourceChunk)
	require.NoError(t, err)
	assert.True(t, strings.Contains(sourceChunk, got))
}

func TestCleanSpan(t *testing.T) {
	tests := []struct {
		name string
		span string
		want string
	}{
		{
			name: "clean span is untouched",
			span: "Sample size was 412 fish.",
			want: "Sample size was 412 fish.",
		},
		{
			name: "page divider keeps the longer side",
			span: "Sample size was 412 fish across nine rivers\n--- Page 12 ---\nand lakes",
			want: "Sample size was 412 fish across nine rivers",
		},
		{
			name: "form feed keeps the longer side",
			span: "short\fThe much longer continuation of the sentence survives",
			want: "The much longer continuation of the sentence survives",
		},
		{
			name: "inline page marker is dropped",
			span: "maturity at four years [Page 3] in most rivers",
			want: "maturity at four years",
		},
		{
			name: "table caption fragment is dropped",
			span: "Growth rates varied widely between populations\nTable 2: length at age\nacross sites",
			want: "Growth rates varied widely between populations",
		},
		{
			name: "figure caption fragment is dropped",
			span: "tiny\nFigure 4. spawning sites\nthe downstream text is what actually answers the question",
			want: "the downstream text is what actually answers the question",
		},
		{
			name: "run of citation markers keeps the longer side",
			span: "Spawning occurs in gravel shallows [12][13] in spring",
			want: "Spawning occurs in gravel shallows",
		},
		{
			name: "multi number citation bracket is an interruption",
			span: "documented in several surveys [3, 4, 5] of the upper basin",
			want: "documented in several surveys",
		},
		{
			name: "single citation bracket is not an interruption",
			span: "documented in one survey [3] of the upper basin",
			want: "documented in one survey [3] of the upper basin",
		},
		{
			name: "repeated interruptions resolve recursively",
			span: "a\n--- Page 1 ---\nbb [1][2] the longest surviving fragment of them all",
			want: "the longest surviving fragment of them all",
		},
		{
			name: "no ellipses are fabricated at cut points",
			span: "left side of the cut [10][11] right",
			want: "left side of the cut",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanSpan(tt.span)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "...")
		})
	}
}

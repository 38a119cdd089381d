package planner

import (
	"context"
	"errors"
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

func TestPlanner_Decompose(t *testing.T) {
	tests := []struct {
		name         string
		completeText string
		completeErr  error
		question     string
		want         Plan
	}{
		{
			name:         "splits into specific and generic",
			completeText: `{"specific": ["spawning temperature"], "generic": ["quillback life cycle"]}`,
			question:     "how do quillbacks reproduce?",
			want: Plan{
				Specific: []string{"spawning temperature"},
				Generic:  []string{"quillback life cycle"},
			},
		},
		{
			name:         "strips code fences",
			completeText: "```json\n{\"specific\": [\"a\"], \"generic\": []}\n```",
			question:     "q",
			want:         Plan{Specific: []string{"a"}},
		},
		{
			name:         "classifier failure falls open to the question",
			completeErr:  errors.New("quota exceeded"),
			question:     "how do quillbacks reproduce?",
			want:         Plan{Generic: []string{"how do quillbacks reproduce?"}},
		},
		{
			name:         "malformed json falls open",
			completeText: `{"specific": "not-a-list"`,
			question:     "q",
			want:         Plan{Generic: []string{"q"}},
		},
		{
			name:         "empty decomposition falls open",
			completeText: `{"specific": [], "generic": ["", "  "]}`,
			question:     "q",
			want:         Plan{Generic: []string{"q"}},
		},
		{
			name:         "duplicates collapse, specific wins",
			completeText: `{"specific": ["habitat", "habitat"], "generic": ["habitat", "range"]}`,
			question:     "q",
			want: Plan{
				Specific: []string{"habitat"},
				Generic:  []string{"range"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(&stubClient{completeText: tt.completeText, completeErr: tt.completeErr}, nil)
			got := p.Decompose(context.Background(), tt.question, nil)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlanner_Decompose_ClampsFanOut(t *testing.T) {
	p := New(&stubClient{
		completeText: `{"specific": ["s1","s2","s3","s4","s5","s6"], "generic": ["g1","g2","g3","g4"]}`,
	}, nil)

	got := p.Decompose(context.Background(), "q", []string{"user: earlier question", "assistant: earlier answer"})
	require.Len(t, got.SubQueries(), maxSubQueries)
	assert.Equal(t, []string{"s1", "s2", "s3", "s4", "s5", "s6"}, got.Specific)
	assert.Equal(t, []string{"g1", "g2"}, got.Generic)
}

func TestPlan_SubQueries(t *testing.T) {
	plan := Plan{Specific: []string{"a"}, Generic: []string{"b", "c"}}
	assert.Equal(t, []string{"a", "b", "c"}, plan.SubQueries())
}

package ai

import (
	"reflect"
	"testing"
)

func TestUnmarshalFlexible_ConceptVariants(t *testing.T) {
	want := ConceptResponse{Concepts: []ConceptCandidate{
		{Label: "Neural networks", Lemma: "neural network"},
		{Label: "Alan Turing", Lemma: "alan turing"},
	}}

	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "valid json object",
			input: `{"concepts":[{"label":"Neural networks","lemma":"neural network"},{"label":"Alan Turing","lemma":"alan turing"}]}`,
		},
		{
			name:  "unquoted keys and single quotes",
			input: `{concepts: [{label: 'Neural networks', lemma: 'neural network'}, {label: 'Alan Turing', lemma: 'alan turing'}]}`,
		},
		{
			name:  "trailing commas",
			input: `{"concepts":[{"label":"Neural networks","lemma":"neural network",},{"label":"Alan Turing","lemma":"alan turing"},]}`,
		},
		{
			name:  "missing closing brackets",
			input: `{"concepts":[{"label":"Neural networks","lemma":"neural network"},{"label":"Alan Turing","lemma":"alan turing"`,
		},
		{
			name:  "stringified",
			input: `"{\"concepts\":[{\"label\":\"Neural networks\",\"lemma\":\"neural network\"},{\"label\":\"Alan Turing\",\"lemma\":\"alan turing\"}]}"`,
		},
		{
			name:  "duplicate leading brace",
			input: "{\n{\"concepts\":[{\"label\":\"Neural networks\",\"lemma\":\"neural network\"},{\"label\":\"Alan Turing\",\"lemma\":\"alan turing\"}]}",
		},
		{
			name:  "markdown fence",
			input: "```json\n{\"concepts\":[{\"label\":\"Neural networks\",\"lemma\":\"neural network\"},{\"label\":\"Alan Turing\",\"lemma\":\"alan turing\"}]}\n```",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got ConceptResponse
			if err := UnmarshalFlexible(tc.input, &got); err != nil {
				t.Fatalf("UnmarshalFlexible() error = %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("UnmarshalFlexible() got = %+v, want %+v", got, want)
			}
		})
	}
}

func TestUnmarshalFlexible_Unrecoverable(t *testing.T) {
	var got ConceptResponse
	if err := UnmarshalFlexible("hello", &got); err == nil {
		t.Fatalf("UnmarshalFlexible() expected error for unrecoverable input")
	}
}

func TestGenerateSchema_ConceptResponse(t *testing.T) {
	schema := GenerateSchema(&ConceptResponse{})
	if schema == nil {
		t.Fatal("expected a schema")
	}
}

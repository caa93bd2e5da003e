package rows

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProject(t *testing.T) {
	tests := []struct {
		name     string
		in       []Row
		required []string
		want     []Row
	}{
		{
			name:     "drops incomplete rows",
			in:       []Row{{"a": "1", "b": "2"}, {"a": "3"}},
			required: []string{"a", "b"},
			want:     []Row{{"a": "1", "b": "2"}},
		},
		{
			name:     "drops extra columns",
			in:       []Row{{"a": "1", "b": "2", "c": "3"}},
			required: []string{"b"},
			want:     []Row{{"b": "2"}},
		},
		{
			name:     "empty value still counts as present",
			in:       []Row{{"a": ""}},
			required: []string{"a"},
			want:     []Row{{"a": ""}},
		},
		{
			name:     "keeps input order",
			in:       []Row{{"a": "2"}, {"b": "x"}, {"a": "1"}},
			required: []string{"a"},
			want:     []Row{{"a": "2"}, {"a": "1"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Project(tt.in, tt.required)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProject_NoValidRows(t *testing.T) {
	_, err := Project([]Row{{"a": "1"}}, []string{"a", "b"})
	assert.ErrorIs(t, err, ErrNoValidRows)

	_, err = Project(nil, []string{"a"})
	assert.ErrorIs(t, err, ErrNoValidRows)
}

func TestValues(t *testing.T) {
	in := []Row{{"id": "1", "name": "Ann"}, {"id": "2", "name": "Bo"}}
	assert.Equal(t, []any{"1", "Ann", "2", "Bo"}, Values(in, []string{"id", "name"}))
	assert.Equal(t, []any{"Ann", "1", "Bo", "2"}, Values(in, []string{"name", "id"}))
}

func TestFlattenJSON(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want []Row
	}{
		{
			name: "single object",
			doc:  `{"id": 1, "name": "Ann", "active": true, "score": 1.5, "note": null}`,
			want: []Row{{"id": "1", "name": "Ann", "active": "true", "score": "1.5", "note": ""}},
		},
		{
			name: "array of objects",
			doc:  `[{"id": 1}, {"id": 2}]`,
			want: []Row{{"id": "1"}, {"id": "2"}},
		},
		{
			name: "nested object",
			doc:  `{"album": {"name": "X", "type": "single"}}`,
			want: []Row{{"album.name": "X", "album.type": "single"}},
		},
		{
			name: "nested array carries siblings",
			doc:  `{"name": "Tears", "artists": [{"name": "A"}, {"name": "B"}]}`,
			want: []Row{
				{"name": "Tears", "artists.name": "A"},
				{"name": "Tears", "artists.name": "B"},
			},
		},
		{
			name: "deep nesting",
			doc:  `{"data": {"items": [{"track": {"id": "t1"}}, {"track": {"id": "t2"}}]}, "page": 1}`,
			want: []Row{
				{"page": "1", "data.items.track.id": "t1"},
				{"page": "1", "data.items.track.id": "t2"},
			},
		},
		{
			name: "sibling arrays are appended",
			doc:  `{"a": [1, 2], "b": [3]}`,
			want: []Row{{"a": "1"}, {"a": "2"}, {"b": "3"}},
		},
		{
			name: "empty nested array",
			doc:  `{"id": 1, "tags": []}`,
			want: []Row{{"id": "1"}},
		},
		{
			name: "large numbers keep precision",
			doc:  `{"id": 12345678901234567890}`,
			want: []Row{{"id": "12345678901234567890"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FlattenJSON([]byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFlatten_Errors(t *testing.T) {
	_, err := FlattenJSON([]byte(`"text"`))
	assert.Error(t, err)

	_, err = FlattenJSON([]byte(`{`))
	assert.Error(t, err)
}

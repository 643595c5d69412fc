package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleFragments_Render(t *testing.T) {
	tests := []struct {
		name     string
		fragment Fragment
		want     string
	}{
		{
			name:     "Literalはそのまま",
			fragment: NewLiteral("Keep it short."),
			want:     "Keep it short.",
		},
		{
			name:     "空のLiteral",
			fragment: NewLiteral(""),
			want:     "",
		},
		{
			name:     "Role",
			fragment: NewRole("senior Go reviewer"),
			want:     "Assume you are a senior Go reviewer.",
		},
		{
			name:     "Task",
			fragment: NewTask("summarize the text"),
			want:     "Your task is to summarize the text.",
		},
		{
			name:     "NoOtherWords",
			fragment: NewNoOtherWords(),
			want:     "Reply as requested, NO OTHER WORDS.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fragment.Render())
		})
	}
}

func TestNewFewShot_Empty(t *testing.T) {
	_, err := NewFewShot()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewFewShot([]string{}...)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestFewShot_Render(t *testing.T) {
	t.Run("例が1つ", func(t *testing.T) {
		f, err := NewFewShot("apple -> fruit")
		require.NoError(t, err)
		assert.Equal(t, "Here is an example:\napple -> fruit", f.Render())
	})

	t.Run("例が複数", func(t *testing.T) {
		f, err := NewFewShot("a", "b", "c")
		require.NoError(t, err)
		assert.Equal(t, "Here are some examples:\nExample 1: a\nExample 2: b\nExample 3: c", f.Render())
	})

	t.Run("すべての例が順番通りに含まれる", func(t *testing.T) {
		examples := []string{"first example", "second example", "third example", "fourth example"}
		f, err := NewFewShot(examples...)
		require.NoError(t, err)

		rendered := f.Render()
		last := -1
		for _, ex := range examples {
			idx := strings.Index(rendered, ex)
			require.GreaterOrEqual(t, idx, 0, "example %q is missing", ex)
			assert.Greater(t, idx, last, "example %q is out of order", ex)
			last = idx
		}
	})
}

func TestFewShot_IsImmutable(t *testing.T) {
	examples := []string{"x", "y"}
	f, err := NewFewShot(examples...)
	require.NoError(t, err)

	before := f.Render()
	examples[0] = "changed"
	got := f.Examples()
	got[1] = "changed too"

	assert.Equal(t, before, f.Render())
}

func TestNewRequestDict_Validation(t *testing.T) {
	tests := []struct {
		name         string
		keys         []string
		descriptions []string
		count        int
		wantErr      bool
	}{
		{name: "説明なし", keys: []string{"name", "age"}, descriptions: nil, count: 1},
		{name: "説明あり", keys: []string{"name", "age"}, descriptions: []string{"n", "a"}, count: 2},
		{name: "ベストエフォート", keys: []string{"name"}, descriptions: nil, count: BestEffort},
		{name: "説明の数が不一致", keys: []string{"name", "age"}, descriptions: []string{"n"}, count: 1, wantErr: true},
		{name: "空の説明リストはキーと不一致", keys: []string{"name"}, descriptions: []string{}, count: 1, wantErr: true},
		{name: "countが0", keys: []string{"name"}, count: 0, wantErr: true},
		{name: "countが-2", keys: []string{"name"}, count: -2, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRequestDict(tt.keys, tt.descriptions, tt.count)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArgument)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRequestDict_Render(t *testing.T) {
	t.Run("説明なし・件数指定", func(t *testing.T) {
		d, err := NewRequestDict([]string{"name", "age"}, nil, 3)
		require.NoError(t, err)

		want := "Your reply should be in key: value manner." +
			" When returning multiple occurrences, add a newline between occurrences." +
			" Reply 3 occurrences." +
			" The keys are as follows: name, age."
		assert.Equal(t, want, d.Render())
	})

	t.Run("説明あり・ベストエフォート", func(t *testing.T) {
		d, err := NewRequestDict([]string{"name", "age"}, []string{"full name", ""}, BestEffort)
		require.NoError(t, err)

		want := "Your reply should be in key: value manner." +
			" When returning multiple occurrences, add a newline between occurrences." +
			" Reply as many occurrences as you can." +
			" The keys and their descriptions are as follows:\n" +
			"name: full name\n" +
			"age: [description not provided]"
		assert.Equal(t, want, d.Render())
	})

	t.Run("キーごとに1行", func(t *testing.T) {
		keys := []string{"title", "author", "year"}
		d, err := NewRequestDict(keys, []string{"book title", "", "publication year"}, 1)
		require.NoError(t, err)

		rendered := d.Render()
		lines := strings.Split(rendered, "\n")
		require.Len(t, lines, 1+len(keys))
		for i, key := range keys {
			assert.True(t, strings.HasPrefix(lines[i+1], key+": "), "line %d = %q", i+1, lines[i+1])
		}
		assert.Contains(t, lines[2], descriptionNotProvided)
	})
}

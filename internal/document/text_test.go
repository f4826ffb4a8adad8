package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeText(t *testing.T) {
	doc, err := NormalizeText("docs/getting_started-guide.md", "Hello world.")
	require.NoError(t, err)

	assert.Equal(t, "Hello world.", doc.Content)
	assert.Equal(t, "Getting Started Guide", doc.Metadata.Title)
	assert.Equal(t, "text", doc.Metadata.FileType)
	assert.Equal(t, "docs/getting_started-guide.md", doc.Metadata.Source)
}

func TestNormalizeTextRejectsEmpty(t *testing.T) {
	_, err := NormalizeText("empty.txt", "   \n  ")
	require.ErrorIs(t, err, ErrEmptyDocument)
}

func TestTitleFromName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"user_manual.txt", "User Manual"},
		{"api-reference.md", "Api Reference"},
		{"notes", "Notes"},
		{"multi_word-mixed_name.json", "Multi Word Mixed Name"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, titleFromName(tt.name), tt.name)
	}
}

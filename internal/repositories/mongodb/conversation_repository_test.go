package mongodb

import (
	"strings"
	"testing"
	"unicode/utf8"

	"fundilink/internal/models"
)

func TestMessagePreview(t *testing.T) {
	tt := []struct {
		name    string
		message *models.Message
		want    string
	}{
		{
			name:    "short text verbatim",
			message: &models.Message{Type: models.MessageTypeText, Content: "niko hapa"},
			want:    "niko hapa",
		},
		{
			name:    "location placeholder",
			message: &models.Message{Type: models.MessageTypeLocation, Content: "ignored"},
			want:    "Shared a location",
		},
		{
			name:    "attachment placeholder",
			message: &models.Message{Type: models.MessageTypeAttachment},
			want:    "Sent an attachment",
		},
		{
			name:    "long text truncated",
			message: &models.Message{Type: models.MessageTypeText, Content: strings.Repeat("a", 200)},
			want:    strings.Repeat("a", 120),
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			if got := messagePreview(tc.message); got != tc.want {
				t.Errorf("messagePreview = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestMessagePreviewTruncatesByRunes(t *testing.T) {
	content := strings.Repeat("ĉ", 200)
	preview := messagePreview(&models.Message{Type: models.MessageTypeText, Content: content})

	if !utf8.ValidString(preview) {
		t.Fatal("preview is not valid UTF-8")
	}
	if got := utf8.RuneCountInString(preview); got != 120 {
		t.Errorf("preview rune count = %d, want 120", got)
	}
}

package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/clipflow/internal/clip"
)

func testRules() Rules {
	return Rules{
		ChannelIDs: []string{"clips", "highlights"},
		SelfID:     "bot",
		MediaHosts: []string{"youtube.com", "youtu.be", "twitch.tv", "www.streamable.com"},
		CDNHosts:   []string{"cdn.discordapp.com"},
		Extensions: []string{".mp4", "MOV", ".webm"},
	}
}

func cdnAttachment(name string) clip.Attachment {
	return clip.Attachment{URL: "https://cdn.discordapp.com/attachments/1/2/" + name, Filename: name}
}

func TestClassify(t *testing.T) {
	c := NewClassifier(testRules())

	tests := []struct {
		name    string
		ev      clip.Event
		want    clip.Source
		wantHit bool
	}{
		{
			name:    "youtube link",
			ev:      clip.Event{ChannelID: "clips", AuthorID: "u1", Content: "look https://www.youtube.com/watch?v=abc!"},
			want:    clip.Source{Kind: clip.KindRemoteURL, URL: "https://www.youtube.com/watch?v=abc"},
			wantHit: true,
		},
		{
			name:    "link inside parentheses",
			ev:      clip.Event{ChannelID: "clips", AuthorID: "u1", Content: "new clip (https://youtu.be/xyz)."},
			want:    clip.Source{Kind: clip.KindRemoteURL, URL: "https://youtu.be/xyz"},
			wantHit: true,
		},
		{
			name:    "balanced paren kept",
			ev:      clip.Event{ChannelID: "clips", AuthorID: "u1", Content: "https://streamable.com/clip_(final)"},
			want:    clip.Source{Kind: clip.KindRemoteURL, URL: "https://streamable.com/clip_(final)"},
			wantHit: true,
		},
		{
			name:    "bare link gets https",
			ev:      clip.Event{ChannelID: "clips", AuthorID: "u1", Content: "peep youtube.com/watch?v=x, lol"},
			want:    clip.Source{Kind: clip.KindRemoteURL, URL: "https://youtube.com/watch?v=x"},
			wantHit: true,
		},
		{
			name: "bare host without path",
			ev:   clip.Event{ChannelID: "clips", AuthorID: "u1", Content: "i live on youtube.com"},
		},
		{
			name: "bare link on other host",
			ev:   clip.Event{ChannelID: "clips", AuthorID: "u1", Content: "example.com/video"},
		},
		{
			name:    "second channel, twitch subdomain",
			ev:      clip.Event{ChannelID: "highlights", AuthorID: "u1", Content: "https://clips.twitch.tv/Funny-Clip"},
			want:    clip.Source{Kind: clip.KindRemoteURL, URL: "https://clips.twitch.tv/Funny-Clip"},
			wantHit: true,
		},
		{
			name:    "suppressed embed",
			ev:      clip.Event{ChannelID: "clips", AuthorID: "u1", Content: "<https://youtu.be/xyz>"},
			want:    clip.Source{Kind: clip.KindRemoteURL, URL: "https://youtu.be/xyz"},
			wantHit: true,
		},
		{
			name:    "allow-list entry with www prefix",
			ev:      clip.Event{ChannelID: "clips", AuthorID: "u1", Content: "https://streamable.com/q1w2"},
			want:    clip.Source{Kind: clip.KindRemoteURL, URL: "https://streamable.com/q1w2"},
			wantHit: true,
		},
		{
			name: "wrong channel",
			ev:   clip.Event{ChannelID: "general", AuthorID: "u1", Content: "https://youtu.be/xyz"},
		},
		{
			name: "own message",
			ev:   clip.Event{ChannelID: "clips", AuthorID: "bot", Content: "https://youtu.be/xyz"},
		},
		{
			name: "host not allowed",
			ev:   clip.Event{ChannelID: "clips", AuthorID: "u1", Content: "https://example.com/video.mp4"},
		},
		{
			name: "lookalike host",
			ev:   clip.Event{ChannelID: "clips", AuthorID: "u1", Content: "https://notyoutube.com/watch?v=1"},
		},
		{
			name: "only the first url counts",
			ev:   clip.Event{ChannelID: "clips", AuthorID: "u1", Content: "https://example.com then https://youtu.be/xyz"},
		},
		{
			name: "plain text",
			ev:   clip.Event{ChannelID: "clips", AuthorID: "u1", Content: "gg"},
		},
		{
			name: "attachment with disallowed extension and no url",
			ev:   clip.Event{ChannelID: "clips", AuthorID: "u1", Attachments: []clip.Attachment{cdnAttachment("notes.txt")}},
		},
		{
			name: "attachment off the cdn",
			ev: clip.Event{ChannelID: "clips", AuthorID: "u1", Attachments: []clip.Attachment{
				{URL: "https://evil.example/clip.mp4", Filename: "clip.mp4"},
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := c.Classify(tt.ev)
			assert.Equal(t, tt.wantHit, ok)
			if tt.wantHit {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestClassifyAttachment(t *testing.T) {
	c := NewClassifier(testRules())

	ev := clip.Event{
		ChannelID: "clips",
		AuthorID:  "u1",
		Content:   "check this out",
		Attachments: []clip.Attachment{
			cdnAttachment("readme.txt"),
			cdnAttachment("Play.MOV"),
			cdnAttachment("other.mp4"),
		},
	}

	got, ok := c.Classify(ev)
	require.True(t, ok)
	assert.Equal(t, clip.KindAttachment, got.Kind)
	require.NotNil(t, got.Attachment)
	assert.Equal(t, "Play.MOV", got.Attachment.Filename)
	assert.Empty(t, got.URL)
}

func TestClassifyURLBeatsAttachment(t *testing.T) {
	c := NewClassifier(testRules())

	ev := clip.Event{
		ChannelID:   "clips",
		AuthorID:    "u1",
		Content:     "https://youtu.be/abc",
		Attachments: []clip.Attachment{cdnAttachment("clip.mp4")},
	}

	got, ok := c.Classify(ev)
	require.True(t, ok)
	assert.Equal(t, clip.KindRemoteURL, got.Kind)
	assert.Nil(t, got.Attachment)
}

func TestTrimTrailing(t *testing.T) {
	tests := map[string]string{
		"https://youtu.be/a.":             "https://youtu.be/a",
		"https://youtu.be/a)":             "https://youtu.be/a",
		"https://youtu.be/a_(b)":          "https://youtu.be/a_(b)",
		"https://youtu.be/a_(b)).":        "https://youtu.be/a_(b)",
		"https://youtu.be/watch?v=1&t=2!": "https://youtu.be/watch?v=1&t=2",
	}
	for in, want := range tests {
		assert.Equal(t, want, trimTrailing(in), in)
	}
}

func TestHostAllowed(t *testing.T) {
	allowed := []string{"twitch.tv"}
	assert.True(t, hostAllowed("twitch.tv", allowed))
	assert.True(t, hostAllowed("WWW.Twitch.TV.", allowed))
	assert.False(t, hostAllowed("nottwitch.tv", allowed))
	assert.False(t, hostAllowed("", allowed))
}

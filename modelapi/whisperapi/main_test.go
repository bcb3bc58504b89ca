package whisperapi

import "testing"

func TestFileNameFor(t *testing.T) {
	cases := map[string]string{
		"audio/mp4":  "recording.mp4",
		"video/mp4":  "recording.mp4",
		"audio/webm": "recording.webm",
		"":           "recording.webm",
	}
	for mimeType, want := range cases {
		if got := fileNameFor(mimeType); got != want {
			t.Fatalf("fileNameFor(%q) = %q, want %q", mimeType, got, want)
		}
	}
}

func TestFirstN(t *testing.T) {
	if got := firstN("hello", 3); got != "hel" {
		t.Fatalf("expected hel, got %q", got)
	}
	if got := firstN("hi", 10); got != "hi" {
		t.Fatalf("expected hi, got %q", got)
	}
}

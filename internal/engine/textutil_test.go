package engine

import "testing"

func TestLanguageMatches(t *testing.T) {
	tests := []struct {
		detected, target string
		want             bool
	}{
		{"ko", "ko", true},
		{"ko-KR", "ko", true},
		{"KO", "ko", true},
		{"ko", "ko-KR", true},
		{"en", "ko", false},
		{"en-US", "en", true},
		{"", "ko", false},
		{"pt_BR", "pt", true},
	}
	for _, tt := range tests {
		t.Run(tt.detected+"→"+tt.target, func(t *testing.T) {
			if got := LanguageMatches(tt.detected, tt.target); got != tt.want {
				t.Errorf("LanguageMatches(%q, %q) = %v, want %v", tt.detected, tt.target, got, tt.want)
			}
		})
	}
}

func TestJoinSegmentText(t *testing.T) {
	segs := []Segment{
		{Text: "hello", TranslatedText: "안녕"},
		{Text: "world"},
		{Text: ""},
	}
	if got := JoinSegmentText(segs, 1000); got != "안녕 world" {
		t.Errorf("got %q", got)
	}

	t.Run("cap applies", func(t *testing.T) {
		long := []Segment{{Text: "aaaaaaaaaa"}, {Text: "bbbbbbbbbb"}}
		got := JoinSegmentText(long, 10)
		if len([]rune(got)) > 13 { // 10 + ellipsis suffix
			t.Errorf("cap not applied: %q", got)
		}
	})
}

func TestCleanHTML(t *testing.T) {
	if got := CleanHTML("  <b>bold</b> text\n"); got != "bold text" {
		t.Errorf("got %q", got)
	}
}

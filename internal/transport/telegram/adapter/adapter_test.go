package adapter

import (
	"strings"
	"testing"

	kit "remindbot/internal/transport"
)

func TestSplitText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		in    string
		limit int
		want  int
	}{
		{"short", "hello", 10, 1},
		{"exact", "abcdefghij", 10, 1},
		{"hard cut", strings.Repeat("x", 25), 10, 3},
		{"newline boundary", "aaaaaaa\nbbbbbbb\nccc", 10, 3},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := splitText(tt.in, tt.limit)
			if len(got) != tt.want {
				t.Fatalf("chunks = %q, want %d", got, tt.want)
			}
			for _, c := range got {
				if len([]rune(c)) > tt.limit {
					t.Fatalf("chunk %q over limit", c)
				}
			}
		})
	}
}

func TestParseTarget(t *testing.T) {
	t.Parallel()
	chat, thread, err := parseTarget(kit.ChatTarget{ChatID: "-1001234", ThreadID: "7"})
	if err != nil || chat.ID != -1001234 || thread != 7 {
		t.Fatalf("chat=%v thread=%d err=%v", chat, thread, err)
	}
	if _, _, err := parseTarget(kit.ChatTarget{ChatID: "C0123"}); err == nil {
		t.Fatal("non-numeric chat id should fail")
	}
	if _, _, err := parseTarget(kit.ChatTarget{ChatID: "1", ThreadID: "x"}); err == nil {
		t.Fatal("non-numeric thread id should fail")
	}
}

package domain

import "testing"

func TestEffectiveModeIsStickyForManager(t *testing.T) {
	state := NewChatState(111)
	if state.EffectiveMode() != ModeGeneral {
		t.Fatalf("expected general mode for a fresh state, got %s", state.EffectiveMode())
	}

	state.Mode = ModeSearch
	state.TransferredToManager = true
	if state.EffectiveMode() != ModeManager {
		t.Fatalf("transferred chats must dispatch to the manager handler, got %s", state.EffectiveMode())
	}
}

func TestParseStartPayload(t *testing.T) {
	cases := []struct {
		payload string
		id      int64
		ok      bool
	}{
		{"post_short_link_id-42", 42, true},
		{" post_short_link_id-7 ", 7, true},
		{"post_short_link_id-abc", 0, false},
		{"post_short_link_id--1", 0, false},
		{"promo", 0, false},
		{"", 0, false},
	}

	for _, tc := range cases {
		id, ok := ParseStartPayload(tc.payload)
		if id != tc.id || ok != tc.ok {
			t.Errorf("ParseStartPayload(%q) = (%d, %v), want (%d, %v)", tc.payload, id, ok, tc.id, tc.ok)
		}
	}

	if SourceFromStartPayload("post_short_link_id-42") != SourcePostLink {
		t.Errorf("expected post_link source")
	}
	if SourceFromStartPayload("") != SourceDirectLink {
		t.Errorf("expected direct_link source")
	}
}

func TestParseMode(t *testing.T) {
	if _, err := ParseMode("estate_news"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseMode("sales"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

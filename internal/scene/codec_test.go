package scene

import (
	"encoding/json"
	"testing"
)

func TestCodecRoundTrip(t *testing.T) {
	n := NewPost("Standup notes", "blocked on review", "alice", 120, 340, false)
	n.PostID = "1700000000000-alice"
	n.Extra = map[string]json.RawMessage{
		"fill":     json.RawMessage(`"#ffd700"`),
		"fontSize": json.RawMessage(`14`),
	}

	blob, err := EncodeNode(n)
	if err != nil {
		t.Fatalf("EncodeNode failed: %v", err)
	}

	nodes, err := DecodeView(blob)
	if err != nil {
		t.Fatalf("DecodeView failed: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("expected one node, got %d", len(nodes))
	}

	got := nodes[0]
	if got.PostID != n.PostID || got.Title != n.Title || got.Desc != n.Desc {
		t.Errorf("text fields did not survive round trip: %+v", got)
	}
	if got.Left != n.Left || got.Top != n.Top {
		t.Errorf("position did not survive round trip: (%v, %v)", got.Left, got.Top)
	}
	if got.Removed {
		t.Error("removed flag set on a live node")
	}
	if string(got.Extra["fill"]) != `"#ffd700"` {
		t.Errorf("unknown view property not preserved: %s", got.Extra["fill"])
	}
	if string(got.Extra["fontSize"]) != `14` {
		t.Errorf("unknown view property not preserved: %s", got.Extra["fontSize"])
	}
}

func TestCodecRemovedFlagOnlyWhenSet(t *testing.T) {
	n := NewPost("x", "", "alice", 0, 0, false)

	blob, err := EncodeNode(n)
	if err != nil {
		t.Fatalf("EncodeNode failed: %v", err)
	}
	var bag map[string]json.RawMessage
	if err := json.Unmarshal([]byte(blob), &bag); err != nil {
		t.Fatalf("blob is not a JSON object: %v", err)
	}
	if _, ok := bag["removed"]; ok {
		t.Error("live node blob should not carry a removed key")
	}

	n.Removed = true
	blob, err = EncodeNode(n)
	if err != nil {
		t.Fatalf("EncodeNode failed: %v", err)
	}
	if err := json.Unmarshal([]byte(blob), &bag); err != nil {
		t.Fatalf("blob is not a JSON object: %v", err)
	}
	if string(bag["removed"]) != "true" {
		t.Errorf("tombstoned node blob missing removed=true, got %s", bag["removed"])
	}
}

func TestDecodeViewArray(t *testing.T) {
	blob := `[
		{"postID": "1-alice", "name": "rect", "left": 10, "top": 20},
		{"postID": "1-alice", "name": "textbox", "title": "note", "left": 14, "top": 24}
	]`

	nodes, err := DecodeView(blob)
	if err != nil {
		t.Fatalf("DecodeView failed: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("expected two primitives, got %d", len(nodes))
	}
	if nodes[0].Name != "rect" || nodes[1].Name != "textbox" {
		t.Errorf("primitive names wrong: %q, %q", nodes[0].Name, nodes[1].Name)
	}
	if nodes[1].Title != "note" {
		t.Errorf("title wrong: %q", nodes[1].Title)
	}
}

func TestDecodeViewDefaultsScale(t *testing.T) {
	nodes, err := DecodeView(`{"postID": "1-alice"}`)
	if err != nil {
		t.Fatalf("DecodeView failed: %v", err)
	}
	if nodes[0].ScaleX != 1 || nodes[0].ScaleY != 1 {
		t.Errorf("expected default scale 1, got (%v, %v)", nodes[0].ScaleX, nodes[0].ScaleY)
	}
}

func TestDecodeViewRejectsGarbage(t *testing.T) {
	for _, blob := range []string{"", "not json", "[]", `{"left": "not a number"}`} {
		if _, err := DecodeView(blob); err == nil {
			t.Errorf("expected error decoding %q", blob)
		}
	}
}

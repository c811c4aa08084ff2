package scene

import (
	"encoding/json"
	"fmt"
)

// The serialized view blob is a JSON object (or array of objects) in the
// shape the original canvas library produces: a flat property bag per
// node. The codec extracts the keys the sync core understands and keeps
// everything else opaque so view-only properties survive a round trip
// through clients that do not know about them.

// viewKeys are the blob keys the codec interprets. All other keys are
// preserved verbatim in Node.Extra.
var viewKeys = map[string]bool{
	"postID":  true,
	"name":    true,
	"author":  true,
	"title":   true,
	"desc":    true,
	"left":    true,
	"top":     true,
	"width":   true,
	"height":  true,
	"scaleX":  true,
	"scaleY":  true,
	"removed": true,
}

// EncodeNode serializes a node into a view blob.
func EncodeNode(n *Node) (string, error) {
	bag := make(map[string]json.RawMessage, len(n.Extra)+12)
	for k, v := range n.Extra {
		bag[k] = v
	}
	put := func(k string, v any) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal view key %s: %w", k, err)
		}
		bag[k] = raw
		return nil
	}
	fields := map[string]any{
		"postID": n.PostID,
		"name":   n.Name,
		"author": n.Author,
		"title":  n.Title,
		"desc":   n.Desc,
		"left":   n.Left,
		"top":    n.Top,
		"width":  n.Width,
		"height": n.Height,
		"scaleX": n.ScaleX,
		"scaleY": n.ScaleY,
	}
	for k, v := range fields {
		if err := put(k, v); err != nil {
			return "", err
		}
	}
	if n.Removed {
		if err := put("removed", true); err != nil {
			return "", err
		}
	}

	out, err := json.Marshal(bag)
	if err != nil {
		return "", fmt.Errorf("failed to marshal view blob: %w", err)
	}
	return string(out), nil
}

// DecodeView parses a view blob into scene nodes. A blob is usually one
// object, but a logical entity may serialize as an array of primitives;
// callers should add the result with Graph.AddBatch either way.
func DecodeView(blob string) ([]*Node, error) {
	if blob == "" {
		return nil, fmt.Errorf("empty view blob")
	}

	trimmed := []byte(blob)
	if trimmed[0] == '[' {
		var bags []map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &bags); err != nil {
			return nil, fmt.Errorf("failed to parse view blob: %w", err)
		}
		nodes := make([]*Node, 0, len(bags))
		for _, bag := range bags {
			n, err := nodeFromBag(bag)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, n)
		}
		if len(nodes) == 0 {
			return nil, fmt.Errorf("view blob contains no objects")
		}
		return nodes, nil
	}

	var bag map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &bag); err != nil {
		return nil, fmt.Errorf("failed to parse view blob: %w", err)
	}
	n, err := nodeFromBag(bag)
	if err != nil {
		return nil, err
	}
	return []*Node{n}, nil
}

// nodeFromBag builds a node from a parsed property bag.
func nodeFromBag(bag map[string]json.RawMessage) (*Node, error) {
	n := &Node{ScaleX: 1, ScaleY: 1}

	get := func(k string, dst any) error {
		raw, ok := bag[k]
		if !ok {
			return nil
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("invalid view key %s: %w", k, err)
		}
		return nil
	}

	if err := get("postID", &n.PostID); err != nil {
		return nil, err
	}
	if err := get("name", &n.Name); err != nil {
		return nil, err
	}
	if err := get("author", &n.Author); err != nil {
		return nil, err
	}
	if err := get("title", &n.Title); err != nil {
		return nil, err
	}
	if err := get("desc", &n.Desc); err != nil {
		return nil, err
	}
	if err := get("left", &n.Left); err != nil {
		return nil, err
	}
	if err := get("top", &n.Top); err != nil {
		return nil, err
	}
	if err := get("width", &n.Width); err != nil {
		return nil, err
	}
	if err := get("height", &n.Height); err != nil {
		return nil, err
	}
	if err := get("scaleX", &n.ScaleX); err != nil {
		return nil, err
	}
	if err := get("scaleY", &n.ScaleY); err != nil {
		return nil, err
	}
	if err := get("removed", &n.Removed); err != nil {
		return nil, err
	}

	for k, v := range bag {
		if viewKeys[k] {
			continue
		}
		if n.Extra == nil {
			n.Extra = make(map[string]json.RawMessage)
		}
		n.Extra[k] = v
	}

	return n, nil
}

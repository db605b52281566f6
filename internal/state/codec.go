package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// FileExtension is the on-disk suffix of an encoded document.
const FileExtension = ".emojiart"

var (
	ErrEncoding = errors.New("state: encoding failed")
	ErrDecoding = errors.New("state: decoding failed")
)

type backgroundJSON struct {
	URL       *string `json:"url,omitempty"`
	ImageData *[]byte `json:"image_data,omitempty"`
}

type documentJSON struct {
	Background  backgroundJSON `json:"background"`
	Emojis      []Emoji        `json:"emojis"`
	NextEmojiID int            `json:"next_emoji_id,omitempty"`
}

// Encode serializes the document. Emojis are written in id order, which is
// also their display order, so equal models always encode to equal bytes.
func (m Model) Encode() ([]byte, error) {
	doc := documentJSON{
		Emojis:      m.emojis,
		NextEmojiID: m.nextEmojiID(),
	}
	if doc.Emojis == nil {
		doc.Emojis = []Emoji{}
	}
	switch m.background.kind {
	case BackgroundURL:
		u := m.background.url
		if u == "" {
			return nil, fmt.Errorf("%w: background url is empty", ErrEncoding)
		}
		doc.Background.URL = &u
	case BackgroundImageData:
		data := m.background.data
		if data == nil {
			data = []byte{}
		}
		doc.Background.ImageData = &data
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return data, nil
}

// Decode parses an encoded document and checks it: ids must be positive,
// unique and increasing, sizes positive, text non-empty, and at most one
// background variant present.
func Decode(data []byte) (Model, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Model{}, fmt.Errorf("%w: empty document", ErrDecoding)
	}
	if trimmed[0] != '{' {
		return Model{}, fmt.Errorf("%w: document is not an object", ErrDecoding)
	}

	var raw struct {
		Background  json.RawMessage `json:"background"`
		Emojis      []Emoji         `json:"emojis"`
		NextEmojiID int             `json:"next_emoji_id"`
	}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return Model{}, fmt.Errorf("%w: %v", ErrDecoding, err)
	}

	bg, err := decodeBackground(raw.Background)
	if err != nil {
		return Model{}, err
	}

	seen := make(map[int]bool, len(raw.Emojis))
	last := 0
	for _, e := range raw.Emojis {
		switch {
		case e.ID <= 0:
			return Model{}, fmt.Errorf("%w: emoji id %d is not positive", ErrDecoding, e.ID)
		case seen[e.ID]:
			return Model{}, fmt.Errorf("%w: duplicate emoji id %d", ErrDecoding, e.ID)
		case e.ID < last:
			return Model{}, fmt.Errorf("%w: emoji id %d out of order", ErrDecoding, e.ID)
		case e.Size <= 0:
			return Model{}, fmt.Errorf("%w: emoji %d has size %d", ErrDecoding, e.ID, e.Size)
		case e.Text == "" || !utf8.ValidString(e.Text):
			return Model{}, fmt.Errorf("%w: emoji %d has no text", ErrDecoding, e.ID)
		}
		seen[e.ID] = true
		last = e.ID
	}

	m := Model{background: bg, emojis: raw.Emojis, nextID: raw.NextEmojiID}
	if len(m.emojis) == 0 {
		m.emojis = nil
	}
	m.nextID = m.nextEmojiID()
	return m, nil
}

func decodeBackground(raw json.RawMessage) (Background, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Blank(), nil
	}
	var bg backgroundJSON
	if err := json.Unmarshal(raw, &bg); err != nil {
		return Background{}, fmt.Errorf("%w: background: %v", ErrDecoding, err)
	}
	switch {
	case bg.URL != nil && bg.ImageData != nil:
		return Background{}, fmt.Errorf("%w: background has both url and image_data", ErrDecoding)
	case bg.URL != nil:
		if *bg.URL == "" {
			return Background{}, fmt.Errorf("%w: background url is empty", ErrDecoding)
		}
		return URL(*bg.URL), nil
	case bg.ImageData != nil:
		return Background{kind: BackgroundImageData, data: *bg.ImageData}, nil
	}
	return Blank(), nil
}

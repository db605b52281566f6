package state

import "bytes"

// BackgroundKind tells which variant a Background holds.
type BackgroundKind int

const (
	BackgroundBlank BackgroundKind = iota
	BackgroundURL
	BackgroundImageData
)

func (k BackgroundKind) String() string {
	switch k {
	case BackgroundURL:
		return "url"
	case BackgroundImageData:
		return "image_data"
	default:
		return "blank"
	}
}

// Background is exactly one of: blank, a remote URL, or embedded image bytes.
// The zero value is Blank.
type Background struct {
	kind BackgroundKind
	url  string
	data []byte
}

func Blank() Background { return Background{} }

func URL(u string) Background {
	return Background{kind: BackgroundURL, url: u}
}

// ImageData embeds a copy of the given bytes.
func ImageData(data []byte) Background {
	return Background{kind: BackgroundImageData, data: bytes.Clone(data)}
}

func (b Background) Kind() BackgroundKind { return b.kind }

// URL returns the remote reference, or "" for other variants.
func (b Background) URL() string { return b.url }

// ImageData returns a copy of the embedded bytes, or nil for other variants.
func (b Background) ImageData() []byte { return bytes.Clone(b.data) }

func (b Background) Equal(o Background) bool {
	return b.kind == o.kind && b.url == o.url && bytes.Equal(b.data, o.data)
}

func (b Background) String() string {
	switch b.kind {
	case BackgroundURL:
		return "url(" + b.url + ")"
	case BackgroundImageData:
		return "image_data"
	default:
		return "blank"
	}
}

package domain

// SegmentKind classifies an inline piece of a rendered paragraph.
type SegmentKind string

const (
	SegmentText     SegmentKind = "text"
	SegmentBold     SegmentKind = "bold"
	SegmentBullet   SegmentKind = "bullet"
	SegmentCitation SegmentKind = "citation"
)

// CitationLink is one [n] reference resolved against the selected results.
// Resolved is false when n falls outside the selected list; URL is empty then.
type CitationLink struct {
	Index    int    `json:"index"`
	URL      string `json:"url,omitempty"`
	Title    string `json:"title,omitempty"`
	Resolved bool   `json:"resolved"`
}

type Segment struct {
	Kind  SegmentKind    `json:"kind"`
	Text  string         `json:"text,omitempty"`
	Links []CitationLink `json:"links,omitempty"`
}

type Paragraph struct {
	Segments []Segment `json:"segments"`
}

// Section is a titled group of paragraphs. Title is empty for text that
// precedes the first header.
type Section struct {
	Title      string      `json:"title,omitempty"`
	Paragraphs []Paragraph `json:"paragraphs"`
}

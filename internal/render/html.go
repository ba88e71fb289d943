package render

import (
	"bytes"
	"fmt"
	"html/template"

	"answer-engine/internal/domain"
)

// line is a run of segments shown on one visual line. Bullet lines are
// indented and prefixed with the bullet glyph.
type line struct {
	Bullet   bool
	Segments []domain.Segment
}

type htmlParagraph struct {
	Lines []line
}

type htmlSection struct {
	Title      string
	Paragraphs []htmlParagraph
}

var answerTemplate = template.Must(template.New("answer").Parse(`
{{- define "inline" -}}
{{- range . -}}
{{- if eq .Kind "bold" -}}<strong>{{.Text}}</strong>
{{- else if eq .Kind "citation" -}}<sup class="citation">
{{- range .Links -}}
{{- if .Resolved -}}<a href="{{.URL}}" title="{{.Title}}" target="_blank" rel="noopener noreferrer">[{{.Index}}]</a>
{{- else -}}<a class="dead">[{{.Index}}]</a>{{- end -}}
{{- end -}}</sup>
{{- else -}}{{.Text}}{{- end -}}
{{- end -}}
{{- end -}}
{{- range . -}}
<section class="answer-section">
{{- with .Title}}<h2>{{.}}</h2>{{end -}}
{{- range .Paragraphs -}}
<p>
{{- range .Lines -}}
{{- if .Bullet -}}<span class="bullet">` + bulletGlyph + ` {{template "inline" .Segments}}</span>
{{- else -}}{{template "inline" .Segments}}{{- end -}}
{{- end -}}
</p>
{{- end -}}
</section>
{{- end -}}`))

// HTML renders parsed sections as escaped markup.
func HTML(sections []domain.Section) (template.HTML, error) {
	if len(sections) == 0 {
		return "", nil
	}
	var buf bytes.Buffer
	if err := answerTemplate.Execute(&buf, toHTMLSections(sections)); err != nil {
		return "", fmt.Errorf("render: execute answer template: %w", err)
	}
	return template.HTML(buf.String()), nil
}

func toHTMLSections(sections []domain.Section) []htmlSection {
	out := make([]htmlSection, 0, len(sections))
	for _, s := range sections {
		hs := htmlSection{Title: s.Title}
		for _, p := range s.Paragraphs {
			hs.Paragraphs = append(hs.Paragraphs, htmlParagraph{Lines: splitLines(p.Segments)})
		}
		out = append(out, hs)
	}
	return out
}

// splitLines starts a new line at every bullet marker.
func splitLines(segs []domain.Segment) []line {
	var (
		lines []line
		cur   line
	)
	for _, seg := range segs {
		if seg.Kind == domain.SegmentBullet {
			if cur.Bullet || len(cur.Segments) > 0 {
				lines = append(lines, cur)
			}
			cur = line{Bullet: true}
			continue
		}
		cur.Segments = append(cur.Segments, seg)
	}
	if cur.Bullet || len(cur.Segments) > 0 {
		lines = append(lines, cur)
	}
	return lines
}

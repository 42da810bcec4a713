package ingest

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// StripReadmeHTML removes inline HTML markup (badges, centered logos,
// <details> wrappers) from a Markdown README while keeping the visible text
// and image alt text. Fenced code blocks are left untouched, as are
// angle-bracket tokens that are not HTML elements, such as <T> or autolinks.
func StripReadmeHTML(md string) string {
	if !strings.Contains(md, "<") {
		return md
	}

	lines := strings.Split(md, "\n")
	out := make([]string, 0, len(lines))
	fenced := false
	skipping := atom.Atom(0)
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			fenced = !fenced
			out = append(out, line)
			continue
		}
		if fenced || (skipping == 0 && !strings.Contains(line, "<")) {
			out = append(out, line)
			continue
		}
		var stripped string
		stripped, skipping = stripLine(line, skipping)
		if strings.TrimSpace(stripped) == "" && strings.TrimSpace(line) != "" {
			continue
		}
		out = append(out, stripped)
	}
	return strings.Join(out, "\n")
}

// stripLine strips one line. skipping carries an open <script>/<style>
// element across lines.
func stripLine(line string, skipping atom.Atom) (string, atom.Atom) {
	var sb strings.Builder
	z := html.NewTokenizer(strings.NewReader(line))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return sb.String(), skipping
		}
		// Token lowercases and unescapes in place; keep the original bytes.
		raw := append([]byte(nil), z.Raw()...)
		tok := z.Token()
		if skipping != 0 {
			if tt == html.EndTagToken && tok.DataAtom == skipping {
				skipping = 0
			}
			continue
		}
		switch tt {
		case html.TextToken:
			sb.Write(raw)
		case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
			switch tok.DataAtom {
			case 0:
				// Not an HTML element: generics, autolinks.
				sb.Write(raw)
			case atom.Script, atom.Style:
				if tt == html.StartTagToken {
					skipping = tok.DataAtom
				}
			case atom.Img:
				if alt := attr(tok, "alt"); alt != "" {
					sb.WriteString(alt)
				}
			case atom.Br:
				sb.WriteString(" ")
			}
		}
	}
}

func attr(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

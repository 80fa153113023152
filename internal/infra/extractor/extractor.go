// Package extractor implements the streaming HTML Content Extractor (spec
// §4.6): a budget-limited, tag-pruning text extraction pass over an HTML
// document that stops reading the underlying byte stream the moment its
// character budget is reached, instead of tokenizing a whole document just
// to discard the tail.
//
// This is built directly on golang.org/x/net/html's tokenizer rather than
// a DOM library (go-shiori/go-readability, goquery) because neither exposes
// a hook to cancel the underlying stream mid-parse or to suppress text by
// element class/id as it streams past — both are required here.
package extractor

import (
	"context"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// removeTags are dropped along with their entire subtree: no text inside
// them is ever emitted, regardless of nesting.
var removeTags = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Nav:      true,
	atom.Header:   true,
	atom.Footer:   true,
	atom.Aside:    true,
	atom.Menu:     true,
	atom.Form:     true,
	atom.Svg:      true,
	atom.Canvas:   true,
	atom.Iframe:   true,
	atom.Noscript: true,
	atom.Title:    true,
}

// suppressTags are descended into (nested removable subtrees still get
// pruned) but their own text is never emitted.
var suppressTags = map[atom.Atom]bool{
	atom.Button:   true,
	atom.Input:    true,
	atom.Select:   true,
	atom.Textarea: true,
}

// skipClassOrID matches class/id tokens that mark a boilerplate region —
// matching elements are treated exactly like removeTags (whole subtree
// dropped), even though the tag itself (e.g. <div>) is otherwise content.
var skipClassOrID = regexp.MustCompile(`(?i)\b(nav|menu|menu-item|header|footer|sidebar|aside|advertisement|ad-|promo|banner|widget|share|social|comment|related|recommend)\b`)

// Options configures one extraction run.
type Options struct {
	// MaxChars is the character budget; extraction stops (and the
	// underlying stream is closed) once the accumulated text reaches it.
	// Zero means use DefaultMaxChars.
	MaxChars int
	// Debug interleaves "[tag]"/"(owner)" markers into the output for
	// operator inspection. Never set when the result feeds summarization.
	Debug bool
}

// DefaultMaxChars is the default content budget (spec §4.6: 10 KiB).
const DefaultMaxChars = 10 * 1024

type frame struct {
	tag        string
	removed    bool
	suppressed bool
}

// Extract reads HTML from body and returns the pruned, budget-limited text.
// body is closed before Extract returns, whether the budget was reached,
// the document ended naturally, ctx was canceled, or a parse error occurred —
// callers must not assume body is still open afterward.
func Extract(ctx context.Context, body io.ReadCloser, opts Options) (string, error) {
	defer func() { _ = body.Close() }()

	maxChars := opts.MaxChars
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	z := html.NewTokenizer(body)
	var sb strings.Builder
	var stack []frame
	charCount := 0

	top := func() (frame, bool) {
		if len(stack) == 0 {
			return frame{}, false
		}
		return stack[len(stack)-1], true
	}

	for {
		if ctx.Err() != nil {
			return sb.String(), ctx.Err()
		}
		if charCount >= maxChars {
			return sb.String(), nil
		}

		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != nil && err != io.EOF {
				return sb.String(), err
			}
			return sb.String(), nil

		case html.TextToken:
			t, ok := top()
			if ok && (t.removed || t.suppressed) {
				continue
			}
			text := strings.TrimSpace(string(z.Text()))
			if text == "" {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(text)
			charCount += len(text)

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tagAtom := atom.Lookup(name)

			parentRemoved, parentSuppressed := false, false
			if t, ok := top(); ok {
				parentRemoved = t.removed
				parentSuppressed = t.suppressed
			}

			removed := parentRemoved || removeTags[tagAtom]
			owner := ""
			if !removed && hasAttr {
				removed, owner = matchesSkipScope(z)
			} else if hasAttr {
				// still need to advance past attributes even when already removed
				_, owner = matchesSkipScope(z)
			}
			suppressed := parentSuppressed || suppressTags[tagAtom]

			if opts.Debug && !removed {
				writeDebugMarker(&sb, string(name), owner)
			}

			if tt == html.StartTagToken && !isVoidElement(tagAtom) {
				stack = append(stack, frame{tag: string(name), removed: removed, suppressed: suppressed})
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			if t, ok := top(); ok && t.tag == string(name) {
				stack = stack[:len(stack)-1]
			}
		}
	}
}

// matchesSkipScope consumes the current start tag's attributes (the
// tokenizer requires this before the next Next() call) and reports whether
// class or id matches skipClassOrID, plus the matched token for debug
// markers.
func matchesSkipScope(z *html.Tokenizer) (bool, string) {
	matched := false
	owner := ""
	for {
		key, val, more := z.TagAttr()
		k := string(key)
		if k == "class" || k == "id" {
			v := string(val)
			if loc := skipClassOrID.FindString(v); loc != "" {
				matched = true
				owner = v
			}
		}
		if !more {
			break
		}
	}
	return matched, owner
}

func writeDebugMarker(sb *strings.Builder, tag, owner string) {
	if sb.Len() > 0 {
		sb.WriteByte(' ')
	}
	sb.WriteString("[" + tag + "]")
	if owner != "" {
		sb.WriteString(" (" + owner + ")")
	}
}

func isVoidElement(a atom.Atom) bool {
	switch a {
	case atom.Area, atom.Base, atom.Br, atom.Col, atom.Embed, atom.Hr, atom.Img,
		atom.Input, atom.Link, atom.Meta, atom.Param, atom.Source, atom.Track, atom.Wbr:
		return true
	default:
		return false
	}
}

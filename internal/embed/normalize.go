// Package embed post-processes social media embed markup and resolves tweet
// URLs to embed HTML.
package embed

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	DefaultMaxWidth  = "500px"
	DefaultMaxHeight = "500px"
)

var ErrInvalidEmbed = errors.New("invalid embed code")

// Normalize constrains embed markup for the board's social app. LinkedIn
// embeds must contain an iframe; iframes lose their fixed height. X/Twitter
// blockquotes get the same size cap. Other apps pass through unchanged.
func Normalize(socialApp, markup string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(socialApp)) {
	case "linkedin":
		return rewrite(markup, atom.Iframe, true)
	case "twitter", "x":
		return rewrite(markup, atom.Blockquote, false)
	default:
		return markup, nil
	}
}

func rewrite(markup string, target atom.Atom, required bool) (string, error) {
	parent := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), parent)
	if err != nil {
		return "", fmt.Errorf("parse embed: %w", err)
	}

	style := fmt.Sprintf("max-width: %s; max-height: %s;", DefaultMaxWidth, DefaultMaxHeight)
	found := 0
	for _, node := range nodes {
		walk(node, func(n *html.Node) {
			if n.Type != html.ElementNode || n.DataAtom != target {
				return
			}
			found++
			if target == atom.Iframe {
				n.Attr = dropAttr(n.Attr, "height")
			}
			n.Attr = setAttr(n.Attr, "style", style)
		})
	}
	if required && found == 0 {
		return "", ErrInvalidEmbed
	}

	var buf bytes.Buffer
	for _, node := range nodes {
		if err := html.Render(&buf, node); err != nil {
			return "", fmt.Errorf("render embed: %w", err)
		}
	}
	return buf.String(), nil
}

func walk(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		walk(child, visit)
	}
}

func dropAttr(attrs []html.Attribute, key string) []html.Attribute {
	kept := attrs[:0]
	for _, attr := range attrs {
		if attr.Namespace == "" && strings.EqualFold(attr.Key, key) {
			continue
		}
		kept = append(kept, attr)
	}
	return kept
}

func setAttr(attrs []html.Attribute, key, value string) []html.Attribute {
	for i, attr := range attrs {
		if attr.Namespace == "" && strings.EqualFold(attr.Key, key) {
			attrs[i].Val = value
			return attrs
		}
	}
	return append(attrs, html.Attribute{Key: key, Val: value})
}

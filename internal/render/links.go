package render

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var linkRel = []string{"nofollow", "noopener", "noreferrer"}

// decorateLinks opens every anchor in a new tab and merges the safety
// relations into whatever rel it already carries.
func decorateLinks(root *html.Node) {
	walkElements(root, atom.A, func(a *html.Node) {
		setAttr(a, "target", "_blank")

		existing, _ := attr(a, "rel")
		rel := strings.Fields(existing)
		for _, want := range linkRel {
			if !containsFold(rel, want) {
				rel = append(rel, want)
			}
		}
		setAttr(a, "rel", strings.Join(rel, " "))
	})
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// walkElements calls fn for every element of the given type, depth first
func walkElements(n *html.Node, a atom.Atom, fn func(*html.Node)) {
	if n.Type == html.ElementNode && n.DataAtom == a {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkElements(c, a, fn)
	}
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

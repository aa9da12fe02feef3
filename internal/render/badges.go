package render

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// SourceHost is a code host whose links are turned into badges. Links to
// the default host are labelled without their domain.
type SourceHost struct {
	Domain  string
	Default bool
}

// DefaultSourceHosts are the hosts recognised out of the box
var DefaultSourceHosts = []SourceHost{
	{Domain: "github.com", Default: true},
	{Domain: "gitlab.com"},
	{Domain: "codeberg.org"},
}

// BadgeKind is the shape of a recognised source link
type BadgeKind string

const (
	BadgeCommit  BadgeKind = "commit"
	BadgeCompare BadgeKind = "compare"
	BadgeIssue   BadgeKind = "issue"
	BadgeRepo    BadgeKind = "repo"
)

// Badge is the compact form of a source link
type Badge struct {
	Kind  BadgeKind
	Host  SourceHost
	Owner string
	Repo  string
	Ref   string
}

// RepoLabel is owner/repo, prefixed with the domain for non-default hosts
func (b Badge) RepoLabel() string {
	label := b.Owner + "/" + b.Repo
	if !b.Host.Default {
		label = b.Host.Domain + ":" + label
	}
	return label
}

// RefLabel is the abbreviated commit, compare range or #number
func (b Badge) RefLabel() string {
	switch b.Kind {
	case BadgeCommit:
		return shortSHA(b.Ref)
	case BadgeCompare:
		parts := strings.SplitN(b.Ref, "...", 2)
		if len(parts) == 2 {
			return shortSHA(parts[0]) + "..." + shortSHA(parts[1])
		}
		return b.Ref
	case BadgeIssue:
		return "#" + b.Ref
	default:
		return ""
	}
}

// Label is the full badge text
func (b Badge) Label() string {
	switch b.Kind {
	case BadgeIssue:
		return b.RepoLabel() + b.RefLabel()
	case BadgeRepo:
		return b.RepoLabel()
	default:
		return b.RepoLabel() + "@" + b.RefLabel()
	}
}

var (
	fullSHA  = regexp.MustCompile(`^[0-9a-fA-F]{40}$`)
	issueNum = regexp.MustCompile(`^[0-9]+$`)
)

func shortSHA(ref string) string {
	if fullSHA.MatchString(ref) {
		return ref[:7]
	}
	return ref
}

// ParseSourceLink recognises commit, compare, issue or pull request, and
// bare repository links on one of hosts.
func ParseSourceLink(href string, hosts []SourceHost) (Badge, bool) {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return Badge{}, false
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return Badge{}, false
	}

	domain := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	var host SourceHost
	var known bool
	for _, h := range hosts {
		if h.Domain == domain {
			host, known = h, true
			break
		}
	}
	if !known {
		return Badge{}, false
	}

	var segs []string
	for _, s := range strings.Split(strings.Trim(u.Path, "/"), "/") {
		if s == "-" {
			continue
		}
		if s == "" {
			return Badge{}, false
		}
		segs = append(segs, s)
	}
	if len(segs) < 2 {
		return Badge{}, false
	}

	b := Badge{Host: host, Owner: segs[0], Repo: strings.TrimSuffix(segs[1], ".git")}
	switch {
	case len(segs) == 2:
		b.Kind = BadgeRepo
	case len(segs) == 4 && segs[2] == "commit":
		b.Kind, b.Ref = BadgeCommit, segs[3]
	case len(segs) >= 4 && segs[2] == "compare":
		// Branch names may contain slashes
		b.Kind, b.Ref = BadgeCompare, strings.Join(segs[3:], "/")
	case len(segs) == 4 && isIssuePath(segs[2]) && issueNum.MatchString(segs[3]):
		b.Kind, b.Ref = BadgeIssue, segs[3]
	default:
		return Badge{}, false
	}
	return b, true
}

func isIssuePath(s string) bool {
	switch s {
	case "issues", "pull", "pulls", "merge_requests":
		return true
	}
	return false
}

// rewriteBadges turns plain source links into badges. Only anchors whose
// single text child equals the href qualify.
func rewriteBadges(root *html.Node, hosts []SourceHost) {
	walkElements(root, atom.A, func(a *html.Node) {
		href, ok := attr(a, "href")
		if !ok || href == "" {
			return
		}
		child := a.FirstChild
		if child == nil || child.NextSibling != nil || child.Type != html.TextNode {
			return
		}
		if strings.TrimSpace(child.Data) != href {
			return
		}
		badge, ok := ParseSourceLink(href, hosts)
		if !ok {
			return
		}

		a.RemoveChild(child)
		setAttr(a, "class", "source-badge source-badge-"+string(badge.Kind))
		a.AppendChild(spanNode("source-badge-repo", badge.RepoLabel()))
		if ref := badge.RefLabel(); ref != "" {
			a.AppendChild(spanNode("source-badge-ref", ref))
		}
	})
}

func spanNode(class, text string) *html.Node {
	el := &html.Node{
		Type:     html.ElementNode,
		Data:     "span",
		DataAtom: atom.Span,
		Attr:     []html.Attribute{{Key: "class", Val: class}},
	}
	el.AppendChild(textNode(text))
	return el
}

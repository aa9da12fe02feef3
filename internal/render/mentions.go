package render

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/skridlevsky/commitboard/internal/calendar"
	"github.com/skridlevsky/commitboard/internal/discord"
)

const emojiCDN = "https://cdn.discordapp.com/emojis"

// TokenKind identifies an inline platform token
type TokenKind int

const (
	TokenUser TokenKind = iota
	TokenChannel
	TokenRole
	TokenEmoji
	TokenTimestamp
)

func (k TokenKind) String() string {
	switch k {
	case TokenUser:
		return "user"
	case TokenChannel:
		return "channel"
	case TokenRole:
		return "role"
	case TokenEmoji:
		return "emoji"
	case TokenTimestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// Token is one inline token found in a text node. Start and End are byte
// offsets into the text it was found in.
type Token struct {
	Kind     TokenKind
	ID       string
	Name     string
	Animated bool
	Unix     int64
	Style    string
	Start    int
	End      int
}

// Subgroups: 1 user, 2 channel, 3 role, 4 animated flag, 5 emoji name,
// 6 emoji id, 7 epoch seconds, 8 timestamp style.
var tokenPattern = regexp.MustCompile(`<(?:@!?(\d+)|#(\d+)|@&(\d+)|(a?):(\w{2,32}):(\d+)|t:(-?\d{1,13})(?::([tTdDfFR]))?)>`)

// Tokenize finds every non-overlapping token in text, in order
func Tokenize(text string) []Token {
	matches := tokenPattern.FindAllStringSubmatchIndex(text, -1)
	tokens := make([]Token, 0, len(matches))
	group := func(m []int, i int) string {
		if m[2*i] < 0 {
			return ""
		}
		return text[m[2*i]:m[2*i+1]]
	}

	for _, m := range matches {
		tok := Token{Start: m[0], End: m[1]}
		switch {
		case m[2] >= 0:
			tok.Kind, tok.ID = TokenUser, group(m, 1)
		case m[4] >= 0:
			tok.Kind, tok.ID = TokenChannel, group(m, 2)
		case m[6] >= 0:
			tok.Kind, tok.ID = TokenRole, group(m, 3)
		case m[12] >= 0:
			tok.Kind = TokenEmoji
			tok.Animated = group(m, 4) == "a"
			tok.Name, tok.ID = group(m, 5), group(m, 6)
		case m[14] >= 0:
			unix, err := strconv.ParseInt(group(m, 7), 10, 64)
			if err != nil {
				continue
			}
			tok.Kind, tok.Unix, tok.Style = TokenTimestamp, unix, group(m, 8)
		default:
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// EntityResolver looks up the entities mentions point at
type EntityResolver interface {
	User(ctx context.Context, id string) discord.Result[discord.User]
	Channel(ctx context.Context, id string) discord.Result[discord.Channel]
	Role(ctx context.Context, id string) discord.Result[discord.Role]
}

type entityKey struct {
	kind TokenKind
	id   string
}

type textTokens struct {
	node   *html.Node
	tokens []Token
}

// collectTokens tokenizes every text node outside code blocks
func collectTokens(root *html.Node) []textTokens {
	var found []textTokens
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.DataAtom == atom.Code || n.DataAtom == atom.Pre) {
			return
		}
		if n.Type == html.TextNode {
			if tokens := Tokenize(n.Data); len(tokens) > 0 {
				found = append(found, textTokens{node: n, tokens: tokens})
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return found
}

// resolveEntities looks up every distinct mentioned entity concurrently and
// returns display labels. Entities that cannot be resolved are absent.
func (r *Renderer) resolveEntities(ctx context.Context, found []textTokens) map[entityKey]string {
	labels := make(map[entityKey]string)
	if r.resolver == nil {
		return labels
	}

	keys := make(map[entityKey]struct{})
	for _, tt := range found {
		for _, tok := range tt.tokens {
			switch tok.Kind {
			case TokenUser, TokenChannel, TokenRole:
				keys[entityKey{kind: tok.Kind, id: tok.ID}] = struct{}{}
			}
		}
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for key := range keys {
		key := key
		wg.Add(1)
		go func() {
			defer wg.Done()
			var label string
			var ok bool
			switch key.kind {
			case TokenUser:
				var u discord.User
				if u, ok = r.resolver.User(ctx, key.id).Get(); ok {
					label = u.DisplayName()
				}
			case TokenChannel:
				var ch discord.Channel
				if ch, ok = r.resolver.Channel(ctx, key.id).Get(); ok {
					label = ch.Name
				}
			case TokenRole:
				var role discord.Role
				if role, ok = r.resolver.Role(ctx, key.id).Get(); ok {
					label = role.Name
				}
			}
			if !ok || label == "" {
				r.log.WithFields(logrus.Fields{
					"kind": key.kind.String(),
					"id":   key.id,
				}).Debug("Mention rendered with fallback label")
				return
			}
			mu.Lock()
			labels[key] = label
			mu.Unlock()
		}()
	}
	wg.Wait()
	return labels
}

// substituteTokens replaces each token in its text node with a rendered element
func (r *Renderer) substituteTokens(found []textTokens, labels map[entityKey]string) {
	for _, tt := range found {
		n := tt.node
		parent := n.Parent
		if parent == nil {
			continue
		}
		text := n.Data
		prev := 0
		for _, tok := range tt.tokens {
			if tok.Start > prev {
				parent.InsertBefore(textNode(text[prev:tok.Start]), n)
			}
			parent.InsertBefore(r.tokenNode(tok, labels), n)
			prev = tok.End
		}
		if prev < len(text) {
			parent.InsertBefore(textNode(text[prev:]), n)
		}
		parent.RemoveChild(n)
	}
}

func (r *Renderer) tokenNode(tok Token, labels map[entityKey]string) *html.Node {
	label := labels[entityKey{kind: tok.Kind, id: tok.ID}]
	switch tok.Kind {
	case TokenUser:
		return mentionNode("user", tok.ID, "@"+orDefault(label, "user"))
	case TokenChannel:
		return mentionNode("channel", tok.ID, "#"+orDefault(label, "channel"))
	case TokenRole:
		return mentionNode("role", tok.ID, "@"+orDefault(label, "role"))
	case TokenEmoji:
		ext := "webp"
		if tok.Animated {
			ext = "gif"
		}
		return &html.Node{
			Type:     html.ElementNode,
			Data:     "img",
			DataAtom: atom.Img,
			Attr: []html.Attribute{
				{Key: "class", Val: "emoji"},
				{Key: "src", Val: fmt.Sprintf("%s/%s.%s", emojiCDN, tok.ID, ext)},
				{Key: "alt", Val: ":" + tok.Name + ":"},
				{Key: "title", Val: tok.Name},
			},
		}
	default:
		t := time.Unix(tok.Unix, 0)
		el := &html.Node{
			Type:     html.ElementNode,
			Data:     "time",
			DataAtom: atom.Time,
			Attr: []html.Attribute{
				{Key: "class", Val: "timestamp"},
				{Key: "datetime", Val: t.UTC().Format(time.RFC3339)},
			},
		}
		el.AppendChild(textNode(r.formatTimestamp(t, tok.Style)))
		return el
	}
}

// formatTimestamp follows the platform's timestamp style letters
func (r *Renderer) formatTimestamp(t time.Time, style string) string {
	t = t.In(r.loc)
	switch style {
	case "t":
		return t.Format("15:04")
	case "T":
		return t.Format("15:04:05")
	case "d":
		return t.Format("01/02/2006")
	case "D":
		return t.Format("January 2, 2006")
	case "F":
		return t.Format("Monday, January 2, 2006 15:04")
	case "R":
		return calendar.RelativeTime(t, r.now())
	default:
		return t.Format("January 2, 2006 15:04")
	}
}

func mentionNode(kind, id, label string) *html.Node {
	el := &html.Node{
		Type:     html.ElementNode,
		Data:     "span",
		DataAtom: atom.Span,
		Attr: []html.Attribute{
			{Key: "class", Val: "mention mention-" + kind},
			{Key: "data-id", Val: id},
		},
	}
	el.AppendChild(textNode(label))
	return el
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

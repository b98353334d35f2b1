// Package actions reads data-lf-action attributes from user template HTML
// and applies them to a form session.
package actions

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"landform/internal/form"
)

type Kind string

const (
	KindNext    Kind = "next"
	KindBack    Kind = "back"
	KindSubmit  Kind = "submit"
	KindGoto    Kind = "goto"
	KindLink    Kind = "link"
	KindRestart Kind = "restart"
)

const (
	AttrAction = "data-lf-action"
	AttrTarget = "data-lf-target"
	AttrURL    = "data-lf-url"
)

// TargetWelcome in data-lf-target sends the respondent to the first item.
const TargetWelcome = "welcome"

func Valid(kind string) bool {
	switch Kind(kind) {
	case KindNext, KindBack, KindSubmit, KindGoto, KindLink, KindRestart:
		return true
	}
	return false
}

// Action is one actionable element found in a template.
type Action struct {
	Kind   Kind   `json:"action"`
	Target string `json:"target,omitempty"`
	URL    string `json:"url,omitempty"`
	Tag    string `json:"tag"`
	Label  string `json:"label,omitempty"`
}

// Parse returns the actions declared in src in document order. Elements with
// an unknown action are skipped.
func Parse(src string) ([]Action, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse template html: %w", err)
	}
	var out []Action
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if a, ok := fromNode(n); ok {
				out = append(out, a)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)
	return out, nil
}

func fromNode(n *html.Node) (Action, bool) {
	kind, ok := attr(n, AttrAction)
	if !ok || !Valid(kind) {
		return Action{}, false
	}
	target, _ := attr(n, AttrTarget)
	url, _ := attr(n, AttrURL)
	return Action{
		Kind:   Kind(kind),
		Target: target,
		URL:    url,
		Tag:    n.Data,
		Label:  strings.Join(strings.Fields(textContent(n)), " "),
	}, true
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			v := strings.TrimSpace(a.Val)
			return v, v != ""
		}
	}
	return "", false
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textContent(c))
	}
	return sb.String()
}

// Session is the part of the form controller actions drive.
type Session interface {
	Next(ctx context.Context, pending form.Answer)
	Previous()
	Submit(ctx context.Context)
	GoTo(index int)
	GoToRef(ref string) bool
	Reset(ctx context.Context)
}

// Result reports what Dispatch did. OpenURL is set for link actions; opening
// it is up to the renderer.
type Result struct {
	Kind    Kind   `json:"action"`
	Applied bool   `json:"applied"`
	OpenURL string `json:"openUrl,omitempty"`
}

// Dispatch applies a to s.
func Dispatch(ctx context.Context, s Session, a Action) (Result, error) {
	res := Result{Kind: a.Kind}
	switch a.Kind {
	case KindNext:
		s.Next(ctx, nil)
	case KindBack:
		s.Previous()
	case KindSubmit:
		s.Submit(ctx)
	case KindRestart:
		s.Reset(ctx)
	case KindGoto:
		if a.Target == "" {
			return res, fmt.Errorf("goto action needs %s", AttrTarget)
		}
		if a.Target == TargetWelcome {
			s.GoTo(0)
			break
		}
		if !s.GoToRef(a.Target) {
			return res, fmt.Errorf("goto target %q not found", a.Target)
		}
	case KindLink:
		if a.URL == "" {
			return res, fmt.Errorf("link action needs %s", AttrURL)
		}
		res.OpenURL = a.URL
	default:
		return res, fmt.Errorf("unknown action %q", a.Kind)
	}
	res.Applied = true
	return res, nil
}

// Package sequence flattens form content into the ordered list of items a
// respondent walks through.
package sequence

import (
	"sort"

	"landform/internal/form"
)

type Kind string

const (
	KindWelcome      Kind = "welcome"
	KindField        Kind = "field"
	KindCustom       Kind = "custom"
	KindUserTemplate Kind = "user-template"
	KindThankYou     Kind = "thankYou"
)

// Item is one navigable entry. Exactly one of the pointer members is set,
// matching Kind. FieldIndex is the position among fields only.
type Item struct {
	Kind       Kind                 `json:"type"`
	Welcome    *form.WelcomeScreen  `json:"welcome,omitempty"`
	Field      *form.Field          `json:"field,omitempty"`
	FieldIndex int                  `json:"index"`
	Custom     *form.CustomScreen   `json:"custom,omitempty"`
	User       *form.UserScreen     `json:"user,omitempty"`
	Template   *form.PageTemplate   `json:"template,omitempty"`
	ThankYou   *form.ThankYouScreen `json:"thankYou,omitempty"`
}

// Ref returns the ref of the underlying screen or field.
func (it Item) Ref() string {
	switch it.Kind {
	case KindWelcome:
		return it.Welcome.Ref
	case KindField:
		return it.Field.Ref
	case KindCustom:
		return it.Custom.Ref
	case KindUserTemplate:
		return it.User.Ref
	case KindThankYou:
		return it.ThankYou.Ref
	}
	return ""
}

// insert is a custom or user screen waiting for its slot. slot is the
// number of fields that precede it; order breaks ties by declaration.
type insert struct {
	slot  int
	order int
	item  Item
}

// Build returns welcome screens, then fields with any custom/user screens
// inserted at their positions, then thank-you screens. User screens whose
// template is not in templates are dropped.
func Build(content *form.Content, templates map[string]form.PageTemplate) []Item {
	if content == nil {
		return nil
	}
	fieldSlot := make(map[string]int, len(content.Fields))
	for i, f := range content.Fields {
		fieldSlot[f.Ref] = i + 1
	}
	end := len(content.Fields)
	slotOf := func(p form.Position) int {
		if p.After != "" {
			if slot, ok := fieldSlot[p.After]; ok {
				return slot
			}
			return end
		}
		if p.Anchor == form.PositionStart {
			return 0
		}
		return end
	}

	var inserts []insert
	for i := range content.CustomScreens {
		screen := &content.CustomScreens[i]
		inserts = append(inserts, insert{
			slot:  slotOf(screen.Position),
			order: len(inserts),
			item:  Item{Kind: KindCustom, Custom: screen, FieldIndex: -1},
		})
	}
	for i := range content.UserScreens {
		screen := &content.UserScreens[i]
		tpl, ok := templates[screen.TemplateID]
		if !ok {
			continue
		}
		inserts = append(inserts, insert{
			slot:  slotOf(screen.Position),
			order: len(inserts),
			item:  Item{Kind: KindUserTemplate, User: screen, Template: &tpl, FieldIndex: -1},
		})
	}
	sort.SliceStable(inserts, func(i, j int) bool {
		if inserts[i].slot != inserts[j].slot {
			return inserts[i].slot < inserts[j].slot
		}
		return inserts[i].order < inserts[j].order
	})

	items := make([]Item, 0, len(content.WelcomeScreens)+len(content.Fields)+len(inserts)+len(content.ThankYouScreens))
	for i := range content.WelcomeScreens {
		items = append(items, Item{Kind: KindWelcome, Welcome: &content.WelcomeScreens[i], FieldIndex: -1})
	}
	next := 0
	flush := func(slot int) {
		for next < len(inserts) && inserts[next].slot == slot {
			items = append(items, inserts[next].item)
			next++
		}
	}
	flush(0)
	for i := range content.Fields {
		items = append(items, Item{Kind: KindField, Field: &content.Fields[i], FieldIndex: i})
		flush(i + 1)
	}
	for i := range content.ThankYouScreens {
		items = append(items, Item{Kind: KindThankYou, ThankYou: &content.ThankYouScreens[i], FieldIndex: -1})
	}
	return items
}

// FieldBounds returns the sequence indices of the first and last field
// items. With no fields, first is the count of leading welcome items and
// last is first-1.
func FieldBounds(items []Item) (first, last int) {
	first, last = -1, -1
	for i, it := range items {
		if it.Kind != KindField {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	if first >= 0 {
		return first, last
	}
	welcome := 0
	for _, it := range items {
		if it.Kind != KindWelcome {
			break
		}
		welcome++
	}
	return welcome, welcome - 1
}

// IndexOf returns the first index whose ref matches, or -1.
func IndexOf(items []Item, ref string) int {
	for i, it := range items {
		if it.Ref() == ref {
			return i
		}
	}
	return -1
}

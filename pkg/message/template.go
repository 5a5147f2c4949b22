// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package message

// Template is a predicate to decide if a Message is of interest.
type Template interface {
	Match(msg Message) bool
}

// TemplateFunc lets an ordinary function act as a Template.
type TemplateFunc func(msg Message) bool

// Match calls the function itself.
func (f TemplateFunc) Match(msg Message) bool {
	return f(msg)
}

var (
	// MatchAll accepts every Message.
	MatchAll Template = TemplateFunc(func(Message) bool { return true })

	// MatchNone rejects every Message.
	MatchNone Template = TemplateFunc(func(Message) bool { return false })
)

// FieldTemplate matches a Message field by field. Unset fields act as wildcards; thus, an empty FieldTemplate
// matches everything.
//
// Sender and To are compared on the bare Address, unless the FieldTemplate's Address has a resource itself.
// Metadata must be a subset of the Message's metadata.
type FieldTemplate struct {
	Sender   Address
	To       Address
	Body     string
	Thread   string
	Metadata map[string]string
}

// matchAddress compares a template's Address against a Message's Address.
func matchAddress(tmpl, addr Address) bool {
	switch {
	case tmpl.IsZero():
		return true
	case tmpl.Resource() != "":
		return tmpl == addr
	default:
		return tmpl.SameAgent(addr)
	}
}

// Match the Message against all set fields.
func (ft FieldTemplate) Match(msg Message) bool {
	if !matchAddress(ft.Sender, msg.Sender) || !matchAddress(ft.To, msg.To) {
		return false
	}
	if ft.Body != "" && ft.Body != msg.Body {
		return false
	}
	if ft.Thread != "" && ft.Thread != msg.Thread {
		return false
	}
	for k, v := range ft.Metadata {
		if mv, ok := msg.Metadata[k]; !ok || mv != v {
			return false
		}
	}
	return true
}

// And matches if all Templates match.
func And(tmpls ...Template) Template {
	return TemplateFunc(func(msg Message) bool {
		for _, tmpl := range tmpls {
			if !tmpl.Match(msg) {
				return false
			}
		}
		return true
	})
}

// Or matches if at least one Template matches.
func Or(tmpls ...Template) Template {
	return TemplateFunc(func(msg Message) bool {
		for _, tmpl := range tmpls {
			if tmpl.Match(msg) {
				return true
			}
		}
		return false
	})
}

// Xor matches if exactly one of both Templates matches.
func Xor(a, b Template) Template {
	return TemplateFunc(func(msg Message) bool {
		return a.Match(msg) != b.Match(msg)
	})
}

// Not inverts a Template.
func Not(tmpl Template) Template {
	return TemplateFunc(func(msg Message) bool {
		return !tmpl.Match(msg)
	})
}

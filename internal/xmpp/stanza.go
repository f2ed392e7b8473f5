package xmpp

import (
	"encoding/xml"
	"strings"
)

// Message is an inbound message stanza from the component stream. Only the
// fields the push flow needs are mapped.
type Message struct {
	XMLName xml.Name `xml:"message"`
	From    string   `xml:"from,attr"`
	To      string   `xml:"to,attr"`
	Type    string   `xml:"type,attr"`
	ID      string   `xml:"id,attr"`
	Body    string   `xml:"body"`
}

// Token returns the device token encoded in the localpart of the addressed
// JID, or "" when the stanza is not addressed to a token.
func (m *Message) Token() string {
	local, _ := splitJID(m.To)
	return local
}

// AppDomain returns the domain part of the addressed JID, which selects the
// push backend.
func (m *Message) AppDomain() string {
	_, domain := splitJID(m.To)
	return domain
}

// splitJID splits a bare JID into localpart and domain. The resource, if
// present, is discarded.
func splitJID(jid string) (local, domain string) {
	if i := strings.IndexByte(jid, '/'); i >= 0 {
		jid = jid[:i]
	}
	if i := strings.IndexByte(jid, '@'); i >= 0 {
		return jid[:i], jid[i+1:]
	}
	return "", jid
}

// MessageError is the protocol-level error reply optionally sent back for
// undeliverable notifications.
type MessageError struct {
	XMLName xml.Name   `xml:"message"`
	From    string     `xml:"from,attr"`
	To      string     `xml:"to,attr"`
	Type    string     `xml:"type,attr"`
	ID      string     `xml:"id,attr,omitempty"`
	Error   errorChild `xml:"error"`
}

type errorChild struct {
	Type      string         `xml:"type,attr"`
	Condition errorCondition `xml:",any"`
}

type errorCondition struct {
	XMLName xml.Name
}

// ErrorReply builds a type="error" bounce of the given message with the
// given defined condition (e.g. "item-not-found", "recipient-unavailable").
func ErrorReply(m *Message, condition string) MessageError {
	return MessageError{
		From: m.To,
		To:   m.From,
		Type: "error",
		ID:   m.ID,
		Error: errorChild{
			Type: "cancel",
			Condition: errorCondition{
				XMLName: xml.Name{
					Space: "urn:ietf:params:xml:ns:xmpp-stanzas",
					Local: condition,
				},
			},
		},
	}
}

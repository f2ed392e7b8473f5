// Package xmpp implements the client side of an XEP-0114 component
// connection: stream open, secret handshake, and a stanza receive loop
// with parse-error isolation.
package xmpp

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gsanchietti/fpush/internal/logging"
	"github.com/gsanchietti/fpush/internal/metrics"
)

// State describes the connection lifecycle. It is owned by Conn and only
// observed by callers.
type State int32

const (
	Disconnected State = iota
	Handshaking
	Connected
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Handshaking:
		return "handshaking"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrConnectionLost signals transport-level loss of an established
// connection. It terminates the Recv sequence and is distinguishable from
// per-stanza errors, which are absorbed.
var ErrConnectionLost = errors.New("component connection lost")

const streamNS = "http://etherx.jabber.org/streams"

const defaultHandshakeTimeout = 30 * time.Second

// Options are the parameters needed to establish a component connection.
type Options struct {
	// Addr is the XMPP server address (host:port).
	Addr string
	// Domain is the component JID.
	Domain string
	// Secret is the shared handshake secret.
	Secret string
	// HandshakeTimeout bounds the whole connect sequence; zero means a
	// 30 second default.
	HandshakeTimeout time.Duration
}

// Conn is an authenticated component connection. Recv must be called from a
// single goroutine; Send is safe for concurrent use.
type Conn struct {
	conn     net.Conn
	dec      *xml.Decoder
	streamID string
	state    atomic.Int32

	wmu sync.Mutex
}

// Dial opens the transport, performs the stream open and secret handshake,
// and returns an established connection. Any failure at any step abandons
// the attempt; no half-open connection is retained.
func Dial(ctx context.Context, opts Options) (*Conn, error) {
	timeout := opts.HandshakeTimeout
	if timeout == 0 {
		timeout = defaultHandshakeTimeout
	}

	d := net.Dialer{Timeout: timeout}
	netConn, err := d.DialContext(ctx, "tcp", opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", opts.Addr, err)
	}

	c := &Conn{conn: netConn, dec: xml.NewDecoder(netConn)}
	c.state.Store(int32(Handshaking))

	// Bound the whole handshake, not just the dial.
	_ = netConn.SetDeadline(time.Now().Add(timeout))

	if err := c.handshake(opts.Domain, opts.Secret); err != nil {
		_ = netConn.Close()
		return nil, err
	}

	_ = netConn.SetDeadline(time.Time{})
	c.state.Store(int32(Connected))
	logging.Get().Info().Str("server", opts.Addr).Str("domain", opts.Domain).Str("stream", c.streamID).Msg("component handshake complete")
	return c, nil
}

func (c *Conn) handshake(domain, secret string) error {
	if _, err := fmt.Fprintf(c.conn,
		"<?xml version='1.0'?><stream:stream xmlns='jabber:component:accept' xmlns:stream='%s' to='%s'>",
		streamNS, xmlEscape(domain)); err != nil {
		return fmt.Errorf("sending stream header: %w", err)
	}

	id, err := c.readStreamHeader()
	if err != nil {
		return err
	}
	c.streamID = id

	if _, err := fmt.Fprintf(c.conn, "<handshake>%s</handshake>", handshakeDigest(id, secret)); err != nil {
		return fmt.Errorf("sending handshake: %w", err)
	}

	return c.readHandshakeAck()
}

// readStreamHeader waits for the server stream header and returns the
// server-assigned stream id.
func (c *Conn) readStreamHeader() (string, error) {
	for {
		tok, err := c.dec.Token()
		if err != nil {
			return "", fmt.Errorf("reading stream header: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if se.Name.Local != "stream" || se.Name.Space != streamNS {
			return "", fmt.Errorf("unexpected stream open element <%s>", se.Name.Local)
		}
		for _, attr := range se.Attr {
			if attr.Name.Local == "id" {
				if attr.Value == "" {
					break
				}
				return attr.Value, nil
			}
		}
		return "", fmt.Errorf("server stream header carries no id")
	}
}

// readHandshakeAck waits for the empty handshake acknowledgement.
func (c *Conn) readHandshakeAck() error {
	for {
		tok, err := c.dec.Token()
		if err != nil {
			return fmt.Errorf("reading handshake reply: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Local == "handshake":
				return c.dec.Skip()
			case t.Name.Local == "error" && t.Name.Space == streamNS:
				var se streamError
				_ = c.dec.DecodeElement(&se, &t)
				return fmt.Errorf("handshake rejected: %s", se.Condition())
			default:
				return fmt.Errorf("unexpected handshake reply <%s>", t.Name.Local)
			}
		case xml.EndElement:
			return fmt.Errorf("server closed the stream during handshake")
		}
	}
}

// handshakeDigest computes the component handshake credential: the
// lowercase hex SHA-1 of streamID+secret.
func handshakeDigest(streamID, secret string) string {
	sum := sha1.Sum([]byte(streamID + secret))
	return hex.EncodeToString(sum[:])
}

// State returns the current connection state.
func (c *Conn) State() State {
	return State(c.state.Load())
}

// StreamID returns the server-assigned stream identifier.
func (c *Conn) StreamID() string {
	return c.streamID
}

// Recv blocks until the next message stanza or connection loss. Malformed
// stanzas and non-message stanzas are logged and skipped so that a single
// bad stanza cannot take the connection down. Transport loss or stream
// termination returns an error wrapping ErrConnectionLost.
func (c *Conn) Recv() (*Message, error) {
	for {
		tok, err := c.dec.Token()
		if err != nil {
			return nil, c.lost(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Local == "message":
				var m Message
				if err := c.dec.DecodeElement(&m, &t); err != nil {
					if isTransportError(err) {
						return nil, c.lost(err)
					}
					logging.Get().Warn().Err(err).Msg("skipping malformed stanza")
					metrics.IncStanzaMalformed()
					continue
				}
				metrics.IncStanzaReceived()
				return &m, nil
			case t.Name.Local == "error" && t.Name.Space == streamNS:
				var se streamError
				_ = c.dec.DecodeElement(&se, &t)
				return nil, c.lost(fmt.Errorf("stream error: %s", se.Condition()))
			default:
				// iq, presence and anything else the push flow ignores
				logging.Get().Debug().Str("stanza", t.Name.Local).Msg("ignoring stanza")
				if err := c.dec.Skip(); err != nil {
					if isTransportError(err) {
						return nil, c.lost(err)
					}
					logging.Get().Warn().Err(err).Msg("skipping malformed stanza")
					metrics.IncStanzaMalformed()
				}
			}
		case xml.EndElement:
			// </stream:stream>: orderly termination by the server
			return nil, c.lost(io.EOF)
		}
	}
}

// Send writes a stanza to the stream. v must marshal to a single XML
// element.
func (c *Conn) Send(v interface{}) error {
	b, err := xml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding stanza: %w", err)
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := c.conn.Write(b); err != nil {
		return c.lost(err)
	}
	return nil
}

// Close terminates the stream and the transport.
func (c *Conn) Close() error {
	c.wmu.Lock()
	_, _ = io.WriteString(c.conn, "</stream:stream>")
	c.wmu.Unlock()
	c.state.Store(int32(Disconnected))
	return c.conn.Close()
}

func (c *Conn) lost(err error) error {
	c.state.Store(int32(Failed))
	return fmt.Errorf("%w: %v", ErrConnectionLost, err)
}

// isTransportError distinguishes stream/transport failures from per-stanza
// decode problems.
func isTransportError(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr)
}

type streamError struct {
	XMLName xml.Name `xml:"error"`
	Inner   []struct {
		XMLName xml.Name
	} `xml:",any"`
}

// Condition returns the defined stream error condition, if any.
func (s streamError) Condition() string {
	if len(s.Inner) == 0 {
		return "unknown"
	}
	return s.Inner[0].XMLName.Local
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

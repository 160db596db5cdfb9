package rcon

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"regexp"
	"strings"
	"sync"
	"time"
)

const (
	packetIDBadAuth = -1
	packetMaxSize   = 1460
	// Smallest valid packet: id, type and the two null terminators
	packetMinSize = 4 + 4 + 2

	typeAuth        = 3
	typeExecCommand = 2
)

// ErrBadAuth is returned when the game server rejects the password
var ErrBadAuth = errors.New("rcon authentication rejected")

var playerName = regexp.MustCompile(`^[A-Za-z0-9_]{3,16}$`)

type packet struct {
	id   int32
	kind int32
	body []byte
}

// Packets on the wire, all integers little-endian:
//
//	size  int32  length of the rest of the packet
//	id    int32
//	type  int32
//	body  null-terminated string
//	pad   0x00
func (p *packet) size() int32 {
	return int32(len(p.body) + packetMinSize)
}

func (p *packet) marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	for _, v := range []interface{}{p.size(), p.id, p.kind, p.body, []byte{0, 0}} {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("encode packet: %w", err)
		}
	}
	if buf.Len() >= packetMaxSize {
		return nil, fmt.Errorf("packet exceeds maximum size of %d", packetMaxSize)
	}
	return buf.Bytes(), nil
}

func readPacket(r io.Reader) (*packet, error) {
	var size int32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return nil, fmt.Errorf("read packet size: %w", err)
	}
	if size < packetMinSize || size > packetMaxSize {
		return nil, fmt.Errorf("invalid packet size %d", size)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read packet body: %w", err)
	}
	return &packet{
		id:   int32(binary.LittleEndian.Uint32(buf[:4])),
		kind: int32(binary.LittleEndian.Uint32(buf[4:8])),
		body: buf[8 : size-2],
	}, nil
}

// Client speaks the Source RCON protocol used by the Minecraft server console.
// See https://developer.valvesoftware.com/wiki/Source_RCON_Protocol
type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	timeout time.Duration
}

// Dial connects to address and authenticates with password
func Dial(ctx context.Context, address, password string, timeout time.Duration) (*Client, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial rcon: %w", err)
	}
	c := &Client{conn: conn, timeout: timeout}
	if _, err := c.roundTrip(typeAuth, password); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// Command runs a console command and returns its output
func (c *Client) Command(command string) (string, error) {
	resp, err := c.roundTrip(typeExecCommand, command)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(bytes.Trim(resp.body, "\x00"))), nil
}

// Close closes the connection
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) roundTrip(kind int32, body string) (*packet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := &packet{id: rand.Int31(), kind: kind, body: []byte(body)}
	raw, err := req.marshal()
	if err != nil {
		return nil, err
	}
	if c.timeout > 0 {
		c.conn.SetDeadline(time.Now().Add(c.timeout))
	}
	if _, err := c.conn.Write(raw); err != nil {
		return nil, fmt.Errorf("write packet: %w", err)
	}
	resp, err := readPacket(c.conn)
	if err != nil {
		return nil, err
	}
	if resp.id == packetIDBadAuth {
		return nil, ErrBadAuth
	}
	return resp, nil
}

// Runner dials a fresh connection for every command so a restarted game
// server does not leave a stale client behind
type Runner struct {
	Address  string
	Password string
	Timeout  time.Duration
}

// Run executes one command
func (r *Runner) Run(ctx context.Context, command string) (string, error) {
	c, err := Dial(ctx, r.Address, r.Password, r.Timeout)
	if err != nil {
		return "", err
	}
	defer c.Close()
	return c.Command(command)
}

// ValidPlayerName reports whether name is a legal Minecraft username
func ValidPlayerName(name string) bool {
	return playerName.MatchString(name)
}

// PardonCommand builds the console command that lifts a ban
func PardonCommand(name string) (string, error) {
	if !ValidPlayerName(name) {
		return "", fmt.Errorf("invalid player name %q", name)
	}
	return "pardon " + name, nil
}

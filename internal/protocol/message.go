// Package protocol defines the JSON frames exchanged between the Connect Four
// client and server, the board cell type, and the connection abstraction both
// sides send and receive frames on.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Client-to-server commands carried in Envelope.Command.
const (
	CmdLogin     = "login"
	CmdCreate    = "create"
	CmdConnect   = "connect"
	CmdList      = "list"
	CmdPlayPiece = "play_piece"
)

// Argument keys carried in Envelope.Args.
const (
	ArgUsername = "username"
	ArgColumn   = "column"
)

// Envelope is the shape of every client-to-server frame.
type Envelope struct {
	Command string         `json:"c"`
	Args    map[string]any `json:"a"`
	Target  *string        `json:"t,omitempty"`
}

// Login builds the first frame a client sends.
func Login(username string) Envelope {
	return Envelope{Command: CmdLogin, Args: map[string]any{ArgUsername: username}}
}

// Create asks the server to open a room owned by the sender.
func Create() Envelope {
	return Envelope{Command: CmdCreate, Args: map[string]any{}}
}

// Connect asks the server to join the room with the given id.
func Connect(roomID int) Envelope {
	t := strconv.Itoa(roomID)
	return Envelope{Command: CmdConnect, Args: map[string]any{}, Target: &t}
}

// List asks the server for a fresh room list.
func List() Envelope {
	return Envelope{Command: CmdList, Args: map[string]any{}}
}

// PlayPiece submits a move for the given 0-based column.
func PlayPiece(column int) Envelope {
	return Envelope{Command: CmdPlayPiece, Args: map[string]any{ArgColumn: column}}
}

// Username returns the username argument of a login frame.
func (e Envelope) Username() (string, error) {
	v, ok := e.Args[ArgUsername].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s requires a non-empty %q argument", ErrProtocolViolation, e.Command, ArgUsername)
	}
	return v, nil
}

// Column returns the column argument of a play_piece frame.
//
// Postcondition: Returns an integral value; range checking is left to the board.
func (e Envelope) Column() (int, error) {
	switch v := e.Args[ArgColumn].(type) {
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			break
		}
		return int(v), nil
	case int:
		return v, nil
	case json.Number:
		n, err := v.Int64()
		if err == nil {
			return int(n), nil
		}
	}
	return 0, fmt.Errorf("%w: %s requires an integer %q argument", ErrProtocolViolation, e.Command, ArgColumn)
}

// TargetRoom returns the room id a connect frame targets.
//
// Postcondition: ok is false when the target is missing or not an integer.
func (e Envelope) TargetRoom() (id int, ok bool) {
	if e.Target == nil {
		return 0, false
	}
	n, err := strconv.Atoi(*e.Target)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// RoomEntry is one waiting room as shown to clients.
type RoomEntry struct {
	ID      int
	Creator string
}

// RoomList is the server's snapshot of rooms awaiting a second player. On the
// wire it is {"rooms": {"<id>": "<creator>", ...}} with ids in ascending order.
type RoomList struct {
	Rooms []RoomEntry
}

type roomListWire struct {
	Rooms json.RawMessage `json:"rooms"`
}

// MarshalJSON writes the rooms object with keys in ascending numeric order.
func (r RoomList) MarshalJSON() ([]byte, error) {
	entries := append([]RoomEntry(nil), r.Rooms...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	var b bytes.Buffer
	b.WriteString(`{"rooms":{`)
	for i, e := range entries {
		if i > 0 {
			b.WriteByte(',')
		}
		name, err := json.Marshal(e.Creator)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&b, "%q:", strconv.Itoa(e.ID))
		b.Write(name)
	}
	b.WriteString(`}}`)
	return b.Bytes(), nil
}

// UnmarshalJSON reads the rooms object and sorts entries by id.
func (r *RoomList) UnmarshalJSON(data []byte) error {
	var w roomListWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var m map[int]string
	if err := json.Unmarshal(w.Rooms, &m); err != nil {
		return fmt.Errorf("decoding rooms: %w", err)
	}
	r.Rooms = make([]RoomEntry, 0, len(m))
	for id, name := range m {
		r.Rooms = append(r.Rooms, RoomEntry{ID: id, Creator: name})
	}
	sort.Slice(r.Rooms, func(i, j int) bool { return r.Rooms[i].ID < r.Rooms[j].ID })
	return nil
}

// Contains reports whether a room with the given id is listed.
func (r RoomList) Contains(id int) bool {
	for _, e := range r.Rooms {
		if e.ID == id {
			return true
		}
	}
	return false
}

// MaxBoardDimension bounds the rows and columns a GameStart may announce.
const MaxBoardDimension = 64

// GameStart is sent to both players once a room is matched.
type GameStart struct {
	Rows    int  `json:"rows"`
	Columns int  `json:"columns"`
	Player  Cell `json:"client_player"`
}

// BoardUpdate is broadcast to both players after every accepted move.
type BoardUpdate struct {
	Board     [][]Cell `json:"board"`
	GameEnded bool     `json:"game_end"`
}

// ErrorFrame reports a rejected request. Recoverable codes leave the
// connection open; CodeProtocolViolation precedes a close.
type ErrorFrame struct {
	Message string `json:"error"`
	Code    string `json:"code"`
}

// NewErrorFrame converts err into a wire frame using its code.
func NewErrorFrame(err error) ErrorFrame {
	return ErrorFrame{Message: err.Error(), Code: CodeOf(err)}
}

// Package client implements the interactive terminal client: credentials,
// room selection, and the turn-by-turn play loop.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/connect4/internal/protocol"
)

// State is the controller's position in the client flow.
type State int

// Client states, in the order a normal session passes through them.
const (
	EnteringCredentials State = iota
	ViewingRooms
	Waiting
	Playing
	Finished
)

func (s State) String() string {
	switch s {
	case EnteringCredentials:
		return "entering_credentials"
	case ViewingRooms:
		return "viewing_rooms"
	case Waiting:
		return "waiting"
	case Playing:
		return "playing"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Dialer opens a connection to the server URL.
type Dialer func(ctx context.Context, url string) (protocol.Conn, error)

// ErrInputClosed is returned when the user's input ends before the game does.
var ErrInputClosed = errors.New("input closed")

// Controller drives one client session from credentials to game end.
type Controller struct {
	in     *bufio.Scanner
	out    io.Writer
	dial   Dialer
	prefs  *Prefs
	logger *zap.Logger

	// Clear redraws from the top of the terminal before each render.
	Clear bool

	state  State
	conn   protocol.Conn
	player protocol.Cell
	rows   int
	cols   int
	board  [][]protocol.Cell
	winner protocol.Cell
}

// NewController creates a controller reading user input from in and writing
// the UI to out.
//
// Precondition: dial, prefs and logger must be non-nil.
func NewController(in io.Reader, out io.Writer, dial Dialer, prefs *Prefs, logger *zap.Logger) *Controller {
	return &Controller{
		in:     bufio.NewScanner(in),
		out:    out,
		dial:   dial,
		prefs:  prefs,
		logger: logger,
		state:  EnteringCredentials,
	}
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Winner returns the winner once Finished.
func (c *Controller) Winner() protocol.Cell { return c.winner }

// Player returns the marker assigned by the server.
func (c *Controller) Player() protocol.Cell { return c.player }

// Run executes the full client flow.
//
// Postcondition: Returns nil once a game has finished, or the error that
// ended the session early.
func (c *Controller) Run(ctx context.Context) error {
	username, server, err := c.credentials()
	if err != nil {
		return err
	}

	conn, err := c.dial(ctx, server)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", server, err)
	}
	c.conn = conn
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	c.logger.Info("connected", zap.String("server", server), zap.String("username", username))

	if err := conn.Send(protocol.Login(username)); err != nil {
		return err
	}
	rooms, err := c.expectRoomList()
	if err != nil {
		return err
	}

	c.state = ViewingRooms
	start, err := c.lobby(rooms)
	if err != nil {
		return err
	}

	c.state = Playing
	c.player = start.Player
	c.rows, c.cols = start.Rows, start.Columns
	c.board = make([][]protocol.Cell, start.Rows)
	for r := range c.board {
		c.board[r] = make([]protocol.Cell, start.Columns)
	}
	c.logger.Info("game started",
		zap.Stringer("player", start.Player),
		zap.Int("rows", start.Rows),
		zap.Int("columns", start.Columns),
	)
	return c.play()
}

func (c *Controller) credentials() (string, string, error) {
	var username string
	for username == "" {
		line, err := c.prompt(withDefault("Enter your username", c.prefs.Username))
		if err != nil {
			return "", "", err
		}
		username = line
		if username == "" {
			username = c.prefs.Username
		}
	}

	var server string
	for server == "" {
		line, err := c.prompt(withDefault("Enter the URI of the server", c.prefs.Server))
		if err != nil {
			return "", "", err
		}
		server = line
		if server == "" {
			server = c.prefs.Server
		}
	}

	c.prefs.Username, c.prefs.Server = username, server
	if err := c.prefs.Save(); err != nil {
		c.logger.Warn("saving prefs", zap.Error(err))
	}
	return username, server, nil
}

func withDefault(label, def string) string {
	if def == "" {
		return label + ": "
	}
	return fmt.Sprintf("%s [%s]: ", label, def)
}

// lobby shows rooms until the player creates one or joins one, and returns
// the GameStart that follows.
func (c *Controller) lobby(rooms protocol.RoomList) (protocol.GameStart, error) {
	for {
		c.render(RenderRooms(rooms))
		line, err := c.prompt("Choose the room number to join, CREATE or REFRESH: ")
		if err != nil {
			return protocol.GameStart{}, err
		}

		switch strings.ToUpper(line) {
		case "CREATE":
			if err := c.conn.Send(protocol.Create()); err != nil {
				return protocol.GameStart{}, err
			}
			c.state = Waiting
			c.render("Waiting for an opponent...\n")
			return c.expectGameStart()

		case "REFRESH":
			if err := c.conn.Send(protocol.List()); err != nil {
				return protocol.GameStart{}, err
			}
			if rooms, err = c.expectRoomList(); err != nil {
				return protocol.GameStart{}, err
			}
			continue
		}

		id, err := strconv.Atoi(line)
		if err != nil || !rooms.Contains(id) {
			c.printf("%q is not an open room.\n", line)
			continue
		}
		if err := c.conn.Send(protocol.Connect(id)); err != nil {
			return protocol.GameStart{}, err
		}

		frame, err := protocol.ReceiveServerFrame(c.conn)
		if err != nil {
			return protocol.GameStart{}, err
		}
		switch f := frame.(type) {
		case protocol.GameStart:
			return f, nil
		case protocol.ErrorFrame:
			if f.Code != protocol.CodeRoomNotFound {
				return protocol.GameStart{}, serverError(f)
			}
			c.logger.Info("room no longer available", zap.Int("room_id", id))
			c.printf("Room %d is no longer available.\n", id)
			if rooms, err = c.expectRoomList(); err != nil {
				return protocol.GameStart{}, err
			}
		default:
			return protocol.GameStart{}, unexpected(frame)
		}
	}
}

func (c *Controller) play() error {
	for {
		c.render(RenderBoard(c.board))

		if Turn(c.board) == c.player {
			column, err := c.readColumn()
			if err != nil {
				return err
			}
			if err := c.conn.Send(protocol.PlayPiece(column)); err != nil {
				return err
			}
		} else {
			c.printf("Waiting for %s to move...\n", PlayerLabel(c.player.Opponent()))
		}

		frame, err := protocol.ReceiveServerFrame(c.conn)
		if err != nil {
			return err
		}
		switch f := frame.(type) {
		case protocol.BoardUpdate:
			if len(f.Board) != c.rows || len(f.Board[0]) != c.cols {
				return fmt.Errorf("%w: board is %dx%d, expected %dx%d", protocol.ErrProtocolViolation, len(f.Board), len(f.Board[0]), c.rows, c.cols)
			}
			c.board = f.Board
			if f.GameEnded {
				return c.finish()
			}
		case protocol.ErrorFrame:
			switch f.Code {
			case protocol.CodeNotYourTurn, protocol.CodeColumnFull, protocol.CodeColumnOutOfRange:
				c.logger.Debug("move rejected", zap.String("code", f.Code))
				c.printf("%s\n", Colorf(Red, "Move rejected: %s", f.Message))
			default:
				return serverError(f)
			}
		default:
			return unexpected(frame)
		}
	}
}

// readColumn prompts until the player enters a column within the board.
// The prompt is 1-based; the result is 0-based.
func (c *Controller) readColumn() (int, error) {
	for {
		line, err := c.prompt(fmt.Sprintf("%s, column to drop piece on (1-%d): ", PlayerLabel(c.player), c.cols))
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(line)
		if err != nil || n < 1 || n > c.cols {
			c.printf("Enter a column between 1 and %d.\n", c.cols)
			continue
		}
		return n - 1, nil
	}
}

func (c *Controller) finish() error {
	c.state = Finished
	c.winner = LastMover(c.board)
	c.render(RenderBoard(c.board))
	if c.winner == c.player {
		c.printf("%s\n", Colorize(Bold, "You won!"))
	} else {
		c.printf("You lost.\n")
	}
	c.logger.Info("game finished", zap.Stringer("winner", c.winner), zap.Stringer("player", c.player))
	return nil
}

func (c *Controller) expectRoomList() (protocol.RoomList, error) {
	frame, err := protocol.ReceiveServerFrame(c.conn)
	if err != nil {
		return protocol.RoomList{}, err
	}
	switch f := frame.(type) {
	case protocol.RoomList:
		return f, nil
	case protocol.ErrorFrame:
		return protocol.RoomList{}, serverError(f)
	default:
		return protocol.RoomList{}, unexpected(frame)
	}
}

func (c *Controller) expectGameStart() (protocol.GameStart, error) {
	frame, err := protocol.ReceiveServerFrame(c.conn)
	if err != nil {
		return protocol.GameStart{}, err
	}
	switch f := frame.(type) {
	case protocol.GameStart:
		return f, nil
	case protocol.ErrorFrame:
		return protocol.GameStart{}, serverError(f)
	default:
		return protocol.GameStart{}, unexpected(frame)
	}
}

func (c *Controller) prompt(text string) (string, error) {
	fmt.Fprint(c.out, text)
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", fmt.Errorf("reading input: %w", err)
		}
		return "", ErrInputClosed
	}
	return strings.TrimSpace(c.in.Text()), nil
}

func (c *Controller) render(text string) {
	if c.Clear {
		fmt.Fprint(c.out, ClearScreen)
	}
	fmt.Fprint(c.out, text)
}

func (c *Controller) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func serverError(f protocol.ErrorFrame) error {
	return protocol.NewCodedError(f.Code, "server: "+f.Message)
}

func unexpected(frame any) error {
	return fmt.Errorf("%w: unexpected %T", protocol.ErrProtocolViolation, frame)
}

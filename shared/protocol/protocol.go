// Package protocol defines the flat text message format exchanged over the
// UDP control channel. A message is "<action> <status> <username> <content>",
// split on the first three spaces; content may itself contain spaces and
// semicolons.
package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxMessageSize is the upper bound for an encoded control message in bytes.
const MaxMessageSize = 1024

type Action int

const (
	FirstConn Action = iota
	Login
	CreateThread
	PostMessage
	DeleteMessage
	EditMessage
	ListThreads
	ReadThread
	Upload
	Download
	RemoveThread
	Exit
)

var actionNames = map[Action]string{
	FirstConn:     "FIRST_CONN",
	Login:         "LOGIN",
	CreateThread:  "CRT",
	PostMessage:   "MSG",
	DeleteMessage: "DLT",
	EditMessage:   "EDT",
	ListThreads:   "LST",
	ReadThread:    "RDT",
	Upload:        "UPD",
	Download:      "DWN",
	RemoveThread:  "RMV",
	Exit:          "XIT",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return strconv.Itoa(int(a))
}

type Status int

const (
	Failure Status = iota
	Success
	FromClient // marks outbound client requests, never a reply status
	Unauthenticated
)

func (s Status) String() string {
	switch s {
	case Failure:
		return "FAILURE"
	case Success:
		return "SUCCESS"
	case FromClient:
		return "FROM_CLIENT"
	case Unauthenticated:
		return "UNAUTHENTICATED"
	}
	return strconv.Itoa(int(s))
}

var (
	ErrMessageTooLarge = fmt.Errorf("encoded message exceeds %d bytes", MaxMessageSize)
	ErrMalformed       = fmt.Errorf("malformed message")
)

type Event struct {
	Action   Action
	Status   Status
	Username string
	Content  string
}

// Encode renders the event in wire form. Content past the size bound is a
// caller error, not truncated here.
func (e Event) Encode() ([]byte, error) {
	encoded := fmt.Sprintf("%d %d %s %s", e.Action, e.Status, e.Username, e.Content)
	if len(encoded) > MaxMessageSize {
		return nil, ErrMessageTooLarge
	}
	return []byte(encoded), nil
}

// Decode parses a wire message. A message with no content field decodes with
// empty content rather than failing.
func Decode(data []byte) (Event, error) {
	parts := strings.SplitN(strings.TrimSpace(string(data)), " ", 4)
	if len(parts) < 3 {
		return Event{}, fmt.Errorf("%w: %q", ErrMalformed, data)
	}

	action, err := strconv.Atoi(parts[0])
	if err != nil {
		return Event{}, fmt.Errorf("%w: bad action %q", ErrMalformed, parts[0])
	}
	status, err := strconv.Atoi(parts[1])
	if err != nil {
		return Event{}, fmt.Errorf("%w: bad status %q", ErrMalformed, parts[1])
	}

	e := Event{
		Action:   Action(action),
		Status:   Status(status),
		Username: parts[2],
	}
	if len(parts) == 4 {
		e.Content = strings.TrimSpace(parts[3])
	}
	return e, nil
}

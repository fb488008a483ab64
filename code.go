package main

import (
	"errors"
	"strings"
)

// codeSpace is the size of the room code namespace: AAAA through ZZZZ.
const codeSpace = 26 * 26 * 26 * 26

var ErrInvalidCode = errors.New("invalid room code")

// RoomCode is a 4-letter room identifier, always uppercase A-Z. Codes map
// bijectively onto [0, codeSpace) via Index and RoomCodeFromIndex.
type RoomCode [4]byte

// ParseRoomCode accepts exactly four ASCII letters, case-insensitively,
// ignoring surrounding whitespace.
func ParseRoomCode(s string) (RoomCode, error) {
	s = strings.TrimSpace(s)
	if len(s) != 4 {
		return RoomCode{}, ErrInvalidCode
	}
	var code RoomCode
	for i := 0; i < 4; i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
			c -= 'a' - 'A'
		default:
			return RoomCode{}, ErrInvalidCode
		}
		code[i] = c
	}
	return code, nil
}

// RoomCodeFromIndex is the inverse of Index.
func RoomCodeFromIndex(n uint32) (RoomCode, error) {
	if n >= codeSpace {
		return RoomCode{}, ErrInvalidCode
	}
	var code RoomCode
	for i := 3; i >= 0; i-- {
		code[i] = byte(n%26) + 'A'
		n /= 26
	}
	return code, nil
}

// Index maps the code to its position in [0, codeSpace), big-endian base 26.
func (c RoomCode) Index() uint32 {
	var n uint32
	for _, b := range c {
		n = n*26 + uint32(b-'A')
	}
	return n
}

func (c RoomCode) String() string {
	return string(c[:])
}

/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import "errors"

// Room operation failures. The messages double as the user-facing text of
// protocol `error` frames, so they match what clients already display.
var (
	errRoomNotFound     = errors.New("Room not found")
	errRoomFull         = errors.New("Room is full")
	errDuplicateName    = errors.New("Name already taken")
	errAlreadyStarted   = errors.New("Game already started")
	errNotAMember       = errors.New("Not a member of this room")
	errInvalidCardIndex = errors.New("Invalid card index")
)

// Copyright (c) 2023 BVK Chaitanya

package idgen

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// Generator creates a deterministic sequence of uuids derived from a seed, so
// a restarted round reproduces the action ids it logged before.
type Generator struct {
	base uuid.UUID

	next uint64
}

func New(seed string, offset uint64) *Generator {
	return &Generator{base: uuid.UUID(md5.Sum([]byte(seed))), next: offset}
}

// ForRound returns the action id generator of a round.
func ForRound(asset string, round uint64) *Generator {
	return New(fmt.Sprintf("%s/round/%d", asset, round), 0)
}

func (v *Generator) Offset() uint64 {
	return v.next
}

func (v *Generator) NextID() uuid.UUID {
	var buf [16 + 8]byte
	copy(buf[:16], v.base[:])
	binary.BigEndian.PutUint64(buf[16:], v.next)
	v.next++
	return uuid.UUID(md5.Sum(buf[:]))
}

func (v *Generator) RevertID() {
	if v.next > 0 {
		v.next--
	}
}

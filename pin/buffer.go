package pin

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Length is the number of PIN slots.
const Length = 4

var (
	ErrInvalidDigit   = errors.New("pin slot accepts a single digit")
	ErrSlotOutOfRange = errors.New("pin slot out of range")
)

// SubmitFunc receives the complete PIN. A non-nil error clears the buffer.
type SubmitFunc func(ctx context.Context, pin string) error

// Buffer is the pending PIN. It is safe for concurrent use; Submit runs
// without the buffer lock held.
type Buffer struct {
	mu     sync.Mutex
	slots  [Length]string
	active int
	submit SubmitFunc
}

// New returns an empty buffer with focus on slot 0.
func New(submit SubmitFunc) *Buffer {
	return &Buffer{submit: submit}
}

// Set writes value into slot index. value is "" to clear the slot or exactly
// one ASCII digit, which also moves focus to the next slot. When the write
// completes the PIN, Set submits it and returns the submission's result.
func (b *Buffer) Set(ctx context.Context, index int, value string) error {
	if index < 0 || index >= Length {
		return ErrSlotOutOfRange
	}
	if value != "" && (len(value) != 1 || value[0] < '0' || value[0] > '9') {
		return ErrInvalidDigit
	}

	b.mu.Lock()
	b.slots[index] = value
	if value != "" && index < Length-1 {
		b.active = index + 1
	} else {
		b.active = index
	}
	pin, complete := b.valueLocked()
	b.mu.Unlock()

	if !complete || b.submit == nil {
		return nil
	}

	if err := b.submit(ctx, pin); err != nil {
		b.Reset()
		return err
	}
	return nil
}

// Backspace clears slot index, or moves focus to the previous slot when
// index is already empty.
func (b *Buffer) Backspace(index int) error {
	if index < 0 || index >= Length {
		return ErrSlotOutOfRange
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.slots[index] != "" {
		b.slots[index] = ""
		b.active = index
		return nil
	}
	if index > 0 {
		b.active = index - 1
	}
	return nil
}

// Value returns the digits entered so far, in slot order.
func (b *Buffer) Value() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	pin, _ := b.valueLocked()
	return pin
}

// Active returns the slot that has focus.
func (b *Buffer) Active() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

func (b *Buffer) Complete() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, complete := b.valueLocked()
	return complete
}

// Reset clears every slot and returns focus to slot 0.
func (b *Buffer) Reset() {
	b.mu.Lock()
	b.slots = [Length]string{}
	b.active = 0
	b.mu.Unlock()
}

func (b *Buffer) valueLocked() (string, bool) {
	var sb strings.Builder
	complete := true
	for _, s := range b.slots {
		if s == "" {
			complete = false
			continue
		}
		sb.WriteString(s)
	}
	return sb.String(), complete
}

//go:build !debug

package channel

// New creates a widget inbox queueing up to size messages.
func New[T any](size int) Channel[T] {
	return NewInbox[T](size)
}

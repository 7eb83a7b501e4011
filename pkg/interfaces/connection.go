package interfaces

// Connection is one realtime client connection.
// ARCHITECTURAL DISCOVERY: Connections only accept pre-encoded frames so a
// broadcast marshals its payload once for the whole room.
type Connection interface {
	// ID returns the opaque connection id assigned at accept time.
	ID() string

	// Enqueue queues an encoded frame for delivery without blocking.
	// FUNCTIONAL DISCOVERY: A full send buffer is reported as an error; the
	// caller decides whether to drop the connection.
	Enqueue(data []byte) error

	// Close closes the connection and cleans up resources. Safe to call twice.
	Close() error
}

package interfaces

// Transport delivers engine events to connections grouped into rooms.
// Rooms are named by session id.
type Transport interface {
	// JoinRoom subscribes a connection to a room's broadcasts.
	JoinRoom(room, connID string)

	// LeaveRoom unsubscribes a connection from a room.
	LeaveRoom(room, connID string)

	// CloseRoom drops every subscription of a room.
	CloseRoom(room string)

	// Broadcast sends an event to every connection in a room.
	// FUNCTIONAL DISCOVERY: Broadcast never blocks on a slow connection.
	Broadcast(room, event string, payload interface{})

	// Send sends an event to a single connection.
	Send(connID, event string, payload interface{}) error
}

package ws

type IHub interface {
	Run()
	RegisterClient(client *UserClient)
	UnregisterClient(client *UserClient)

	// Authenticate binds a connection to a user exactly once. Until it
	// succeeds the connection cannot join rooms or receive chat broadcasts.
	Authenticate(client *UserClient, userId string) error

	JoinRoom(client *UserClient, roomId string) error
	LeaveRoom(client *UserClient, roomId string)

	// BroadcastToRoom fans a payload out to every connection joined to the
	// room, skipping exclude when non-nil. Delivery is at-most-once per
	// connection; slow consumers are dropped, never waited on.
	BroadcastToRoom(roomId string, payload []byte, exclude *UserClient)

	SendToUser(userId string, payload []byte)
	ClientCount() int
	SetOnClientUnregister(callback func(client *UserClient) error)
}

package chat

// InboundFrame is a message sent by a client over the chat socket.
type InboundFrame struct {
	Message     string `json:"message"`
	AccessToken string `json:"access_token"`
}

// OutboundFrame is delivered to the client for display.
type OutboundFrame struct {
	Message string `json:"message"`
	Time    string `json:"time"`
}

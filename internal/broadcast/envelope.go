package broadcast

import "time"

// Event names understood by existing web and mobile clients. The payload
// shapes below must not change without coordinating a client release.
const (
	EventNewMessage        = "new_message"
	EventUnreadCount       = "unread_count"
	EventTransactionUpdate = "transaction_update"
)

// Envelope is the single frame format used both on the wire to clients and
// on the bus between instances. Payload may be one of the typed payload
// structs or any JSON-marshalable value for events not yet modeled here.
type Envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// MessageSender identifies the author of a chat message.
type MessageSender struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// NewMessagePayload is the payload for EventNewMessage.
type NewMessagePayload struct {
	ID            int64         `json:"id"`
	ThreadID      int64         `json:"threadId"`
	TransactionID int64         `json:"transactionId"`
	SenderID      int64         `json:"senderId"`
	MessageText   string        `json:"messageText"`
	CreatedAt     time.Time     `json:"createdAt"`
	Sender        MessageSender `json:"sender"`
}

// BreederMessage is the message body of the breeder-originated variant.
type BreederMessage struct {
	ID            int64     `json:"id"`
	Body          string    `json:"body"`
	SenderPartyID int64     `json:"senderPartyId"`
	SenderParty   string    `json:"senderParty,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// BreederMessagePayload is the EventNewMessage variant used when the message
// originates from the breeder side of a thread. Source is always "breeder".
type BreederMessagePayload struct {
	ThreadID int64          `json:"threadId"`
	Source   string         `json:"source"`
	Message  BreederMessage `json:"message"`
}

// UnreadCountPayload is the payload for EventUnreadCount.
type UnreadCountPayload struct {
	UnreadThreads       int `json:"unreadThreads"`
	TotalUnreadMessages int `json:"totalUnreadMessages"`
}

// TransactionUpdatePayload is the payload for EventTransactionUpdate.
type TransactionUpdatePayload struct {
	ID        int64     `json:"id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

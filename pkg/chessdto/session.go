package chessdto

import "encoding/json"

type CommandType string

const (
	CommandConnect  CommandType = "CONNECT"
	CommandMakeMove CommandType = "MAKE_MOVE"
	CommandLeave    CommandType = "LEAVE"
	CommandResign   CommandType = "RESIGN"
)

// Command is what a client sends over the websocket. Team is WHITE, BLACK or empty for observers.
type Command struct {
	CommandType CommandType `json:"commandType"`
	AuthToken   string      `json:"authToken"`
	GameID      int         `json:"gameID"`
	Move        *Move       `json:"move,omitempty"`
	Team        string      `json:"team,omitempty"`
}

type MessageType string

const (
	MessageLoadGame     MessageType = "LOAD_GAME"
	MessageNotification MessageType = "NOTIFICATION"
	MessageError        MessageType = "ERROR"
)

// ServerMessage is what the server pushes to a connection.
// Game carries the serialized game snapshot for LOAD_GAME.
type ServerMessage struct {
	ServerMessageType MessageType     `json:"serverMessageType"`
	Game              json.RawMessage `json:"game,omitempty"`
	Message           string          `json:"message,omitempty"`
	ErrorMessage      string          `json:"errorMessage,omitempty"`
}

func LoadGame(game json.RawMessage) ServerMessage {
	return ServerMessage{ServerMessageType: MessageLoadGame, Game: game}
}

func Notification(text string) ServerMessage {
	return ServerMessage{ServerMessageType: MessageNotification, Message: text}
}

func ErrorMessage(text string) ServerMessage {
	return ServerMessage{ServerMessageType: MessageError, ErrorMessage: text}
}

package chessdto

type CreateGameRequest struct {
	GameName string `json:"gameName"`
}

type CreateGameResponse struct {
	GameID int `json:"gameID"`
}

type JoinGameRequest struct {
	PlayerColor string `json:"playerColor"`
	GameID      int    `json:"gameID"`
}

type GameSummary struct {
	GameID        int    `json:"gameID"`
	WhiteUsername string `json:"whiteUsername,omitempty"`
	BlackUsername string `json:"blackUsername,omitempty"`
	GameName      string `json:"gameName"`
	State         string `json:"state"`
}

type ListGamesResponse struct {
	Games []GameSummary `json:"games"`
}

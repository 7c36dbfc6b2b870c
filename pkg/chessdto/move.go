package chessdto

// Position is a board square: row 1-8 is the rank from White's side, col 1-8 is file A-H.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Move is a start/end pair with an optional promotion kind (QUEEN, ROOK, BISHOP, KNIGHT).
type Move struct {
	StartPosition  Position `json:"startPosition"`
	EndPosition    Position `json:"endPosition"`
	PromotionPiece string   `json:"promotionPiece,omitempty"`
}

package protocol

// Inbound message types.
const (
	TypeLogin      = "LOGIN"
	TypePing       = "PING"
	TypeListRooms  = "LIST_ROOMS"
	TypeCreateRoom = "CREATE_ROOM"
	TypeJoinRoom   = "JOIN_ROOM"
	TypeLeaveRoom  = "LEAVE_ROOM"
	TypeMove       = "MOVE"
	TypeLegalMoves = "LEGAL_MOVES"
	TypeBye        = "BYE"
	TypeConfigAck  = "CONFIG_ACK"
	TypeReconnect  = "RECONNECT"
)

// Error codes sent as ERROR;<CODE>[;<detail>].
const (
	CodeInvalidFormat  = "INVALID_FORMAT"
	CodeNotLoggedIn    = "NOT_LOGGED_IN"
	CodeAlreadyLogged  = "ALREADY_LOGGED_IN"
	CodeServerFull     = "SERVER_FULL"
	CodeTokenNotFound  = "TOKEN_NOT_FOUND"
	CodeTokenExpired   = "TOKEN_EXPIRED"
	CodeRoomNotFound   = "ROOM_NOT_FOUND"
	CodeRoomNotAvail   = "ROOM_NOT_AVAILABLE"
	CodeRoomFull       = "ROOM_FULL"
	CodeRoomNotInGame  = "ROOM_NOT_IN_GAME"
	CodeNotInRoom      = "NOT_IN_ROOM"
	CodeGamePaused     = "GAME_PAUSED"
	CodeUnsupported    = "UNSUPPORTED_TYPE"
	CodeNotYourTurn    = "NOT_YOUR_TURN"
	CodeOutOfBoard     = "OUT_OF_BOARD"
	CodeInvalidSquare  = "INVALID_SQUARE"
	CodeNoPiece        = "NO_PIECE"
	CodeNotYourPiece   = "NOT_YOUR_PIECE"
	CodeDestNotEmpty   = "DEST_NOT_EMPTY"
	CodeInvalidMove    = "INVALID_MOVE"
	CodeInvalidDir     = "INVALID_DIRECTION"
	CodeMustCapture    = "MUST_CAPTURE"
	CodeMustContinue   = "MUST_CONTINUE_CAPTURE"
	CodeNoOpponentCapt = "NO_OPPONENT_TO_CAPTURE"
)

// Terminal reasons carried in GAME_END.
const (
	ReasonWhiteWinNoPieces = "WHITE_WIN_NO_PIECES"
	ReasonBlackWinNoPieces = "BLACK_WIN_NO_PIECES"
	ReasonWhiteWinNoMoves  = "WHITE_WIN_NO_MOVES"
	ReasonBlackWinNoMoves  = "BLACK_WIN_NO_MOVES"
	ReasonOpponentLeft     = "OPPONENT_LEFT"
	ReasonOpponentTimeout  = "OPPONENT_TIMEOUT"
	ReasonTurnTimeout      = "TURN_TIMEOUT"
)

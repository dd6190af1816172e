package session

type Session struct {
	VideoURL     string  `redis:"video_url"`
	Title        string  `redis:"title"`
	PasswordHash string  `redis:"password_hash"`
	ControlKey   string  `redis:"control_key"`
	State        string  `redis:"state"`
	PlayFrom     float64 `redis:"play_from"`
}

type User struct {
	Username  string `redis:"username"`
	SessionId string `redis:"session_id"`
	// JoinedAt is unix milliseconds on the server clock. Ping replies are
	// expressed as offsets from it.
	JoinedAt int64 `redis:"joined_at"`
}

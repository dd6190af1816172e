package session

type SetSessionParams struct {
	SessionId    string
	VideoURL     string
	Title        string
	PasswordHash string
	ControlKey   string
	State        string
	PlayFrom     float64
}

type UpdateSessionPlaybackParams struct {
	SessionId string
	State     string
	PlayFrom  float64
}

type SetUserParams struct {
	UserId    string
	Username  string
	SessionId string
	JoinedAt  int64
}

type AddUserToSessionParams struct {
	UserId    string
	SessionId string
}

type RemoveUserFromSessionParams struct {
	UserId    string
	SessionId string
}

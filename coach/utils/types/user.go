// coach/utils/types/user.go
package types

// Identity is what the identity provider hands back for an authenticated
// user. UID is opaque and stable; Email is what the user typed.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse answers a login or registration. Turns is the opening of
// the new session; Export reports its initial chat log.
type TokenResponse struct {
	Token     string         `json:"token"`
	SessionID string         `json:"session_id"`
	User      Identity       `json:"user"`
	Turns     []RenderedTurn `json:"turns"`
	Export    *ExportNotice  `json:"export,omitempty"`
}

// Profile is what /users/me shows about the logged-in user.
type Profile struct {
	Identity
	CreatedAt    string `json:"created_at"`
	LatestLogURL string `json:"latest_log_url,omitempty"`
}

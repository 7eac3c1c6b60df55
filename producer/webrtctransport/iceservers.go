package webrtctransport

import (
	"crypto/hmac"
	"crypto/sha1" // nolint:gosec
	"encoding/base64"
	"fmt"
	"time"

	"github.com/pion/webrtc/v3"
)

type AuthType string

const (
	AuthTypeNone AuthType = ""
	// AuthTypeSecret derives short lived TURN credentials from a secret
	// shared with the TURN server (coturn use-auth-secret).
	AuthTypeSecret AuthType = "secret"
)

type AuthSecret struct {
	Username string `yaml:"username"`
	Secret   string `yaml:"secret"`
}

type ICEServer struct {
	URLs       []string   `yaml:"urls"`
	AuthType   AuthType   `yaml:"auth_type"`
	AuthSecret AuthSecret `yaml:"auth_secret"`
}

// ICEServers converts the configured servers for a new peer connection.
// Secret based credentials are minted at now.
func ICEServers(servers []ICEServer, now time.Time) []webrtc.ICEServer {
	ret := make([]webrtc.ICEServer, 0, len(servers))

	for _, server := range servers {
		ret = append(ret, iceServer(server, now))
	}

	return ret
}

func iceServer(server ICEServer, now time.Time) webrtc.ICEServer {
	if server.AuthType != AuthTypeSecret {
		return webrtc.ICEServer{URLs: server.URLs}
	}

	username := fmt.Sprintf("%d:%s", now.UnixNano()/int64(time.Millisecond), server.AuthSecret.Username)

	h := hmac.New(sha1.New, []byte(server.AuthSecret.Secret))
	_, _ = h.Write([]byte(username))

	return webrtc.ICEServer{
		URLs:           server.URLs,
		Username:       username,
		Credential:     base64.StdEncoding.EncodeToString(h.Sum(nil)),
		CredentialType: webrtc.ICECredentialTypePassword,
	}
}

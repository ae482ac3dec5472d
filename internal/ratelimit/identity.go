package ratelimit

import (
	"encoding/hex"
	"net"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/blake2b"
)

const fallbackIP = "127.0.0.1"

// Identify returns the limiter key for a request: the bearer credential if
// present, otherwise the client IP.
func Identify(r *http.Request) string {
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		return "auth_" + hashCredential(credentialSubject(token))
	}
	return "ip_" + clientIP(r)
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		header = header[7:]
	}
	return strings.TrimSpace(header)
}

// credentialSubject returns "sub:<subject>" for a JWT with a subject claim,
// or the raw token otherwise. The signature is not checked; the subject only
// groups requests for limiting.
func credentialSubject(token string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return token
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return token
	}
	return "sub:" + sub
}

func hashCredential(s string) string {
	sum := blake2b.Sum256([]byte(s))
	return hex.EncodeToString(sum[:16])
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		return fallbackIP
	}
	return host
}

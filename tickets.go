package main

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	ticketExpiry   = 6 * time.Hour
	maxPasswordLen = 64
)

// Tickets issues and validates reconnect tickets binding a player to a room
type Tickets struct {
	secret []byte
	expiry time.Duration
}

// NewTickets creates a ticket issuer. An empty secret generates a random one
// that lives as long as the process.
func NewTickets(secret string) *Tickets {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic("failed to generate ticket secret: " + err.Error())
		}
	}
	return &Tickets{secret: key, expiry: ticketExpiry}
}

// Issue signs a ticket for playerID in roomID
func (t *Tickets) Issue(roomID, playerID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"rid": roomID,
		"pid": playerID,
		"exp": now.Add(t.expiry).Unix(),
		"iat": now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Parse validates a ticket and returns (roomID, playerID)
func (t *Tickets) Parse(tokenStr string) (string, string, error) {
	token, err := jwt.Parse(tokenStr, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return t.secret, nil
	})
	if err != nil {
		return "", "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", "", fmt.Errorf("invalid ticket")
	}
	roomID, ok := claims["rid"].(string)
	if !ok || roomID == "" {
		return "", "", fmt.Errorf("invalid ticket claims")
	}
	playerID, ok := claims["pid"].(string)
	if !ok || playerID == "" {
		return "", "", fmt.Errorf("invalid ticket claims")
	}
	return roomID, playerID, nil
}

// HashPassword hashes a room password. An empty password means an open room.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", nil
	}
	if len(password) > maxPasswordLen {
		return "", fmt.Errorf("password must be at most %d characters", maxPasswordLen)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password opens a room with the given hash
func CheckPassword(hash, password string) bool {
	if hash == "" {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"
)

// MaxAuthAge is how old a Telegram login payload may be.
const MaxAuthAge = 24 * time.Hour

// TelegramLogin is the payload the Telegram login widget hands the client.
type TelegramLogin struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	PhotoURL  string `json:"photo_url,omitempty"`
	AuthDate  int64  `json:"auth_date"`
	Hash      string `json:"hash"`
}

// DataCheckString is the sorted key=value list Telegram signs. Empty optional
// fields are left out.
func (l TelegramLogin) DataCheckString() string {
	fields := map[string]string{
		"id":        strconv.FormatInt(l.ID, 10),
		"auth_date": strconv.FormatInt(l.AuthDate, 10),
	}
	if l.FirstName != "" {
		fields["first_name"] = l.FirstName
	}
	if l.LastName != "" {
		fields["last_name"] = l.LastName
	}
	if l.Username != "" {
		fields["username"] = l.Username
	}
	if l.PhotoURL != "" {
		fields["photo_url"] = l.PhotoURL
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = k + "=" + fields[k]
	}
	return strings.Join(lines, "\n")
}

// Sign computes the hash Telegram would attach for this payload.
func (l TelegramLogin) Sign(botToken string) string {
	secret := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(l.DataCheckString()))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyTelegramLogin checks the payload signature against the bot token and
// rejects payloads older than MaxAuthAge.
func VerifyTelegramLogin(l TelegramLogin, botToken string, now time.Time) error {
	if botToken == "" || l.Hash == "" {
		return ErrInvalidLogin
	}
	want := l.Sign(botToken)
	if !hmac.Equal([]byte(want), []byte(strings.ToLower(l.Hash))) {
		return ErrInvalidLogin
	}
	if now.Sub(time.Unix(l.AuthDate, 0)) > MaxAuthAge {
		return ErrInvalidLogin
	}
	return nil
}

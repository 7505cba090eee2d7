// Package identity verifies Telegram Mini App initData (spec.md
// section 2: "the identity-provider verification (signed initData)" is
// named as an external collaborator the HARD CORE consumes; this is
// that collaborator's implementation, supplemented from
// original_source/ since spec.md specifies only its contract).
package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// User is the authenticated Telegram identity recovered from initData.
type User struct {
	TelegramUserID int64
	Username       string
	FirstName      string
	LastName       string
	LanguageCode   string
}

// MaxInitDataAge bounds how old an initData payload's auth_date may be
// before Verify rejects it as a replay (original_source/: "within last
// hour").
const MaxInitDataAge = time.Hour

type telegramInitDataUser struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Username     string `json:"username"`
	LanguageCode string `json:"language_code"`
}

// Verify checks a Telegram Mini App initData string's HMAC signature
// against botToken, following
// https://core.telegram.org/bots/webapps#validating-data-received-via-the-mini-app:
// build a newline-joined, alphabetically sorted "key=value" data-check
// string excluding "hash"; derive a secret key as
// HMAC-SHA256("WebAppData", botToken); the expected hash is
// HMAC-SHA256(secretKey, dataCheckString) in hex.
func Verify(initData, botToken string) (User, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return User{}, fmt.Errorf("identity: failed to parse initData: %w", err)
	}

	hash := values.Get("hash")
	if hash == "" {
		return User{}, fmt.Errorf("identity: missing hash in initData")
	}

	var pairs []string
	for key := range values {
		if key == "hash" {
			continue
		}
		pairs = append(pairs, key+"="+values.Get(key))
	}
	sort.Strings(pairs)
	dataCheckString := strings.Join(pairs, "\n")

	secretMAC := hmac.New(sha256.New, []byte("WebAppData"))
	secretMAC.Write([]byte(botToken))
	secretKey := secretMAC.Sum(nil)

	dataMAC := hmac.New(sha256.New, secretKey)
	dataMAC.Write([]byte(dataCheckString))
	calculated := hex.EncodeToString(dataMAC.Sum(nil))

	if !hmac.Equal([]byte(calculated), []byte(hash)) {
		return User{}, fmt.Errorf("identity: initData signature verification failed")
	}

	if authDateStr := values.Get("auth_date"); authDateStr != "" {
		authDate, err := strconv.ParseInt(authDateStr, 10, 64)
		if err == nil {
			age := time.Since(time.Unix(authDate, 0))
			if age > MaxInitDataAge {
				return User{}, fmt.Errorf("identity: initData expired (age %s exceeds %s)", age, MaxInitDataAge)
			}
		}
	}

	userJSON := values.Get("user")
	if userJSON == "" {
		return User{}, fmt.Errorf("identity: missing user in initData")
	}
	var tgUser telegramInitDataUser
	if err := json.Unmarshal([]byte(userJSON), &tgUser); err != nil {
		return User{}, fmt.Errorf("identity: failed to parse user JSON: %w", err)
	}

	return User{
		TelegramUserID: tgUser.ID,
		Username:       tgUser.Username,
		FirstName:      tgUser.FirstName,
		LastName:       tgUser.LastName,
		LanguageCode:   tgUser.LanguageCode,
	}, nil
}

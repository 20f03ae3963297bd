// Package auth verifies Telegram Mini App init data.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// maxInitDataAge rejects init data older than a day.
const maxInitDataAge = 24 * time.Hour

var (
	ErrMissingInitData = errors.New("init data is missing")
	ErrExpiredInitData = errors.New("init data expired")
	ErrBadSignature    = errors.New("invalid init data signature")
)

// WebAppUser is the authenticated identity embedded in init data.
type WebAppUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

// VerifyInitData validates the signature Telegram attaches to Mini App
// requests and returns the user it vouches for. The signature is an
// HMAC-SHA256 over the sorted key=value lines, keyed with a digest of
// the bot token under the fixed "WebAppData" key.
func VerifyInitData(initData, botToken string, now time.Time) (*WebAppUser, error) {
	if initData == "" {
		return nil, ErrMissingInitData
	}

	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, fmt.Errorf("parse init data: %w", err)
	}

	gotHash := values.Get("hash")
	if gotHash == "" {
		return nil, ErrBadSignature
	}
	values.Del("hash")

	authDate, _ := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if now.Unix()-authDate > int64(maxInitDataAge.Seconds()) {
		return nil, ErrExpiredInitData
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, key+"="+values.Get(key))
	}
	checkString := strings.Join(lines, "\n")

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(checkString))
	want := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(want), []byte(gotHash)) {
		return nil, ErrBadSignature
	}

	var user WebAppUser
	if err := json.Unmarshal([]byte(values.Get("user")), &user); err != nil {
		return nil, fmt.Errorf("decode user payload: %w", err)
	}
	return &user, nil
}

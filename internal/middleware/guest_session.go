package middleware

import (
	"encoding/hex"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/blake2b"
)

const (
	GuestSessionCookie   = "guest_session"
	CtxGuestSessionKey   = "guest_session" // string（ハッシュ済み）
	guestSessionLifetime = 30 * 24 * time.Hour
)

// ゲストカート用のセッション。
// cookieには推測できないuuidを入れ、DBには鍵付きハッシュだけを保存する。
type GuestSession struct {
	key    []byte
	secure bool
}

func NewGuestSession(key string, secure bool) *GuestSession {
	k := []byte(key)
	//blake2bの鍵は64byteまで
	if len(k) > blake2b.Size {
		sum := blake2b.Sum512(k)
		k = sum[:]
	}
	return &GuestSession{key: k, secure: secure}
}

// cookieの値 → DBに入れるsession_id
func (g *GuestSession) Digest(token string) string {
	h, err := blake2b.New256(g.key)
	if err != nil {
		// 鍵長はNewGuestSessionで揃えている
		panic(err)
	}
	h.Write([]byte(token))
	return hex.EncodeToString(h.Sum(nil))
}

// cookieが無い・壊れているときは新しく発行する。
// ログイン済みなら発行しない（既存cookieは統合用に読む）。OptionalAuthJWTの後に置く
func (g *GuestSession) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := ""
			if ck, err := c.Cookie(GuestSessionCookie); err == nil {
				if _, err := uuid.Parse(ck.Value); err == nil {
					token = ck.Value
				}
			}
			if token == "" {
				if UserIDFrom(c) > 0 {
					return next(c)
				}
				token = uuid.NewString()
				c.SetCookie(g.cookie(token, int(guestSessionLifetime.Seconds())))
			}

			c.Set(CtxGuestSessionKey, g.Digest(token))
			return next(c)
		}
	}
}

// カート統合の後に呼ぶ
func (g *GuestSession) Clear(c echo.Context) {
	c.SetCookie(g.cookie("", -1))
}

func (g *GuestSession) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     GuestSessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Middlewareが入れたsession_id。無ければ空
func GuestSessionFrom(c echo.Context) string {
	s, _ := c.Get(CtxGuestSessionKey).(string)
	return s
}

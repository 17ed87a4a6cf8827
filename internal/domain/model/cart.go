package model

// カートの持ち主。ログインユーザーかゲストセッションのどちらか一方だけ。
type CartOwner struct {
	UserID    int64
	SessionID string
}

func UserOwner(userID int64) CartOwner { return CartOwner{UserID: userID} }

func GuestOwner(sessionID string) CartOwner { return CartOwner{SessionID: sessionID} }

// 片方だけ設定されているときだけtrue
func (o CartOwner) Valid() bool {
	hasUser := o.UserID > 0
	hasSession := o.SessionID != ""
	return hasUser != hasSession
}

func (o CartOwner) IsGuest() bool { return o.UserID <= 0 && o.SessionID != "" }

package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Signal содержит признаки входящего сообщения, из которых строится
// отпечаток содержимого. Поля перечислены в порядке приоритета.
type Signal struct {
	GroupID      string
	PhotoUID     string
	VideoUID     string
	AnimationUID string
	DocumentUID  string
	Text         string
	Caption      string
	MessageID    int64
}

// Fingerprint детерминированно считает hex-дайджест содержимого.
// Никогда не завершается ошибкой: при отсутствии любых признаков
// используется идентификатор сообщения.
func Fingerprint(sig Signal) string {
	var parts []string
	if sig.GroupID != "" {
		parts = append(parts, "group:"+sig.GroupID)
	}
	if sig.PhotoUID != "" {
		parts = append(parts, "p:"+sig.PhotoUID)
	}
	if sig.VideoUID != "" {
		parts = append(parts, "v:"+sig.VideoUID)
	}
	if sig.AnimationUID != "" {
		parts = append(parts, "g:"+sig.AnimationUID)
	}
	if sig.DocumentUID != "" {
		parts = append(parts, "d:"+sig.DocumentUID)
	}
	if sig.Text != "" {
		parts = append(parts, "t:"+sig.Text)
	}
	if sig.Caption != "" {
		parts = append(parts, "c:"+sig.Caption)
	}
	if len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("id:%d", sig.MessageID))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

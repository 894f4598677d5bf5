package domain

import "time"

// PostKind определяет тип публикации.
type PostKind string

const (
	KindText      PostKind = "text"
	KindPhoto     PostKind = "photo"
	KindVideo     PostKind = "video"
	KindAnimation PostKind = "animation"
	KindAlbum     PostKind = "album"
)

// Source описывает происхождение поста. Используется только для футера,
// никогда для идентификации.
type Source struct {
	Title    string `json:"title"`
	Username string `json:"username,omitempty"`
}

// MediaRef ссылается на медиа: либо уже загруженный file_id Bot API,
// либо сырые байты с именем файла.
type MediaRef struct {
	FileID   string `json:"file_id,omitempty"`
	Data     []byte `json:"data,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// IsZero сообщает, что ссылка пуста.
func (m MediaRef) IsZero() bool {
	return m.FileID == "" && len(m.Data) == 0
}

// AlbumItem — один фрагмент альбома со своей подписью.
type AlbumItem struct {
	Kind    PostKind `json:"kind"`
	Media   MediaRef `json:"media"`
	Caption string   `json:"caption,omitempty"`
}

// PostItem — нормализованный пост, единица конвейера.
// Инвариант: заполнено ровно одно из Media и Album в соответствии с Kind;
// для KindText не заполнено ни то, ни другое.
type PostItem struct {
	Source Source      `json:"source"`
	Kind   PostKind    `json:"kind"`
	Text   string      `json:"text,omitempty"`
	Media  *MediaRef   `json:"media,omitempty"`
	Album  []AlbumItem `json:"album,omitempty"`
}

// QueueStatus — статус записи очереди публикаций.
type QueueStatus string

const (
	StatusPending QueueStatus = "pending"
	StatusPosted  QueueStatus = "posted"
	StatusFailed  QueueStatus = "failed"
)

// QueueEntry — запись durable-очереди публикаций.
type QueueEntry struct {
	ID           int64
	Item         PostItem
	Status       QueueStatus
	CreatedAt    time.Time
	PostedAt     *time.Time
	ErrorMessage string
}

// QueueStats — количество записей по статусам.
type QueueStats struct {
	Pending int
	Posted  int
	Failed  int
}

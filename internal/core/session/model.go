package session

import (
	"time"

	"github.com/google/uuid"
)

// Turn は1回分の質問と回答のやり取りを表す
type Turn struct {
	ID        int64     `json:"id"`        // 挿入順を表す連番
	SessionID uuid.UUID `json:"sessionID"` // セッションID
	Query     string    `json:"query"`     // ユーザーの質問（原文）
	Answer    string    `json:"answer"`    // LLMの回答
	CreatedAt time.Time `json:"createdAt"`
}

// Role は会話メモリ中の発話者
type Role string

const (
	RoleHuman Role = "human"
	RoleAI    Role = "ai"
)

// Message は会話メモリ中の1発話
type Message struct {
	Role    Role
	Content string
}

// DeleteResult はセッション削除の結果を表す
type DeleteResult struct {
	SessionID uuid.UUID
	Deleted   int64
}

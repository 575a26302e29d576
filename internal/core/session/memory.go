package session

import "strings"

// Memory は履歴から再構築した会話メモリ。1リクエストの間だけ保持する
type Memory struct {
	messages []Message
}

// NewMemory はターン列から human/ai 交互の会話メモリを組み立てる
func NewMemory(turns []*Turn) *Memory {
	messages := make([]Message, 0, len(turns)*2)
	for _, turn := range turns {
		messages = append(messages,
			Message{Role: RoleHuman, Content: turn.Query},
			Message{Role: RoleAI, Content: turn.Answer},
		)
	}
	return &Memory{messages: messages}
}

// IsEmpty は履歴が存在しないかどうかを返す
func (m *Memory) IsEmpty() bool {
	return m == nil || len(m.messages) == 0
}

// Messages は発話のコピーを返す
func (m *Memory) Messages() []Message {
	if m == nil {
		return nil
	}
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Len は発話数を返す
func (m *Memory) Len() int {
	if m == nil {
		return 0
	}
	return len(m.messages)
}

// Transcript は質問の言い換えプロンプト用に履歴を整形する
func (m *Memory) Transcript() string {
	if m.IsEmpty() {
		return ""
	}

	var sb strings.Builder
	for i, msg := range m.messages {
		if i > 0 {
			sb.WriteString("\n")
		}
		switch msg.Role {
		case RoleHuman:
			sb.WriteString("Human: ")
		case RoleAI:
			sb.WriteString("Assistant: ")
		}
		sb.WriteString(msg.Content)
	}
	return sb.String()
}

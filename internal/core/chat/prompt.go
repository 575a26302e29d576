package chat

import (
	"strings"

	"github.com/jinford/chat-rag/internal/core/vectorindex"
)

// AssistantName はプロンプト内でのアシスタント名
const AssistantName = "TAC"

const condenseTemplate = "You are an AI assistant named " + AssistantName + ". " +
	"Given the following conversation and a follow-up question, rephrase the follow-up question " +
	"to be a standalone question in its original language.\n\n" +
	"Chat History:\n{chat_history}\n" +
	"Follow-Up Input: {question}\n" +
	"Standalone Question:"

const answerTemplate = "You are an AI assistant named " + AssistantName + ". " +
	"Use the following pieces of context to answer the question at the end. " +
	"If you don't know the answer, just say that you don't know, don't try to make up an answer.\n\n" +
	"{context}\n\n" +
	"Question: {question}\n" +
	"Helpful Answer:"

// BuildCondensePrompt は会話履歴と追加の質問から独立した質問を作るためのプロンプトを構築する
func BuildCondensePrompt(chatHistory, question string) string {
	return strings.NewReplacer(
		"{chat_history}", chatHistory,
		"{question}", question,
	).Replace(condenseTemplate)
}

// BuildAnswerPrompt は検索したチャンクを根拠に回答させるプロンプトを構築する
func BuildAnswerPrompt(question string, chunks []*vectorindex.ScoredChunk) string {
	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}

	return strings.NewReplacer(
		"{context}", strings.Join(texts, "\n\n"),
		"{question}", question,
	).Replace(answerTemplate)
}

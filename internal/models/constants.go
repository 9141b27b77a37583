package models

// HistoryTurnFormat renders one turn as "Q: ...\nA: ..." when the chat
// history is folded into the condense prompt.
const HistoryTurnFormat = "Q: %s\nA: %s"

var (
	// CondensePromptTemplate rewrites a follow-up question into a standalone
	// question using the conversation so far. Args: formatted history,
	// follow-up question.
	CondensePromptTemplate = `Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question.

Chat history:
%s
Follow up question: %s
Standalone question:`

	// QAPromptTemplate grounds the answer in retrieved context. Telling the
	// model to admit ignorance rather than fabricate is a contract of the
	// template, not enforced mechanically. Args: context, standalone question.
	QAPromptTemplate = `Use the following pieces of context to answer the question. If you don't know the answer, just say that you don't know, don't try to make up an answer.

%s

Question: %s
Helpful answer based on the context:`
)

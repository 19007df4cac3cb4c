package models

var (
	QAPromptTemplate = `Use the following pieces of context to answer the question at the end. If you don't know the answer based on the context, say so instead of making one up.

Context:
%s

Question: %s
`
)

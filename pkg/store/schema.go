package store

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	message_uid TEXT UNIQUE NOT NULL,
	chat_id TEXT NOT NULL,
	sender_pk TEXT NOT NULL,
	content TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	vector_clock TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_chat_id ON messages(chat_id);

CREATE TABLE IF NOT EXISTS vector_clocks (
	chat_id TEXT PRIMARY KEY,
	clock TEXT NOT NULL
);
`

package storage

// migrationsSQL creates the schema. Statements are idempotent so the whole
// block runs on every open.
const migrationsSQL = `
CREATE TABLE IF NOT EXISTS posts (
	id TEXT PRIMARY KEY,
	subreddit TEXT NOT NULL,
	title TEXT NOT NULL,
	body TEXT NOT NULL,
	author TEXT NOT NULL,
	url TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	scraped_at TIMESTAMP NOT NULL,
	status TEXT NOT NULL DEFAULT 'unknown',
	flair TEXT,
	score INTEGER NOT NULL DEFAULT 0,
	num_comments INTEGER NOT NULL DEFAULT 0,
	audio_links TEXT NOT NULL DEFAULT '[]',
	description TEXT
);

CREATE INDEX IF NOT EXISTS idx_posts_subreddit ON posts(subreddit);

CREATE INDEX IF NOT EXISTS idx_posts_status ON posts(status);

CREATE TABLE IF NOT EXISTS songs (
	id TEXT PRIMARY KEY,
	post_id TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	artist TEXT NOT NULL,
	album TEXT,
	year INTEGER,
	genre TEXT,
	era TEXT,
	mood TEXT,
	description TEXT,
	confidence TEXT,
	discovered_at TIMESTAMP NOT NULL,
	FOREIGN KEY (post_id) REFERENCES posts(id)
);

CREATE INDEX IF NOT EXISTS idx_songs_title ON songs(title);

CREATE INDEX IF NOT EXISTS idx_songs_artist ON songs(artist)
`

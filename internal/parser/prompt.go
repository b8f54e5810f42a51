package parser

import (
	"fmt"
	"strings"

	"github.com/earworm/tomt/internal/model"
)

const solutionPromptTemplate = `You are analyzing comments on a "tip of my tongue" post that has been marked as SOLVED.

The original poster was looking for a song. Find the comment that correctly identified the song.

Post Title: %s
Post Body: %s

Comments:
%s

If you can identify the solution, respond with a JSON object:
{
    "found": true,
    "song_title": "Title of the song",
    "artist": "Artist name",
    "album": "Album name if mentioned, or null",
    "year": year as integer if mentioned, or null,
    "genre": "genre if it can be inferred, or null",
    "era": "decade or year range if mentioned, or null",
    "mood": "mood/feeling if described, or null",
    "confidence": "high/medium/low"
}

If you cannot find a clear solution, respond with:
{
    "found": false,
    "reason": "Brief explanation why"
}

Respond with the JSON object only, no surrounding prose.`

const descriptionPromptTemplate = `You are analyzing a "tip of my tongue" post where someone is trying to identify a song they can't remember.

Extract a clean, searchable description of the song from this post. Focus on:
- Genre or style mentioned
- Era/decade the song might be from
- Memorable lyrics or phrases
- Instruments or sounds mentioned
- Where they heard it (movie, commercial, etc.)
- Mood or feeling of the song

Post Title: %s

Post Body:
%s

Respond with a JSON object:
{
    "description": "A clean 1-3 sentence description of the song being searched for"
}

Respond with the JSON object only, no surrounding prose.`

func solutionPrompt(post model.Post) string {
	comments := post.Comments
	if len(comments) > maxPromptComments {
		comments = comments[:maxPromptComments]
	}
	lines := make([]string, 0, len(comments))
	for _, c := range comments {
		lines = append(lines, fmt.Sprintf("[Comment ID: %s] (score: %d, by: %s)\n%s", c.ID, c.Score, c.Author, c.Body))
	}
	return fmt.Sprintf(solutionPromptTemplate, post.Title, post.Body, strings.Join(lines, "\n\n"))
}

func descriptionPrompt(post model.Post) string {
	return fmt.Sprintf(descriptionPromptTemplate, post.Title, post.Body)
}

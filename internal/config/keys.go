package config

// Keys carries the per-request credential set for the external collaborators.
// The zero value means "nothing provided".
type Keys struct {
	RedditClientID     string
	RedditClientSecret string
	ModelAPIKey        string
}

// ResolveKeys applies the bring-your-own-keys precedence chain:
// request body > request headers > configured environment defaults.
// Each layer is optional; for every field the first non-empty value wins.
func ResolveKeys(body, headers, env Keys) Keys {
	return Keys{
		RedditClientID:     firstNonEmpty(body.RedditClientID, headers.RedditClientID, env.RedditClientID),
		RedditClientSecret: firstNonEmpty(body.RedditClientSecret, headers.RedditClientSecret, env.RedditClientSecret),
		ModelAPIKey:        firstNonEmpty(body.ModelAPIKey, headers.ModelAPIKey, env.ModelAPIKey),
	}
}

// EnvKeys extracts the configured default credentials.
func (c Config) EnvKeys() Keys {
	return Keys{
		RedditClientID:     c.Reddit.ClientID,
		RedditClientSecret: c.Reddit.ClientSecret,
		ModelAPIKey:        c.Model.APIKey,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

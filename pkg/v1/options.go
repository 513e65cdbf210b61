package v1

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	scope      string
	author     string
	inMemory   bool
	autoCommit bool
}

// WithScope forces a specific scope (global or project).
func WithScope(scope string) Option {
	return func(c *clientConfig) {
		c.scope = scope
	}
}

// WithAuthor sets the author recorded on commits made through the client.
func WithAuthor(author string) Option {
	return func(c *clientConfig) {
		c.author = author
	}
}

// WithInMemory opens an ephemeral repository that lives only for the
// client's lifetime. Useful for tests and short-lived agents.
func WithInMemory() Option {
	return func(c *clientConfig) {
		c.inMemory = true
	}
}

// WithAutoCommit makes every Set and Delete commit immediately instead of
// staging.
func WithAutoCommit() Option {
	return func(c *clientConfig) {
		c.autoCommit = true
	}
}

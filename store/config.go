package store

// Config holds configuration for the Store.
type Config struct {
	// TableName is the name of the todos table.
	// The table's partition key is "userId" and its sort key "todoId".
	// Default: "todos"
	TableName string

	// EventualReads switches the existence check and list query to
	// eventually consistent reads. Existence checks guard every mutation,
	// so the default is strongly consistent.
	EventualReads bool

	// PageSize bounds the number of items per Query page (0 = service default).
	PageSize int32
}

// DefaultConfig returns the defaults used by the deployed service.
func DefaultConfig() Config {
	return Config{
		TableName: "todos",
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.TableName == "" {
		c.TableName = "todos"
	}
	if c.PageSize < 0 {
		c.PageSize = 0
	}
}

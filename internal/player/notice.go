package player

// Notice is a user-facing message emitted by the core. The core never
// formats final strings; it supplies a lookup key plus parameters and the
// surrounding glue resolves them against whatever locale applies.
type Notice struct {
	Key    string
	Params map[string]any
}

// NewNotice builds a Notice from a key and alternating key/value pairs.
func NewNotice(key string, kv ...any) Notice {
	n := Notice{Key: key}
	if len(kv) == 0 {
		return n
	}
	n.Params = make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if name, ok := kv[i].(string); ok {
			n.Params[name] = kv[i+1]
		}
	}
	return n
}

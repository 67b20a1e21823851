package policy

// secretFields is the fixed deny-list of secret-bearing keys in upstream
// session responses. Values under these keys must never reach the logs;
// the client response itself is left untouched.
var secretFields = map[string]struct{}{
	"client_secret": {},
	"server_secret": {},
	"key":           {},
	"token":         {},
}

// RedactSecrets returns a copy of obj with secret-bearing top-level
// fields removed. The input map is not modified.
func RedactSecrets(obj map[string]any) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		if _, deny := secretFields[k]; deny {
			continue
		}
		out[k] = v
	}
	return out
}

package fetch

import (
	"encoding/json"
	"strings"
)

// ParseError reports an API payload whose shape did not match any of
// the accepted forms. Failing fast here keeps loosely-typed data out
// of the aggregator.
type ParseError struct {
	What   string
	Reason string
}

func (e *ParseError) Error() string {
	return "parse " + e.What + ": " + e.Reason
}

// decodeEntities accepts either a bare JSON array of names or a
// wrapper object {"entities": [...]}.
func decodeEntities(body []byte) ([]string, error) {
	var names []string
	if err := json.Unmarshal(body, &names); err == nil {
		return names, nil
	}

	var wrapper struct {
		Entities []string `json:"entities"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Entities != nil {
		return wrapper.Entities, nil
	}

	return nil, &ParseError{What: "entities", Reason: "expected a string array or an object with an \"entities\" key"}
}

func decodeStats(body []byte) (Stats, error) {
	var stats Stats
	if err := json.Unmarshal(body, &stats); err != nil {
		return Stats{}, &ParseError{What: "stats", Reason: err.Error()}
	}
	return stats, nil
}

// userEntry tolerates the two wallet key spellings the API has been
// observed to use.
type userEntry struct {
	Wallet        string `json:"wallet"`
	WalletAddress string `json:"walletAddress"`
}

func (u userEntry) address() string {
	if u.Wallet != "" {
		return u.Wallet
	}
	return u.WalletAddress
}

// decodeUsers accepts a bare array of user objects or address strings,
// or a wrapper object keyed "users" or "data". Entries without a
// wallet address are rejected rather than silently skipped.
func decodeUsers(body []byte) ([]string, error) {
	var raw json.RawMessage = body

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapper); err == nil {
		if users, ok := wrapper["users"]; ok {
			raw = users
		} else if data, ok := wrapper["data"]; ok {
			raw = data
		} else {
			keys := make([]string, 0, len(wrapper))
			for k := range wrapper {
				keys = append(keys, k)
			}
			return nil, &ParseError{What: "users", Reason: "unexpected object keys: " + strings.Join(keys, ", ")}
		}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &ParseError{What: "users", Reason: "expected a user array"}
	}

	addrs := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if s == "" {
				return nil, &ParseError{What: "users", Reason: "empty wallet address entry"}
			}
			addrs = append(addrs, s)
			continue
		}

		var entry userEntry
		if err := json.Unmarshal(item, &entry); err != nil {
			return nil, &ParseError{What: "users", Reason: "entry is neither an address string nor a user object"}
		}
		addr := entry.address()
		if addr == "" {
			return nil, &ParseError{What: "users", Reason: "user object has no wallet or walletAddress key"}
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

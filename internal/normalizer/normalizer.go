// Package normalizer maps arbitrary provider JSON into the canonical
// MessageEnvelope. Provider-shape knowledge lives in a declarative table of
// candidate extraction paths; one generic resolver evaluates them in order and
// the first path yielding a non-empty value wins. Unmatched fields stay empty,
// they are never inferred.
package normalizer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/HugoGarcez/agentpromp-sub000/internal/models"
)

// Candidate paths per logical field, most specific provider shape first.
// Path segments traverse JSON objects; a numeric segment indexes an array.
var candidatePaths = map[string][]string{
	"messageId": {
		"data.key.id",
		"key.id",
		"data.message.key.id",
		"messageId",
		"id",
	},
	"sender": {
		"data.key.remoteJid",
		"key.remoteJid",
		"data.remoteJid",
		"sender",
		"from",
	},
	"owner": {
		"owner",
		"data.owner",
		"instance.owner",
		"me.id",
		"data.me.id",
	},
	"connectionId": {
		"connectionId",
		"data.connectionId",
		"instanceId",
		"data.instanceId",
		"sessionId",
		"session",
	},
	"company": {
		"companyId",
		"data.companyId",
		"company.id",
	},
	"text": {
		"data.message.conversation",
		"message.conversation",
		"data.message.extendedTextMessage.text",
		"message.extendedTextMessage.text",
		"data.body",
		"text",
		"body",
	},
	"media": {
		"data.message.audioMessage.url",
		"message.audioMessage.url",
		"data.message.imageMessage.url",
		"message.imageMessage.url",
		"data.mediaUrl",
		"mediaUrl",
	},
	"messageType": {
		"data.messageType",
		"messageType",
		"data.type",
		"type",
	},
}

var boolPaths = map[string][]string{
	"fromMe": {
		"data.key.fromMe",
		"key.fromMe",
		"fromMe",
	},
	"fromApi": {
		"data.fromApi",
		"fromApi",
		"isFromApi",
		"sentByApi",
	},
	"isGroup": {
		"data.isGroup",
		"isGroup",
	},
	"isBroadcast": {
		"data.isBroadcast",
		"isBroadcast",
	},
}

// Normalize parses a raw webhook body (JSON object, or array whose first
// element is taken) into an envelope. ok is false when the payload carries no
// sender, which makes the message unroutable; such payloads are dropped
// upstream.
func Normalize(raw []byte) (models.MessageEnvelope, bool) {
	var env models.MessageEnvelope

	root, err := decodeRoot(raw)
	if err != nil {
		log.Debug().Err(err).Msg("Normalizer could not decode payload")
		return env, false
	}

	env = models.MessageEnvelope{
		ExternalID:   resolveString(root, candidatePaths["messageId"]),
		SenderJID:    resolveString(root, candidatePaths["sender"]),
		OwnerNumber:  resolveString(root, candidatePaths["owner"]),
		ConnectionID: resolveString(root, candidatePaths["connectionId"]),
		CompanyID:    resolveString(root, candidatePaths["company"]),
		Text:         resolveString(root, candidatePaths["text"]),
		MediaURL:     resolveString(root, candidatePaths["media"]),
		MessageType:  resolveString(root, candidatePaths["messageType"]),
		IsFromMe:     resolveBool(root, boolPaths["fromMe"]),
		FromAPI:      resolveBool(root, boolPaths["fromApi"]),
		IsGroup:      resolveBool(root, boolPaths["isGroup"]),
		IsBroadcast:  resolveBool(root, boolPaths["isBroadcast"]),
	}

	// JID suffixes are authoritative when the flags are absent.
	if strings.HasSuffix(env.SenderJID, "@g.us") {
		env.IsGroup = true
	}
	if strings.HasSuffix(env.SenderJID, "@broadcast") {
		env.IsBroadcast = true
	}

	if env.SenderJID == "" {
		return env, false
	}
	return env, true
}

func decodeRoot(raw []byte) (map[string]interface{}, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var arr []map[string]interface{}
		if err := json.Unmarshal(raw, &arr); err != nil {
			return nil, err
		}
		if len(arr) == 0 {
			return nil, fmt.Errorf("empty payload array")
		}
		return arr[0], nil
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// resolveString returns the first non-empty string value among the candidate
// paths. Numbers are stringified; everything else is ignored.
func resolveString(root map[string]interface{}, paths []string) string {
	for _, path := range paths {
		v, ok := lookup(root, path)
		if !ok {
			continue
		}
		switch val := v.(type) {
		case string:
			if val != "" {
				return val
			}
		case float64:
			return fmt.Sprintf("%v", val)
		}
	}
	return ""
}

func resolveBool(root map[string]interface{}, paths []string) bool {
	for _, path := range paths {
		v, ok := lookup(root, path)
		if !ok {
			continue
		}
		switch val := v.(type) {
		case bool:
			return val
		case string:
			if val == "true" {
				return true
			}
			if val == "false" {
				return false
			}
		}
	}
	return false
}

func lookup(node interface{}, path string) (interface{}, bool) {
	current := node
	for _, seg := range strings.Split(path, ".") {
		switch typed := current.(type) {
		case map[string]interface{}:
			next, ok := typed[seg]
			if !ok {
				return nil, false
			}
			current = next
		case []interface{}:
			idx, err := parseIndex(seg)
			if err != nil || idx < 0 || idx >= len(typed) {
				return nil, false
			}
			current = typed[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

func parseIndex(seg string) (int, error) {
	var idx int
	_, err := fmt.Sscanf(seg, "%d", &idx)
	return idx, err
}

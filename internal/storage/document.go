package storage

import (
	"bytes"
	"encoding/json"
	"fmt"

	logx "remindbot/pkg/logx"
)

const reminderSection = "event_reminder"

type toggleDoc struct {
	Enabled bool `json:"enabled"`
}

type groupDoc struct {
	EventReminder toggleDoc `json:"event_reminder"`
}

// decodeDocument reads the on-disk mapping of group id to settings.
//
// Accepted entry shapes:
//
//	{"event_reminder": {"enabled": true}}   canonical
//	{"enabled": true}                        legacy bare flag
//
// Anything else for an entry is logged and treated as disabled. Only a
// document that is not a JSON object at all is an error.
func decodeDocument(data []byte, log logx.Logger) (Groups, error) {
	out := Groups{}
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode group config: %w", err)
	}
	for gid, entry := range raw {
		enabled, ok := normalizeEntry(entry)
		if !ok {
			log.Warn("malformed group config entry; treating as disabled", logx.String("group", gid))
		}
		out[gid] = GroupSettings{ReminderEnabled: enabled}
	}
	return out, nil
}

func normalizeEntry(entry json.RawMessage) (enabled bool, ok bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(entry, &fields); err != nil || fields == nil {
		return false, false
	}
	if sec, has := fields[reminderSection]; has {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(sec, &inner); err != nil || inner == nil {
			return false, false
		}
		return boolField(inner)
	}
	return boolField(fields)
}

func boolField(m map[string]json.RawMessage) (bool, bool) {
	v, has := m["enabled"]
	if !has {
		return false, false
	}
	var b bool
	if err := json.Unmarshal(v, &b); err != nil {
		return false, false
	}
	return b, true
}

// encodeDocument always writes the canonical shape. Keys come out sorted.
func encodeDocument(g Groups) ([]byte, error) {
	doc := make(map[string]groupDoc, len(g))
	for gid, s := range g {
		doc[gid] = groupDoc{EventReminder: toggleDoc{Enabled: s.ReminderEnabled}}
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

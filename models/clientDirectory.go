package models

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/ticketbooks_backend/config"
	"bitbucket.org/mmdatafocus/ticketbooks_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ClientDirectory is the read-only client lookup the billing engine depends on.
type ClientDirectory interface {
	ResolveName(clientKey string) (string, bool)
	GetEntry(clientKey string) (*ClientEntry, bool)
}

type ClientEntry struct {
	Key         string              `json:"-"`
	Name        string              `json:"name"`
	DisplayName string              `json:"display_name,omitempty"`
	SupportRate decimal.NullDecimal `json:"support_rate"`
	Contract    bool                `json:"contract"`
	// unknown attributes (addresses, notes) survive a load/save cycle
	Extra map[string]any `json:"-"`
}

var clientEntryKnownFields = map[string]bool{
	"key": true, "name": true, "display_name": true, "support_rate": true, "contract": true,
}

func (e *ClientEntry) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	e.fromMap(raw)
	return nil
}

func (e *ClientEntry) fromMap(raw map[string]any) {
	if v, ok := raw["name"].(string); ok {
		e.Name = strings.TrimSpace(v)
	}
	if v, ok := raw["display_name"].(string); ok {
		e.DisplayName = strings.TrimSpace(v)
	}
	rate, ok := utils.ToDecimal(raw["support_rate"])
	e.SupportRate = utils.NullDecimal(rate, ok)
	switch v := raw["contract"].(type) {
	case bool:
		e.Contract = v
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		e.Contract = s == "true" || s == "yes" || s == "1"
	case float64:
		e.Contract = v != 0
	}
	for k, v := range raw {
		if clientEntryKnownFields[k] {
			continue
		}
		if e.Extra == nil {
			e.Extra = make(map[string]any)
		}
		e.Extra[k] = v
	}
}

func (e ClientEntry) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Extra)+4)
	for k, v := range e.Extra {
		out[k] = v
	}
	out["name"] = e.Name
	if e.DisplayName != "" {
		out["display_name"] = e.DisplayName
	}
	if e.SupportRate.Valid {
		out["support_rate"] = utils.FormatCurrency(e.SupportRate.Decimal)
	}
	out["contract"] = e.Contract
	return json.Marshal(out)
}

// HasSupportRate reports a configured, non-zero hourly rate.
func (e *ClientEntry) HasSupportRate() bool {
	return e != nil && e.SupportRate.Valid && !e.SupportRate.Decimal.IsZero()
}

// ClientTable is a map-backed ClientDirectory keyed by client_key.
type ClientTable map[string]*ClientEntry

func (t ClientTable) GetEntry(clientKey string) (*ClientEntry, bool) {
	if t == nil {
		return nil, false
	}
	entry, ok := t[clientKey]
	if !ok || entry == nil {
		return nil, false
	}
	return entry, true
}

func (t ClientTable) ResolveName(clientKey string) (string, bool) {
	entry, ok := t.GetEntry(clientKey)
	if !ok {
		return "", false
	}
	if entry.Name != "" {
		return entry.Name, true
	}
	if entry.DisplayName != "" {
		return entry.DisplayName, true
	}
	return clientKey, true
}

// ParseClientTable decodes the JSON layout. The legacy layout keyed by
// display name, with the real key nested under "key", is converted; the
// second return value reports whether that happened.
func ParseClientTable(data []byte) (ClientTable, bool, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return ClientTable{}, false, nil
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, false, err
	}
	raw := make(map[string]map[string]any, len(decoded))
	for k, v := range decoded {
		if payload, ok := v.(map[string]any); ok {
			raw[k] = payload
		}
	}

	migrated := false
	for displayName, payload := range raw {
		if legacyKey, ok := payload["key"].(string); ok && legacyKey != "" && legacyKey != displayName {
			migrated = true
			break
		}
	}

	table := make(ClientTable, len(raw))
	for mapKey, payload := range raw {
		key := mapKey
		entry := &ClientEntry{}
		entry.fromMap(payload)
		if migrated {
			legacyKey, _ := payload["key"].(string)
			if legacyKey == "" {
				continue
			}
			key = legacyKey
			if entry.Name == "" {
				entry.Name = mapKey
			}
		}
		if entry.Name == "" {
			entry.Name = entry.DisplayName
		}
		if entry.Name == "" {
			entry.Name = key
		}
		entry.Key = key
		table[key] = entry
	}
	return table, migrated, nil
}

// LoadClientTable reads the table at path. A missing file is an empty table;
// a legacy file is rewritten in the current layout.
func LoadClientTable(path string) (ClientTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ClientTable{}, nil
		}
		return nil, err
	}
	table, migrated, err := ParseClientTable(data)
	if err != nil {
		return nil, err
	}
	if migrated {
		if err := SaveClientTable(path, table); err != nil {
			config.GetLogger().WithError(err).WithField("path", path).
				Error("failed to persist migrated client table")
		}
	}
	return table, nil
}

// SaveClientTable writes the table as indented JSON and drops the cached copy.
func SaveClientTable(path string, table ClientTable) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	return config.RemoveRedisKey(clientTableCacheKey(path))
}

func clientTableCacheKey(path string) string {
	return "clientTable:" + path
}

const clientTableCacheTTL = 5 * time.Minute

// CachedClientTable loads the table through the Redis cache when one is
// configured.
func CachedClientTable(path string) (ClientTable, error) {
	var cached map[string]*ClientEntry
	exists, err := config.GetRedisObject(clientTableCacheKey(path), &cached)
	if err != nil {
		config.GetLogger().WithFields(logrus.Fields{"path": path}).WithError(err).Warn("client table cache read failed")
	}
	if exists && cached != nil {
		table := make(ClientTable, len(cached))
		for k, entry := range cached {
			if entry == nil {
				continue
			}
			entry.Key = k
			table[k] = entry
		}
		return table, nil
	}

	table, err := LoadClientTable(path)
	if err != nil {
		return nil, err
	}
	if err := config.SetRedisObject(clientTableCacheKey(path), table, clientTableCacheTTL); err != nil {
		config.GetLogger().WithFields(logrus.Fields{"path": path}).WithError(err).Warn("client table cache write failed")
	}
	return table, nil
}

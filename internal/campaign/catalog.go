package campaign

import (
	"encoding/json"
	"fmt"

	"github.com/fleetedge/inspection-agent/internal/fwerrors"
	"github.com/fleetedge/inspection-agent/internal/signal"
)

// wireCatalog is the cloud-pushed fully-qualified-name table that
// accompanies a decoder manifest: the manifest's CANSignalFormat
// entries are keyed by bare numeric id, but campaign expressions and
// signalsToCollect[].name reference signals by name (spec §6). The
// catalog is the bridge between the two.
type wireCatalog struct {
	Signals []struct {
		ID   uint32 `json:"id"`
		Name string `json:"name"`
	} `json:"signals"`
}

// Catalog is the bidirectional name<->id table used to resolve
// campaign expressions and to drive the inspection engine's name-keyed
// evaluation activation.
type Catalog struct {
	idByName map[string]signal.ID
	nameByID map[signal.ID]string
}

// ParseCatalog parses a signal name catalog document. Malformed
// documents (malformed JSON, duplicate id or name) are rejected with
// ErrDictionaryMalformed; the caller keeps the previous catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var wc wireCatalog
	if err := json.Unmarshal(data, &wc); err != nil {
		return nil, fmt.Errorf("%w: %v", fwerrors.ErrDictionaryMalformed, err)
	}

	c := &Catalog{
		idByName: make(map[string]signal.ID, len(wc.Signals)),
		nameByID: make(map[signal.ID]string, len(wc.Signals)),
	}
	for _, s := range wc.Signals {
		if s.Name == "" {
			return nil, fmt.Errorf("%w: catalog entry for id %d has an empty name", fwerrors.ErrDictionaryMalformed, s.ID)
		}
		id := signal.ID(s.ID)
		if _, dup := c.idByName[s.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate catalog name %q", fwerrors.ErrDictionaryMalformed, s.Name)
		}
		if _, dup := c.nameByID[id]; dup {
			return nil, fmt.Errorf("%w: duplicate catalog id %d", fwerrors.ErrDictionaryMalformed, id)
		}
		c.idByName[s.Name] = id
		c.nameByID[id] = s.Name
	}
	return c, nil
}

// Resolve looks up name's signal id, satisfying NameResolver.
func (c *Catalog) Resolve(name string) (signal.ID, bool) {
	id, ok := c.idByName[name]
	return id, ok
}

// NameByID returns the full name<->id table for Engine.SetSignalNames.
func (c *Catalog) NameByID() map[signal.ID]string {
	out := make(map[signal.ID]string, len(c.nameByID))
	for id, name := range c.nameByID {
		out[id] = name
	}
	return out
}

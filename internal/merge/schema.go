package merge

import (
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cuejson "cuelang.org/go/encoding/json"
)

// recordSchema constrains the wire shape of records from other devices.
// Structs are open: unknown fields are accepted and ignored.
const recordSchema = `
entry: {
	id:          string & !=""
	bib:         string & =~"^\\s*[0-9]{1,3}\\s*$"
	point:       "S" | "F"
	run?:        1 | 2 | null
	timestamp:   string & !=""
	status?:     "ok" | "dns" | "dnf" | "dsq" | null
	deviceId:    string & !=""
	deviceName?: string | null
	photo?:      string | null
	syncedAt?:   string | null
}

fault: {
	id:                 string & !=""
	bib:                string & =~"^\\s*[0-9]{1,3}\\s*$"
	run?:               1 | 2 | null
	gateNumber:         int & >=0
	faultType:          "MG" | "STR" | "BR"
	timestamp:          string & !=""
	deviceId:           string & !=""
	deviceName?:        string | null
	gateRange?:         [int, int] | null
	currentVersion?:    int & >=1
	markedForDeletion?: bool | null
	notes?:             string | null
	notesSource?:       "manual" | "voice" | null
	versionHistory?: [...{
		version: int & >=1
		data: {...}
	}] | null
}
`

// schema holds the compiled record constraints. A cue.Context is not safe for
// concurrent use; callers serialise access.
type schema struct {
	ctx   *cue.Context
	entry cue.Value
	fault cue.Value
}

func compileSchema() (*schema, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString(recordSchema, cue.Filename("records.cue"))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile record schema: %w", err)
	}
	s := &schema{
		ctx:   ctx,
		entry: root.LookupPath(cue.ParsePath("entry")),
		fault: root.LookupPath(cue.ParsePath("fault")),
	}
	if !s.entry.Exists() || !s.fault.Exists() {
		return nil, fmt.Errorf("compile record schema: missing entry or fault definition")
	}
	return s, nil
}

// check validates raw JSON against the given schema value.
func (s *schema) check(def cue.Value, raw json.RawMessage) error {
	expr, err := cuejson.Extract("record", raw)
	if err != nil {
		return fmt.Errorf("parse record: %w", err)
	}
	v := s.ctx.BuildExpr(expr)
	if err := v.Err(); err != nil {
		return fmt.Errorf("build record: %w", err)
	}
	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validate record: %w", err)
	}
	return nil
}

package contextstore

import (
	"fmt"
	"time"

	"github.com/zeebo/xxh3"

	"cab/internal/errors"
)

// Kind discriminates the entity union.
type Kind string

const (
	KindAPI      Kind = "api"
	KindFunction Kind = "function"
	KindClass    Kind = "class"
	KindImport   Kind = "import"
	KindDatabase Kind = "database"
)

// APIEndpoint is a discovered HTTP route.
type APIEndpoint struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// Function is a discovered function or method.
type Function struct {
	Name string `json:"name"`
	Line int    `json:"line"`
}

// Class is a discovered class or type definition.
type Class struct {
	Name string `json:"name"`
	Line int    `json:"line"`
}

// Import is a discovered import statement.
type Import struct {
	Module string `json:"module"`
	Name   string `json:"name,omitempty"`
}

// Database is a discovered database connection.
type Database struct {
	Type             string `json:"type"`
	ConnectionString string `json:"connectionString,omitempty"`
}

// Entity is one discovered code element. Exactly one of the payload
// pointers matching Kind is set.
type Entity struct {
	Kind         Kind      `json:"kind"`
	SourceFile   string    `json:"sourceFile"`
	DiscoveredAt time.Time `json:"discoveredAt"`

	API      *APIEndpoint `json:"api,omitempty"`
	Function *Function    `json:"function,omitempty"`
	Class    *Class       `json:"class,omitempty"`
	Import   *Import      `json:"import,omitempty"`
	Database *Database    `json:"database,omitempty"`
}

// validate rejects entities whose payload pointer does not match Kind.
// Import calls it before rebuilding fingerprints, so a malformed export
// file fails with a Corrupt error instead of a nil dereference.
func (e *Entity) validate() error {
	if e == nil {
		return errors.New(errors.Corrupt, "null context entity")
	}
	var present bool
	switch e.Kind {
	case KindAPI:
		present = e.API != nil
	case KindFunction:
		present = e.Function != nil
	case KindClass:
		present = e.Class != nil
	case KindImport:
		present = e.Import != nil
	case KindDatabase:
		present = e.Database != nil
	default:
		return errors.New(errors.Corrupt, fmt.Sprintf("unknown entity kind %q", e.Kind))
	}
	if !present {
		return errors.New(errors.Corrupt, fmt.Sprintf("%s entity is missing its %s payload", e.Kind, e.Kind))
	}
	return nil
}

// fingerprint is the deduplication key. API endpoints dedup globally by
// method and path; everything else dedups within its source file.
func (e *Entity) fingerprint() string {
	var key string
	switch e.Kind {
	case KindAPI:
		method := e.API.Method
		if method == "" {
			method = "GET"
		}
		key = fmt.Sprintf("api|%s:%s", method, e.API.Path)
	case KindFunction:
		key = fmt.Sprintf("func|%s:%s:%d", e.SourceFile, e.Function.Name, e.Function.Line)
	case KindClass:
		key = fmt.Sprintf("class|%s:%s:%d", e.SourceFile, e.Class.Name, e.Class.Line)
	case KindImport:
		key = fmt.Sprintf("import|%s:%s:%s", e.SourceFile, e.Import.Module, e.Import.Name)
	case KindDatabase:
		key = fmt.Sprintf("db|%s:%s:%s", e.SourceFile, e.Database.Type, e.Database.ConnectionString)
	}
	return fmt.Sprintf("%016x", xxh3.HashString(key))
}

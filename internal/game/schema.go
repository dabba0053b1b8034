package game

import (
	_ "embed"
	"sync"

	"github.com/roach88/nianio/internal/compiler"
	"github.com/roach88/nianio/internal/schema"
)

//go:embed schema.cue
var schemaSource []byte

var (
	schemaOnce sync.Once
	schemaReg  schema.Registry
	schemaErr  error
)

// SchemaSource returns the CUE source of the game schema.
func SchemaSource() []byte {
	return schemaSource
}

// Schema compiles the embedded game schema. The result is cached.
func Schema() (schema.Registry, error) {
	schemaOnce.Do(func() {
		schemaReg, schemaErr = compiler.CompileSource(schemaSource, "schema.cue")
	})
	return schemaReg, schemaErr
}

// MustSchema is like Schema but panics on error.
func MustSchema() schema.Registry {
	reg, err := Schema()
	if err != nil {
		panic(err)
	}
	return reg
}

package harness

import (
	_ "embed"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema/suite.cue
var suiteSchema []byte

// ParseSuiteCUE compiles a CUE suite, unifies it with the #Suite schema and
// decodes the concrete result. filename is only used in error positions.
func ParseSuiteCUE(data []byte, filename string) (*Suite, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(suiteSchema, cue.Filename("suite.cue"))
	if err := schema.Err(); err != nil {
		return nil, &SuiteError{Msg: "compile suite schema", Err: err}
	}
	def := schema.LookupPath(cue.ParsePath("#Suite"))

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, &SuiteError{Msg: "compile CUE", Err: err}
	}

	unified := def.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, &SuiteError{Msg: "suite does not match schema", Err: err}
	}

	var suite Suite
	if err := unified.Decode(&suite); err != nil {
		return nil, &SuiteError{Msg: "decode CUE", Err: err}
	}
	if err := ValidateSuite(&suite); err != nil {
		return nil, err
	}
	return &suite, nil
}

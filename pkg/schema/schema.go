// Package schema maps the flat account sequence of a decoded invocation
// onto named, optionally-absent fields per instruction variant.
//
// A Schema is plain data: an ordered list of field names with optionality.
// Code generators may emit Schema values (and typed wrappers over Context),
// but the builder contract is entirely runtime data-driven — position i of
// the schema consumes account i of the supplied sequence.
package schema

import (
	"errors"
	"fmt"

	"github.com/fortiblox/x1-nitro/pkg/entry"
	"github.com/fortiblox/x1-nitro/pkg/types"
)

// MaxFields is the maximum number of fields a schema may declare.
const MaxFields = 64

var (
	// ErrNotEnoughAccounts is matched by the cardinality failure returned
	// when a mandatory field has no corresponding supplied account.
	ErrNotEnoughAccounts = errors.New("not enough account keys")

	// ErrTooManyFields is returned when a schema declares more than
	// MaxFields fields.
	ErrTooManyFields = errors.New("schema declares too many fields")

	// ErrUnknownField is returned by MustAccount for a name the schema
	// does not declare.
	ErrUnknownField = errors.New("unknown schema field")
)

// Field declares one positional account of an instruction variant.
//
// Optional fields may, by convention, only follow the mandatory fields of
// a variant; the builder does not enforce that ordering — it is a
// schema-authoring responsibility.
type Field struct {
	Name     string
	Optional bool
}

// Schema is the ordered account declaration for one instruction variant.
type Schema struct {
	// Name identifies the variant, used in error messages.
	Name string

	// Fields are consumed against the account sequence in lockstep.
	Fields []Field

	// ProgramID, when set, marks an optional field absent if the account
	// supplied at its position is the program itself. Transactions use the
	// program id as the placeholder for omitted optional accounts.
	ProgramID *types.Pubkey
}

// CardinalityError reports an instruction invoked with fewer accounts than
// its schema's mandatory fields require.
type CardinalityError struct {
	Schema string
	Want   int
	Got    int
}

func (e *CardinalityError) Error() string {
	return fmt.Sprintf("%s: not enough account keys: want %d, got %d", e.Schema, e.Want, e.Got)
}

// Is matches ErrNotEnoughAccounts so callers can test with errors.Is.
func (e *CardinalityError) Is(target error) bool {
	return target == ErrNotEnoughAccounts
}

// ErrorCode implements entry.Coder.
func (e *CardinalityError) ErrorCode() uint64 {
	return entry.CodeNotEnoughAccounts
}

// Context is the named-field view over one instruction's accounts.
//
// It references the account views it was built from and owns none of the
// underlying bytes; like the views themselves it must not outlive the
// invocation.
type Context struct {
	schema   *Schema
	accounts []entry.Account
	present  uint64
}

// Build walks the schema's fields against the supplied account sequence.
//
// A mandatory field with no corresponding account fails with a
// *CardinalityError before anything is exposed. An optional field with no
// corresponding account — either beyond the sequence, or holding the
// program id placeholder — is absent. Surplus accounts are ignored,
// consistent with the decoder's tolerance for wide transactions.
func (s *Schema) Build(accounts []entry.Account) (Context, error) {
	if len(s.Fields) > MaxFields {
		return Context{}, fmt.Errorf("%w: %s has %d", ErrTooManyFields, s.Name, len(s.Fields))
	}

	var present uint64
	for i, f := range s.Fields {
		if i >= len(accounts) {
			if !f.Optional {
				return Context{}, &CardinalityError{
					Schema: s.Name,
					Want:   s.mandatory(),
					Got:    len(accounts),
				}
			}
			continue
		}
		if f.Optional && s.ProgramID != nil && accounts[i].Key().Equals(*s.ProgramID) {
			continue
		}
		present |= 1 << uint(i)
	}

	n := len(s.Fields)
	if n > len(accounts) {
		n = len(accounts)
	}
	return Context{schema: s, accounts: accounts[:n], present: present}, nil
}

// mandatory counts the schema's mandatory fields.
func (s *Schema) mandatory() int {
	n := 0
	for _, f := range s.Fields {
		if !f.Optional {
			n++
		}
	}
	return n
}

// Account returns the view bound to the named field. The second result is
// false when the field is absent or the name is not declared.
func (c Context) Account(name string) (entry.Account, bool) {
	for i, f := range c.schema.Fields {
		if f.Name == name {
			return c.At(i)
		}
	}
	return entry.Account{}, false
}

// MustAccount returns the view bound to the named field, panicking if the
// schema does not declare the name. Intended for mandatory fields, whose
// presence Build has already guaranteed.
func (c Context) MustAccount(name string) entry.Account {
	for i, f := range c.schema.Fields {
		if f.Name == name {
			a, _ := c.At(i)
			return a
		}
	}
	panic(fmt.Errorf("%w: %s.%s", ErrUnknownField, c.schema.Name, name))
}

// Has reports whether the named field is present.
func (c Context) Has(name string) bool {
	_, ok := c.Account(name)
	return ok
}

// At returns the view at schema position i and whether it is present.
func (c Context) At(i int) (entry.Account, bool) {
	if i < 0 || i >= len(c.accounts) || c.present&(1<<uint(i)) == 0 {
		return entry.Account{}, false
	}
	return c.accounts[i], true
}

// Len returns the number of declared fields.
func (c Context) Len() int {
	return len(c.schema.Fields)
}

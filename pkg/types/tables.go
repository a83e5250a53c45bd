package types

import "fmt"

// Standard table names for Cupboard.GetTable.
const (
	TableFields      = "fields"
	TableForms       = "forms"
	TableAgents      = "agents"
	TableSubmissions = "submissions"
)

// StandardTableNames lists all standard table names for enumeration.
var StandardTableNames = []string{
	TableFields,
	TableForms,
	TableAgents,
	TableSubmissions,
}

// Entity is implemented by every record stored in a Cupboard table.
type Entity interface {
	EntityID() string
	SetEntityID(id string)
	TenantID() string
}

// NewEntity returns a zero value of the entity type stored in the named
// table, ready for decoding.
func NewEntity(table string) (Entity, error) {
	switch table {
	case TableFields:
		return &FieldNode{}, nil
	case TableForms:
		return &Form{}, nil
	case TableAgents:
		return &Agent{}, nil
	case TableSubmissions:
		return &Submission{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
}

package pipeline

import (
	"github.com/corisec/cori/internal/catalog"
	"github.com/corisec/cori/internal/config"
	"github.com/corisec/cori/internal/policy"
	"github.com/corisec/cori/internal/validator"
)

// dispatchValidate routes to the validator function matching desc's
// operation. oldRow is only meaningful (and only non-nil) for updates.
func dispatchValidate(desc catalog.ToolDescriptor, tp policy.EffectiveTablePolicy, schemaTable config.TableSchema, arguments map[string]any, oldRow map[string]any) validator.Result {
	switch desc.Operation {
	case catalog.OpReadOne, catalog.OpReadMany:
		return validator.ValidateRead(desc, tp, arguments)
	case catalog.OpCreate:
		return validator.ValidateCreate(desc, tp, schemaTable, arguments)
	case catalog.OpUpdate:
		return validator.ValidateUpdate(desc, tp, schemaTable, arguments, oldRow)
	case catalog.OpDelete:
		return validator.ValidateDelete(desc, tp, arguments)
	default:
		return validator.Result{Outcome: validator.Denied, Violations: []validator.Violation{{Field: "", Kind: validator.UnknownField, Message: "unrecognized tool operation"}}}
	}
}
